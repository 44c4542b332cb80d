package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tutord/internal/config"
	"tutord/internal/httpapi"
	"tutord/internal/logging"
	"tutord/internal/relay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath    string
	addr          string
	logLevel      string
	llamaBin      string
	inferTimeout  int
	maxConcurrent int
	corsOrigins   string
	strict        bool
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&flags{}) }

// newRootCmdWith binds the command-line flags to f.
func newRootCmdWith(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tutord",
		Short:         "Offline AI tutor: a web form relayed to a local llama.cpp binary",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, f.strict)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", os.Getenv("TUTORD_CONFIG"), "Config file (.yaml, .json or .toml)")
	fl.StringVar(&f.addr, "addr", config.DefaultAddr, "HTTP listen address")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error|off")
	fl.StringVar(&f.llamaBin, "llama-bin", "", "Path to the llama.cpp executable")
	fl.IntVar(&f.inferTimeout, "infer-timeout", 0, "Seconds before an inference process is killed (0 disables)")
	fl.IntVar(&f.maxConcurrent, "max-concurrent", 0, "Maximum concurrent inference processes (0 = unlimited)")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS when set")
	fl.BoolVar(&f.strict, "strict", false, "Refuse to start when the inference binary is unavailable")
	return cmd
}

// buildConfig merges defaults, config file, environment and explicitly set flags.
func buildConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return cfg, err
	}
	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fl.Changed("llama-bin") {
		cfg.Llama.Bin = f.llamaBin
	}
	if fl.Changed("infer-timeout") {
		cfg.Llama.InferTimeoutSeconds = f.inferTimeout
	}
	if fl.Changed("max-concurrent") {
		cfg.Llama.MaxConcurrent = f.maxConcurrent
	}
	if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
		cfg.CORS.Enabled = true
		cfg.CORS.AllowedOrigins = origins
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	if err := cfg.ValidateRelay(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serve(parent context.Context, cfg config.Config, strict bool) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logging.New(cfg.LogLevel, os.Stderr)

	rep := relay.Preflight(cfg.Llama)
	for _, w := range rep.Warnings {
		log.Warn().Msg(w)
	}
	if !rep.OK() {
		if strict {
			return fmt.Errorf("inference binary unavailable: %s", rep.Error)
		}
		log.Warn().Str("bin", rep.LlamaPath).Str("error", rep.Error).Msg("inference binary unavailable; prompts will fail until it is installed")
	}

	// Graceful shutdown (Ctrl+C / SIGTERM); also cancels in-flight inference.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rel := relay.New(relay.Options{
		Llama:  cfg.Llama,
		Logger: log.With().Str("component", "relay").Logger(),
	})
	mux := httpapi.NewMux(rel, httpapi.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORS:         cfg.CORS,
		BaseContext:  ctx,
		Logger:       log.With().Str("component", "http").Logger(),
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("llama_bin", cfg.Llama.Bin).Str("model", cfg.Llama.Model).Msg("tutord listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// splitCSV splits a comma list, trimming blanks and dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
