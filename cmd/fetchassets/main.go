package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tutord/internal/assets"
	"tutord/internal/config"
	"tutord/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	cacheDir   string
	revision   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "fetchassets",
		Short: "Download the quantized model, LoRA adapter and tokenizer into the local cache",
		Long: "Downloads each configured asset file, in order, from the artifact repository.\n" +
			"The first failure stops the run; files already downloaded are kept.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(f.configPath)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("cache-dir") {
				cfg.Assets.CacheDir = f.cacheDir
			}
			if fl.Changed("revision") {
				cfg.Assets.Revision = f.revision
			}
			if fl.Changed("log-level") {
				cfg.LogLevel = f.logLevel
			}
			if err := cfg.Normalize(); err != nil {
				return err
			}
			if err := cfg.ValidateAssets(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fetcher := &assets.Fetcher{
				Source: assets.NewHubClient(cfg.Assets, log),
				RepoID: cfg.Assets.RepoID,
				Files:  cfg.Assets.Files,
				Out:    cmd.OutOrStdout(),
				Log:    log,
			}
			_, err = fetcher.FetchAll(ctx)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", os.Getenv("TUTORD_CONFIG"), "Config file (.yaml, .json or .toml)")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "Local cache directory (default HF_HUB_CACHE or ~/.cache/huggingface/hub)")
	fl.StringVar(&f.revision, "revision", "main", "Repository revision (branch, tag or commit)")
	fl.StringVar(&f.logLevel, "log-level", "warn", "Log level: debug|info|warn|error|off")
	return cmd
}
