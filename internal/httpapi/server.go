package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tutord/internal/relay"
	"tutord/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Query(ctx context.Context, prompt string) (types.InferenceResult, error)
	Ready() bool
	Sanity() relay.SanityReport
}

type server struct {
	svc  Service
	opts Options
}

// NewMux builds the router: the prompt form on /, plus /healthz, /readyz,
// /status and /metrics.
func NewMux(svc Service, opts Options) http.Handler {
	s := &server{svc: svc, opts: opts}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	if opts.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORS.AllowedOrigins,
			AllowedMethods: opts.CORS.AllowedMethods,
			AllowedHeaders: opts.CORS.AllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", s.handleIndex)
	r.Post("/", s.handlePrompt)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("inference binary unavailable"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		rep := svc.Sanity()
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(types.ReadyResponse{
			Ready:     rep.OK(),
			LlamaPath: rep.LlamaPath,
			Warnings:  rep.Warnings,
			Error:     rep.Error,
		}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf.Bytes())
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := renderPage(w, http.StatusOK, pageData{}); err != nil {
		s.opts.Logger.Error().Err(err).Msg("render page")
	}
}

func (s *server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(s.opts.Logger, r)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		log = log.With().Str("request_id", rid).Logger()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.maxBody())
	if err := r.ParseMultipartForm(s.opts.maxBody()); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	// A missing field is a client error, not an empty prompt.
	values, ok := r.PostForm["prompt"]
	if !ok || len(values) == 0 {
		log.Info().Int("status", http.StatusBadRequest).Msg("missing prompt field")
		http.Error(w, `missing form field "prompt"`, http.StatusBadRequest)
		return
	}
	req := types.PromptRequest{Text: values[0]}

	start := time.Now()
	log.Info().Str("path", r.URL.Path).Int("prompt_bytes", len(req.Text)).Msg("relay start")
	log.Debug().Str("prompt", req.Text).Msg("relay prompt")

	// Join server base context with request context so shutdown cancels work too.
	base := s.opts.baseContext()
	ctx, cancel := joinContexts(base, r.Context())
	defer cancel()

	res, err := s.svc.Query(ctx, req.Text)
	if err != nil {
		// Client went away: nobody to render for.
		if r.Context().Err() != nil {
			log.Info().Dur("dur", time.Since(start)).Err(err).Msg("relay abandoned")
			return
		}
		if base.Err() != nil {
			logEnd(log, http.StatusServiceUnavailable, start, err)
			if rerr := renderPage(w, http.StatusServiceUnavailable, pageData{Response: shutdownView()}); rerr != nil {
				log.Error().Err(rerr).Msg("render page")
			}
			return
		}
		status := statusFor(err)
		if relay.IsBusy(err) {
			IncrementBackpressure("inference_slots")
		}
		logEnd(log, status, start, err)
		if rerr := renderPage(w, status, pageData{Response: failureView(err)}); rerr != nil {
			log.Error().Err(rerr).Msg("render page")
		}
		return
	}

	logEnd(log, http.StatusOK, start, nil)
	log.Debug().Bool("failed", res.Failed).Str("response", res.Text).Msg("relay response")
	if err := renderPage(w, http.StatusOK, pageData{Response: viewOf(res)}); err != nil {
		log.Error().Err(err).Msg("render page")
	}
}

func logEnd(log zerolog.Logger, status int, start time.Time, err error) {
	ev := log.Info()
	if status >= http.StatusInternalServerError {
		ev = log.Warn()
	}
	ev.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("relay end")
}
