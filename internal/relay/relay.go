package relay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/config"
	"tutord/pkg/types"
)

// Options configures a Relay. Llama is required; the rest have defaults.
type Options struct {
	Llama config.LlamaConfig
	// Env is appended to the environment of every inference process.
	Env       []string
	KillGrace time.Duration
	Logger    zerolog.Logger
}

// Relay forwards prompts to the inference binary. It holds no per-request
// state; concurrent Query calls each run their own process.
type Relay struct {
	cfg    config.LlamaConfig
	runner *Runner
	adm    *admission
	log    zerolog.Logger
}

// New constructs a Relay from opts.
func New(opts Options) *Relay {
	return &Relay{
		cfg: opts.Llama,
		runner: &Runner{
			Env:       opts.Env,
			Timeout:   opts.Llama.InferTimeout(),
			KillGrace: opts.KillGrace,
			Log:       opts.Logger,
		},
		adm: newAdmission(opts.Llama.MaxConcurrent, opts.Llama.QueueWait()),
		log: opts.Logger,
	}
}

// Query runs the inference binary once for prompt and returns its result.
// See Runner.Run for which failures are results and which are errors; in
// addition a *PromptError is returned before spawning for prompts that cannot
// be passed as one argument, and a *BusyError when admission fails.
func (r *Relay) Query(ctx context.Context, prompt string) (types.InferenceResult, error) {
	start := time.Now()
	if err := CheckPrompt(prompt); err != nil {
		observe(outcomeRejected, time.Since(start))
		return types.InferenceResult{}, err
	}
	release, err := r.adm.acquire(ctx)
	if err != nil {
		observe(outcomeOf(types.InferenceResult{}, err), time.Since(start))
		return types.InferenceResult{}, err
	}
	defer release()

	inferenceInflight.Inc()
	defer inferenceInflight.Dec()
	res, err := r.runner.Run(ctx, NewInvocation(r.cfg, prompt))
	observe(outcomeOf(res, err), time.Since(start))
	return res, err
}

// Ready reports whether the inference binary can currently be spawned.
func (r *Relay) Ready() bool { return Preflight(r.cfg).OK() }

// Sanity returns the full preflight report.
func (r *Relay) Sanity() SanityReport { return Preflight(r.cfg) }

func observe(outcome string, d time.Duration) {
	inferenceRunsTotal.WithLabelValues(outcome).Inc()
	inferenceDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func outcomeOf(res types.InferenceResult, err error) string {
	switch {
	case err == nil && res.Failed:
		return outcomeExitError
	case err == nil:
		return outcomeOK
	case IsSpawn(err):
		return outcomeSpawn
	case IsTimeout(err):
		return outcomeTimeout
	case IsBusy(err):
		return outcomeBusy
	case IsPrompt(err):
		return outcomeRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeError
	}
}
