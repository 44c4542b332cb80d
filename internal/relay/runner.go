package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tutord/pkg/types"
)

// defaultKillGrace is how long a process gets between SIGTERM and SIGKILL.
const defaultKillGrace = 2 * time.Second

// stderrTailBytes bounds the stderr excerpt written to logs.
const stderrTailBytes = 4096

// Runner executes one Invocation and waits for it to finish.
type Runner struct {
	// Env is appended to the inherited environment (KEY=VALUE).
	Env []string
	// Timeout bounds a single run; zero disables it.
	Timeout time.Duration
	// KillGrace is the delay between SIGTERM and SIGKILL on cancellation.
	KillGrace time.Duration
	Log       zerolog.Logger
}

// Run starts inv, captures stdout and stderr, and blocks until exit.
//
// Exit status 0 yields a successful result with trimmed stdout. A non-zero
// exit yields a failed result (types.ErrorMarker + stderr) and a nil error.
// Errors are returned only for spawn failures (*SpawnError), an argument list
// the kernel refuses (*PromptError), an exceeded Timeout (*TimeoutError) and
// cancellation of ctx (ctx.Err()).
func (r *Runner) Run(ctx context.Context, inv Invocation) (types.InferenceResult, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	grace := r.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}

	cmd := exec.CommandContext(runCtx, inv.Bin, inv.Args...)
	cmd.Env = append(os.Environ(), r.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Try to terminate gracefully first; WaitDelay escalates to kill.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		// The binary exists but the kernel refused the argument list.
		if errors.Is(err, syscall.E2BIG) {
			return types.InferenceResult{}, &PromptError{Reason: "argument list too long", Status: http.StatusRequestEntityTooLarge}
		}
		return types.InferenceResult{}, &SpawnError{Bin: inv.Bin, Err: err}
	}
	pid := cmd.Process.Pid
	r.Log.Debug().Int("pid", pid).Str("bin", inv.Bin).Msg("inference start")

	werr := cmd.Wait()
	dur := time.Since(start)

	if werr == nil {
		r.Log.Debug().Int("pid", pid).Dur("dur", dur).Int("stdout_bytes", stdout.Len()).Msg("inference exit")
		return types.Success(stdout.String()), nil
	}
	if ctx.Err() != nil {
		r.Log.Info().Int("pid", pid).Dur("dur", dur).Msg("inference canceled")
		return types.InferenceResult{}, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.Log.Warn().Int("pid", pid).Dur("dur", dur).Dur("timeout", r.Timeout).Msg("inference timeout")
		return types.InferenceResult{}, &TimeoutError{After: r.Timeout}
	}
	var exitErr *exec.ExitError
	if errors.As(werr, &exitErr) {
		code := exitErr.ExitCode()
		r.Log.Warn().Int("pid", pid).Dur("dur", dur).Int("code", code).Str("stderr_tail", tail(stderr.String(), stderrTailBytes)).Msg("inference exit")
		return types.Failure(stderr.String(), code), nil
	}
	return types.InferenceResult{}, fmt.Errorf("wait %s: %w", inv.Bin, werr)
}

func tail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
