package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SpawnError means the inference binary could not be started at all
// (missing, not executable, bad interpreter). Distinct from a non-zero exit.
type SpawnError struct {
	Bin string
	Err error
}

func (e *SpawnError) Error() string   { return fmt.Sprintf("start %s: %v", e.Bin, e.Err) }
func (e *SpawnError) Unwrap() error   { return e.Err }
func (e *SpawnError) StatusCode() int { return http.StatusServiceUnavailable }

// PromptError means the prompt cannot be passed to the binary as a single
// argv element. Status is 400 for content the OS rejects (NUL bytes) and 413
// for prompts over the per-argument size limit.
type PromptError struct {
	Reason string
	Status int
}

func (e *PromptError) Error() string   { return "prompt rejected: " + e.Reason }
func (e *PromptError) StatusCode() int { return e.Status }

// TimeoutError means the inference process outlived its deadline and was killed.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string   { return fmt.Sprintf("inference timed out after %s", e.After) }
func (e *TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// BusyError means no inference slot became free within the queue wait.
type BusyError struct {
	Limit int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("too busy: %d inference processes already running", e.Limit)
}
func (e *BusyError) StatusCode() int { return http.StatusServiceUnavailable }

// IsSpawn reports whether err indicates the binary could not be started.
func IsSpawn(err error) bool {
	var e *SpawnError
	return errors.As(err, &e)
}

// IsTimeout reports whether err indicates the inference deadline was exceeded.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsBusy reports whether err indicates admission backpressure.
func IsBusy(err error) bool {
	var e *BusyError
	return errors.As(err, &e)
}

// IsPrompt reports whether err indicates the prompt itself was unusable.
func IsPrompt(err error) bool {
	var e *PromptError
	return errors.As(err, &e)
}
