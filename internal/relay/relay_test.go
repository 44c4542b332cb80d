package relay

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutord/internal/config"
	"tutord/internal/relay/relaytest"
	"tutord/pkg/types"
)

func newFakeRelay(t *testing.T, f relaytest.Fake, mut func(*config.LlamaConfig)) *Relay {
	t.Helper()
	llama := config.Default().Llama
	llama.Bin = relaytest.Bin()
	if mut != nil {
		mut(&llama)
	}
	return New(Options{Llama: llama, Env: f.Env(), KillGrace: 200 * time.Millisecond, Logger: zerolog.Nop()})
}

func TestQuery_EndToEndSuccess(t *testing.T) {
	before := testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeOK))
	r := newFakeRelay(t, relaytest.Fake{Stdout: "4\n"}, nil)
	res, err := r.Query(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, types.InferenceResult{Text: "4"}, res)
	assert.Equal(t, before+1, testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeOK)))
}

func TestQuery_EndToEndFailure(t *testing.T) {
	before := testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeExitError))
	r := newFakeRelay(t, relaytest.Fake{Stderr: "model not found", Exit: 1}, nil)
	res, err := r.Query(context.Background(), "fail case")
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Text, types.ErrorMarker)
	assert.Contains(t, res.Text, "model not found")
	assert.Equal(t, before+1, testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeExitError)))
}

func TestQuery_PromptReachesBinary(t *testing.T) {
	prompt := "--model x.gguf\nwith unicode ✓"
	r := newFakeRelay(t, relaytest.Fake{EchoPrompt: true}, nil)
	res, err := r.Query(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, prompt, res.Text)
}

func TestQuery_ConcurrentCallsAreIndependent(t *testing.T) {
	r := newFakeRelay(t, relaytest.Fake{EchoPrompt: true}, nil)
	prompts := []string{"a", "b", "c", "d"}
	got := make([]string, len(prompts))
	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			res, err := r.Query(context.Background(), p)
			if err == nil {
				got[i] = res.Text
			}
		}(i, p)
	}
	wg.Wait()
	assert.Equal(t, prompts, got)
}

func TestQuery_BusyWhenSlotsExhausted(t *testing.T) {
	r := newFakeRelay(t, relaytest.Fake{Stdout: "slow", Sleep: 1500 * time.Millisecond}, func(l *config.LlamaConfig) {
		l.MaxConcurrent = 1
		l.QueueWaitSeconds = 0
	})
	// Shorten the queue wait below one second for the test.
	r.adm.wait = 100 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := r.Query(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return testutil.ToFloat64(inferenceInflight) >= 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := r.Query(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, IsBusy(err), "got %v", err)
	require.NoError(t, <-done)
}

func TestQuery_TimeoutFromConfig(t *testing.T) {
	r := newFakeRelay(t, relaytest.Fake{Sleep: 10 * time.Second}, func(l *config.LlamaConfig) {
		l.InferTimeoutSeconds = 1
	})
	_, err := r.Query(context.Background(), "hang")
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, outcomeOK, outcomeOf(types.InferenceResult{}, nil))
	assert.Equal(t, outcomeExitError, outcomeOf(types.InferenceResult{Failed: true}, nil))
	assert.Equal(t, outcomeSpawn, outcomeOf(types.InferenceResult{}, &SpawnError{Bin: "x"}))
	assert.Equal(t, outcomeTimeout, outcomeOf(types.InferenceResult{}, &TimeoutError{}))
	assert.Equal(t, outcomeBusy, outcomeOf(types.InferenceResult{}, &BusyError{Limit: 1}))
	assert.Equal(t, outcomeRejected, outcomeOf(types.InferenceResult{}, &PromptError{Status: http.StatusBadRequest}))
	assert.Equal(t, outcomeCanceled, outcomeOf(types.InferenceResult{}, context.Canceled))
	assert.Equal(t, outcomeError, outcomeOf(types.InferenceResult{}, assert.AnError))
}

func TestQuery_UnpassablePromptIsRejectedBeforeSpawn(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		status int
	}{
		{"nul", "a\x00b", http.StatusBadRequest},
		{"too long", strings.Repeat("x", 200*1024), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			argsFile := filepath.Join(t.TempDir(), "argv.json")
			r := newFakeRelay(t, relaytest.Fake{ArgsFile: argsFile}, nil)
			before := testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeRejected))

			_, err := r.Query(context.Background(), tc.prompt)
			require.Error(t, err)
			assert.True(t, IsPrompt(err), "got %T: %v", err, err)
			assert.False(t, IsSpawn(err))
			var pe *PromptError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.status, pe.StatusCode())
			assert.Equal(t, before+1, testutil.ToFloat64(inferenceRunsTotal.WithLabelValues(outcomeRejected)))

			_, statErr := os.Stat(argsFile)
			assert.True(t, os.IsNotExist(statErr), "binary should not have run")
		})
	}
}

func TestQuery_LongPromptWithinLimitRuns(t *testing.T) {
	r := newFakeRelay(t, relaytest.Fake{EchoPrompt: true}, nil)
	prompt := strings.Repeat("y", 100*1024)
	res, err := r.Query(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, prompt, res.Text)
}
