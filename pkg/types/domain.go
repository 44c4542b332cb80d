package types

import "strings"

// PromptRequest is the single form submission accepted by the relay.
// It lives for one request and is never persisted.
type PromptRequest struct {
	// Free-form text supplied by the user, passed to the binary verbatim.
	Text string `json:"text"`
}

// InferenceResult is the outcome of one inference process run.
type InferenceResult struct {
	// Text rendered into the response section. On success this is the trimmed
	// standard output; on failure it is ErrorMarker followed by standard error.
	Text string `json:"text"`
	// Failed is true when the inference process exited non-zero.
	Failed bool `json:"failed"`
	// ExitCode of the inference process (0 on success).
	ExitCode int `json:"exit_code"`
}

// ErrorMarker prefixes the captured standard error of a failed inference run.
const ErrorMarker = "[Error running llama.cpp]\n"

// Success builds a successful result from raw standard output.
func Success(stdout string) InferenceResult {
	return InferenceResult{Text: strings.TrimSpace(stdout)}
}

// Failure builds a failed result from raw standard error and the exit code.
func Failure(stderr string, code int) InferenceResult {
	return InferenceResult{Text: ErrorMarker + stderr, Failed: true, ExitCode: code}
}
