// Package relay turns a prompt into one run of the external llama.cpp binary.
// It is structured into small files by concern:
//
//   - invocation.go: the fixed argument template (Invocation, NewInvocation).
//   - runner.go: subprocess execution with output capture, timeout and kill grace.
//   - errors.go: error kinds (SpawnError, TimeoutError, BusyError) and Is* helpers.
//   - admission.go: optional cap on concurrently running inference processes.
//   - sanity.go: startup/readiness preflight of the binary and model files.
//   - metrics.go: Prometheus collectors for inference runs.
//   - relay.go: Relay, the entry point used by the HTTP layer.
//
// A non-zero exit of the binary is not an error: it is a failed
// types.InferenceResult carrying types.ErrorMarker and the captured stderr.
package relay
