package httpapi

import (
	"encoding/json"
	"net/http"

	"tutord/internal/relay"
	"tutord/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps a relay error to the status of the rendered page.
func statusFor(err error) int {
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// failureView turns a relay error into the text shown in the response section.
// Spawn failures reuse the llama error marker so the page reads the same as a
// failed run.
func failureView(err error) *responseView {
	if relay.IsSpawn(err) {
		return &responseView{Text: types.ErrorMarker + err.Error(), Failed: true}
	}
	return &responseView{Text: "[" + err.Error() + "]", Failed: true}
}

// shutdownView is shown to clients whose run was cut short by server shutdown.
func shutdownView() *responseView {
	return &responseView{Text: "[server shutting down; please resubmit]", Failed: true}
}

// writeJSONError writes a consistent JSON error payload. Call it only before
// any of the body has been written.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
