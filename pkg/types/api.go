package types

// ErrorResponse is a consistent JSON error payload for non-HTML endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ReadyResponse is the /status payload: the preflight state of the
// inference binary and its data files.
type ReadyResponse struct {
	Ready     bool     `json:"ready"`
	LlamaPath string   `json:"llama_path,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}
