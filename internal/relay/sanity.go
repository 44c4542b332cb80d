package relay

import (
	"fmt"
	"os/exec"
	"strings"

	"tutord/internal/common/fsutil"
	"tutord/internal/config"
)

// SanityReport describes preflight checks of the inference binary and the
// files it is pointed at.
type SanityReport struct {
	LlamaFound bool     `json:"llama_found"`
	LlamaPath  string   `json:"llama_path,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// OK reports whether a request could at least spawn the binary.
func (r SanityReport) OK() bool { return r.LlamaFound && r.Error == "" }

// Preflight validates that the configured executable can be started and that
// model, adapter and tokenizer files are present. Missing data files are
// warnings only: the binary decides whether it can run without them.
// It does not mutate state and is safe to call at any time.
func Preflight(cfg config.LlamaConfig) SanityReport {
	var r SanityReport
	bin := strings.TrimSpace(cfg.Bin)
	if bin == "" {
		r.Error = "llama binary not configured"
		return r
	}
	if !strings.ContainsAny(bin, `/\`) {
		p, err := exec.LookPath(bin)
		if err != nil {
			r.LlamaPath = bin
			r.Error = err.Error()
			return r
		}
		bin = p
	}
	r.LlamaPath = bin
	if err := fsutil.CheckExecutable(bin); err != nil {
		r.Error = err.Error()
	} else {
		r.LlamaFound = true
	}
	for _, f := range []struct{ flag, path string }{
		{"model", cfg.Model},
		{"lora", cfg.Lora},
		{"tokenizer", cfg.Tokenizer},
	} {
		if f.path == "" {
			continue
		}
		if !fsutil.FileExists(f.path) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s file not found: %s", f.flag, f.path))
		}
	}
	return r
}
