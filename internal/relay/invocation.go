package relay

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tutord/internal/config"
)

// Invocation is one fully assembled command line for the inference binary.
type Invocation struct {
	Bin  string
	Args []string
}

// MaxPromptBytes is the largest prompt that fits in one argv element on
// Linux (MAX_ARG_STRLEN is 32 pages including the terminating NUL).
const MaxPromptBytes = 128*1024 - 1

// CheckPrompt reports a *PromptError when prompt cannot be passed verbatim
// as a single argument.
func CheckPrompt(prompt string) error {
	if strings.IndexByte(prompt, 0) >= 0 {
		return &PromptError{Reason: "contains a NUL byte", Status: http.StatusBadRequest}
	}
	if len(prompt) > MaxPromptBytes {
		return &PromptError{
			Reason: fmt.Sprintf("%d bytes exceeds the %d byte limit", len(prompt), MaxPromptBytes),
			Status: http.StatusRequestEntityTooLarge,
		}
	}
	return nil
}

// NewInvocation builds the argument list in the fixed order
// --model, --lora, --tokenizer, --prompt, --n_predict, --temp.
// The prompt is always a single argv element and is never re-parsed.
// --lora and --tokenizer are omitted when their path is configured empty.
func NewInvocation(cfg config.LlamaConfig, prompt string) Invocation {
	args := make([]string, 0, 12)
	args = append(args, "--model", cfg.Model)
	if cfg.Lora != "" {
		args = append(args, "--lora", cfg.Lora)
	}
	if cfg.Tokenizer != "" {
		args = append(args, "--tokenizer", cfg.Tokenizer)
	}
	args = append(args,
		"--prompt", prompt,
		"--n_predict", strconv.Itoa(cfg.NPredict),
		"--temp", strconv.FormatFloat(cfg.Temp, 'f', -1, 64),
	)
	return Invocation{Bin: cfg.Bin, Args: args}
}

// Argv returns the executable followed by its arguments.
func (inv Invocation) Argv() []string {
	return append([]string{inv.Bin}, inv.Args...)
}
