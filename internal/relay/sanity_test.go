package relay

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutord/internal/config"
	"tutord/internal/relay/relaytest"
)

func TestPreflight_MissingBinary(t *testing.T) {
	cfg := config.Default().Llama
	cfg.Bin = filepath.Join(t.TempDir(), "main")
	r := Preflight(cfg)
	assert.False(t, r.OK())
	assert.False(t, r.LlamaFound)
	assert.Equal(t, cfg.Bin, r.LlamaPath)
	assert.NotEmpty(t, r.Error)
}

func TestPreflight_EmptyBinary(t *testing.T) {
	cfg := config.Default().Llama
	cfg.Bin = " "
	r := Preflight(cfg)
	assert.False(t, r.OK())
	assert.Equal(t, "llama binary not configured", r.Error)
}

func TestPreflight_BareNameNotOnPath(t *testing.T) {
	cfg := config.Default().Llama
	cfg.Bin = "llama-definitely-not-installed-xyz"
	r := Preflight(cfg)
	assert.False(t, r.OK())
}

func TestPreflight_FoundWithWarnings(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	d := t.TempDir()
	model := filepath.Join(d, "m.gguf")
	require.NoError(t, os.WriteFile(model, []byte("gguf"), 0o644))
	cfg := config.Default().Llama
	cfg.Bin = relaytest.Bin()
	cfg.Model = model
	cfg.Lora = filepath.Join(d, "lora_adapter.bin")
	cfg.Tokenizer = ""

	r := Preflight(cfg)
	assert.True(t, r.OK(), "report: %+v", r)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "lora")

	rel := New(Options{Llama: cfg})
	assert.True(t, rel.Ready())
	assert.Equal(t, r, rel.Sanity())
}
