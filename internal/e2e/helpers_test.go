package e2e

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/config"
	"tutord/internal/httpapi"
	"tutord/internal/relay"
	"tutord/internal/relay/relaytest"
)

// newServer wires the real relay and HTTP layer around the fake binary.
func newServer(t *testing.T, fake relaytest.Fake, tune func(*config.LlamaConfig)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Llama.Bin = relaytest.Bin()
	dir := t.TempDir()
	cfg.Llama.Model = filepath.Join(dir, "model.gguf")
	cfg.Llama.Lora = filepath.Join(dir, "lora_adapter.bin")
	cfg.Llama.Tokenizer = filepath.Join(dir, "tokenizer.json")
	if tune != nil {
		tune(&cfg.Llama)
	}
	rl := relay.New(relay.Options{
		Llama:     cfg.Llama,
		Env:       fake.Env(),
		KillGrace: 200 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})
	srv := httptest.NewServer(httpapi.NewMux(rl, httpapi.Options{Logger: zerolog.Nop()}))
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

// postPrompt submits the form. It does not fail the test itself so it can be
// called from worker goroutines.
func postPrompt(ctx context.Context, u, prompt string) (*http.Response, string, error) {
	form := url.Values{"prompt": {prompt}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b), nil
}
