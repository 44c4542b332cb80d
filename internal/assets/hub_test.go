package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutord/internal/config"
)

// fakeHub serves /<owner>/<name>/resolve/<rev>/<file> from an in-memory map.
type fakeHub struct {
	mu       sync.Mutex
	files    map[string]string
	token    string
	requests []string
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests = append(h.requests, r.URL.Path)
	h.mu.Unlock()
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "Access to this repo is restricted", http.StatusUnauthorized)
		return
	}
	body, ok := h.files[r.URL.Path]
	if !ok {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newHub(t *testing.T, h *fakeHub) (*HubClient, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cache := t.TempDir()
	cfg := config.Default().Assets
	cfg.Endpoint = srv.URL + "/"
	cfg.CacheDir = cache
	return NewHubClient(cfg, zerolog.Nop()), cache
}

func TestHubClient_URLAndLocalPath(t *testing.T) {
	c := &HubClient{Endpoint: "https://huggingface.co", Revision: "main", CacheDir: "/c"}
	assert.Equal(t,
		"https://huggingface.co/BalajiMittapalli/gemma-3n-finetune-edu/resolve/main/gemma34b-Q4_K_M.gguf",
		c.FileURL(config.DefaultRepoID, "gemma34b-Q4_K_M.gguf"))
	assert.Equal(t, "https://huggingface.co/o/n/resolve/main/sub%20dir/a%23b.json", c.FileURL("o/n", "sub dir/a#b.json"))
	assert.Equal(t,
		filepath.Join("/c", "models--BalajiMittapalli--gemma-3n-finetune-edu", "snapshots", "main", "tokenizer.json"),
		c.LocalPath(config.DefaultRepoID, "tokenizer.json"))
}

func TestHubClient_DownloadWritesCache(t *testing.T) {
	h := &fakeHub{files: map[string]string{
		"/BalajiMittapalli/gemma-3n-finetune-edu/resolve/main/tokenizer.json": `{"model":{}}`,
	}}
	c, cache := newHub(t, h)
	p, err := c.Download(context.Background(), config.DefaultRepoID, "tokenizer.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, cache))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{"model":{}}`, string(b))
}

func TestHubClient_NotFound(t *testing.T) {
	c, cache := newHub(t, &fakeHub{files: map[string]string{}})
	_, err := c.Download(context.Background(), config.DefaultRepoID, "lora_adapter.bin")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Entry not found")
	_, statErr := os.Stat(c.LocalPath(config.DefaultRepoID, "lora_adapter.bin"))
	assert.True(t, os.IsNotExist(statErr))
	entries, _ := os.ReadDir(cache)
	assert.Empty(t, entries)
}

func TestHubClient_TokenIsSent(t *testing.T) {
	h := &fakeHub{token: "hf_abc", files: map[string]string{"/o/n/resolve/main/a.bin": "x"}}
	c, _ := newHub(t, h)
	_, err := c.Download(context.Background(), "o/n", "a.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HF_TOKEN")

	c.Token = "hf_abc"
	_, err = c.Download(context.Background(), "o/n", "a.bin")
	require.NoError(t, err)
}

func TestHubClient_RejectsEscapingNames(t *testing.T) {
	c := &HubClient{Endpoint: "http://unused", Revision: "main", CacheDir: t.TempDir()}
	for _, name := range []string{"", "../x", "a/../../b", "/etc/passwd", `a\b`, "a//b"} {
		_, err := c.Download(context.Background(), "o/n", name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestHubClient_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(block); srv.Close() })
	c := &HubClient{Endpoint: srv.URL, Revision: "main", CacheDir: t.TempDir(), HTTP: srv.Client()}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Download(ctx, "o/n", "model.gguf")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchAll_AgainstHub(t *testing.T) {
	files := map[string]string{}
	for _, f := range config.DefaultFiles {
		files["/BalajiMittapalli/gemma-3n-finetune-edu/resolve/main/"+f] = "content of " + f
	}
	h := &fakeHub{files: files}
	c, _ := newHub(t, h)
	f := &Fetcher{Source: c, RepoID: config.DefaultRepoID, Files: config.DefaultFiles, Log: zerolog.Nop()}

	for run := 0; run < 2; run++ {
		paths, err := f.FetchAll(context.Background())
		require.NoError(t, err)
		require.Len(t, paths, 3)
		for i, p := range paths {
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, "content of "+config.DefaultFiles[i], string(b))
		}
	}
	assert.Len(t, h.requests, 6)
}
