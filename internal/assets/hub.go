package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"tutord/internal/common/fsutil"
	"tutord/internal/config"
)

const userAgent = "tutord-fetchassets/1.0"

// HubError reports a non-2xx answer from the artifact repository.
type HubError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HubError) Error() string {
	msg := fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		msg += " (set HF_TOKEN for gated or private repositories)"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the repository.
func IsNotFound(err error) bool {
	var he *HubError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// HubClient downloads files over HTTP into a local cache laid out as
// <cache>/models--<owner>--<name>/snapshots/<revision>/<file>.
type HubClient struct {
	Endpoint string
	Revision string
	CacheDir string
	Token    string
	HTTP     *http.Client
	Log      zerolog.Logger
}

// NewHubClient constructs a client from configuration.
func NewHubClient(cfg config.AssetsConfig, log zerolog.Logger) *HubClient {
	// Timeout=0: downloads are bounded by the caller's context, not a fixed deadline.
	return &HubClient{
		Endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		Revision: cfg.Revision,
		CacheDir: cfg.CacheDir,
		Token:    cfg.Token,
		HTTP:     &http.Client{Timeout: 0},
		Log:      log,
	}
}

// FileURL is the resolve URL of filename at the client's revision.
func (c *HubClient) FileURL(repoID, filename string) string {
	segs := strings.Split(filename, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.Endpoint, repoID, url.PathEscape(c.Revision), strings.Join(segs, "/"))
}

// LocalPath is where filename is stored in the cache.
func (c *HubClient) LocalPath(repoID, filename string) string {
	repoDir := "models--" + strings.ReplaceAll(repoID, "/", "--")
	return filepath.Join(c.CacheDir, repoDir, "snapshots", c.Revision, filepath.FromSlash(filename))
}

// Download fetches filename from repoID and returns the local path.
// The file is written atomically; an interrupted download leaves no partial file.
func (c *HubClient) Download(ctx context.Context, repoID, filename string) (string, error) {
	if err := checkName(filename); err != nil {
		return "", err
	}
	src := c.FileURL(repoID, filename)
	dst := c.LocalPath(repoID, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("GET %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &HubError{StatusCode: resp.StatusCode, URL: src, Body: strings.TrimSpace(string(b))}
	}

	c.Log.Debug().Str("url", src).Int64("content_length", resp.ContentLength).Msg("download start")
	n, err := fsutil.WriteAtomic(dst, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	c.Log.Info().Str("file", filename).Str("size", humanize.Bytes(uint64(n))).Dur("dur", time.Since(start)).Str("path", dst).Msg("downloaded")
	return dst, nil
}

// checkName rejects names that would escape the snapshot directory.
func checkName(filename string) error {
	if filename == "" || strings.HasPrefix(filename, "/") || strings.Contains(filename, `\`) {
		return fmt.Errorf("invalid file name %q", filename)
	}
	for _, seg := range strings.Split(filename, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid file name %q", filename)
		}
	}
	return nil
}
