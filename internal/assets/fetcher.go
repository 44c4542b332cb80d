// Package assets downloads the model, adapter and tokenizer files the relay
// needs from a Hugging Face style artifact repository.
package assets

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Source materializes one file of a repository locally and returns its path.
type Source interface {
	Download(ctx context.Context, repoID, filename string) (string, error)
}

// Fetcher downloads a fixed, ordered list of files from one repository.
type Fetcher struct {
	Source Source
	RepoID string
	Files  []string
	// Out receives the human-facing progress lines.
	Out io.Writer
	Log zerolog.Logger
}

// FetchAll downloads every file strictly in order, one at a time. The first
// failure stops the run; files fetched before it are left in place.
// It returns the local paths of the files fetched.
func (f *Fetcher) FetchAll(ctx context.Context) ([]string, error) {
	out := f.Out
	if out == nil {
		out = io.Discard
	}
	paths := make([]string, 0, len(f.Files))
	for _, fn := range f.Files {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		fmt.Fprintf(out, "Downloading %s...\n", fn)
		path, err := f.Source.Download(ctx, f.RepoID, fn)
		if err != nil {
			f.Log.Error().Str("repo", f.RepoID).Str("file", fn).Err(err).Msg("download failed")
			return paths, fmt.Errorf("download %s: %w", fn, err)
		}
		fmt.Fprintf(out, "  → saved to %s\n", path)
		paths = append(paths, path)
	}
	fmt.Fprintln(out, "All assets downloaded.")
	return paths, nil
}
