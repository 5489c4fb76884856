// Package fetcher downloads a playable video for a URL into a temporary
// directory owned by a single run.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bdougie/pitchside/internal/models"
)

// Download is what a backend produced inside the directory it was given.
type Download struct {
	Path  string
	Title string
}

// Backend retrieves the video at url into dir.
type Backend interface {
	Name() string
	Download(ctx context.Context, url, dir string) (*Download, error)
}

// VideoAsset is a downloaded video and the temporary directory holding it.
// Close removes the directory.
type VideoAsset struct {
	Path    string
	Dir     string
	Title   string
	Backend string
	Size    int64
}

func (a *VideoAsset) Close() error {
	if a == nil || a.Dir == "" {
		return nil
	}
	return os.RemoveAll(a.Dir)
}

type Fetcher struct {
	backend Backend
	tempDir string
	logger  *slog.Logger
}

// NewFetcher creates a fetcher. An empty tempDir uses the OS default.
func NewFetcher(backend Backend, tempDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{backend: backend, tempDir: tempDir, logger: logger}
}

// Fetch downloads rawURL into a fresh temporary directory. Every error is a
// *models.Failure of kind FailureFetch and leaves no directory behind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*VideoAsset, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, models.NewFailure(models.FailureFetch, err)
	}

	if f.tempDir != "" {
		if err := os.MkdirAll(f.tempDir, 0o755); err != nil {
			return nil, models.NewFailure(models.FailureFetch, fmt.Errorf("create temp root: %w", err))
		}
	}
	dir, err := os.MkdirTemp(f.tempDir, "pitchside-")
	if err != nil {
		return nil, models.NewFailure(models.FailureFetch, fmt.Errorf("create temp dir: %w", err))
	}

	asset, err := f.fetchInto(ctx, rawURL, dir)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			f.logger.Warn("failed to remove temp dir", slog.String("dir", dir), slog.Any("error", rmErr))
		}
		return nil, models.NewFailure(models.FailureFetch, err)
	}

	f.logger.Info("video downloaded",
		slog.String("backend", asset.Backend),
		slog.String("path", asset.Path),
		slog.String("size", humanize.Bytes(uint64(asset.Size))),
	)
	return asset, nil
}

func (f *Fetcher) fetchInto(ctx context.Context, rawURL, dir string) (*VideoAsset, error) {
	dl, err := f.backend.Download(ctx, rawURL, dir)
	if err != nil {
		return nil, fmt.Errorf("%s download: %w", f.backend.Name(), err)
	}
	if dl == nil || dl.Path == "" {
		return nil, fmt.Errorf("%s download: no file produced", f.backend.Name())
	}

	info, err := os.Stat(dl.Path)
	if err != nil {
		return nil, fmt.Errorf("stat downloaded file: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, fmt.Errorf("downloaded file %s is empty", dl.Path)
	}

	return &VideoAsset{
		Path:    dl.Path,
		Dir:     dir,
		Title:   dl.Title,
		Backend: f.backend.Name(),
		Size:    info.Size(),
	}, nil
}

// ValidateURL rejects input that cannot name a remote video.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.New("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}
