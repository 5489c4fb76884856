package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// YtdlpBackend downloads through the yt-dlp executable.
type YtdlpBackend struct {
	format string
	logger *slog.Logger
}

// NewYtdlpBackend creates a backend selecting formats with the given yt-dlp
// format expression, e.g. "best[ext=mp4]".
func NewYtdlpBackend(format string, logger *slog.Logger) *YtdlpBackend {
	return &YtdlpBackend{format: format, logger: logger}
}

func (b *YtdlpBackend) Name() string {
	return "yt-dlp"
}

func (b *YtdlpBackend) Download(ctx context.Context, url, dir string) (*Download, error) {
	dl := ytdlp.New().
		Format(b.format).
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))

	dl.ProgressFunc(time.Second, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			b.logger.Debug("download progress",
				slog.String("url", url),
				slog.Float64("percent", float64(update.DownloadedBytes)/float64(update.TotalBytes)*100),
			)
		}
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	download := &Download{}
	if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 {
		if info[0].Filename != nil {
			download.Path = *info[0].Filename
		}
		if info[0].Title != nil {
			download.Title = *info[0].Title
		}
	}

	// Older yt-dlp builds do not report the final filename; the directory
	// is private to this run so the single file in it is the download.
	if download.Path == "" {
		path, err := singleFile(dir)
		if err != nil {
			return nil, err
		}
		download.Path = path
	}
	return download, nil
}

func singleFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var found string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("multiple files in %s", dir)
		}
		found = filepath.Join(dir, entry.Name())
	}
	if found == "" {
		return "", fmt.Errorf("no file downloaded into %s", dir)
	}
	return found, nil
}
