package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// NativeBackend downloads YouTube videos without an external executable.
type NativeBackend struct {
	client *youtube.Client
}

func NewNativeBackend() *NativeBackend {
	return &NativeBackend{client: &youtube.Client{}}
}

func (b *NativeBackend) Name() string {
	return "native"
}

func (b *NativeBackend) Download(ctx context.Context, url, dir string) (*Download, error) {
	video, err := b.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, err
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, err
	}

	stream, _, err := b.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	path := filepath.Join(dir, video.ID+extensionFor(format.MimeType))
	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return &Download{Path: path, Title: video.Title}, nil
}

// pickFormat prefers a progressive MP4 (video and audio in one file).
func pickFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if mp4 := withAudio.Type("video/mp4"); len(mp4) > 0 {
		return &mp4[0], nil
	}
	for i := range withAudio {
		if strings.HasPrefix(withAudio[i].MimeType, "video/") {
			return &withAudio[i], nil
		}
	}
	return nil, errors.New("no progressive video format available")
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "video/webm"):
		return ".webm"
	case strings.HasPrefix(mimeType, "video/3gpp"):
		return ".3gp"
	}
	return ".video"
}
