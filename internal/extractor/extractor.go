package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bdougie/pitchside/internal/models"
)

// ErrInvalidInterval is returned for a sampling interval below 1.
var ErrInvalidInterval = errors.New("sampling interval must be a positive integer")

// Decoder yields decoded frames strictly in order. Next returns the next frame
// as an image; Skip advances past it without building one. Both return io.EOF
// once the stream is exhausted.
type Decoder interface {
	Next() (image.Image, error)
	Skip() error
	Close() error
}

// Sample decodes dec from the start and keeps every frame whose zero-based
// index is a multiple of interval. On a decode error the frames kept so far
// are returned along with the error.
func Sample(ctx context.Context, dec Decoder, interval int) ([]models.Frame, error) {
	if interval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}

	frames := []models.Frame{}
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		keep := index%interval == 0
		var img image.Image
		var err error
		if keep {
			img, err = dec.Next()
		} else {
			err = dec.Skip()
		}
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decode frame %d: %w", index, err)
		}

		if keep {
			frames = append(frames, models.Frame{Index: index, Image: img})
		}
	}
}

// Extractor samples frames from video files using ffmpeg.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewExtractor(ffmpegPath, ffprobePath string, logger *slog.Logger) *Extractor {
	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// ExtractFrames decodes videoPath sequentially and returns every interval-th frame.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, interval int) ([]models.Frame, error) {
	if interval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}

	// Check if video file exists
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not readable at path '%s': %w", videoPath, err)
	}

	info, err := e.probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("decoding video",
		slog.String("path", videoPath),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Float64("fps", info.FPS),
		slog.Int("interval", interval),
	)

	dec, err := e.openDecoder(ctx, videoPath, info)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	frames, err := Sample(ctx, dec, interval)
	if info.FPS > 0 {
		for i := range frames {
			frames[i].Offset = time.Duration(float64(frames[i].Index) / info.FPS * float64(time.Second))
		}
	}
	if err != nil {
		return frames, err
	}

	e.logger.Info("frames sampled", slog.Int("count", len(frames)), slog.Int("interval", interval))
	return frames, nil
}
