package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"

	"github.com/bdougie/pitchside/internal/models"
)

// Captioner narrates single frames. It never returns an error: any failure
// yields FallbackCaption with the failure attached.
type Captioner struct {
	describer Describer
	language  string
	quality   int
	tempDir   string
	logger    *slog.Logger
}

type CaptionerOptions struct {
	Language    string // prompt table language, "en" when empty
	JPEGQuality int
	TempDir     string // where per-frame JPEGs are written, OS default when empty
}

func NewCaptioner(describer Describer, opts CaptionerOptions, logger *slog.Logger) (*Captioner, error) {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if _, err := LookupPrompt(opts.Language, models.LevelNovice); err != nil {
		return nil, err
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = jpeg.DefaultQuality
	}
	return &Captioner{
		describer: describer,
		language:  opts.Language,
		quality:   opts.JPEGQuality,
		tempDir:   opts.TempDir,
		logger:    logger,
	}, nil
}

// Caption describes frame for a viewer at level.
func (c *Captioner) Caption(ctx context.Context, frame models.Frame, level models.Level) models.Caption {
	text, failure := c.caption(ctx, frame, level)
	if failure != nil {
		c.logger.Warn("caption failed",
			slog.Int("frame", frame.Index),
			slog.String("kind", string(failure.Kind)),
			slog.Any("error", failure.Err),
		)
		return models.Caption{FrameIndex: frame.Index, Text: FallbackCaption, Failure: failure}
	}
	return models.Caption{FrameIndex: frame.Index, Text: text}
}

func (c *Captioner) caption(ctx context.Context, frame models.Frame, level models.Level) (string, *models.Failure) {
	prompt, err := LookupPrompt(c.language, level)
	if err != nil {
		return "", models.NewFrameFailure(models.FailureInvalidInput, frame.Index, err)
	}

	path, err := c.writeJPEG(frame)
	if err != nil {
		return "", models.NewFrameFailure(models.FailureSerialize, frame.Index, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove frame file", slog.String("path", path), slog.Any("error", err))
		}
	}()

	dataURL, err := fileDataURL(path)
	if err != nil {
		return "", models.NewFrameFailure(models.FailureEncode, frame.Index, err)
	}

	text, err := c.describer.Describe(ctx, DescribeRequest{
		SystemPrompt: prompt.System,
		Instruction:  prompt.Instruction,
		ImagePath:    path,
		ImageDataURL: dataURL,
	})
	if err != nil {
		return "", models.NewFrameFailure(models.FailureDescribe, frame.Index, err)
	}
	return text, nil
}

func (c *Captioner) writeJPEG(frame models.Frame) (string, error) {
	if frame.Image == nil {
		return "", errors.New("frame has no image")
	}

	f, err := os.CreateTemp(c.tempDir, fmt.Sprintf("frame-%06d-*.jpg", frame.Index))
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(f, frame.Image, &jpeg.Options{Quality: c.quality}); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func fileDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty", path)
	}
	return jpegDataURL(data), nil
}

func jpegDataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

// ImageDataURL encodes img as a JPEG data URL suitable for an <img> src.
func ImageDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return jpegDataURL(buf.Bytes()), nil
}
