package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/pitchside/internal/models"
)

// fakeDescriber answers with the instruction level prefix and frame order,
// failing on the calls listed in failOn (1-based).
type fakeDescriber struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]bool
	requests []DescribeRequest
	existed  []bool
}

func (d *fakeDescriber) Describe(_ context.Context, req DescribeRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.requests = append(d.requests, req)
	_, err := os.Stat(req.ImagePath)
	d.existed = append(d.existed, err == nil)
	if d.failOn[d.calls] {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("commentary %d", d.calls), nil
}

func testFrame(index int) models.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 140, B: 60, A: 255})
		}
	}
	return models.Frame{Index: index, Image: img}
}

func newTestCaptioner(t *testing.T, d Describer) (*Captioner, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := NewCaptioner(d, CaptionerOptions{JPEGQuality: 80, TempDir: dir}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return c, dir
}

func TestCaptionSendsFrameAndPrompt(t *testing.T) {
	d := &fakeDescriber{}
	c, dir := newTestCaptioner(t, d)

	caption := c.Caption(context.Background(), testFrame(30), models.LevelKnowledgeable)
	assert.Equal(t, 30, caption.FrameIndex)
	assert.Equal(t, "commentary 1", caption.Text)
	assert.False(t, caption.Failed())

	require.Len(t, d.requests, 1)
	req := d.requests[0]
	want, err := LookupPrompt("en", models.LevelKnowledgeable)
	require.NoError(t, err)
	assert.Equal(t, want.System, req.SystemPrompt)
	assert.Equal(t, want.Instruction, req.Instruction)

	require.True(t, strings.HasPrefix(req.ImageDataURL, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(req.ImageDataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), decoded.Bounds())

	assert.True(t, d.existed[0], "frame file exists while the model is called")
	assert.NoFileExists(t, req.ImagePath)
	assert.Empty(t, entries(t, dir))
}

func TestCaptionFallsBackOnDescribeFailure(t *testing.T) {
	d := &fakeDescriber{failOn: map[int]bool{1: true}}
	c, dir := newTestCaptioner(t, d)

	caption := c.Caption(context.Background(), testFrame(60), models.LevelNovice)
	assert.Equal(t, FallbackCaption, caption.Text)
	require.True(t, caption.Failed())
	assert.Equal(t, models.FailureDescribe, caption.Failure.Kind)
	assert.Equal(t, 60, caption.Failure.FrameIndex)
	assert.ErrorContains(t, caption.Failure, "model unavailable")

	require.Len(t, d.requests, 1)
	assert.NoFileExists(t, d.requests[0].ImagePath)
	assert.Empty(t, entries(t, dir))
}

func TestCaptionWithoutImageIsSerializeFailure(t *testing.T) {
	d := &fakeDescriber{}
	c, dir := newTestCaptioner(t, d)

	caption := c.Caption(context.Background(), models.Frame{Index: 3}, models.LevelNovice)
	assert.Equal(t, FallbackCaption, caption.Text)
	require.True(t, caption.Failed())
	assert.Equal(t, models.FailureSerialize, caption.Failure.Kind)
	assert.Zero(t, d.calls)
	assert.Empty(t, entries(t, dir))
}

func TestCaptionUnknownLevel(t *testing.T) {
	d := &fakeDescriber{}
	c, _ := newTestCaptioner(t, d)

	caption := c.Caption(context.Background(), testFrame(0), models.Level(9))
	require.True(t, caption.Failed())
	assert.Equal(t, models.FailureInvalidInput, caption.Failure.Kind)
	assert.Zero(t, d.calls)
}

func TestCaptionsAreIndependent(t *testing.T) {
	d := &fakeDescriber{}
	c, _ := newTestCaptioner(t, d)

	for i := 0; i < 3; i++ {
		c.Caption(context.Background(), testFrame(i*30), models.LevelNovice)
	}
	require.Len(t, d.requests, 3)
	for _, req := range d.requests {
		assert.Equal(t, d.requests[0].Instruction, req.Instruction, "no state carried between frames")
	}
}

func TestNewCaptionerRejectsUnknownLanguage(t *testing.T) {
	_, err := NewCaptioner(&fakeDescriber{}, CaptionerOptions{Language: "xx"}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestImageDataURL(t *testing.T) {
	url, err := ImageDataURL(testFrame(0).Image, 75)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,/9j/"))
}

func entries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	return list
}
