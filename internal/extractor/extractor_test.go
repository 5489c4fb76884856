package extractor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder yields total frames, optionally failing at failAt.
type fakeDecoder struct {
	total   int
	failAt  int
	next    int
	decoded int
	skipped int
	closed  bool
}

func (d *fakeDecoder) advance() (int, error) {
	if d.failAt > 0 && d.next == d.failAt {
		return 0, errors.New("corrupt packet")
	}
	if d.next >= d.total {
		return 0, io.EOF
	}
	d.next++
	return d.next - 1, nil
}

func (d *fakeDecoder) Next() (image.Image, error) {
	index, err := d.advance()
	if err != nil {
		return nil, err
	}
	d.decoded++
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: uint8(index)})
	return img, nil
}

func (d *fakeDecoder) Skip() error {
	_, err := d.advance()
	if err == nil {
		d.skipped++
	}
	return err
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func indices(t *testing.T, dec Decoder, interval int) []int {
	t.Helper()
	frames, err := Sample(context.Background(), dec, interval)
	require.NoError(t, err)
	out := make([]int, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Index)
	}
	return out
}

func TestSampleKeepsEveryNthFrame(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		interval int
		want     []int
	}{
		{"95 frames every 30", 95, 30, []int{0, 30, 60, 90}},
		{"every frame", 4, 1, []int{0, 1, 2, 3}},
		{"exact multiple", 90, 30, []int{0, 30, 60}},
		{"interval beyond length", 10, 500, []int{0}},
		{"empty video", 0, 30, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indices(t, &fakeDecoder{total: tt.total}, tt.interval)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampleCountIsCeilFOverN(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for interval := 1; interval <= 12; interval++ {
			got := indices(t, &fakeDecoder{total: total}, interval)
			want := (total + interval - 1) / interval
			assert.Len(t, got, want, "F=%d N=%d", total, interval)
		}
	}
}

func TestSamplePreservesDecodedImages(t *testing.T) {
	frames, err := Sample(context.Background(), &fakeDecoder{total: 7}, 3)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	for _, f := range frames {
		gray := f.Image.(*image.Gray)
		assert.Equal(t, uint8(f.Index), gray.GrayAt(0, 0).Y)
	}
}

func TestSampleBuildsImagesOnlyForKeptFrames(t *testing.T) {
	dec := &fakeDecoder{total: 95}
	frames, err := Sample(context.Background(), dec, 30)
	require.NoError(t, err)

	assert.Len(t, frames, 4)
	assert.Equal(t, 4, dec.decoded)
	assert.Equal(t, 91, dec.skipped)
}

func TestSampleRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []int{0, -1, -30} {
		dec := &fakeDecoder{total: 5}
		frames, err := Sample(context.Background(), dec, interval)
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.Empty(t, frames)
		assert.Equal(t, 0, dec.next, "decoder must not be read")
	}
}

func TestSampleReturnsPartialFramesOnDecodeError(t *testing.T) {
	frames, err := Sample(context.Background(), &fakeDecoder{total: 100, failAt: 45}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode frame 45")
	assert.Len(t, frames, 5)
}

func TestSampleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, err := Sample(ctx, &fakeDecoder{total: 10}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, frames)
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":640,"height":360,"avg_frame_rate":"30000/1001","r_frame_rate":"30/1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 360, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)

	info, err = parseProbe([]byte(`{"streams":[{"width":2,"height":2,"avg_frame_rate":"0/0","r_frame_rate":"25/1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, info.FPS)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"width":0,"height":0}]}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25"))
	assert.Equal(t, 24.0, parseFrameRate("48/2"))
	assert.Equal(t, 0.0, parseFrameRate("1/0"))
	assert.Equal(t, 0.0, parseFrameRate(""))
}

func TestRGBToImage(t *testing.T) {
	buf := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}
	img := rgbToImage(buf, 2, 2)

	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))
}

func TestExtractFramesValidation(t *testing.T) {
	e := NewExtractor("ffmpeg", "ffprobe", slog.New(slog.DiscardHandler))

	_, err := e.ExtractFrames(context.Background(), "unused.mp4", 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	frames, err := e.ExtractFrames(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), 30)
	assert.Error(t, err)
	assert.Empty(t, frames)
}

// writeTestClip renders a synthetic clip of frames frames at 30fps.
func writeTestClip(t *testing.T, frames int) string {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-f", "lavfi",
		"-i", "testsrc=size=64x48:rate=30",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "mpeg4",
		"-pix_fmt", "yuv420p",
		path,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return path
}

func TestExtractFramesFromVideo(t *testing.T) {
	path := writeTestClip(t, 95)
	e := NewExtractor("ffmpeg", "ffprobe", slog.New(slog.DiscardHandler))

	frames, err := e.ExtractFrames(context.Background(), path, 30)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	for i, f := range frames {
		assert.Equal(t, i*30, f.Index)
		assert.Equal(t, image.Rect(0, 0, 64, 48), f.Image.Bounds())
		assert.InDelta(t, float64(i), f.Offset.Seconds(), 0.01, "offset of frame %d", f.Index)
	}
}

func TestExtractFramesEveryFrameFromVideo(t *testing.T) {
	path := writeTestClip(t, 12)
	e := NewExtractor("ffmpeg", "ffprobe", slog.New(slog.DiscardHandler))

	frames, err := e.ExtractFrames(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Len(t, frames, 12)

	frames, err = e.ExtractFrames(context.Background(), path, 500)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Index)
}

func TestExtractFramesRejectsNonVideo(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	path := filepath.Join(t.TempDir(), "notes.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not a video"), 0o644))

	e := NewExtractor("ffmpeg", "ffprobe", slog.New(slog.DiscardHandler))
	frames, err := e.ExtractFrames(context.Background(), path, 30)
	assert.Error(t, err)
	assert.Empty(t, frames)
}
