package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo is the subset of ffprobe output needed to decode raw frames.
type VideoInfo struct {
	Width  int
	Height int
	FPS    float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (e *Extractor) probe(ctx context.Context, videoPath string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, errors.New("no video stream found")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	fps := parseFrameRate(s.AvgFrameRate)
	if fps == 0 {
		fps = parseFrameRate(s.RFrameRate)
	}
	return VideoInfo{Width: s.Width, Height: s.Height, FPS: fps}, nil
}

// parseFrameRate reads ffprobe rationals such as "30000/1001". Unknown rates give 0.
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// ffmpegDecoder reads rgb24 frames from an ffmpeg rawvideo pipe.
type ffmpegDecoder struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *bytes.Buffer
	width  int
	height int
	buf    []byte
	done   bool
}

func (e *Extractor) openDecoder(ctx context.Context, videoPath string, info VideoInfo) (*ffmpegDecoder, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", videoPath,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &ffmpegDecoder{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		stderr: stderr,
		width:  info.Width,
		height: info.Height,
		buf:    make([]byte, info.Width*info.Height*3),
	}, nil
}

func (d *ffmpegDecoder) Next() (image.Image, error) {
	if err := d.read(); err != nil {
		return nil, err
	}
	return rgbToImage(d.buf, d.width, d.height), nil
}

// Skip consumes a frame into the shared buffer without converting it.
func (d *ffmpegDecoder) Skip() error {
	return d.read()
}

func (d *ffmpegDecoder) read() error {
	if d.done {
		return io.EOF
	}

	_, err := io.ReadFull(d.stdout, d.buf)
	if err == nil {
		return nil
	}

	// A short read means ffmpeg stopped writing; its exit status decides the outcome.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if werr := d.wait(); werr != nil {
			return werr
		}
		return io.EOF
	}
	return err
}

func (d *ffmpegDecoder) wait() error {
	d.done = true
	defer d.cancel()
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(d.stderr.String()))
	}
	return nil
}

func (d *ffmpegDecoder) Close() error {
	if d.done {
		return nil
	}
	d.cancel()
	_ = d.wait()
	return nil
}

// rgbToImage copies a packed rgb24 buffer into a new RGBA image.
func rgbToImage(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for src, dst := 0, 0; src+2 < len(buf) && dst+3 < len(img.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = buf[src]
		img.Pix[dst+1] = buf[src+1]
		img.Pix[dst+2] = buf[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}
