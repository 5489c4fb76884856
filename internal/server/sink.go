package server

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/bdougie/pitchside/internal/analyzer"
	"github.com/bdougie/pitchside/internal/models"
)

// page writes template fragments to a streamed response, flushing after each.
type page struct {
	w       io.Writer
	flusher http.Flusher
	tmpl    *template.Template
	logger  *slog.Logger
	broken  bool
}

func newPage(w http.ResponseWriter, tmpl *template.Template, logger *slog.Logger) *page {
	p := &page{w: w, tmpl: tmpl, logger: logger}
	if f, ok := w.(http.Flusher); ok {
		p.flusher = f
	}
	return p
}

func (p *page) render(name string, data any) {
	if p.broken {
		return
	}
	if err := p.tmpl.ExecuteTemplate(p.w, name, data); err != nil {
		// The client went away; the run notices through its context.
		p.broken = true
		p.logger.Debug("failed to write page fragment", slog.String("fragment", name), slog.Any("error", err))
		return
	}
	if p.flusher != nil {
		p.flusher.Flush()
	}
}

func (p *page) status(message string) { p.render("status", message) }
func (p *page) notice(message string) { p.render("notice", message) }

type frameView struct {
	Index   int
	Src     template.URL
	Caption string
	Failed  bool
}

// pageSink renders run progress into the streamed page.
type pageSink struct {
	page      *page
	quality   int
	completed bool
}

func (s *pageSink) Status(stage models.Stage, message string) {
	if stage == models.StageDone {
		s.completed = true
	}
	s.page.status(message)
}

func (s *pageSink) Failure(f *models.Failure) {
	s.page.notice(noticeText(f))
}

func (s *pageSink) Captioned(work models.WorkItem, caption models.Caption) {
	src, err := analyzer.ImageDataURL(work.Frame.Image, s.quality)
	if err != nil {
		s.page.notice(fmt.Sprintf("Could not display frame %d: %v", work.FrameNum, err))
		src = ""
	}
	s.page.render("frame", frameView{
		Index:   work.Frame.Index,
		Src:     template.URL(src),
		Caption: caption.Text,
		Failed:  caption.Failed(),
	})
}

func noticeText(f *models.Failure) string {
	switch f.Kind {
	case models.FailureFetch:
		return fmt.Sprintf("Failed to download the video. Please check the URL. (%v)", f.Err)
	case models.FailureSample:
		return fmt.Sprintf("Failed to extract frames from the video: %v", f.Err)
	case models.FailureSerialize, models.FailureEncode:
		return fmt.Sprintf("Could not prepare frame %d for the model: %v", f.FrameIndex, f.Err)
	case models.FailureDescribe:
		return fmt.Sprintf("An error occurred while generating the scene description for frame %d: %v", f.FrameIndex, f.Err)
	case models.FailureInvalidInput:
		return fmt.Sprintf("Invalid input: %v", f.Err)
	}
	return f.Error()
}
