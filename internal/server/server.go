// Package server is the browser front end: an input form and a streamed page
// of frames with their commentary.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bdougie/pitchside/internal/analyzer"
	"github.com/bdougie/pitchside/internal/metrics"
	"github.com/bdougie/pitchside/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const defaultSearchLimit = 5

// Runner executes one narration run.
type Runner interface {
	Run(ctx context.Context, input models.SessionInput, sink analyzer.Sink) *models.RunResult
}

// Searcher finds archived captions similar to a query.
type Searcher interface {
	SearchSimilarCaptions(ctx context.Context, query string, limit int) ([]models.CaptionSearchResult, error)
}

type Options struct {
	Addr              string
	MaxConcurrentRuns int64
	DefaultInterval   int
	JPEGQuality       int
	Searcher          Searcher // nil disables /api/search
}

type Server struct {
	runner  Runner
	opts    Options
	runs    *semaphore.Weighted
	tmpl    *template.Template
	logger  *slog.Logger
	handler http.Handler
}

func New(runner Runner, opts Options, logger *slog.Logger) *Server {
	if opts.MaxConcurrentRuns < 1 {
		opts.MaxConcurrentRuns = 1
	}
	if opts.DefaultInterval < 1 {
		opts.DefaultInterval = models.DefaultInterval
	}
	if opts.JPEGQuality < 1 {
		opts.JPEGQuality = 90
	}

	s := &Server{
		runner: runner,
		opts:   opts,
		runs:   semaphore.NewWeighted(opts.MaxConcurrentRuns),
		tmpl:   pageTemplates,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /run", s.handleRun)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	s.handler = mux

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. Request contexts
// derive from ctx, so in-flight runs are canceled on shutdown and Serve
// returns only after they have cleaned up.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	err := srv.Shutdown(shutdownCtx)

	// Wait for every run to release its slot.
	if acqErr := s.runs.Acquire(shutdownCtx, s.opts.MaxConcurrentRuns); acqErr != nil {
		return errors.Join(err, fmt.Errorf("waiting for runs: %w", acqErr))
	}
	s.runs.Release(s.opts.MaxConcurrentRuns)
	return err
}

type levelOption struct {
	Value   string
	Label   string
	Checked bool
}

type formView struct {
	URL        string
	Interval   string
	Levels     []levelOption
	Submitted  bool
	LevelLabel string
}

func (s *Server) form(url, interval string, level models.Level, submitted bool) formView {
	view := formView{
		URL:        url,
		Interval:   interval,
		Submitted:  submitted,
		LevelLabel: levelLabel(level),
	}
	for _, l := range models.Levels() {
		view.Levels = append(view.Levels, levelOption{
			Value:   l.String(),
			Label:   levelLabel(l),
			Checked: l == level,
		})
	}
	return view
}

func levelLabel(l models.Level) string {
	switch l {
	case models.LevelNovice:
		return "Novice"
	case models.LevelKnowledgeable:
		return "Knowledgeable"
	}
	return l.String()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := newPage(w, s.tmpl, s.logger)
	page.render("header", nil)
	page.render("form", s.form("", strconv.Itoa(s.opts.DefaultInterval), models.LevelNovice, false))
	page.render("footer", nil)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := strings.TrimSpace(q.Get("url"))
	rawInterval := strings.TrimSpace(q.Get("interval"))
	if rawInterval == "" {
		rawInterval = strconv.Itoa(s.opts.DefaultInterval)
	}
	level := models.LevelNovice
	levelErr := error(nil)
	if raw := q.Get("level"); raw != "" {
		level, levelErr = models.ParseLevel(raw)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	page := newPage(w, s.tmpl, s.logger)
	page.render("header", nil)
	page.render("form", s.form(rawURL, rawInterval, level, levelErr == nil))
	defer page.render("footer", nil)

	interval, err := strconv.Atoi(rawInterval)
	switch {
	case rawURL == "":
		page.notice("Please enter a YouTube URL.")
		return
	case err != nil || interval < 1:
		page.notice(fmt.Sprintf("The frame interval must be a positive whole number, got %q.", rawInterval))
		return
	case levelErr != nil:
		page.notice(levelErr.Error())
		return
	}

	if !s.runs.TryAcquire(1) {
		metrics.RejectedRunsTotal.Inc()
		page.notice("The server is busy with other videos. Please try again in a moment.")
		return
	}
	defer s.runs.Release(1)

	sink := &pageSink{page: page, quality: s.opts.JPEGQuality}
	run := s.runner.Run(r.Context(), models.SessionInput{
		URL:      rawURL,
		Interval: interval,
		Level:    level,
	}, sink)

	if !sink.completed {
		page.status(analyzer.StatusComplete)
	}
	s.logger.Info("run served",
		slog.String("run_id", run.ID.String()),
		slog.String("stage", run.Stage.String()),
		slog.Int("captions", len(run.Captions)),
	)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Searcher == nil {
		http.Error(w, "caption search is not configured", http.StatusNotFound)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := s.opts.Searcher.SearchSimilarCaptions(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("caption search failed", slog.String("query", query), slog.Any("error", err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		s.logger.Debug("failed to write search response", slog.Any("error", err))
	}
}
