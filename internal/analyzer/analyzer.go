package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bdougie/pitchside/internal/fetcher"
	"github.com/bdougie/pitchside/internal/metrics"
	"github.com/bdougie/pitchside/internal/models"
	"github.com/bdougie/pitchside/internal/storage"
)

// Status lines shown to the user as the run progresses.
const (
	StatusDownloading = "Downloading video..."
	StatusExtracting  = "Downloaded. Extracting frames..."
	StatusCaptioning  = "Generating scene descriptions..."
	StatusComplete    = "Analysis complete."
)

// VideoFetcher downloads the video for a run.
type VideoFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.VideoAsset, error)
}

// FrameExtractor samples every interval-th frame of a video file.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, interval int) ([]models.Frame, error)
}

// FrameCaptioner narrates one frame and never fails.
type FrameCaptioner interface {
	Caption(ctx context.Context, frame models.Frame, level models.Level) models.Caption
}

// Sink receives run progress as it happens.
type Sink interface {
	Status(stage models.Stage, message string)
	Failure(failure *models.Failure)
	Captioned(work models.WorkItem, caption models.Caption)
}

type Processor struct {
	fetcher   VideoFetcher
	extractor FrameExtractor
	captioner FrameCaptioner
	storage   storage.Storage
	logger    *slog.Logger
}

func NewProcessor(f VideoFetcher, e FrameExtractor, c FrameCaptioner, s storage.Storage, logger *slog.Logger) *Processor {
	if s == nil {
		s = storage.Nop{}
	}
	return &Processor{
		fetcher:   f,
		extractor: e,
		captioner: c,
		storage:   s,
		logger:    logger,
	}
}

// Run fetches, samples and captions the video in input, reporting each step
// to sink. The returned result is always non-nil; failures are recorded in it
// rather than returned.
func (p *Processor) Run(ctx context.Context, input models.SessionInput, sink Sink) *models.RunResult {
	tracer := otel.Tracer("analyzer")
	ctx, span := tracer.Start(ctx, "Processor.Run")
	defer span.End()

	run := &models.RunResult{
		ID:        uuid.New(),
		Input:     input,
		Stage:     models.StageIdle,
		StartedAt: time.Now(),
	}
	span.SetAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("run.url", input.URL),
		attribute.Int("run.interval", input.Interval),
		attribute.String("run.level", input.Level.String()),
	)
	log := p.logger.With(slog.String("run_id", run.ID.String()))

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	defer func() {
		run.FinishedAt = time.Now()
		outcome := "completed"
		if fatal := run.Fatal(); fatal != nil {
			outcome = string(fatal.Kind)
			span.SetStatus(codes.Error, fatal.Error())
		}
		metrics.RunsTotal.WithLabelValues(outcome).Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
		log.Info("run finished",
			slog.String("stage", run.Stage.String()),
			slog.Int("frames", run.FrameCount),
			slog.Int("failures", len(run.Failures)),
			slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
		)
	}()

	if err := validateInput(input); err != nil {
		p.fail(run, sink, models.NewFailure(models.FailureInvalidInput, err))
		return run
	}

	// Fetching
	p.enter(run, sink, models.StageFetching, StatusDownloading)
	fetchStart := time.Now()
	fetchCtx, spanFetch := tracer.Start(ctx, "fetch_video")
	asset, err := p.fetcher.Fetch(fetchCtx, input.URL)
	spanFetch.End()
	metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		log.Error("fetch failed", slog.Any("error", err))
		p.fail(run, sink, asFailure(models.FailureFetch, -1, err))
		run.Stage = models.StageFetchFailed
		return run
	}
	defer p.cleanup(run, sink, asset, log)

	// Sampling
	p.enter(run, sink, models.StageSampling, StatusExtracting)
	sampleStart := time.Now()
	sampleCtx, spanSample := tracer.Start(ctx, "sample_frames")
	frames, err := p.extractor.ExtractFrames(sampleCtx, asset.Path, input.Interval)
	spanSample.SetAttributes(attribute.Int("frames", len(frames)))
	spanSample.End()
	metrics.StageDuration.WithLabelValues("sample").Observe(time.Since(sampleStart).Seconds())
	metrics.FramesSampledTotal.Add(float64(len(frames)))
	if err != nil {
		log.Error("frame sampling failed", slog.Any("error", err), slog.Int("frames", len(frames)))
		p.fail(run, sink, asFailure(models.FailureSample, -1, err))
	}
	run.FrameCount = len(frames)
	sink.Status(models.StageSampling, fmt.Sprintf("Extracted %d frames.", len(frames)))

	// Captioning
	p.enter(run, sink, models.StageCaptioning, StatusCaptioning)
	captionStart := time.Now()
	for i, frame := range frames {
		if ctx.Err() != nil {
			log.Warn("run canceled", slog.Int("captioned", len(run.Captions)), slog.Int("frames", len(frames)))
			break
		}
		p.captionFrame(ctx, run, sink, models.WorkItem{
			Frame:    frame,
			FrameNum: i + 1,
			Total:    len(frames),
		})
		frames[i].Image = nil
	}
	metrics.StageDuration.WithLabelValues("caption").Observe(time.Since(captionStart).Seconds())

	return run
}

func (p *Processor) captionFrame(ctx context.Context, run *models.RunResult, sink Sink, work models.WorkItem) {
	ctx, span := otel.Tracer("analyzer").Start(ctx, "caption_frame")
	defer span.End()
	span.SetAttributes(attribute.Int("frame.index", work.Frame.Index))

	sink.Status(models.StageCaptioning, fmt.Sprintf("Generating description for frame %d...", work.FrameNum))

	start := time.Now()
	caption := p.captioner.Caption(ctx, work.Frame, run.Input.Level)
	metrics.CaptionDuration.Observe(time.Since(start).Seconds())

	if caption.Failed() {
		metrics.CaptionsTotal.WithLabelValues("fallback").Inc()
		span.SetStatus(codes.Error, caption.Failure.Error())
		p.fail(run, sink, caption.Failure)
	} else {
		metrics.CaptionsTotal.WithLabelValues("ok").Inc()
	}

	run.Captions = append(run.Captions, caption)
	sink.Captioned(work, caption)

	err := p.storage.AddResult(ctx, models.AnalysisResult{
		RunID:    run.ID,
		VideoURL: run.Input.URL,
		Level:    run.Input.Level.String(),
		Frame:    work.Frame.Index,
		OffsetMS: work.Frame.Offset.Milliseconds(),
		Content:  caption.Text,
		Failed:   caption.Failed(),
	})
	if err != nil {
		p.logger.Warn("failed to store caption",
			slog.String("run_id", run.ID.String()),
			slog.Int("frame", work.Frame.Index),
			slog.Any("error", err),
		)
	}
}

// cleanup runs once the video was fetched, whatever happened afterwards.
func (p *Processor) cleanup(run *models.RunResult, sink Sink, asset *fetcher.VideoAsset, log *slog.Logger) {
	p.enter(run, sink, models.StageCleanup, "")
	if err := asset.Close(); err != nil {
		log.Warn("failed to remove video", slog.String("dir", asset.Dir), slog.Any("error", err))
	}
	if err := p.storage.Flush(); err != nil {
		log.Warn("failed to flush results", slog.Any("error", err))
	}
	p.enter(run, sink, models.StageDone, StatusComplete)
}

func (p *Processor) enter(run *models.RunResult, sink Sink, stage models.Stage, message string) {
	run.Stage = stage
	p.logger.Debug("stage", slog.String("run_id", run.ID.String()), slog.String("stage", stage.String()))
	if message != "" {
		sink.Status(stage, message)
	}
}

func (p *Processor) fail(run *models.RunResult, sink Sink, failure *models.Failure) {
	run.Failures = append(run.Failures, failure)
	sink.Failure(failure)
}

func validateInput(input models.SessionInput) error {
	if input.Interval < 1 {
		return fmt.Errorf("interval must be a positive integer, got %d", input.Interval)
	}
	if !input.Level.Valid() {
		return fmt.Errorf("unknown level %s", input.Level)
	}
	return nil
}

// asFailure keeps a typed failure from a lower layer or wraps err as kind.
func asFailure(kind models.FailureKind, frame int, err error) *models.Failure {
	var failure *models.Failure
	if errors.As(err, &failure) {
		return failure
	}
	return models.NewFrameFailure(kind, frame, err)
}
