package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bdougie/pitchside/internal/models"
)

var narrateCmd = &cobra.Command{
	Use:   "narrate [URL]",
	Short: "Narrate a video in the terminal",
	Example: `  # Comment on every 30th frame for a newcomer
  pitchside narrate "https://www.youtube.com/watch?v=abc123"

  # Sparser sampling, phrased for a fan who knows the game
  pitchside narrate "https://youtu.be/abc123" --interval 120 --level knowledgeable`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		interval, _ := cmd.Flags().GetInt("interval")
		if !cmd.Flags().Changed("interval") {
			interval = cfg.DefaultInterval
		}
		rawLevel, _ := cmd.Flags().GetString("level")
		level, err := models.ParseLevel(rawLevel)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sink := newConsoleSink(cmd.OutOrStdout())
		run := a.processor.Run(ctx, models.SessionInput{
			URL:      args[0],
			Interval: interval,
			Level:    level,
		}, sink)
		sink.finish()

		fmt.Fprintf(cmd.OutOrStdout(), "\n%d frames, %d captions, %d failures in %s\n",
			run.FrameCount, len(run.Captions), len(run.Failures),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

		if fatal := run.Fatal(); fatal != nil {
			return fatal
		}
		return nil
	},
}

func init() {
	narrateCmd.Flags().IntP("interval", "n", models.DefaultInterval, "Keep every Nth decoded frame")
	narrateCmd.Flags().StringP("level", "l", models.LevelNovice.String(), "Viewer experience: novice or knowledgeable")
	rootCmd.AddCommand(narrateCmd)
}

// consoleSink prints captions as they arrive and tracks them on a progress bar.
type consoleSink struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) Status(stage models.Stage, message string) {
	if stage == models.StageCaptioning && s.bar != nil {
		s.bar.Describe(message)
		return
	}
	fmt.Fprintln(s.out, message)
}

func (s *consoleSink) Failure(f *models.Failure) {
	s.clearBar()
	fmt.Fprintf(os.Stderr, "error: %v\n", f)
}

func (s *consoleSink) Captioned(work models.WorkItem, caption models.Caption) {
	if s.bar == nil {
		s.bar = progressbar.NewOptions(work.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Captioning"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	s.clearBar()
	fmt.Fprintf(s.out, "\n[frame %d, %s]\n%s\n", work.Frame.Index, work.Frame.Offset.Round(time.Second), caption.Text)
	_ = s.bar.Add(1)
}

func (s *consoleSink) clearBar() {
	if s.bar != nil {
		_ = s.bar.Clear()
	}
}

func (s *consoleSink) finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}
