package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/pitchside/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pitchside",
	Short: "Narrate YouTube soccer videos frame by frame",
	Long: `pitchside downloads a YouTube video, keeps every Nth frame and asks a
vision model to commentate each one as a soccer commentator would.`,
	SilenceUsage: true,
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}
