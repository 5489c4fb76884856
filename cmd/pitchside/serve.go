package main

import (
	"github.com/spf13/cobra"

	"github.com/bdougie/pitchside/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser UI",
	Example: `  # Serve on the default address (:8501)
  pitchside serve

  # Use a local Ollama vision model instead of the hosted API
  CAPTION_PROVIDER=ollama pitchside serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := server.Options{
			Addr:              cfg.ListenAddr,
			MaxConcurrentRuns: cfg.MaxConcurrentRuns,
			DefaultInterval:   cfg.DefaultInterval,
			JPEGQuality:       cfg.JPEGQuality,
		}
		if a.archive != nil {
			opts.Searcher = a.archive
		}
		return server.New(a.processor, opts, logger).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
