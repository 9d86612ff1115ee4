package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/audiolibrelab/voicediary/internal/analyzer"
	"github.com/audiolibrelab/voicediary/internal/blob"
	"github.com/audiolibrelab/voicediary/internal/gemini"
	"github.com/audiolibrelab/voicediary/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for remote control",
	Long: `Start the voicediary HTTP server. It controls recording, lists entries,
triggers insight generation and serves stored audio under /media/.

When gemini.api_key is set, the server also hosts the analyzer backend at
/audio/analyzer/analyze, so analyzer.url can point back at this server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		media, err := blob.NewFileStore(cfg.Storage.Directory, cfg.Storage.PublicBaseURL)
		if err != nil {
			return err
		}

		opts := []server.Option{server.WithMedia(media.Handler())}
		if cfg.GeminiEnabled() {
			client := gemini.New(gemini.Options{
				APIKey:   cfg.Gemini.APIKey,
				Model:    cfg.Gemini.Model,
				Prompt:   cfg.Gemini.Prompt,
				Voice:    cfg.Gemini.TTSVoice,
				Language: cfg.Gemini.TTSLanguage,
				Timeout:  cfg.Analyzer.Timeout,
			})
			opts = append(opts, server.WithAnalyzer(analyzer.NewHandler(client, client)))
		} else {
			slog.Debug("Analyzer backend disabled, gemini.api_key not set")
		}

		slog.Info("voicediary server starting", "port", port, "config", configPath(), "entries", len(svc.Entries()))

		if err := server.New(svc, port, opts...).Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the HTTP server (default server.port)")
}
