package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/audiolibrelab/voicediary/internal/audio"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:     "backends",
	Aliases: []string{"sources"},
	Short:   "List capture backends and their input devices",
	Long:    `List the capture backends (ffmpeg, arecord), whether they are installed and the input devices each one can record from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎙  Capture backends (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		resolved, err := audio.ResolveBackend(cfg.Capture.Backend)
		if err != nil {
			slog.Warn("Configured backend is not usable", "backend", cfg.Capture.Backend, "error", err)
		}

		for _, b := range audio.Backends() {
			marker := " "
			if b.Type == resolved {
				marker = "*"
			}
			if !b.Available {
				fmt.Printf("%s %s: not installed\n\n", marker, b.Type)
				continue
			}
			fmt.Printf("%s %s: %s\n", marker, b.Type, b.Path)

			sources, err := audio.ListSources(b.Type)
			if err != nil {
				fmt.Printf("    could not list devices: %v\n\n", err)
				continue
			}
			for i, source := range sources {
				fmt.Printf("    %d. %s\n", i+1, source)
			}
			fmt.Println()
		}

		fmt.Printf("💡 Configure with capture.backend (auto, ffmpeg, arecord) and capture.device\n")
		fmt.Printf("   current: backend=%s device=%s\n", cfg.Capture.Backend, cfg.Capture.Device)
		return nil
	},
}
