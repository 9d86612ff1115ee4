package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [entry-id]",
	Short: "Show an entry and the resolved configuration",
	Long:  `Display an entry with its insight, followed by the resolved configuration with inheritance indicators. Shows which values are inherited from the base settings vs profile-specific.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			svc, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			e, ok := svc.Entry(args[0])
			if !ok {
				return fmt.Errorf("entry not found: %s", args[0])
			}

			fmt.Printf("=== ENTRY ===\n")
			fmt.Printf("id: %s\n", e.ID)
			fmt.Printf("recorded: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("duration: %s\n", formatDuration(e.DurationSeconds))
			fmt.Printf("audio_url: %s\n", e.AudioURL)
			if e.InsightsAudioURL != nil {
				fmt.Printf("insights_audio_url: %s\n", *e.InsightsAudioURL)
			}
			if e.HasInsights() {
				fmt.Printf("\n%s\n", e.Insights())
			} else {
				fmt.Printf("insights: (none)\n")
			}
			fmt.Println()
		}

		name := cfg.Profile
		if name == "" {
			name = "(base)"
		}
		fmt.Printf("=== RESOLVED CONFIGURATION === profile: %s\n", name)

		fmt.Printf("\n[Owner]\n")
		printSetting("owner_id", cfg.OwnerID)

		fmt.Printf("\n[Storage]\n")
		printSetting("storage.directory", cfg.Storage.Directory)
		printSetting("storage.public_base_url", cfg.Storage.PublicBaseURL)
		printSetting("database.path", cfg.Database.Path)

		fmt.Printf("\n[Analyzer]\n")
		printSetting("analyzer.url", cfg.Analyzer.URL)
		printSetting("analyzer.timeout", cfg.Analyzer.Timeout)
		printSetting("gemini.model", cfg.Gemini.Model)
		printSetting("gemini.api_key", maskSecret(cfg.Gemini.APIKey))

		fmt.Printf("\n[Capture]\n")
		printSetting("capture.backend", cfg.Capture.Backend)
		printSetting("capture.device", cfg.Capture.Device)

		fmt.Printf("\n[Display]\n")
		printSetting("display.group_by", cfg.Display.GroupBy)
		printSetting("display.locale", cfg.Display.Locale)
		printSetting("display.week_start", cfg.Display.WeekStart)

		return nil
	},
}

func printSetting(key string, value any) {
	if cfg.Profile == "" {
		fmt.Printf("%s: %v\n", key, value)
		return
	}
	fmt.Printf("%s: %v %s\n", key, value, getInheritanceIndicator(cfg.Inheritance[key]))
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "****"
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
