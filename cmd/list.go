package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/audiolibrelab/voicediary/internal/entry"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List diary entries",
	Long: `List diary entries, newest first, grouped by week or month
(display.group_by in the config). Use --group none for a flat list.
Entries marked with * have an insight.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		if group == "" {
			group = cfg.Display.GroupBy
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		entries := svc.Entries()
		if len(entries) == 0 {
			fmt.Println("No entries yet. Record one with 'voicediary record'.")
			return nil
		}

		if group == "none" {
			for _, e := range entries {
				printEntryLine(os.Stdout, e)
			}
			return nil
		}

		mode, err := entry.ParseGroupMode(group)
		if err != nil {
			return err
		}
		for _, bucket := range svc.GroupedEntries(mode) {
			fmt.Printf("\n%s\n", bucket.Label)
			for _, e := range bucket.Entries {
				printEntryLine(os.Stdout, e)
			}
		}
		return nil
	},
}

func printEntryLine(w io.Writer, e entry.Entry) {
	mark := " "
	if e.HasInsights() {
		mark = "*"
	}
	fmt.Fprintf(w, "  %s %s  %s  %s\n", mark, e.CreatedAt.Local().Format("2006-01-02 15:04"), formatDuration(e.DurationSeconds), e.ID)
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func init() {
	listCmd.Flags().String("group", "", "group by week, month or none (overrides display.group_by)")
}
