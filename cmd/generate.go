package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [entry-id]",
	Short: "Generate an insight for an entry",
	Long: `Send an entry's audio to the analyzer and save the returned insight. With
--all, every entry without an insight is processed, --concurrency at a time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if all == (len(args) == 1) {
			return fmt.Errorf("pass either an entry id or --all")
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		if !all {
			return generateAndPrint(ctx, svc, args[0])
		}

		outcomes := svc.GeneratePending(ctx, concurrency)
		if len(outcomes) == 0 {
			fmt.Println("Every entry already has an insight")
			return nil
		}

		failed := 0
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				failed++
				fmt.Printf("  ✗ %s: %v\n", o.EntryID, o.Err)
			case o.Result.Warning != nil:
				fmt.Printf("  ✓ %s (text only: %v)\n", o.EntryID, o.Result.Warning)
			default:
				fmt.Printf("  ✓ %s\n", o.EntryID)
			}
		}

		slog.Debug("Generate --all finished", "total", len(outcomes), "failed", failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d generations failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().Bool("all", false, "generate insights for every entry that has none")
	generateCmd.Flags().Int("concurrency", 2, "parallel generations with --all")
}
