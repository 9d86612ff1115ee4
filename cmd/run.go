package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [entry-id]",
	Short: "Execute pipeline steps",
	Long: `Execute the pipeline steps given with -p. A record step creates the entry the
following steps act on; otherwise the steps act on entry-id, or on the newest
entry when no id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p rgp)")
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		steps := []rune(strings.ToLower(pipeline))

		var entryID string
		if len(args) == 1 {
			entryID = args[0]
		} else if steps[0] != 'r' {
			entries := svc.Entries()
			if len(entries) == 0 {
				return fmt.Errorf("no entries yet, record one first (-p r...)")
			}
			entryID = entries[0].ID
		}

		for i, step := range steps {
			fmt.Printf("Pipeline: step %d/%d\n", i+1, len(steps))
			if err := runStep(ctx, svc, step, &entryID); err != nil {
				return err
			}
		}
		return nil
	},
}
