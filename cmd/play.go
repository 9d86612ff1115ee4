package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [entry-id]",
	Short: "Play an entry's audio",
	Long: `Play an entry's audio with the first available player (mpv, ffplay, vlc or
aplay). Once an insight was generated, the entry audio is the spoken insight.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		insightAudio, _ := cmd.Flags().GetBool("insight")

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := playEntry(ctx, svc, args[0], insightAudio); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}

func init() {
	playCmd.Flags().Bool("insight", false, "play the stored spoken insight")
}
