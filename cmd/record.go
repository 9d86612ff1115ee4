package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a voice memo",
	Long: `Record a voice memo from the configured capture device. Recording stops on
Enter or Ctrl+C; the memo is then uploaded and added to the diary.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		e, err := recordEntry(ctx, svc)
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}

		return executePipeline(ctx, svc, e.ID, 'r')
	},
}

// recordEntry records until Enter or an interrupt and saves the memo
func recordEntry(ctx context.Context, svc service.Service) (*entry.Entry, error) {
	slog.Debug("Record command started")

	if err := svc.StartRecording(ctx); err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	fmt.Println("Recording... Press Enter or Ctrl+C to stop")
	waitForStop()
	fmt.Println()
	slog.Info("Stopping recording...")

	e, err := svc.StopRecording(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stop recording: %w", err)
	}
	if e == nil {
		fmt.Println("Nothing was recorded")
		return nil, nil
	}

	fmt.Printf("Saved entry %s (%ds)\n", e.ID, e.DurationSeconds)
	return e, nil
}

func waitForStop() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	enter := make(chan struct{})
	go func() {
		bufio.NewScanner(os.Stdin).Scan()
		close(enter)
	}()

	select {
	case <-sigChan:
	case <-enter:
	}
}
