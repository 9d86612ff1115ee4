package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/audiolibrelab/voicediary/internal/blob"
	"github.com/audiolibrelab/voicediary/internal/insight"
	"github.com/audiolibrelab/voicediary/internal/play"
	"github.com/audiolibrelab/voicediary/internal/service"
)

// executePipeline runs the steps that follow startStep for the entry
func executePipeline(ctx context.Context, svc service.Service, entryID string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	for i := startIndex + 1; i < len(steps); i++ {
		if err := runStep(ctx, svc, steps[i], &entryID); err != nil {
			return err
		}
	}
	return nil
}

// runStep executes one pipeline step. Recording replaces entryID with the new
// entry so later steps act on it.
func runStep(ctx context.Context, svc service.Service, step rune, entryID *string) error {
	fmt.Printf("Pipeline: executing step '%c'...\n", step)

	switch step {
	case 'r':
		e, err := recordEntry(ctx, svc)
		if err != nil {
			return fmt.Errorf("pipeline record failed: %w", err)
		}
		if e == nil {
			return fmt.Errorf("pipeline record produced no entry")
		}
		*entryID = e.ID
		fmt.Println("Pipeline: recording completed")

	case 'g':
		if err := generateAndPrint(ctx, svc, *entryID); err != nil {
			return fmt.Errorf("pipeline generate failed: %w", err)
		}
		fmt.Println("Pipeline: insight generated")

	case 'p':
		if err := playEntry(ctx, svc, *entryID, false); err != nil {
			return fmt.Errorf("pipeline play failed: %w", err)
		}
		fmt.Println("Pipeline: playback completed")

	default:
		return fmt.Errorf("unknown pipeline step: '%c' (valid: r=record, g=generate, p=play)", step)
	}
	return nil
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	validSteps := map[rune]bool{
		'r': true, // record
		'g': true, // generate
		'p': true, // play
	}

	steps := []rune(strings.ToLower(pipeline))
	for _, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=record, g=generate, p=play)", step)
		}
	}

	return nil
}

func generateAndPrint(ctx context.Context, svc service.Service, entryID string) error {
	fmt.Printf("Generating insight for %s...\n", entryID)

	res, err := svc.GenerateInsight(ctx, entryID)
	if err != nil {
		if errors.Is(err, insight.ErrAlreadyInProgress) {
			return fmt.Errorf("an insight for %s is already being generated", entryID)
		}
		return err
	}

	fmt.Printf("\n%s\n\n", res.Entry.Insights())
	if res.DerivedAudioUsed {
		fmt.Printf("Spoken insight: %s\n", res.Entry.AudioURL)
	}
	if res.Warning != nil {
		fmt.Printf("Warning: %v\n", res.Warning)
	}
	return nil
}

func playEntry(ctx context.Context, svc service.Service, entryID string, insightAudio bool) error {
	e, ok := svc.Entry(entryID)
	if !ok {
		return fmt.Errorf("entry not found: %s", entryID)
	}

	target := e.AudioURL
	if insightAudio {
		if e.InsightsAudioURL == nil {
			return fmt.Errorf("entry %s has no spoken insight", entryID)
		}
		target = *e.InsightsAudioURL
	}

	c := svc.GetConfig()
	var resolve func(string) (string, bool)
	if store, err := blob.NewFileStore(c.Storage.Directory, c.Storage.PublicBaseURL); err == nil {
		resolve = store.LocalPath
	}

	fmt.Printf("Playing entry %s\n", entryID)
	return play.New(resolve).Play(ctx, target)
}
