// Package insight coordinates one insight generation for a diary entry: fetch
// the memo audio, analyze it, optionally persist the spoken insight, commit the
// record and mirror the result in the entry cache.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/audiolibrelab/voicediary/internal/analyzer"
	"github.com/audiolibrelab/voicediary/internal/blob"
	"github.com/audiolibrelab/voicediary/internal/entry"
)

var (
	ErrAlreadyInProgress = errors.New("insight generation already in progress")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrFetch             = errors.New("failed to fetch entry audio")
	ErrAnalyzer          = errors.New("analyzer failed")
	ErrDerivedUpload     = errors.New("failed to upload insight audio")
	ErrCommit            = errors.New("failed to save insight")
	ErrCanceled          = errors.New("insight generation canceled")
)

// Analyzer produces an insight from memo audio
type Analyzer interface {
	Analyze(ctx context.Context, audio []byte, filename string) (analyzer.Insight, error)
}

// RecordStore persists entry updates
type RecordStore interface {
	Update(ctx context.Context, id string, u entry.Update) error
}

// Result describes a committed generation. Warning is set when the spoken
// insight could not be stored and the original audio was kept.
type Result struct {
	Entry            entry.Entry
	DerivedAudioUsed bool
	Warning          error
}

type Pipeline struct {
	cache    *entry.Cache
	fetcher  blob.Fetcher
	blobs    blob.Store
	analyzer Analyzer
	records  RecordStore
	now      func() time.Time
}

type Option func(*Pipeline)

// WithClock overrides the clock used to name derived audio
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(cache *entry.Cache, fetcher blob.Fetcher, blobs blob.Store, a Analyzer, records RecordStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:    cache,
		fetcher:  fetcher,
		blobs:    blobs,
		analyzer: a,
		records:  records,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs one insight generation for entryID. At most one generation
// per entry runs at a time; the entry is only changed after the record store
// accepted the update.
func (p *Pipeline) Generate(ctx context.Context, entryID string) (*Result, error) {
	if !p.cache.Contains(entryID) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	if !p.cache.TryLock(entryID) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInProgress, entryID)
	}
	defer p.cache.Unlock(entryID)

	e, ok := p.cache.Get(entryID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	log := slog.With("entry_id", entryID)
	log.Info("Generating insight")

	if err := canceled(ctx); err != nil {
		return nil, err
	}

	audio, err := p.fetcher.Fetch(ctx, e.AudioURL)
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		log.Error("Failed to fetch audio", "url", e.AudioURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	ins, err := p.analyzer.Analyze(ctx, audio, analyzerFilename(e.AudioURL))
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		log.Error("Analyzer failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAnalyzer, err)
	}

	result := &Result{}
	resolvedURL := e.AudioURL
	var derivedURL *string

	switch {
	case ins.AudioErr != nil:
		result.Warning = fmt.Errorf("%w: %w", ErrDerivedUpload, ins.AudioErr)
		log.Warn("Insight audio unusable, keeping original audio", "error", ins.AudioErr)

	case len(ins.DerivedAudio) > 0:
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		key := blob.DerivedKey(e.OwnerID, e.ID, p.now())
		u, err := p.blobs.Upload(ctx, key, ins.DerivedAudio, blob.DerivedContentType)
		if err != nil {
			if cerr := canceled(ctx); cerr != nil {
				return nil, cerr
			}
			result.Warning = fmt.Errorf("%w: %w", ErrDerivedUpload, err)
			log.Warn("Insight audio upload failed, keeping original audio", "key", key, "error", err)
		} else {
			resolvedURL = u
			derivedURL = &u
			result.DerivedAudioUsed = true
		}
	}

	if err := canceled(ctx); err != nil {
		return nil, err
	}

	text := ins.Text
	update := entry.Update{
		InsightsText:     &text,
		AudioURL:         &resolvedURL,
		InsightsAudioURL: derivedURL,
	}

	if err := p.records.Update(ctx, entryID, update); err != nil {
		log.Error("Failed to commit insight", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCommit, err)
	}

	// Committed: memory must mirror durable state even if ctx ends now
	if !p.cache.Replace(entryID, update) {
		log.Warn("Entry left the cache during generation")
	}

	result.Entry = update.Apply(e)
	log.Info("Insight saved", "derived_audio", result.DerivedAudioUsed)
	return result, nil
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

// analyzerFilename keeps the stored extension so the analyzer sees the real
// container, defaulting to audio.webm.
func analyzerFilename(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return analyzer.DefaultFilename
	}
	switch ext := path.Ext(u.Path); ext {
	case "", ".bin":
		return analyzer.DefaultFilename
	default:
		return "audio" + ext
	}
}
