package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/voicediary/internal/analyzer"
	"github.com/audiolibrelab/voicediary/internal/audio"
	"github.com/audiolibrelab/voicediary/internal/blob"
	"github.com/audiolibrelab/voicediary/internal/config"
	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/insight"
	"github.com/audiolibrelab/voicediary/internal/record"
)

// Service represents the core voice diary service interface
type Service interface {
	// Recording operations
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*entry.Entry, error)
	GetRecordingStatus() (audio.Status, int)

	// Entry operations
	LoadEntries(ctx context.Context) error
	Entries() []entry.Entry
	Entry(id string) (entry.Entry, bool)
	GroupedEntries(mode entry.GroupMode) []entry.Bucket

	// Insight operations
	GenerateInsight(ctx context.Context, id string) (*insight.Result, error)
	GeneratePending(ctx context.Context, concurrency int) []GenerateOutcome

	// Configuration and information
	GetConfig() *config.Config
	GetLastError() string

	Close() error
}

// GenerateOutcome is the per-entry result of a batch generation
type GenerateOutcome struct {
	EntryID string
	Result  *insight.Result
	Err     error
}

// RecordStore is the durable entry store
type RecordStore interface {
	Insert(ctx context.Context, p record.NewEntry) (entry.Entry, error)
	Update(ctx context.Context, id string, u entry.Update) error
	ListByOwner(ctx context.Context, ownerID string) ([]entry.Entry, error)
	Close() error
}

// BlobStore stores and reads back audio files
type BlobStore interface {
	blob.Store
	blob.Fetcher
}

// Deps are the collaborators of a DiaryService. NewDevice is called lazily on
// the first recording so machines without a capture backend can still browse
// and generate insights.
type Deps struct {
	Records   RecordStore
	Blobs     BlobStore
	Analyzer  insight.Analyzer
	NewDevice func() (audio.CaptureDevice, error)
	Now       func() time.Time
}

// DiaryService is the main service implementation
type DiaryService struct {
	cfg      *config.Config
	deps     Deps
	cache    *entry.Cache
	pipeline *insight.Pipeline
	grouping entry.Grouping
	now      func() time.Time

	sessionMutex sync.Mutex
	session      *audio.Session

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// Open builds a service backed by the SQLite record store, the file blob
// store and the HTTP analyzer client described by cfg.
func Open(cfg *config.Config) (*DiaryService, error) {
	records, err := record.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewFileStore(cfg.Storage.Directory, cfg.Storage.PublicBaseURL)
	if err != nil {
		records.Close()
		return nil, err
	}

	capture := cfg.Capture
	return New(cfg, Deps{
		Records:  records,
		Blobs:    blobs,
		Analyzer: analyzer.NewClient(cfg.Analyzer.URL, cfg.Analyzer.Timeout),
		NewDevice: func() (audio.CaptureDevice, error) {
			return audio.NewDevice(capture)
		},
	}), nil
}

// New creates a service instance over explicit collaborators
func New(cfg *config.Config, deps Deps) *DiaryService {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cache := entry.NewCache()
	locale := entry.Locale(cfg.Display.Locale)
	if locale == "" {
		locale = entry.LocalePtBR
	}

	return &DiaryService{
		cfg:      cfg,
		deps:     deps,
		cache:    cache,
		pipeline: insight.New(cache, deps.Blobs, deps.Blobs, deps.Analyzer, deps.Records, insight.WithClock(deps.Now)),
		grouping: entry.Grouping{
			Locale:    locale,
			WeekStart: cfg.WeekStartDay(),
			Location:  time.Local,
		},
		now: deps.Now,
	}
}

// StartRecording begins capturing a new memo
func (s *DiaryService) StartRecording(ctx context.Context) error {
	slog.Debug("Service.StartRecording called")
	s.clearLastError()

	session, err := s.getSession()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}

	if err := session.Start(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

// StopRecording finalizes the memo, uploads it and inserts the entry. It
// returns nil, nil when nothing was being recorded.
func (s *DiaryService) StopRecording(ctx context.Context) (*entry.Entry, error) {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session == nil {
		return nil, nil
	}

	capture, err := session.Stop()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return nil, err
	}
	if capture == nil {
		return nil, nil
	}

	e, err := s.save(ctx, capture)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
		return nil, err
	}

	s.clearLastError()
	return &e, nil
}

func (s *DiaryService) save(ctx context.Context, capture *audio.Capture) (entry.Entry, error) {
	owner := s.cfg.OwnerID
	startedAt := capture.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}

	key := blob.RecordingKey(owner, startedAt, capture.ContentType)
	url, err := s.deps.Blobs.Upload(ctx, key, capture.Audio, capture.ContentType)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("uploading recording: %w", err)
	}

	e, err := s.deps.Records.Insert(ctx, record.NewEntry{
		OwnerID:         owner,
		AudioURL:        url,
		DurationSeconds: capture.ElapsedSeconds,
		CreatedAt:       startedAt,
	})
	if err != nil {
		return entry.Entry{}, fmt.Errorf("saving entry: %w", err)
	}

	s.cache.InsertFront(e)
	slog.Info("Recording saved",
		"entry_id", e.ID,
		"url", url,
		"duration", e.DurationSeconds,
		"bytes", len(capture.Audio))
	return e, nil
}

// GetRecordingStatus returns the recording state and elapsed seconds
func (s *DiaryService) GetRecordingStatus() (audio.Status, int) {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session == nil {
		return audio.StatusIdle, 0
	}
	return session.Status()
}

func (s *DiaryService) getSession() (*audio.Session, error) {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	if s.session != nil {
		return s.session, nil
	}
	if s.deps.NewDevice == nil {
		return nil, fmt.Errorf("%w: no capture device configured", audio.ErrCaptureUnavailable)
	}

	dev, err := s.deps.NewDevice()
	if err != nil {
		return nil, err
	}
	s.session = audio.NewSession(dev)
	return s.session, nil
}

// LoadEntries reconciles the cache with the record store
func (s *DiaryService) LoadEntries(ctx context.Context) error {
	entries, err := s.deps.Records.ListByOwner(ctx, s.cfg.OwnerID)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to load entries: %v", err))
		return err
	}
	s.cache.Reset(entries)
	slog.Debug("Entries loaded", "owner_id", s.cfg.OwnerID, "count", len(entries))
	return nil
}

// Entries returns the cached entries, newest first
func (s *DiaryService) Entries() []entry.Entry {
	return s.cache.List()
}

func (s *DiaryService) Entry(id string) (entry.Entry, bool) {
	return s.cache.Get(id)
}

// GroupedEntries buckets the cached entries by week or month
func (s *DiaryService) GroupedEntries(mode entry.GroupMode) []entry.Bucket {
	return s.grouping.Group(mode, s.cache.List())
}

// GenerateInsight runs the insight pipeline for one entry
func (s *DiaryService) GenerateInsight(ctx context.Context, id string) (*insight.Result, error) {
	res, err := s.pipeline.Generate(ctx, id)
	if err != nil {
		if !errors.Is(err, insight.ErrAlreadyInProgress) {
			s.setLastError(fmt.Sprintf("Failed to generate insight for %s: %v", id, err))
		}
		return nil, err
	}
	if res.Warning != nil {
		slog.Warn("Insight saved without spoken audio", "entry_id", id, "warning", res.Warning)
	}
	return res, nil
}

// GeneratePending generates insights for every cached entry that has none,
// running at most concurrency generations at once. A failing entry never
// stops the others.
func (s *DiaryService) GeneratePending(ctx context.Context, concurrency int) []GenerateOutcome {
	if concurrency < 1 {
		concurrency = 1
	}

	var pending []string
	for _, e := range s.cache.List() {
		if !e.HasInsights() {
			pending = append(pending, e.ID)
		}
	}

	outcomes := make([]GenerateOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, id := range pending {
		i, id := i, id
		g.Go(func() error {
			res, err := s.GenerateInsight(ctx, id)
			outcomes[i] = GenerateOutcome{EntryID: id, Result: res, Err: err}
			return nil
		})
	}
	g.Wait()

	slog.Info("Batch generation finished", "entries", len(pending), "concurrency", concurrency)
	return outcomes
}

// GetConfig returns the current configuration
func (s *DiaryService) GetConfig() *config.Config {
	return s.cfg
}

// GetLastError returns the last error message
func (s *DiaryService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *DiaryService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *DiaryService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// Close discards an unfinished recording and closes the record store
func (s *DiaryService) Close() error {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session != nil {
		if status, _ := session.Status(); status == audio.StatusRecording {
			slog.Warn("Discarding unfinished recording on shutdown")
			if _, err := session.Stop(); err != nil {
				slog.Debug("Stopping recording on shutdown failed", "error", err)
			}
		}
	}
	return s.deps.Records.Close()
}
