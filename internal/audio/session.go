package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the current state of a recording session
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusRecording  Status = "RECORDING"
	StatusFinalizing Status = "FINALIZING"
)

var (
	// ErrCaptureUnavailable is returned when the device cannot be acquired or
	// another session already holds it.
	ErrCaptureUnavailable = errors.New("capture device unavailable")
	ErrEmptyRecording     = errors.New("recording produced no audio")
)

// CaptureDevice is a microphone-like source. Acquire starts delivering chunks
// through onChunk; Finalize flushes the last chunk before returning; Release
// frees the hardware and must be safe to call more than once.
type CaptureDevice interface {
	Acquire(ctx context.Context, onChunk func([]byte)) error
	Finalize() error
	Release() error
}

// contentTyper is implemented by devices that know their output format
type contentTyper interface {
	ContentType() string
}

// Capture is a finalized recording
type Capture struct {
	Audio          []byte
	ElapsedSeconds int
	ContentType    string
	StartedAt      time.Time
}

// Ticker drives the elapsed-seconds counter
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// The capture device is exclusive process-wide: at most one session records.
var (
	deviceMu    sync.Mutex
	deviceOwner *Session
)

func claimDevice(s *Session) bool {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	if deviceOwner != nil && deviceOwner != s {
		return false
	}
	deviceOwner = s
	return true
}

func releaseDevice(s *Session) {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	if deviceOwner == s {
		deviceOwner = nil
	}
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithTicker replaces the one-second ticker, mainly for tests
func WithTicker(newTicker func(time.Duration) Ticker) SessionOption {
	return func(s *Session) { s.newTicker = newTicker }
}

// WithContentType overrides the content type reported for captures
func WithContentType(contentType string) SessionOption {
	return func(s *Session) { s.contentType = contentType }
}

// WithClock overrides the clock used for StartedAt
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session turns a live capture device into a finalized audio payload
type Session struct {
	dev         CaptureDevice
	newTicker   func(time.Duration) Ticker
	now         func() time.Time
	contentType string

	// opMu serializes Start and Stop; stateMu guards the fields read by Status.
	// Stop holds opMu for the whole Finalizing phase.
	opMu    sync.Mutex
	stateMu sync.RWMutex
	status  Status
	started time.Time

	chunkMu sync.Mutex
	chunks  [][]byte

	elapsed  atomic.Int64
	tickStop chan struct{}
	tickDone chan struct{}
}

// NewSession creates an idle session over dev
func NewSession(dev CaptureDevice, opts ...SessionOption) *Session {
	s := &Session{
		dev:         dev,
		newTicker:   newTimeTicker,
		now:         time.Now,
		contentType: "audio/webm",
		status:      StatusIdle,
	}
	if ct, ok := dev.(contentTyper); ok && ct.ContentType() != "" {
		s.contentType = ct.ContentType()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start acquires the device and begins buffering chunks. It is a no-op when
// this session is already recording and fails without waiting while a Stop is
// finalizing.
func (s *Session) Start(ctx context.Context) error {
	if !s.opMu.TryLock() {
		if s.getStatus() == StatusFinalizing {
			return fmt.Errorf("%w: session is finalizing", ErrCaptureUnavailable)
		}
		s.opMu.Lock()
	}
	defer s.opMu.Unlock()

	if s.getStatus() == StatusRecording {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	if !claimDevice(s) {
		return fmt.Errorf("%w: another session is recording", ErrCaptureUnavailable)
	}

	s.chunkMu.Lock()
	s.chunks = nil
	s.chunkMu.Unlock()
	s.elapsed.Store(0)

	if err := s.dev.Acquire(ctx, s.onChunk); err != nil {
		releaseDevice(s)
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	s.tickStop = make(chan struct{})
	s.tickDone = make(chan struct{})
	go s.countTicks(s.newTicker(time.Second), s.tickStop, s.tickDone)

	s.stateMu.Lock()
	s.status = StatusRecording
	s.started = s.now()
	s.stateMu.Unlock()

	slog.Info("Recording started", "content_type", s.contentType)
	return nil
}

// Stop finalizes the device and returns the buffered payload. It returns nil,
// nil when the session is not recording. The device is released on every path.
func (s *Session) Stop() (capture *Capture, err error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.getStatus() != StatusRecording {
		return nil, nil
	}

	close(s.tickStop)
	<-s.tickDone

	s.stateMu.Lock()
	s.status = StatusFinalizing
	startedAt := s.started
	s.stateMu.Unlock()

	defer func() {
		if releaseErr := s.dev.Release(); releaseErr != nil {
			slog.Warn("Failed to release capture device", "error", releaseErr)
		}
		releaseDevice(s)

		s.stateMu.Lock()
		s.status = StatusIdle
		s.stateMu.Unlock()
	}()

	if err := s.dev.Finalize(); err != nil {
		return nil, fmt.Errorf("failed to finalize capture: %w", err)
	}

	s.chunkMu.Lock()
	payload := bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.chunkMu.Unlock()

	if len(payload) == 0 {
		return nil, ErrEmptyRecording
	}

	elapsed := int(s.elapsed.Load())
	slog.Info("Recording stopped", "bytes", len(payload), "elapsed_seconds", elapsed)

	return &Capture{
		Audio:          payload,
		ElapsedSeconds: elapsed,
		ContentType:    s.contentType,
		StartedAt:      startedAt,
	}, nil
}

// Status returns the current state and the elapsed seconds counted so far
func (s *Session) Status() (Status, int) {
	return s.getStatus(), int(s.elapsed.Load())
}

// StartedAt returns when the current or last recording began
func (s *Session) StartedAt() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.started
}

func (s *Session) getStatus() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status
}

func (s *Session) onChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	s.chunkMu.Lock()
	s.chunks = append(s.chunks, c)
	s.chunkMu.Unlock()
}

func (s *Session) countTicks(t Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			s.elapsed.Add(1)
		}
	}
}
