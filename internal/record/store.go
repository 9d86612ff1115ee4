// Package record is the durable store of diary entries, backed by SQLite.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/audiolibrelab/voicediary/internal/entry"
)

var ErrNotFound = errors.New("entry not found")

// NewEntry is the data needed to insert a freshly recorded memo
type NewEntry struct {
	OwnerID         string
	AudioURL        string
	DurationSeconds int
	CreatedAt       time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("record: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("record: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("record: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("record: migration: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS journal_entries (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT    NOT NULL,
			audio_url          TEXT    NOT NULL,
			duration           INTEGER NOT NULL DEFAULT 0,
			insights           TEXT,
			insights_audio_url TEXT,
			created_at         TEXT    NOT NULL,
			updated_at         TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_user_created ON journal_entries(user_id, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new entry and assigns its id
func (s *Store) Insert(ctx context.Context, p NewEntry) (entry.Entry, error) {
	if strings.TrimSpace(p.OwnerID) == "" {
		return entry.Entry{}, fmt.Errorf("record: owner id is required")
	}
	if p.AudioURL == "" {
		return entry.Entry{}, fmt.Errorf("record: audio url is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	e := entry.Entry{
		ID:              uuid.NewString(),
		OwnerID:         p.OwnerID,
		AudioURL:        p.AudioURL,
		DurationSeconds: p.DurationSeconds,
		CreatedAt:       p.CreatedAt.UTC(),
	}
	now := formatTime(time.Now())

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, audio_url, duration, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.AudioURL, e.DurationSeconds, formatTime(e.CreatedAt), now,
	); err != nil {
		return entry.Entry{}, fmt.Errorf("record: insert entry: %w", err)
	}
	return e, nil
}

// Update applies the non-nil fields of u in a single statement
func (s *Store) Update(ctx context.Context, id string, u entry.Update) error {
	if u.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if u.AudioURL != nil {
		sets = append(sets, "audio_url = ?")
		args = append(args, *u.AudioURL)
	}
	if u.InsightsText != nil {
		sets = append(sets, "insights = ?")
		args = append(args, *u.InsightsText)
	}
	if u.InsightsAudioURL != nil {
		sets = append(sets, "insights_audio_url = ?")
		args = append(args, *u.InsightsAudioURL)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE journal_entries SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("record: update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record: update entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record: update %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns one entry by id
func (s *Store) Get(ctx context.Context, id string) (entry.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, audio_url, duration, insights, insights_audio_url, created_at
		 FROM journal_entries WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entry.Entry{}, fmt.Errorf("record: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return entry.Entry{}, fmt.Errorf("record: get entry: %w", err)
	}
	return e, nil
}

// ListByOwner returns the owner's entries, newest first
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, audio_url, duration, insights, insights_audio_url, created_at
		 FROM journal_entries WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("record: list entries: %w", err)
	}
	defer rows.Close()

	var entries []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("record: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (entry.Entry, error) {
	var (
		e                  entry.Entry
		insights, insAudio sql.NullString
		created            string
	)
	if err := sc.Scan(&e.ID, &e.OwnerID, &e.AudioURL, &e.DurationSeconds, &insights, &insAudio, &created); err != nil {
		return entry.Entry{}, err
	}
	if insights.Valid {
		e.InsightsText = entry.StringPtr(insights.String)
	}
	if insAudio.Valid {
		e.InsightsAudioURL = entry.StringPtr(insAudio.String)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	e.CreatedAt = t
	return e, nil
}

// formatTime uses a fixed-width layout so text ordering matches time ordering
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
