// Package blob stores audio objects under owner-namespaced keys and resolves
// them to public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid blob key")
	ErrNotFound   = errors.New("blob not found")
	ErrExists     = errors.New("blob already exists")
	ErrTooLarge   = errors.New("remote audio too large")
)

// Store uploads objects and maps keys to public URLs
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// Fetcher downloads the bytes behind a public URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// MaxFetchBytes caps how much remote audio Fetch reads
const MaxFetchBytes = 64 << 20

// FileStore keeps objects on the local filesystem and serves them under a
// public base URL. URLs outside the base are fetched over HTTP.
type FileStore struct {
	dir      string
	baseURL  string
	client   *http.Client
	maxFetch int64
}

// NewFileStore creates the storage directory if needed
func NewFileStore(dir, publicBaseURL string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		dir:      dir,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
		maxFetch: MaxFetchBytes,
	}, nil
}

// ValidateKey rejects keys that escape the owner namespace
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: absolute key %q", ErrInvalidKey, key)
	}
	segments := strings.Split(key, "/")
	if len(segments) < 2 {
		return fmt.Errorf("%w: key %q has no owner prefix", ErrInvalidKey, key)
	}
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: key %q has an empty or relative segment", ErrInvalidKey, key)
		}
	}
	return nil
}

// Upload writes data under key and returns its public URL. The write goes
// through a temporary file so readers never see a partial object. Existing
// objects are never replaced; uploading to a taken key fails with ErrExists.
func (s *FileStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close blob: %w", err)
	}
	defer os.Remove(tmpName)

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, key)
		}
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	slog.Debug("Blob uploaded", "key", key, "bytes", len(data), "content_type", contentType)
	return s.PublicURL(key), nil
}

// PublicURL returns the URL a stored key is served from
func (s *FileStore) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// KeyForURL returns the key of a URL served by this store
func (s *FileStore) KeyForURL(rawURL string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Fetch returns the bytes behind rawURL, reading local objects directly
func (s *FileStore) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if key, ok := s.KeyForURL(rawURL); ok {
		return s.Read(key)
	}
	return s.fetchRemote(ctx, rawURL)
}

// LocalPath returns the file behind rawURL when this store holds it
func (s *FileStore) LocalPath(rawURL string) (string, bool) {
	key, ok := s.KeyForURL(rawURL)
	if !ok || ValidateKey(key) != nil {
		return "", false
	}
	p := s.pathFor(key)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// Read returns a stored object
func (s *FileStore) Read(key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid audio URL: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("audio download failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if int64(len(data)) > s.maxFetch {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, rawURL, s.maxFetch)
	}
	return data, nil
}

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(path.Clean(key)))
}

// Handler serves stored objects by key. Mount it with http.StripPrefix.
func (s *FileStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/")
		if err := ValidateKey(key); err != nil {
			http.Error(w, "invalid key", http.StatusBadRequest)
			return
		}

		f, err := os.Open(s.pathFor(key))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		if ct := ContentTypeFor(path.Ext(key)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
	})
}
