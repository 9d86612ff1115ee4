// Package analyzer talks to the remote insight service: a single multipart
// upload of the memo audio answered by {insight, audioBase64}.
package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/audiolibrelab/voicediary/internal/blob"
)

const DefaultFilename = "audio.webm"

// MaxResponseBytes caps how much of an analyzer response is read
const MaxResponseBytes = 64 << 20

var (
	ErrStatus   = errors.New("analyzer returned an error status")
	ErrContract = errors.New("analyzer response violates contract")
)

// Response is the wire shape returned by the analyzer
type Response struct {
	Insight     string `json:"insight"`
	AudioBase64 string `json:"audioBase64,omitempty"`
}

// Insight is a canonicalized analyzer response
type Insight struct {
	Text         string
	DerivedAudio []byte
	// AudioErr is set when audioBase64 was present but could not be decoded
	AudioErr error
}

// Canonical validates the response and decodes the derived audio
func (r Response) Canonical() (Insight, error) {
	text := strings.TrimSpace(r.Insight)
	if text == "" {
		return Insight{}, fmt.Errorf("%w: missing insight text", ErrContract)
	}

	out := Insight{Text: r.Insight}
	if r.AudioBase64 == "" {
		return out, nil
	}

	audio, err := base64.StdEncoding.DecodeString(r.AudioBase64)
	if err != nil {
		out.AudioErr = fmt.Errorf("decoding audioBase64: %w", err)
		return out, nil
	}
	if len(audio) > 0 {
		out.DerivedAudio = audio
	}
	return out, nil
}

// Client posts audio to the analyzer endpoint
type Client struct {
	url     string
	http    *http.Client
	maxBody int64
}

// NewClient creates a client whose requests give up after timeout
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}, maxBody: MaxResponseBytes}
}

// Analyze uploads audio as the multipart field "file" and returns the
// canonicalized insight.
func (c *Client) Analyze(ctx context.Context, audio []byte, filename string) (Insight, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	contentType := blob.ContentTypeFor(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return Insight{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Insight{}, err
	}
	if err := writer.Close(); err != nil {
		return Insight{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Insight{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Insight{}, fmt.Errorf("calling analyzer: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return Insight{}, fmt.Errorf("reading analyzer response: %w", err)
	}
	if int64(len(respBody)) > c.maxBody {
		return Insight{}, fmt.Errorf("%w: response exceeds %d bytes", ErrContract, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Insight{}, fmt.Errorf("%w (HTTP %d): %s", ErrStatus, resp.StatusCode, truncate(string(respBody), 512))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Insight{}, fmt.Errorf("%w: parsing response: %v", ErrContract, err)
	}
	return out.Canonical()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
