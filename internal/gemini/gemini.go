// Package gemini calls Google's Generative Language and Text-to-Speech REST
// APIs to produce the insight text and its spoken version.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultTTSURL  = "https://texttospeech.googleapis.com/v1/text:synthesize"

	speakingRate = 0.90
	pitch        = -1.5

	maxResponseBytes = 64 << 20
)

// StatusError is a non-200 answer from a Google endpoint
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Service, e.Code, e.Body)
}

// HTTPStatus lets HTTP handlers forward the upstream status
func (e *StatusError) HTTPStatus() int { return e.Code }

type Options struct {
	APIKey   string
	Model    string
	Prompt   string
	Voice    string
	Language string
	BaseURL  string
	TTSURL   string
	Timeout  time.Duration
}

// Client implements analyzer.Summarizer and analyzer.Synthesizer
type Client struct {
	opts Options
	http *http.Client
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TTSURL == "" {
		opts.TTSURL = DefaultTTSURL
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.Voice == "" {
		opts.Voice = "pt-BR-Neural2-C"
	}
	if opts.Language == "" {
		opts.Language = "pt-BR"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{opts: opts, http: &http.Client{Timeout: opts.Timeout}}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// Summarize sends the prompt and the audio inline and returns the first
// candidate's first text part.
func (c *Client) Summarize(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: c.opts.Prompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(audio)}},
			},
		}},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.opts.BaseURL, "/"), url.PathEscape(c.opts.Model), url.QueryEscape(c.opts.APIKey))

	body, err := c.postJSON(ctx, "Gemini", endpoint, nil, reqBody)
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("gemini response has no candidate text")
	}
	return text.String(), nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
		Pitch         float64 `json:"pitch"`
	} `json:"audioConfig"`
}

// Synthesize returns MP3 speech for text
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = c.opts.Language
	reqBody.Voice.Name = c.opts.Voice
	reqBody.AudioConfig.AudioEncoding = "MP3"
	reqBody.AudioConfig.SpeakingRate = speakingRate
	reqBody.AudioConfig.Pitch = pitch

	headers := map[string]string{"X-Goog-Api-Key": c.opts.APIKey}
	body, err := c.postJSON(ctx, "Text-to-Speech", c.opts.TTSURL, headers, reqBody)
	if err != nil {
		return nil, err
	}

	encoded := gjson.GetBytes(body, "audioContent").String()
	if encoded == "" {
		return nil, fmt.Errorf("text-to-speech response has no audioContent")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding audioContent: %w", err)
	}
	return audio, nil
}

func (c *Client) postJSON(ctx context.Context, service, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s API: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", service, err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%s response exceeds %d bytes", service, maxResponseBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: service, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
