package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxUploadBytes = 32 << 20

// Summarizer turns memo audio into insight text
type Summarizer interface {
	Summarize(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer turns insight text into speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// upstreamStatus is implemented by errors that carry an upstream HTTP status
type upstreamStatus interface {
	HTTPStatus() int
}

// Handler serves POST /audio/analyzer/analyze
type Handler struct {
	summarizer  Summarizer
	synthesizer Synthesizer
}

// NewHandler creates the analyzer endpoint. synthesizer may be nil, in which
// case responses never carry audio.
func NewHandler(summarizer Summarizer, synthesizer Synthesizer) *Handler {
	return &Handler{summarizer: summarizer, synthesizer: synthesizer}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Arquivo vazio")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Arquivo vazio")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "Arquivo vazio")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = "audio/webm"
	}

	slog.Info("Analyzing audio", "bytes", len(audio), "mime_type", mimeType)

	text, err := h.summarizer.Summarize(r.Context(), audio, mimeType)
	if err != nil {
		status := http.StatusBadGateway
		var upstream upstreamStatus
		if errors.As(err, &upstream) {
			status = upstream.HTTPStatus()
		}
		slog.Error("Summarization failed", "error", err, "status", status)
		writeError(w, status, err.Error())
		return
	}

	resp := Response{Insight: text}
	if h.synthesizer != nil {
		speech, err := h.synthesizer.Synthesize(r.Context(), text)
		if err != nil {
			slog.Warn("Speech synthesis failed, returning text only", "error", err)
		} else if len(speech) > 0 {
			resp.AudioBase64 = base64.StdEncoding.EncodeToString(speech)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
