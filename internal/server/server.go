package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/audiolibrelab/voicediary/internal/audio"
	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/insight"
	"github.com/audiolibrelab/voicediary/internal/service"
)

// Server represents the HTTP server for controlling the voice diary
type Server struct {
	service  service.Service
	port     string
	media    http.Handler
	analyzer http.Handler
}

// Option configures optional routes
type Option func(*Server)

// WithMedia serves stored audio under /media/
func WithMedia(h http.Handler) Option {
	return func(s *Server) { s.media = h }
}

// WithAnalyzer mounts the analyzer backend at /audio/analyzer/analyze
func WithAnalyzer(h http.Handler) Option {
	return func(s *Server) { s.analyzer = h }
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	Status         string `json:"status"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Message        string `json:"message,omitempty"`
	Entries        int    `json:"entries"`
	OwnerID        string `json:"owner_id"`
	Profile        string `json:"profile,omitempty"`
	LastError      string `json:"last_error,omitempty"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// StopResponse is returned by /record/stop
type StopResponse struct {
	Success bool         `json:"success"`
	Saved   bool         `json:"saved"`
	Entry   *entry.Entry `json:"entry,omitempty"`
}

// EntriesResponse lists entries flat or grouped
type EntriesResponse struct {
	Group   string         `json:"group,omitempty"`
	Entries []entry.Entry  `json:"entries,omitempty"`
	Buckets []entry.Bucket `json:"buckets,omitempty"`
}

// InsightResponse is returned by a successful generation
type InsightResponse struct {
	Success          bool        `json:"success"`
	Entry            entry.Entry `json:"entry"`
	DerivedAudioUsed bool        `json:"derived_audio_used"`
	Warning          string      `json:"warning,omitempty"`
}

// New creates a new server instance
func New(svc service.Service, port string, opts ...Option) *Server {
	s := &Server{service: svc, port: port}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/entries", s.handleEntries)
	mux.HandleFunc("/entries/", s.handleEntry)

	if s.media != nil {
		mux.Handle("/media/", http.StripPrefix("/media/", s.media))
	}
	if s.analyzer != nil {
		mux.Handle("/audio/analyzer/analyze", s.analyzer)
	}
	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting voice diary server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port),
		"media", s.media != nil,
		"analyzer", s.analyzer != nil)

	return http.ListenAndServe(":"+s.port, s.Handler())
}

// handleStartRecording starts capturing a memo
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.StartRecording(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrCaptureUnavailable) {
			status = http.StatusConflict
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "start_recording")
		return
	}

	writeJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording started"})
}

// handleStopRecording stops the current recording and saves the entry
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	e, err := s.service.StopRecording(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrEmptyRecording) {
			status = http.StatusUnprocessableEntity
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "stop_recording")
		return
	}

	writeJSON(w, http.StatusOK, StopResponse{Success: true, Saved: e != nil, Entry: e})
}

// handleStatus returns the recording state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status, elapsed := s.service.GetRecordingStatus()
	cfg := s.service.GetConfig()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:         string(status),
		ElapsedSeconds: elapsed,
		Message:        statusMessage(status, elapsed),
		Entries:        len(s.service.Entries()),
		OwnerID:        cfg.OwnerID,
		Profile:        cfg.Profile,
		LastError:      s.service.GetLastError(),
	})
}

// handleEntries lists cached entries, optionally grouped by ?group=week|month
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	group := r.URL.Query().Get("group")
	if group == "" {
		writeJSON(w, http.StatusOK, EntriesResponse{Entries: s.service.Entries()})
		return
	}

	mode, err := entry.ParseGroupMode(group)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, EntriesResponse{Group: string(mode), Buckets: s.service.GroupedEntries(mode)})
}

// handleEntry serves /entries/{id} and /entries/{id}/insights
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/entries/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleGetEntry(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "insights":
		s.handleGenerateInsight(w, r, parts[0])
	default:
		s.sendErrorResponse(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	e, ok := s.service.Entry(id)
	if !ok {
		s.sendErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Entry not found: %s", id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleGenerateInsight runs one insight generation for the entry
func (s *Server) handleGenerateInsight(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	res, err := s.service.GenerateInsight(r.Context(), id)
	if err != nil {
		s.sendErrorResponse(w, insightErrorStatus(err),
			fmt.Sprintf("Failed to generate insight: %v", err),
			"operation", "generate_insight",
			"entry_id", id)
		return
	}

	resp := InsightResponse{
		Success:          true,
		Entry:            res.Entry,
		DerivedAudioUsed: res.DerivedAudioUsed,
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// insightErrorStatus maps pipeline failures to HTTP statuses
func insightErrorStatus(err error) int {
	switch {
	case errors.Is(err, insight.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, insight.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, insight.ErrCanceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, insight.ErrFetch), errors.Is(err, insight.ErrAnalyzer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func statusMessage(status audio.Status, elapsed int) string {
	switch status {
	case audio.StatusRecording:
		return fmt.Sprintf("Recording in progress - %02d:%02d", elapsed/60, elapsed%60)
	case audio.StatusFinalizing:
		return "Finalizing recording"
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Sending error response to client", logFields...)
	} else {
		slog.Debug("Sending error response to client", logFields...)
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
