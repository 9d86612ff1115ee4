package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/voicediary/internal/audio"
	"github.com/audiolibrelab/voicediary/internal/config"
	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/insight"
	"github.com/audiolibrelab/voicediary/internal/service"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) StartRecording(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) StopRecording(ctx context.Context) (*entry.Entry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.Entry), args.Error(1)
}

func (m *MockService) GetRecordingStatus() (audio.Status, int) {
	args := m.Called()
	return args.Get(0).(audio.Status), args.Int(1)
}

func (m *MockService) LoadEntries(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) Entries() []entry.Entry {
	return m.Called().Get(0).([]entry.Entry)
}

func (m *MockService) Entry(id string) (entry.Entry, bool) {
	args := m.Called(id)
	return args.Get(0).(entry.Entry), args.Bool(1)
}

func (m *MockService) GroupedEntries(mode entry.GroupMode) []entry.Bucket {
	return m.Called(mode).Get(0).([]entry.Bucket)
}

func (m *MockService) GenerateInsight(ctx context.Context, id string) (*insight.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*insight.Result), args.Error(1)
}

func (m *MockService) GeneratePending(ctx context.Context, concurrency int) []service.GenerateOutcome {
	return m.Called(ctx, concurrency).Get(0).([]service.GenerateOutcome)
}

func (m *MockService) GetConfig() *config.Config {
	return m.Called().Get(0).(*config.Config)
}

func (m *MockService) GetLastError() string {
	return m.Called().String(0)
}

func (m *MockService) Close() error {
	return m.Called().Error(0)
}

func serve(t *testing.T, svc service.Service, method, path string, opts ...Option) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(svc, "0", opts...).Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	return fmt.Sprint(body["error"])
}

func TestStartRecording(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"started", nil, http.StatusOK},
		{"device busy", fmt.Errorf("%w: another session is recording", audio.ErrCaptureUnavailable), http.StatusConflict},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("StartRecording", mock.Anything).Return(tt.err)

			rec := serve(t, svc, http.MethodPost, "/record/start")
			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestStartRecording_MethodNotAllowed(t *testing.T) {
	svc := new(MockService)
	rec := serve(t, svc, http.MethodGet, "/record/start")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", errorBody(t, rec))
	svc.AssertNotCalled(t, "StartRecording", mock.Anything)
}

func TestStopRecording(t *testing.T) {
	t.Run("saved", func(t *testing.T) {
		svc := new(MockService)
		e := &entry.Entry{ID: "e1", OwnerID: "u1", AudioURL: "http://x/media/u1/1.webm", DurationSeconds: 7}
		svc.On("StopRecording", mock.Anything).Return(e, nil)

		rec := serve(t, svc, http.MethodPost, "/record/stop")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp StopResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Saved)
		require.NotNil(t, resp.Entry)
		assert.Equal(t, "e1", resp.Entry.ID)
		assert.Equal(t, 7, resp.Entry.DurationSeconds)
	})

	t.Run("nothing recording", func(t *testing.T) {
		svc := new(MockService)
		svc.On("StopRecording", mock.Anything).Return(nil, nil)

		rec := serve(t, svc, http.MethodPost, "/record/stop")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"saved":false}`, rec.Body.String())
	})

	t.Run("empty recording", func(t *testing.T) {
		svc := new(MockService)
		svc.On("StopRecording", mock.Anything).Return(nil, audio.ErrEmptyRecording)

		rec := serve(t, svc, http.MethodPost, "/record/stop")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, errorBody(t, rec), "no audio")
	})
}

func TestStatus(t *testing.T) {
	svc := new(MockService)
	svc.On("GetRecordingStatus").Return(audio.StatusRecording, 75)
	svc.On("GetConfig").Return(&config.Config{OwnerID: "u1", Profile: "home"})
	svc.On("Entries").Return([]entry.Entry{{ID: "a"}, {ID: "b"}})
	svc.On("GetLastError").Return("")

	rec := serve(t, svc, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RECORDING", resp.Status)
	assert.Equal(t, 75, resp.ElapsedSeconds)
	assert.Equal(t, "Recording in progress - 01:15", resp.Message)
	assert.Equal(t, 2, resp.Entries)
	assert.Equal(t, "u1", resp.OwnerID)
	assert.Equal(t, "home", resp.Profile)
}

func TestEntries(t *testing.T) {
	created := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	entries := []entry.Entry{{ID: "a", CreatedAt: created}}

	t.Run("flat", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Entries").Return(entries)

		rec := serve(t, svc, http.MethodGet, "/entries")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp EntriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "a", resp.Entries[0].ID)
		assert.Empty(t, resp.Buckets)
	})

	t.Run("grouped", func(t *testing.T) {
		svc := new(MockService)
		svc.On("GroupedEntries", entry.GroupByMonth).Return([]entry.Bucket{
			{Key: "2026-10", Label: "Outubro de 2026", Entries: entries},
		})

		rec := serve(t, svc, http.MethodGet, "/entries?group=month")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp EntriesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "month", resp.Group)
		require.Len(t, resp.Buckets, 1)
		assert.Equal(t, "Outubro de 2026", resp.Buckets[0].Label)
	})

	t.Run("invalid group", func(t *testing.T) {
		rec := serve(t, new(MockService), http.MethodGet, "/entries?group=year")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetEntry(t *testing.T) {
	svc := new(MockService)
	svc.On("Entry", "e1").Return(entry.Entry{ID: "e1", AudioURL: "u"}, true)
	svc.On("Entry", "missing").Return(entry.Entry{}, false)

	rec := serve(t, svc, http.MethodGet, "/entries/e1")
	require.Equal(t, http.StatusOK, rec.Code)
	var e entry.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "e1", e.ID)

	rec = serve(t, svc, http.MethodGet, "/entries/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, svc, http.MethodGet, "/entries/e1/other")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateInsight_Success(t *testing.T) {
	svc := new(MockService)
	text := "Um bom dia"
	svc.On("GenerateInsight", mock.Anything, "e1").Return(&insight.Result{
		Entry:   entry.Entry{ID: "e1", AudioURL: "orig", InsightsText: &text},
		Warning: fmt.Errorf("%w: bucket down", insight.ErrDerivedUpload),
	}, nil)

	rec := serve(t, svc, http.MethodPost, "/entries/e1/insights")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp InsightResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Um bom dia", resp.Entry.Insights())
	assert.False(t, resp.DerivedAudioUsed)
	assert.Contains(t, resp.Warning, "bucket down")
}

func TestGenerateInsight_ErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{insight.ErrEntryNotFound, http.StatusNotFound},
		{insight.ErrAlreadyInProgress, http.StatusConflict},
		{fmt.Errorf("%w: refused", insight.ErrFetch), http.StatusBadGateway},
		{fmt.Errorf("%w: timeout", insight.ErrAnalyzer), http.StatusBadGateway},
		{fmt.Errorf("%w: locked", insight.ErrCommit), http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", insight.ErrCanceled, context.Canceled), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := new(MockService)
			svc.On("GenerateInsight", mock.Anything, "e1").Return(nil, tt.err)

			rec := serve(t, svc, http.MethodPost, "/entries/e1/insights")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, errorBody(t, rec), "Failed to generate insight")
		})
	}
}

func TestOptionalRoutes(t *testing.T) {
	svc := new(MockService)

	rec := serve(t, svc, http.MethodPost, "/audio/analyzer/analyze")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	analyzer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	media := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	})

	rec = serve(t, svc, http.MethodPost, "/audio/analyzer/analyze", WithAnalyzer(analyzer))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = serve(t, svc, http.MethodGet, "/media/u1/1.webm", WithMedia(media))
	assert.Equal(t, "u1/1.webm", rec.Body.String())
}
