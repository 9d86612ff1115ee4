package mcp

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	mcppkg "github.com/mark3labs/mcp-go/mcp"

	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/insight"
)

type fakeDiary struct {
	entries []entry.Entry
	genErr  error
	genRes  *insight.Result
	genIDs  []string
}

func (f *fakeDiary) Entries() []entry.Entry { return f.entries }

func (f *fakeDiary) Entry(id string) (entry.Entry, bool) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, true
		}
	}
	return entry.Entry{}, false
}

func (f *fakeDiary) GroupedEntries(mode entry.GroupMode) []entry.Bucket {
	return entry.Grouping{Locale: entry.LocaleEN, WeekStart: time.Sunday, Location: time.UTC}.Group(mode, f.entries)
}

func (f *fakeDiary) GenerateInsight(ctx context.Context, id string) (*insight.Result, error) {
	f.genIDs = append(f.genIDs, id)
	return f.genRes, f.genErr
}

func newFakeDiary() *fakeDiary {
	text := "A calm day"
	return &fakeDiary{entries: []entry.Entry{
		{ID: "e2", AudioURL: "http://x/media/u1/2.webm", DurationSeconds: 12, InsightsText: &text,
			CreatedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)},
		{ID: "e1", AudioURL: "http://x/media/u1/1.webm", DurationSeconds: 30,
			CreatedAt: time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)},
	}}
}

func callRequest(args map[string]any) mcppkg.CallToolRequest {
	return mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}}
}

func callResultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	srv := NewServer(newFakeDiary(), "test")
	if srv == nil {
		t.Fatalf("expected MCP server instance")
	}
}

func TestHandleListEntries(t *testing.T) {
	res, err := handleListEntries(newFakeDiary())(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := callResultText(t, res)

	if !strings.HasPrefix(text, "2 entries:") {
		t.Fatalf("unexpected header: %q", text)
	}
	if !strings.Contains(text, "[*] e2") || !strings.Contains(text, "[ ] e1") {
		t.Fatalf("expected insight markers, got %q", text)
	}
	if strings.Index(text, "e2") > strings.Index(text, "e1") {
		t.Fatalf("expected newest first: %q", text)
	}
}

func TestHandleListEntriesGrouped(t *testing.T) {
	res, err := handleListEntries(newFakeDiary())(context.Background(), callRequest(map[string]any{"group": "month"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := callResultText(t, res)

	if !strings.Contains(text, "## October 2026 (1)") || !strings.Contains(text, "## September 2026 (1)") {
		t.Fatalf("unexpected grouping: %q", text)
	}
}

func TestHandleListEntriesInvalidGroup(t *testing.T) {
	res, err := handleListEntries(newFakeDiary())(context.Background(), callRequest(map[string]any{"group": "year"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for invalid group")
	}
}

func TestHandleListEntriesEmpty(t *testing.T) {
	res, _ := handleListEntries(&fakeDiary{})(context.Background(), callRequest(map[string]any{}))
	if text := callResultText(t, res); text != "No diary entries yet." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestHandleGetEntry(t *testing.T) {
	h := handleGetEntry(newFakeDiary())

	res, err := h(context.Background(), callRequest(map[string]any{"entry_id": "e2"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := callResultText(t, res)
	if !strings.Contains(text, "A calm day") || !strings.Contains(text, "Duration: 12s") {
		t.Fatalf("unexpected entry output: %q", text)
	}

	res, _ = h(context.Background(), callRequest(map[string]any{"entry_id": "missing"}))
	if !res.IsError {
		t.Fatalf("expected tool error for unknown entry")
	}

	res, _ = h(context.Background(), callRequest(map[string]any{}))
	if !res.IsError {
		t.Fatalf("expected tool error without entry_id")
	}
}

func TestHandleGenerateInsight(t *testing.T) {
	d := newFakeDiary()
	text := "Summary"
	d.genRes = &insight.Result{
		Entry:   entry.Entry{ID: "e1", AudioURL: "http://x/media/u1/1.webm", InsightsText: &text},
		Warning: fmt.Errorf("%w: disk full", insight.ErrDerivedUpload),
	}

	res, err := handleGenerateInsight(d)(context.Background(), callRequest(map[string]any{"entry_id": "e1"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callResultText(t, res))
	}

	out := callResultText(t, res)
	if !strings.Contains(out, "Insight saved.") || !strings.Contains(out, "Summary") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "Warning:") || !strings.Contains(out, "disk full") {
		t.Fatalf("expected warning in output: %q", out)
	}
	if len(d.genIDs) != 1 || d.genIDs[0] != "e1" {
		t.Fatalf("unexpected generate calls: %v", d.genIDs)
	}
}

func TestHandleGenerateInsightErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: e1", insight.ErrAlreadyInProgress), "already being generated"},
		{fmt.Errorf("%w: e1", insight.ErrEntryNotFound), "not found"},
		{fmt.Errorf("%w: timeout", insight.ErrAnalyzer), "Insight generation failed"},
	}

	for _, tt := range tests {
		d := newFakeDiary()
		d.genErr = tt.err

		res, err := handleGenerateInsight(d)(context.Background(), callRequest(map[string]any{"entry_id": "e1"}))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !res.IsError {
			t.Fatalf("expected tool error for %v", tt.err)
		}
		if text := callResultText(t, res); !strings.Contains(text, tt.want) {
			t.Fatalf("expected %q in %q", tt.want, text)
		}
	}
}
