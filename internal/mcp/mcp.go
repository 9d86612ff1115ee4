// Package mcp exposes the voice diary to agents over the Model Context Protocol
// stdio transport: listing entries, reading one entry and generating insights.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/audiolibrelab/voicediary/internal/entry"
	"github.com/audiolibrelab/voicediary/internal/insight"
)

// Diary is the part of the service the tools need
type Diary interface {
	Entries() []entry.Entry
	Entry(id string) (entry.Entry, bool)
	GroupedEntries(mode entry.GroupMode) []entry.Bucket
	GenerateInsight(ctx context.Context, id string) (*insight.Result, error)
}

const serverInstructions = `Voice diary entries are short recorded memos. Use list_entries to browse ` +
	`them (optionally grouped by week or month), get_entry to read one entry and its ` +
	`insight, and generate_insight to request an AI summary for an entry that has none.`

// NewServer creates an MCP server with the diary tools registered
func NewServer(d Diary, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"voicediary",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)

	srv.AddTool(
		mcp.NewTool("list_entries",
			mcp.WithDescription("List diary entries, newest first. Shows id, date, duration and whether an insight exists."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("group",
				mcp.Description("Group entries by week or month"),
				mcp.Enum(string(entry.GroupByWeek), string(entry.GroupByMonth)),
			),
		),
		handleListEntries(d),
	)

	srv.AddTool(
		mcp.NewTool("get_entry",
			mcp.WithDescription("Get one diary entry with its audio URL and insight text"),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("entry_id",
				mcp.Required(),
				mcp.Description("Entry id as shown by list_entries"),
			),
		),
		handleGetEntry(d),
	)

	srv.AddTool(
		mcp.NewTool("generate_insight",
			mcp.WithDescription("Analyze an entry's audio and save the resulting insight. Replaces the entry audio with the spoken insight when one is produced."),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithString("entry_id",
				mcp.Required(),
				mcp.Description("Entry id as shown by list_entries"),
			),
		),
		handleGenerateInsight(d),
	)

	return srv
}

// Serve runs the server on stdin/stdout until the client disconnects
func Serve(d Diary, version string) error {
	return server.ServeStdio(NewServer(d, version))
}

func handleListEntries(d Diary) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		group, _ := req.GetArguments()["group"].(string)

		if group == "" {
			entries := d.Entries()
			if len(entries) == 0 {
				return mcp.NewToolResultText("No diary entries yet."), nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d entries:\n\n", len(entries))
			for _, e := range entries {
				writeEntryLine(&b, e)
			}
			return mcp.NewToolResultText(b.String()), nil
		}

		mode, err := entry.ParseGroupMode(group)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		buckets := d.GroupedEntries(mode)
		if len(buckets) == 0 {
			return mcp.NewToolResultText("No diary entries yet."), nil
		}

		var b strings.Builder
		for _, bucket := range buckets {
			fmt.Fprintf(&b, "## %s (%d)\n", bucket.Label, len(bucket.Entries))
			for _, e := range bucket.Entries {
				writeEntryLine(&b, e)
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleGetEntry(d Diary) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := req.GetArguments()["entry_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("entry_id is required"), nil
		}

		e, ok := d.Entry(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Entry %s not found", id)), nil
		}
		return mcp.NewToolResultText(formatEntry(e)), nil
	}
}

func handleGenerateInsight(d Diary) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := req.GetArguments()["entry_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("entry_id is required"), nil
		}

		res, err := d.GenerateInsight(ctx, id)
		if err != nil {
			msg := fmt.Sprintf("Insight generation failed: %s", err)
			switch {
			case errors.Is(err, insight.ErrAlreadyInProgress):
				msg = fmt.Sprintf("An insight for %s is already being generated. Try again shortly.", id)
			case errors.Is(err, insight.ErrEntryNotFound):
				msg = fmt.Sprintf("Entry %s not found", id)
			}
			return mcp.NewToolResultError(msg), nil
		}

		var b strings.Builder
		b.WriteString("Insight saved.\n\n")
		b.WriteString(formatEntry(res.Entry))
		if res.Warning != nil {
			fmt.Fprintf(&b, "\nWarning: %s\n", res.Warning)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func writeEntryLine(b *strings.Builder, e entry.Entry) {
	mark := " "
	if e.HasInsights() {
		mark = "*"
	}
	fmt.Fprintf(b, "[%s] %s  %s  %ds\n", mark, e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.DurationSeconds)
}

func formatEntry(e entry.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", e.ID)
	fmt.Fprintf(&b, "Recorded: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Duration: %ds\n", e.DurationSeconds)
	fmt.Fprintf(&b, "Audio: %s\n", e.AudioURL)
	if e.InsightsAudioURL != nil {
		fmt.Fprintf(&b, "Insight audio: %s\n", *e.InsightsAudioURL)
	}
	if e.HasInsights() {
		fmt.Fprintf(&b, "\n%s\n", e.Insights())
	} else {
		b.WriteString("\nNo insight yet.\n")
	}
	return b.String()
}
