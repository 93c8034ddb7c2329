// Package api exposes the tool over the Model Context Protocol so other
// agents can query indexed channels and trigger ingestion.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ytrag/internal/costs"
	"github.com/kalambet/ytrag/internal/ingest"
	"github.com/kalambet/ytrag/internal/storage"
)

// MCPAsker answers a grounded question and records the exchange.
type MCPAsker interface {
	Exchange(ctx context.Context, prompt string) (storage.ChatTurn, error)
}

// MCPIngester scrapes and indexes a channel's transcripts.
type MCPIngester interface {
	Run(ctx context.Context, channelURL string, n int) (ingest.Report, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Asker    MCPAsker
	Ingester MCPIngester // optional; if nil, ingest_channel returns an error
}

// NewMCPServer creates an MCP server with all tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ytrag",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ytrag answers questions about YouTube channel content using indexed video transcripts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about the indexed channel transcripts and get a grounded answer."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_channel",
			mcp.WithDescription("Scrape a YouTube channel's latest videos and index their transcripts for search."),
			mcp.WithString("channel_url", mcp.Description("Channel URL, @handle URL, or /channel/ID URL"), mcp.Required()),
			mcp.WithNumber("num_videos", mcp.Description("How many recent videos to process (default 5)")),
		),
		mcpIngestChannel(deps),
	)

	s.AddTool(
		mcp.NewTool("cost_summary",
			mcp.WithDescription("Report accumulated API spending, optionally narrowed to a time window."),
			mcp.WithString("window", mcp.Description("Natural-language window, e.g. 'today', 'yesterday', 'this week', 'this month' (default all time)")),
		),
		mcpCostSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("chat_history",
			mcp.WithDescription("List recent question/answer exchanges, optionally filtered by a search term."),
			mcp.WithString("query", mcp.Description("Substring to match against prompts and responses")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of exchanges (default 10)")),
		),
		mcpChatHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ytrag://index",
			"Indexed Videos",
			mcp.WithResourceDescription("Videos currently in the search index, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceIndex(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		turn, err := deps.Asker.Exchange(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return mcpText(turn.Response), nil
	}
}

func mcpIngestChannel(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Ingester == nil {
			return mcpError("ingestion not available: no authenticated client configured"), nil
		}

		channelURL, err := req.RequireString("channel_url")
		if err != nil {
			return mcpError("channel_url is required"), nil
		}

		n := req.GetInt("num_videos", 5)
		if n <= 0 {
			n = 5
		}
		if n > 100 {
			n = 100
		}

		rep, err := deps.Ingester.Run(ctx, channelURL, n)
		if err != nil {
			return mcpError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}

		b, err := json.Marshal(rep)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCostSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		window := req.GetString("window", "")

		w := costs.Resolve(window, time.Now())
		sum := costs.Summarize(deps.Store.Costs(), w)

		b, err := json.Marshal(sum)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpChatHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		var turns []storage.ChatTurn
		if query := req.GetString("query", ""); query != "" {
			turns = deps.Store.SearchTurns(query)
			if len(turns) > limit {
				turns = turns[len(turns)-limit:]
			}
		} else {
			turns = deps.Store.RecentTurns(limit)
		}

		if len(turns) == 0 {
			return mcpText("[]"), nil
		}

		type turnResult struct {
			Timestamp string  `json:"timestamp"`
			Prompt    string  `json:"prompt"`
			Response  string  `json:"response"`
			CostUSD   float64 `json:"cost_usd"`
			Failed    bool    `json:"failed,omitempty"`
		}

		results := make([]turnResult, len(turns))
		for i, t := range turns {
			resp := t.Response
			if utf8.RuneCountInString(resp) > 500 {
				runes := []rune(resp)
				resp = string(runes[:500]) + "..."
			}
			results[i] = turnResult{
				Timestamp: t.Timestamp.Format(time.RFC3339),
				Prompt:    t.Prompt,
				Response:  resp,
				CostUSD:   t.CostUSD,
				Failed:    t.Failed,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceIndex(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type indexedVideo struct {
			VideoID    string `json:"video_id"`
			Title      string `json:"title"`
			UploadedAt string `json:"uploaded_at"`
		}

		ids := deps.Store.IndexedIDs()
		videos := make([]indexedVideo, 0, len(ids))
		for _, id := range ids {
			entry, ok := deps.Store.IndexEntry(id)
			if !ok {
				continue
			}
			videos = append(videos, indexedVideo{
				VideoID:    id,
				Title:      entry.Title,
				UploadedAt: entry.UploadedAt.Format(time.RFC3339),
			})
		}

		b, err := json.Marshal(videos)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal index: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
