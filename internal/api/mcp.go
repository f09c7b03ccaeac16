package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fooodis/chatd/internal/memory"
	"github.com/fooodis/chatd/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  *storage.Store
	Memory *memory.Service // optional; nil makes memory tools report unavailable
}

// NewMCPServer registers the chatd tools for LLM clients: semantic memory
// read/write plus lead lookup for the support assistant.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"chatd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("chatd — Fooodis chatbot memory and lead records."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("remember",
			mcp.WithDescription("Store a text snippet in the chatbot's semantic memory for later recall."),
			mcp.WithString("content", mcp.Description("The text to remember"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Memory type: user_preference, faq, conversation, or knowledge (default faq)")),
			mcp.WithString("conversation_id", mcp.Description("Conversation to attach the memory to")),
		),
		mcpRemember(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_memory",
			mcp.WithDescription("Semantically search stored memories and return the most relevant snippets."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Restrict to one memory type")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecallMemory(deps),
	)

	s.AddTool(
		mcp.NewTool("lookup_lead",
			mcp.WithDescription("Look up a captured lead by email or visitor id."),
			mcp.WithString("email", mcp.Description("Lead email address")),
			mcp.WithString("visitor_id", mcp.Description("Anonymous visitor id")),
		),
		mcpLookupLead(deps),
	)

	return s
}

func mcpRemember(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Memory == nil {
			return mcpError("memory is not enabled"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		memType := req.GetString("type", "faq")
		conversationID := req.GetString("conversation_id", "")

		id, err := deps.Memory.Remember(ctx, content, memType, conversationID, map[string]any{"source": "mcp"})
		if err != nil {
			return mcpError(fmt.Sprintf("remember failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored memory %s", id)), nil
	}
}

func mcpRecallMemory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Memory == nil {
			return mcpError("memory is not enabled"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		memType := req.GetString("type", "")
		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		results, err := deps.Memory.Recall(ctx, query, memType, "", limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLookupLead(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email := req.GetString("email", "")
		visitorID := req.GetString("visitor_id", "")
		if email == "" && visitorID == "" {
			return mcpError("email or visitor_id is required"), nil
		}

		var (
			lead storage.Lead
			err  error
		)
		if email != "" {
			lead, err = deps.Store.GetLeadByEmail(email)
		} else {
			lead, err = deps.Store.GetLeadByVisitor(visitorID)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return mcpText("no matching lead"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(leadView(lead))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal lead: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
