package types

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchToolArgs are the arguments of the answer tool.
type SearchToolArgs struct {
	Query string `json:"query"`
}

// DocumentToolArgs are the arguments of the document search tool.
type DocumentToolArgs struct {
	Query    string `json:"query"`
	PageSize int    `json:"page_size,omitempty"`
}

// ResearchToolArgs are the arguments of the deep research tool.
// Session continues a conversation returned by an earlier call.
type ResearchToolArgs struct {
	Query   string `json:"query"`
	Session string `json:"session,omitempty"`
}

// NewTextResult wraps text in a successful tool result.
func NewTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// NewErrorResult wraps an error message in a failed tool result.
func NewErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
