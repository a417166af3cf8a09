/*
Package mcp exposes the knowledge base search as an MCP tool.

The server speaks JSON-RPC 2.0 and registers a single tool:
  - get_knowledge_base: find the PDF pages most relevant to a query and
    return their excerpts and rendered page images.

Two transports are provided: newline-delimited messages over stdio
(ServeStdio) and HTTP with server-sent events (SSE).
*/
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abiiranathan/kbsearch/search"
)

const (
	ProtocolVersion = "2024-11-05"
	ToolName        = "get_knowledge_base"

	// JSON-RPC error codes.
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Searcher runs a knowledge base search.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Report, error)
}

// Server handles MCP requests.
type Server struct {
	searcher Searcher
	logger   *slog.Logger
	name     string
	version  string
}

// NewServer creates a server answering tool calls with searcher.
func NewServer(searcher Searcher, logger *slog.Logger, name, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		searcher: searcher,
		logger:   logger,
		name:     name,
		version:  version,
	}
}

// Request is an incoming JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notifications carry no id and get no response.
func (r *Request) isNotification() bool {
	return len(r.ID) == 0
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the result of tools/call.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// KnowledgeBase is the JSON payload of a successful tool call.
type KnowledgeBase struct {
	RelevantImages []search.Result `json:"relevant_images"`
	Note           string          `json:"note,omitempty"`
	Skipped        []string        `json:"skipped,omitempty"`
}

var nullID = json.RawMessage("null")

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// Handle processes one raw JSON-RPC message. It returns nil when no
// response must be sent (notifications).
func (s *Server) Handle(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, codeParseError, fmt.Sprintf("invalid JSON-RPC message: %v", err))
	}

	if req.Method == "" {
		if req.isNotification() {
			return nil
		}
		return errorResponse(req.ID, codeInvalidRequest, "missing method")
	}

	if req.isNotification() {
		s.logger.Debug("notification", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(&req)
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return s.handleToolsList(&req)
	case "tools/call":
		return s.handleToolsCall(ctx, &req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return resultResponse(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	})
}

func (s *Server) handleToolsList(req *Request) *Response {
	tools := []map[string]any{
		{
			"name": ToolName,
			"description": `Retrieve relevant knowledge from the PDF files of the knowledge base.

Pages are ranked by how often the query keywords occur on them. For each of
the best pages the result lists the source document, page number, a short
excerpt around the first match and the path of a PNG rendering of the page.`,
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Keywords to look for, separated by spaces",
					},
				},
				"required": []string{"query"},
			},
		},
	}

	return resultResponse(req.ID, map[string]any{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params struct {
		Name      string                     `json:"name"`
		Arguments map[string]json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	if params.Name != ToolName {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	var query string
	if raw, ok := params.Arguments["query"]; ok {
		if err := json.Unmarshal(raw, &query); err != nil {
			return errorResponse(req.ID, codeInvalidParams, "query must be a string")
		}
	}

	return resultResponse(req.ID, s.callKnowledgeBase(ctx, query))
}

func (s *Server) callKnowledgeBase(ctx context.Context, query string) ToolResult {
	report, err := s.searcher.Search(ctx, query)
	if err != nil {
		return toolError(s.diagnose(query, err))
	}

	payload, err := json.Marshal(KnowledgeBase{
		RelevantImages: report.Results,
		Note:           report.Note,
		Skipped:        report.Skipped,
	})
	if err != nil {
		s.logger.Error("unable to encode tool result", "err", err)
		return toolError("An error occurred while retrieving knowledge.")
	}

	return ToolResult{Content: []Content{{Type: "text", Text: string(payload)}}}
}

// diagnose turns a search error into a message for the caller.
func (s *Server) diagnose(query string, err error) string {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return "Please provide a query to search the knowledge base."
	case errors.Is(err, search.ErrNoDocuments), errors.Is(err, search.ErrCorpusUnreadable):
		return fmt.Sprintf("Error: %v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The search was cancelled before it completed."
	default:
		s.logger.Error("search failed", "query", query, "err", err)
		return "An error occurred while retrieving knowledge."
	}
}

func toolError(msg string) ToolResult {
	return ToolResult{
		Content: []Content{{Type: "text", Text: msg}},
		IsError: true,
	}
}
