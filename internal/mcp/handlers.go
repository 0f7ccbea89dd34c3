package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/exclusion"
	"github.com/hpungsan/murmur/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db      *sql.DB
	cfg     *config.Config
	buf     *buffer.Buffer
	counter *exclusion.Counter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{db: deps.DB, cfg: deps.Config, buf: deps.Buffer, counter: deps.Counter}
}

// Request types for each tool

// BufferAddRequest represents the arguments for buffer_add.
type BufferAddRequest struct {
	Comments []string `json:"comments"`
}

// HistoryRequest represents the arguments for publish_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for history_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for buffer_import.
type ImportRequest struct {
	Path string `json:"path"`
}

// Handler implementations

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.db, h.buf, h.counter, time.Now())
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBufferStats handles the buffer_stats tool call.
func (h *Handlers) HandleBufferStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.buf.Stats(ctx))
}

// HandleBufferAdd handles the buffer_add tool call.
func (h *Handlers) HandleBufferAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BufferAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.BufferAdd(ctx, h.buf, ops.BufferAddInput{Comments: input.Comments})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBufferNext handles the buffer_next tool call.
func (h *Handlers) HandleBufferNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.BufferNext(ctx, h.buf)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBufferClear handles the buffer_clear tool call.
func (h *Handlers) HandleBufferClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.BufferClear(ctx, h.buf)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExclusionGet handles the exclusion_get tool call.
func (h *Handlers) HandleExclusionGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ExclusionShow(ctx, h.counter)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExclusionReset handles the exclusion_reset tool call.
func (h *Handlers) HandleExclusionReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ExclusionReset(ctx, h.counter)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePublishHistory handles the publish_history tool call.
func (h *Handlers) HandlePublishHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(ctx, h.db, ops.HistoryInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistoryExport handles the history_export tool call.
func (h *Handlers) HandleHistoryExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportHistory(ctx, h.db, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBufferImport handles the buffer_import tool call.
func (h *Handlers) HandleBufferImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportComments(ctx, h.buf, h.cfg, ops.ImportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL errors.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MurmurError
	if stderrors.As(err, &mErr) {
		message := mErr.Message
		if err != error(mErr) {
			// Keep wrapper context such as "import line 3: ..."
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": message,
			"status":  mErr.Status,
		}
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
