package mcp

import (
	"context"
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/murmur/internal/buffer"
	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/exclusion"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"buffer_stats": {
		def:     bufferStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBufferStats },
	},
	"buffer_add": {
		def:     bufferAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBufferAdd },
	},
	"buffer_next": {
		def:     bufferNextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBufferNext },
	},
	"buffer_clear": {
		def:     bufferClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBufferClear },
	},
	"exclusion_get": {
		def:     exclusionGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExclusionGet },
	},
	"exclusion_reset": {
		def:     exclusionResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExclusionReset },
	},
	"publish_history": {
		def:     publishHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePublishHistory },
	},
	"history_export": {
		def:     historyExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryExport },
	},
	"buffer_import": {
		def:     bufferImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBufferImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps carries the state the tools operate on.
type Deps struct {
	DB      *sql.DB
	Config  *config.Config
	Buffer  *buffer.Buffer
	Counter *exclusion.Counter
}

// NewServer creates a new MCP server with Murmur tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"murmur",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
