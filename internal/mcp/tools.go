package mcp

import "github.com/mark3labs/mcp-go/mcp"

var statusToolDef = mcp.NewTool("status",
	mcp.WithDescription("Summarize the worker state: buffer contents, today's exclusion count and publish totals."),
)

var bufferStatsToolDef = mcp.NewTool("buffer_stats",
	mcp.WithDescription("Show the queued comments, the previously returned comment and whether a refill is due."),
)

var bufferAddToolDef = mcp.NewTool("buffer_add",
	mcp.WithDescription("Queue hand-written comments. Entries outside the length bounds are rejected; the oldest entries are dropped beyond capacity."),
	mcp.WithArray("comments",
		mcp.Required(),
		mcp.Description("Comments to queue (at most 50)"),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var bufferNextToolDef = mcp.NewTool("buffer_next",
	mcp.WithDescription("Take the next comment out of the buffer, skipping one that is too similar to the previous comment."),
)

var bufferClearToolDef = mcp.NewTool("buffer_clear",
	mcp.WithDescription("Remove every queued comment and forget the previous comment."),
)

var exclusionGetToolDef = mcp.NewTool("exclusion_get",
	mcp.WithDescription("Show today's exclusion state and the count handed to the comment collector."),
)

var exclusionResetToolDef = mcp.NewTool("exclusion_reset",
	mcp.WithDescription("Reset today's exclusion count to its base value."),
)

var publishHistoryToolDef = mcp.NewTool("publish_history",
	mcp.WithDescription("List published comments, newest first."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip (default 0)")),
)

var historyExportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export the publish log to a JSONL file."),
	mcp.WithString("path", mcp.Description("Output .jsonl path (default ~/.murmur/exports/history-<timestamp>.jsonl)")),
)

var bufferImportToolDef = mcp.NewTool("buffer_import",
	mcp.WithDescription("Queue comments from a JSONL file. Each line is {\"text\": ...} or a JSON string."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Input .jsonl path")),
)
