// Package ops holds the operations shared by the CLI, the MCP server and
// the web dashboard. Each operation takes an Input struct and returns an
// Output struct ready for JSON encoding.
package ops

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	MaxBufferAddItems   = 50
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}
