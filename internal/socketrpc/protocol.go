// Package socketrpc serves a digest store to local clients (the TUI) over a
// Unix domain socket using newline-delimited JSON-RPC 2.0.
package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

// JSON-RPC 2.0 Method Reference
//
// The server exposes model.ReadAPI; each method maps 1:1 to it.
//
//   Method                 Params                        Result
//   ────────────────────   ───────────────────────────   ──────────────────────────────
//   TopDigests             {Limit: int, Metric: string}  []DigestRow
//   DigestByID             {ID: string}                  {Row: DigestRow, Found: bool}
//   Summary                (none)                        RunSummary
//   ExecuteQuery           {SQL: string}                 []map[string]any
//   GetSchemaDescription   (none)                        string
//   TableRowCounts         (none)                        map[string]int64
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (query failure)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

type topDigestsParams struct {
	Limit  int
	Metric string
}

type digestByIDParams struct {
	ID string
}

type digestByIDResult struct {
	Row   model.DigestRow
	Found bool
}

type executeQueryParams struct {
	SQL string
}

// DefaultSocketPath returns the default Unix socket path. It prefers
// $XDG_RUNTIME_DIR/slowdigest/slowdigest.sock, falling back to
// ~/.local/state/slowdigest/slowdigest.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "slowdigest", "slowdigest.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "slowdigest.sock")
	}
	return filepath.Join(home, ".local", "state", "slowdigest", "slowdigest.sock")
}
