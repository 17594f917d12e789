package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

// callTimeout bounds one request/response round trip.
const callTimeout = 30 * time.Second

// Client implements model.ReadAPI over a Unix domain socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

var _ model.ReadAPI = (*Client)(nil)

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	_ = c.conn.SetDeadline(time.Now().Add(callTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsData}); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d does not match request %d", resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) TopDigests(limit int, metric string) ([]model.DigestRow, error) {
	var result []model.DigestRow
	err := c.call("TopDigests", topDigestsParams{Limit: limit, Metric: metric}, &result)
	return result, err
}

func (c *Client) DigestByID(id string) (model.DigestRow, bool, error) {
	var result digestByIDResult
	err := c.call("DigestByID", digestByIDParams{ID: id}, &result)
	return result.Row, result.Found, err
}

func (c *Client) Summary() (model.RunSummary, error) {
	var result model.RunSummary
	err := c.call("Summary", nil, &result)
	return result, err
}

func (c *Client) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	var result []map[string]interface{}
	err := c.call("ExecuteQuery", executeQueryParams{SQL: query}, &result)
	return result, err
}

// GetSchemaDescription returns "" when the call fails.
func (c *Client) GetSchemaDescription() string {
	var result string
	if err := c.call("GetSchemaDescription", nil, &result); err != nil {
		return ""
	}
	return result
}

func (c *Client) TableRowCounts() (map[string]int64, error) {
	var result map[string]int64
	err := c.call("TableRowCounts", nil, &result)
	return result, err
}
