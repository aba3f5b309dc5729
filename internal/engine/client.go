package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Message is one BiDi response or event frame.
type Message struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client correlates request/response pairs over a Conn. One Client is
// bound to one Conn for the lifetime of a pooled Context.
type Client struct {
	conn *Conn

	nextID  atomic.Int64
	pending sync.Map // int id -> chan Message

	stopOnce sync.Once
	stop     chan struct{}
}

// NewClient wraps conn and starts its receive loop.
func NewClient(conn *Conn) *Client {
	c := &Client{conn: conn, stop: make(chan struct{})}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		raw, err := c.conn.Receive()
		if err != nil {
			c.failAllPending(err)
			return
		}

		var msg Message
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		if msg.ID == 0 {
			continue // event frame; no per-command subscriber in this layer
		}

		if ch, ok := c.pending.LoadAndDelete(msg.ID); ok {
			ch.(chan Message) <- msg
		}
	}
}

func (c *Client) failAllPending(cause error) {
	c.pending.Range(func(key, value any) bool {
		ch := value.(chan Message)
		ch <- Message{Error: &struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}{Error: "connection closed", Message: cause.Error()}}
		c.pending.Delete(key)
		return true
	})
}

// SendCommand sends a BiDi command and blocks for its response or timeout.
func (c *Client) SendCommand(method string, params map[string]any, timeout time.Duration) (json.RawMessage, error) {
	id := int(c.nextID.Add(1))
	ch := make(chan Message, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	payload, err := json.Marshal(map[string]any{"id": id, "method": method, "params": params})
	if err != nil {
		return nil, fmt.Errorf("marshal command %s: %w", method, err)
	}
	if err := c.conn.Send(payload); err != nil {
		return nil, fmt.Errorf("send command %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %s", msg.Error.Error, msg.Error.Message)
		}
		return msg.Result, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for response to %s", method)
	case <-c.stop:
		return nil, fmt.Errorf("client closed")
	}
}

// Close tears down the underlying connection and unblocks pending calls.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return c.conn.Close()
}

// Closed reports whether the underlying connection has been torn down.
func (c *Client) Closed() bool {
	return c.conn.Closed()
}
