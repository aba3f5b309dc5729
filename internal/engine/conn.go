// Package engine is the adapter between the session/executor layer and the
// underlying browser-control library. It speaks WebDriver BiDi over a
// WebSocket to a real browser instance, with one Connection backing one
// pooled Context rather than one ad hoc client session.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxMessageSize caps a single WebSocket frame; extract dumps can be
// sizable.
const maxMessageSize = 10 * 1024 * 1024

// readDeadline bounds each read; must exceed pingInterval so pongs arrive
// in time.
const readDeadline = 120 * time.Second

// pingInterval is how often keepalive pings are sent.
const pingInterval = 30 * time.Second

// Conn is a WebSocket connection to a browser's BiDi endpoint.
type Conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Connect establishes a BiDi WebSocket connection.
func Connect(url string) (*Conn, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   maxMessageSize,
		WriteBufferSize:  maxMessageSize,
		HandshakeTimeout: 30 * time.Second,
	}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to browser endpoint %s: %w", url, err)
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	c := &Conn{ws: ws, done: make(chan struct{})}
	go c.pingLoop()
	return c, nil
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send writes one text frame.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Receive blocks for one text frame.
func (c *Conn) Receive() ([]byte, error) {
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	msgType, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("expected text frame, got type %d", msgType)
	}
	return msg, nil
}

// Closed reports whether Close has already run.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
