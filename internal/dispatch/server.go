// Package dispatch implements the dispatch server: the WebSocket
// connection endpoint, its per-connection receive loop, the
// auth/rate-limit/sanitize/validate pipeline, and routing into the
// session manager and command executors. A connection's identity is an
// authenticated client that may own many concurrent browser sessions,
// not a single browser session itself.
package dispatch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// maxMessageSize caps a single frame; extract results can be sizable.
const maxMessageSize = 10 * 1024 * 1024

// clientReadDeadline bounds how long a connection may sit idle between
// frames before it is considered dead.
const clientReadDeadline = 300 * time.Second

// maxConsecutiveMalformed closes a connection that sends this many
// malformed frames in a row without a valid one in between.
const maxConsecutiveMalformed = 5

// ClientTransport is what a connected client looks like to the handler
// layer, independent of the underlying wire transport.
type ClientTransport interface {
	ID() uint64
	Send(frame []byte) error
	Close() error
	RemoteAddr() string
}

// Server accepts WebSocket connections and dispatches frames to callbacks
// via a functional-options configuration.
type Server struct {
	host string
	port int
	log  zerolog.Logger

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	clients sync.Map // uint64 -> *conn
	nextID  atomic.Uint64

	onConnect func(ClientTransport)
	// onMessage handles one inbound frame and reports whether it was
	// well-formed enough to decode, so the server can track the
	// consecutive-malformed-frame streak.
	onMessage func(ClientTransport, []byte) bool
	onClose   func(ClientTransport)

	draining atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

func WithHostPort(host string, port int) Option {
	return func(s *Server) { s.host, s.port = host, port }
}

func WithOnConnect(fn func(ClientTransport)) Option {
	return func(s *Server) { s.onConnect = fn }
}

func WithOnMessage(fn func(ClientTransport, []byte) bool) Option {
	return func(s *Server) { s.onMessage = fn }
}

func WithOnClose(fn func(ClientTransport)) Option {
	return func(s *Server) { s.onClose = fn }
}

// NewServer builds a Server. It does not start listening until Start is called.
func NewServer(log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		port: 9222,
		log:  log.With().Str("component", "dispatch_server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Port returns the bound port, resolved after Start when port 0 requests
// an OS-assigned one.
func (s *Server) Port() int { return s.port }

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http server exited")
		}
	}()
	s.log.Info().Int("port", s.port).Msg("dispatch server listening")
	return nil
}

// Stop stops accepting new connections, closes every live connection, and
// shuts the HTTP server down within ctx's deadline. It does not wait for
// in-flight commands, and neither does the session manager's Shutdown:
// stopping a session's worker makes any command still queued or running
// on it return an error to its caller instead of a result.
func (s *Server) Stop(ctx context.Context) error {
	s.draining.Store(true)
	if s.httpServer == nil {
		return nil
	}

	s.clients.Range(func(_, v any) bool {
		v.(*conn).Close()
		return true
	})

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &conn{
		id:         s.nextID.Add(1),
		ws:         ws,
		remoteAddr: r.RemoteAddr,
	}
	s.clients.Store(c.id, c)
	s.log.Debug().Uint64("client_id", c.id).Str("remote_addr", c.remoteAddr).Msg("client connected")

	if s.onConnect != nil {
		s.onConnect(c)
	}
	s.serve(c)
}

func (s *Server) serve(c *conn) {
	defer func() {
		s.clients.Delete(c.id)
		c.Close()
		s.log.Debug().Uint64("client_id", c.id).Msg("client disconnected")
		if s.onClose != nil {
			s.onClose(c)
		}
	}()

	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(clientReadDeadline))
		return nil
	})

	consecutiveMalformed := 0
	for {
		c.ws.SetReadDeadline(time.Now().Add(clientReadDeadline))
		msgType, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Uint64("client_id", c.id).Err(err).Msg("read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if s.onMessage == nil {
			continue
		}

		if s.onMessage(c, msg) {
			consecutiveMalformed = 0
			continue
		}
		consecutiveMalformed++
		if consecutiveMalformed >= maxConsecutiveMalformed {
			s.log.Warn().Uint64("client_id", c.id).Msg("too many consecutive malformed frames, closing")
			return
		}
	}
}

type conn struct {
	id         uint64
	ws         *websocket.Conn
	remoteAddr string

	mu     sync.Mutex
	closed bool
}

func (c *conn) ID() uint64 { return c.id }

func (c *conn) RemoteAddr() string { return c.remoteAddr }

func (c *conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
