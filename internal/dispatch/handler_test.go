package dispatch

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browsergate/gateway/internal/cache"
	"github.com/browsergate/gateway/internal/config"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/ratelimit"
	"github.com/browsergate/gateway/internal/security"
	"github.com/browsergate/gateway/internal/session"
)

type fakeTransport struct {
	id      uint64
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
}

func (f *fakeTransport) ID() uint64        { return f.id }
func (f *fakeTransport) RemoteAddr() string { return "127.0.0.1:1234" }
func (f *fakeTransport) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, b)
	return nil
}
func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) lastReply() protocol.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	var r protocol.Reply
	json.Unmarshal(f.sent[len(f.sent)-1], &r)
	return r
}

func newTestHandler(t *testing.T, apiKey string, quota int) (*Handler, *session.Manager) {
	cfg := config.Defaults()
	cfg.APIKey = apiKey
	cfg.RateLimitPerMinute = quota

	auth := security.NewAuthenticator(apiKey)
	limiter := ratelimit.New(quota, cfg.RateLimitRejectThreshold, cfg.RateLimitRejectHorizon(), cfg.RateLimitCooloff())
	saniz := security.NewSanitizer(cfg.AllowNonHTTPURLs)
	c := cache.New(cfg.CacheCapacity, cfg.CacheTTL())

	sessMgr := session.New(nil, cfg.SessionIdleTimeout(), time.Hour, zerolog.Nop())
	h := New(cfg, zerolog.Nop(), auth, limiter, saniz, c, sessMgr)
	return h, sessMgr
}

func TestOnMessageRejectsMalformedFrame(t *testing.T) {
	h, mgr := newTestHandler(t, "", 100)
	defer mgr.Shutdown()

	tr := &fakeTransport{id: 1}
	h.OnConnect(tr)

	ok := h.OnMessage(tr, []byte("not json"))
	assert.False(t, ok)
}

func TestOnMessageAuthFailure(t *testing.T) {
	h, mgr := newTestHandler(t, "correct-secret", 100)
	defer mgr.Shutdown()

	tr := &fakeTransport{id: 2}
	h.OnConnect(tr)

	frame, _ := json.Marshal(map[string]any{"id": "1", "method": "navigate", "url": "https://example.com", "api_key": "wrong"})
	ok := h.OnMessage(tr, frame)
	require.True(t, ok)

	reply := tr.lastReply()
	require.NotNil(t, reply.Error)
	assert.Equal(t, "AUTH_FAILED", reply.Error.ErrorCode)
}

func TestOnMessageUnsafeSelectorRejected(t *testing.T) {
	h, mgr := newTestHandler(t, "", 100)
	defer mgr.Shutdown()

	tr := &fakeTransport{id: 3}
	h.OnConnect(tr)

	frame, _ := json.Marshal(map[string]any{
		"id": "1", "method": "click", "selector": "a onclick=alert(1)",
	})
	ok := h.OnMessage(tr, frame)
	require.True(t, ok)

	reply := tr.lastReply()
	require.NotNil(t, reply.Error)
	assert.Equal(t, "UNSAFE_INPUT", reply.Error.ErrorCode)
}

func TestOnMessageRateLimited(t *testing.T) {
	h, mgr := newTestHandler(t, "", 1)
	defer mgr.Shutdown()

	tr := &fakeTransport{id: 4}
	h.OnConnect(tr)

	// Use an unknown method so the first (admitted) request fails fast at
	// decode, never reaching session creation — this test only exercises
	// the rate limiter gate, which runs before decoding.
	frame1, _ := json.Marshal(map[string]any{"id": "1", "method": "unknown-kind"})
	h.OnMessage(tr, frame1)

	frame2, _ := json.Marshal(map[string]any{"id": "2", "method": "unknown-kind"})
	h.OnMessage(tr, frame2)

	reply := tr.lastReply()
	require.NotNil(t, reply.Error)
	assert.Equal(t, "RATE_LIMITED", reply.Error.ErrorCode)
}

func TestOnMessageInvalidCommandUnknownMethod(t *testing.T) {
	h, mgr := newTestHandler(t, "", 100)
	defer mgr.Shutdown()

	tr := &fakeTransport{id: 5}
	h.OnConnect(tr)

	frame, _ := json.Marshal(map[string]any{"id": "1", "method": "unknown-kind"})
	ok := h.OnMessage(tr, frame)
	require.True(t, ok)

	reply := tr.lastReply()
	require.NotNil(t, reply.Error)
	assert.Equal(t, "INVALID_COMMAND", reply.Error.ErrorCode)
}
