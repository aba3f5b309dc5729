package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/browsergate/gateway/internal/cache"
	"github.com/browsergate/gateway/internal/config"
	"github.com/browsergate/gateway/internal/executor"
	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/protocol"
	"github.com/browsergate/gateway/internal/ratelimit"
	"github.com/browsergate/gateway/internal/security"
	"github.com/browsergate/gateway/internal/session"
)

// connState is the per-connection bookkeeping the handler keeps: whether
// the connection has authenticated yet (the first frame gates every
// subsequent one) and the client identifier it binds commands to.
type connState struct {
	mu            sync.Mutex
	authenticated bool
	clientID      string
}

// Handler wires the dispatch server's callbacks to the auth, rate-limit,
// sanitize, validate, session, cache, and executor layers.
type Handler struct {
	cfg     config.Config
	log     zerolog.Logger
	auth    *security.Authenticator
	limiter *ratelimit.Limiter
	saniz   *security.Sanitizer
	cache   *cache.Cache
	sessMgr *session.Manager

	states sync.Map // uint64 (client conn id) -> *connState
}

// New builds a Handler bound to the given subsystems.
func New(cfg config.Config, log zerolog.Logger, auth *security.Authenticator, limiter *ratelimit.Limiter, saniz *security.Sanitizer, c *cache.Cache, sessMgr *session.Manager) *Handler {
	return &Handler{
		cfg:     cfg,
		log:     log.With().Str("component", "dispatch_handler").Logger(),
		auth:    auth,
		limiter: limiter,
		saniz:   saniz,
		cache:   c,
		sessMgr: sessMgr,
	}
}

// OnConnect registers a fresh connState for a newly accepted connection.
func (h *Handler) OnConnect(t ClientTransport) {
	h.states.Store(t.ID(), &connState{})
}

// OnClose forgets the connection's rate-limiter state and closes every
// session owned by its client identity after a short configured grace
// period, giving a brief reconnect window before in-flight work is torn
// down: if another authenticated connection with the same client identity
// is open when the grace period ends, nothing is torn down.
func (h *Handler) OnClose(t ClientTransport) {
	v, ok := h.states.LoadAndDelete(t.ID())
	if !ok {
		return
	}
	st := v.(*connState)
	st.mu.Lock()
	clientID := st.clientID
	authenticated := st.authenticated
	st.mu.Unlock()

	if !authenticated || clientID == "" {
		return
	}

	go func() {
		time.Sleep(h.cfg.DisconnectGrace())
		reconnected := false
		h.states.Range(func(_, v any) bool {
			other := v.(*connState)
			other.mu.Lock()
			same := other.authenticated && other.clientID == clientID
			other.mu.Unlock()
			reconnected = same
			return !same
		})
		if reconnected {
			return
		}
		h.sessMgr.CloseAllForClient(clientID)
		h.limiter.Forget(clientID)
	}()
}

// OnMessage is the dispatch server's onMessage callback: it runs the full
// auth/rate-limit/sanitize/validate/execute pipeline for one frame and
// writes exactly one reply. It returns whether the frame was well-formed
// JSON with a request id, for the server's malformed-frame-streak
// tracking — everything past that point always produces a reply rather
// than counting as malformed.
func (h *Handler) OnMessage(t ClientTransport, frame []byte) bool {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		h.log.Debug().Uint64("client_id", t.ID()).Err(err).Msg("malformed frame")
		h.reply(t, protocol.NewFailure(env.ID, 0, errBlock(gatewayerr.AsGatewayError(err))))
		return false
	}

	v, _ := h.states.LoadOrStore(t.ID(), &connState{})
	st := v.(*connState)

	st.mu.Lock()
	authenticated := st.authenticated
	st.mu.Unlock()

	if !authenticated {
		if !h.authenticate(t, st, env) {
			return true
		}
		authenticated = true
	}

	clientID := t.RemoteAddr()
	st.mu.Lock()
	if st.clientID != "" {
		clientID = st.clientID
	}
	st.mu.Unlock()

	if !h.limiter.Admit(clientID) {
		h.reply(t, protocol.NewFailure(env.ID, 0, errBlock(gatewayerr.NewRateLimited(clientID))))
		return true
	}

	start := time.Now()
	result, gerr := h.handleCommand(clientID, env)
	elapsed := time.Since(start)

	if gerr != nil {
		h.log.Debug().Uint64("client_id", t.ID()).Str("error_type", gerr.ErrorType()).Err(gerr).Msg("command failed")
		h.reply(t, protocol.NewFailure(env.ID, elapsed, errBlock(gerr)))
		return true
	}
	h.reply(t, protocol.NewSuccess(env.ID, elapsed, result))
	return true
}

// authenticate handles the first-frame api_key gate. On success it marks
// the connection authenticated and binds its client identity; on failure
// it closes the connection after a short delay.
func (h *Handler) authenticate(t ClientTransport, st *connState, env protocol.Envelope) bool {
	if !h.auth.Check(env.APIKey) {
		h.reply(t, protocol.NewFailure(env.ID, 0, errBlock(gatewayerr.NewAuthFailed())))
		go func() {
			time.Sleep(200 * time.Millisecond)
			t.Close()
		}()
		return false
	}

	clientID := env.APIKey
	if clientID == "" {
		clientID = t.RemoteAddr()
	}

	st.mu.Lock()
	st.authenticated = true
	st.clientID = clientID
	st.mu.Unlock()
	return true
}

func (h *Handler) handleCommand(clientID string, env protocol.Envelope) (any, gatewayerr.GatewayError) {
	cmd, err := protocol.Decode(env)
	if err != nil {
		return nil, gatewayerr.AsGatewayError(err)
	}

	if err := h.sanitizeCommand(&cmd); err != nil {
		return nil, gatewayerr.AsGatewayError(err)
	}

	ctx := context.Background()

	var sess *session.Session
	if cmd.SessionID == "" {
		sess, err = h.sessMgr.Create(ctx, clientID, session.CreateOptions{
			ViewportWidth:  h.cfg.ViewportWidth,
			ViewportHeight: h.cfg.ViewportHeight,
		})
	} else {
		sess, err = h.sessMgr.Resolve(cmd.SessionID, clientID)
	}
	if err != nil {
		return nil, gatewayerr.AsGatewayError(err)
	}

	sess.Touch()
	sess.IncrementCommandCount()

	timeout := h.commandTimeout(cmd.Timeout)

	var result any
	var execErr error
	err = sess.Run(ctx, func() error {
		result, execErr = h.execute(ctx, sess, cmd, timeout)
		return nil
	})
	if err != nil {
		return nil, gatewayerr.AsGatewayError(err)
	}
	if execErr != nil {
		return nil, gatewayerr.AsGatewayError(execErr)
	}

	return wrapWithSession(sess.ID, result), nil
}

// wrapWithSession attaches session_id to the success payload, since the
// wire result needs it even though cmd.SessionID may have been empty on a
// session-create request.
func wrapWithSession(sessionID string, payload any) map[string]any {
	b, _ := json.Marshal(payload)
	var m map[string]any
	json.Unmarshal(b, &m)
	if m == nil {
		m = map[string]any{}
	}
	m["session_id"] = sessionID
	return m
}

func (h *Handler) execute(ctx context.Context, sess *session.Session, cmd protocol.Command, timeout time.Duration) (any, error) {
	switch cmd.Kind {
	case protocol.KindNavigate:
		res, err := executor.Navigate(ctx, sess, *cmd.Navigate, timeout)
		if err == nil {
			h.invalidateIfChanged(sess.ID, res.Diff)
		}
		return res, err

	case protocol.KindClick:
		res, err := executor.Click(ctx, sess, *cmd.Click, timeout)
		if err == nil {
			h.invalidateIfChanged(sess.ID, res.Diff)
		}
		return res, err

	case protocol.KindFill:
		res, err := executor.Fill(ctx, sess, *cmd.Fill, timeout)
		if err == nil {
			h.invalidateIfChanged(sess.ID, res.Diff)
		}
		return res, err

	case protocol.KindExtract:
		return h.executeExtract(sess, cmd, timeout)

	case protocol.KindWait:
		return executor.Wait(ctx, sess, *cmd.Wait, timeout)

	default:
		return nil, gatewayerr.NewInvalidCommand(fmt.Sprintf("unhandled kind %q", cmd.Kind))
	}
}

func (h *Handler) executeExtract(sess *session.Session, cmd protocol.Command, timeout time.Duration) (any, error) {
	fp := protocol.Fingerprint(sess.ID, cmd)

	payload, fromCache, err := h.cache.GetOrCompute(sess.ID, fp, func() (any, error) {
		return executor.Extract(context.Background(), sess, *cmd.Extract, timeout)
	})
	if err != nil {
		return nil, err
	}

	res := payload.(protocol.ExtractResult)
	res.FromCache = fromCache
	return res, nil
}

func (h *Handler) invalidateIfChanged(sessionID string, diff protocol.StateDiff) {
	if diff.Changed() {
		h.cache.InvalidateSession(sessionID)
	}
}

func (h *Handler) sanitizeCommand(cmd *protocol.Command) error {
	switch cmd.Kind {
	case protocol.KindNavigate:
		normalized, err := h.saniz.NormalizeURL(cmd.Navigate.URL)
		if err != nil {
			return err
		}
		cmd.Navigate.URL = normalized
		if cmd.Navigate.Referer != "" {
			if err := h.saniz.CheckText(cmd.Navigate.Referer); err != nil {
				return err
			}
		}
	case protocol.KindClick:
		if err := h.saniz.CheckSelector(cmd.Click.Selector); err != nil {
			return err
		}
	case protocol.KindFill:
		if err := h.saniz.CheckSelector(cmd.Fill.Selector); err != nil {
			return err
		}
		if err := h.saniz.CheckText(cmd.Fill.Text); err != nil {
			return err
		}
	case protocol.KindExtract:
		if err := h.saniz.CheckSelector(cmd.Extract.Selector); err != nil {
			return err
		}
	case protocol.KindWait:
		if cmd.Wait.Selector != "" {
			if err := h.saniz.CheckSelector(cmd.Wait.Selector); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) commandTimeout(requestedMS int) time.Duration {
	timeout := h.cfg.DefaultCommandTimeout()
	if requestedMS > 0 {
		timeout = time.Duration(requestedMS) * time.Millisecond
	}
	if max := h.cfg.MaxCommandTimeout(); timeout > max {
		timeout = max
	}
	return timeout
}

func (h *Handler) reply(t ClientTransport, r protocol.Reply) {
	b, err := json.Marshal(r)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	if err := t.Send(b); err != nil {
		h.log.Debug().Uint64("client_id", t.ID()).Err(err).Msg("failed to send reply")
	}
}

func errBlock(ge gatewayerr.GatewayError) protocol.ErrorBlock {
	return protocol.ErrorBlock{
		Error:     ge.ClientMessage(),
		ErrorCode: string(ge.ErrorCode()),
		ErrorType: ge.ErrorType(),
		Details:   ge.Details(),
	}
}
