// Package pool implements the browser context pool: a bounded set of
// pre-warmed, isolated browser contexts that sessions acquire and
// release, backed by a free-list with a hard ceiling, a warm-target
// maintainer, and per-context max-age recycling.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/browsergate/gateway/internal/engine"
	"github.com/browsergate/gateway/internal/gatewayerr"
)

// Factory creates a new browser context (launches or reuses a browser
// process and opens a fresh BiDi browsing context) and returns a handle.
type Factory func(ctx context.Context) (*Context, error)

// Context is one pooled, isolated browser context.
type Context struct {
	ID        string
	Client    *engine.Client
	Page      *engine.Page
	createdAt time.Time

	// OnDestroy, if set, runs after the Client is closed — a factory
	// hook for tearing down whatever the Client doesn't own itself
	// (e.g. killing the browser process backing this context).
	OnDestroy func()

	mu     sync.Mutex
	closed bool
}

// Healthy reports whether the underlying connection is still usable.
func (c *Context) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.Client == nil || !c.Client.Closed()
}

// Age is how long this context has been alive.
func (c *Context) Age() time.Duration {
	return time.Since(c.createdAt)
}

func (c *Context) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Client != nil {
		c.Client.Close()
	}
	if c.OnDestroy != nil {
		c.OnDestroy()
	}
}

// Config is the pool's tunable shape.
type Config struct {
	WarmTarget      int
	HardCeiling     int
	AcquireTimeout  time.Duration
	MaxAgePerContext time.Duration
	MaintainEvery   time.Duration
}

// Pool hands out isolated browser contexts up to a hard ceiling, discarding
// unhealthy or overage contexts on release and replenishing asynchronously
// toward a warm target.
type Pool struct {
	cfg     Config
	factory Factory
	log     zerolog.Logger

	free chan *Context

	mu      sync.Mutex
	live    int // contexts created and not yet destroyed
	closed  bool
	stop    chan struct{}
	stopped chan struct{}
}

// New constructs a Pool and starts its background maintainer.
func New(cfg Config, factory Factory, log zerolog.Logger) *Pool {
	if cfg.HardCeiling <= 0 {
		cfg.HardCeiling = 1
	}
	if cfg.WarmTarget > cfg.HardCeiling {
		cfg.WarmTarget = cfg.HardCeiling
	}
	if cfg.MaintainEvery <= 0 {
		cfg.MaintainEvery = 5 * time.Second
	}

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		log:     log.With().Str("component", "pool").Logger(),
		free:    make(chan *Context, cfg.HardCeiling),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go p.maintain()
	return p
}

// Acquire returns a ready context, creating one if under the hard ceiling
// and none is free, or blocking up to the acquire timeout if at ceiling.
// It fails fast with a resource-exhausted error rather than queueing
// indefinitely once that timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*Context, error) {
	select {
	case c := <-p.free:
		if c.Healthy() && c.Age() < p.cfg.MaxAgePerContext {
			return c, nil
		}
		c.destroy()
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return p.createOrWait(ctx)
	default:
		return p.createOrWait(ctx)
	}
}

func (p *Pool) createOrWait(ctx context.Context) (*Context, error) {
	p.mu.Lock()
	if p.live < p.cfg.HardCeiling {
		p.live++
		p.mu.Unlock()
		c, err := p.create(ctx)
		if err != nil {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			return nil, err
		}
		return c, nil
	}
	p.mu.Unlock()

	timeout := p.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-p.free:
		if c.Healthy() && c.Age() < p.cfg.MaxAgePerContext {
			return c, nil
		}
		c.destroy()
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return p.createOrWait(ctx)
	case <-timer.C:
		return nil, gatewayerr.NewResourceExhausted(fmt.Sprintf("browser context pool at hard ceiling (%d)", p.cfg.HardCeiling))
	case <-ctx.Done():
		return nil, gatewayerr.NewTimeout("pool acquire", ctx.Err())
	case <-p.stop:
		return nil, gatewayerr.NewInternal(fmt.Errorf("pool shutting down"))
	}
}

func (p *Pool) create(ctx context.Context) (*Context, error) {
	c, err := p.factory(ctx)
	if err != nil {
		return nil, gatewayerr.NewInternal(fmt.Errorf("create browser context: %w", err))
	}
	c.createdAt = time.Now()
	return c, nil
}

// Release returns c to the free list if healthy and within its age budget;
// otherwise discards it. A discard lowers the pool's live count so the
// maintainer can replenish.
func (p *Pool) Release(c *Context) {
	if c == nil {
		return
	}
	if !c.Healthy() || c.Age() >= p.cfg.MaxAgePerContext {
		c.destroy()
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return
	}

	select {
	case p.free <- c:
	default:
		// Free list at ceiling capacity; this context is surplus, drop it.
		c.destroy()
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
	}
}

// Discard destroys c without returning it to the free list, for callers
// that already know the context is unusable (e.g. a session close after a
// command left the page in an unknown state).
func (p *Pool) Discard(c *Context) {
	if c == nil {
		return
	}
	c.destroy()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
}

// maintain periodically tops the free list up toward the warm target.
func (p *Pool) maintain() {
	ticker := time.NewTicker(p.cfg.MaintainEvery)
	defer ticker.Stop()
	defer close(p.stopped)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.replenish()
		}
	}
}

func (p *Pool) replenish() {
	p.mu.Lock()
	warm := len(p.free)
	room := p.cfg.HardCeiling - p.live
	need := p.cfg.WarmTarget - warm
	if need > room {
		need = room
	}
	if need > 0 {
		p.live += need
	}
	p.mu.Unlock()

	for i := 0; i < need; i++ {
		c, err := p.factory(context.Background())
		if err != nil {
			p.log.Warn().Err(err).Msg("pool maintainer: failed to create warm context")
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			continue
		}
		c.createdAt = time.Now()
		select {
		case p.free <- c:
		default:
			c.destroy()
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
		}
	}
}

// Stats reports a snapshot of the pool's current occupancy.
type Stats struct {
	Live int
	Free int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Live: p.live, Free: len(p.free)}
}

// Close stops the maintainer and destroys every free context. Contexts
// currently on loan are not forcibly destroyed; callers are expected to
// have stopped issuing commands before shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.stopped

	for {
		select {
		case c := <-p.free:
			c.destroy()
		default:
			return
		}
	}
}
