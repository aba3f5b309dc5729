package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeContext(id string) *Context {
	return &Context{ID: id, createdAt: time.Now()}
}

func newTestFactory() (Factory, *int64) {
	var counter int64
	return func(ctx context.Context) (*Context, error) {
		n := atomic.AddInt64(&counter, 1)
		return fakeContext(string(rune('a' + n))), nil
	}, &counter
}

func TestPoolAcquireCreatesUpToCeiling(t *testing.T) {
	factory, counter := newTestFactory()
	p := New(Config{WarmTarget: 0, HardCeiling: 2, AcquireTimeout: 50 * time.Millisecond, MaxAgePerContext: time.Hour, MaintainEvery: time.Hour}, factory, zerolog.Nop())
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
	assert.Equal(t, int64(2), atomic.LoadInt64(counter))
}

func TestPoolAcquireFailsFastAtCeiling(t *testing.T) {
	factory, _ := newTestFactory()
	p := New(Config{WarmTarget: 0, HardCeiling: 1, AcquireTimeout: 20 * time.Millisecond, MaxAgePerContext: time.Hour, MaintainEvery: time.Hour}, factory, zerolog.Nop())
	defer p.Close()

	ctx := context.Background()
	_, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	require.Error(t, err)
}

func TestPoolReleaseReturnsToFreeList(t *testing.T) {
	factory, _ := newTestFactory()
	p := New(Config{WarmTarget: 0, HardCeiling: 1, AcquireTimeout: 50 * time.Millisecond, MaxAgePerContext: time.Hour, MaintainEvery: time.Hour}, factory, zerolog.Nop())
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(c)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 1, stats.Free)
}

func TestPoolDiscardFreesCeilingSlot(t *testing.T) {
	factory, _ := newTestFactory()
	p := New(Config{WarmTarget: 0, HardCeiling: 1, AcquireTimeout: 50 * time.Millisecond, MaxAgePerContext: time.Hour, MaintainEvery: time.Hour}, factory, zerolog.Nop())
	defer p.Close()

	ctx := context.Background()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Discard(c)
	assert.Equal(t, 0, p.Stats().Live)

	_, err = p.Acquire(ctx)
	require.NoError(t, err)
}
