package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/pool"
)

func newTestManager(idleTimeout, reapEvery time.Duration) *Manager {
	factory := func(ctx context.Context) (*pool.Context, error) {
		return &pool.Context{ID: "ctx"}, nil
	}
	p := pool.New(pool.Config{WarmTarget: 0, HardCeiling: 4, AcquireTimeout: time.Second, MaxAgePerContext: time.Hour, MaintainEvery: time.Hour}, factory, zerolog.Nop())
	return New(p, idleTimeout, reapEvery, zerolog.Nop())
}

func TestCreateAndResolve(t *testing.T) {
	m := newTestManager(time.Hour, time.Hour)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "client-a", CreateOptions{})
	require.NoError(t, err)

	got, err := m.Resolve(s.ID, "client-a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestResolveWrongOwnerFails(t *testing.T) {
	m := newTestManager(time.Hour, time.Hour)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "client-a", CreateOptions{})
	require.NoError(t, err)

	_, err = m.Resolve(s.ID, "client-b")
	require.Error(t, err)
	_, ok := gatewayerr.AsGatewayError(err).(*gatewayerr.SessionNotOwned)
	assert.True(t, ok)
}

func TestResolveMissingFails(t *testing.T) {
	m := newTestManager(time.Hour, time.Hour)
	defer m.Shutdown()

	_, err := m.Resolve("nonexistent", "client-a")
	require.Error(t, err)
	_, ok := gatewayerr.AsGatewayError(err).(*gatewayerr.SessionNotFound)
	assert.True(t, ok)
}

func TestCloseRemovesSession(t *testing.T) {
	m := newTestManager(time.Hour, time.Hour)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "client-a", CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Close(s.ID))
	_, err = m.Resolve(s.ID, "client-a")
	require.Error(t, err)
}

func TestReapClosesIdleSessions(t *testing.T) {
	m := newTestManager(20*time.Millisecond, 10*time.Millisecond)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "client-a", CreateOptions{})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = m.Resolve(s.ID, "client-a")
	require.Error(t, err)
}

func TestSessionRunSerializesCommands(t *testing.T) {
	m := newTestManager(time.Hour, time.Hour)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "client-a", CreateOptions{})
	require.NoError(t, err)

	var counter int64
	var observed []int64

	n := 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			errs <- s.Run(context.Background(), func() error {
				v := atomic.AddInt64(&counter, 1)
				observed = append(observed, v)
				return nil
			})
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int64(n), counter)
	assert.Len(t, observed, n)
}
