package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(10, time.Minute)
	var calls int32

	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "payload", nil
	}

	v1, hit1, err := c.GetOrCompute("s1", "fp1", compute)
	require.NoError(t, err)
	assert.False(t, hit1)
	assert.Equal(t, "payload", v1)

	v2, hit2, err := c.GetOrCompute("s1", "fp1", compute)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, "payload", v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidateSessionEvictsOnlyThatSession(t *testing.T) {
	c := New(10, time.Minute)
	compute := func(v string) func() (any, error) {
		return func() (any, error) { return v, nil }
	}

	c.GetOrCompute("s1", "fp1", compute("a"))
	c.GetOrCompute("s2", "fp2", compute("b"))

	c.InvalidateSession("s1")

	_, hit, _ := c.GetOrCompute("s1", "fp1", compute("a2"))
	assert.False(t, hit)

	_, hit2, _ := c.GetOrCompute("s2", "fp2", compute("b2"))
	assert.True(t, hit2)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Put("s1", "fp1", "payload")

	_, ok := c.Get("fp1")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("fp1")
	assert.False(t, ok)
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := New(10, time.Minute)
	var calls int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, _, err := c.GetOrCompute("s1", "fp1", func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "computed", nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "computed", r)
	}
}
