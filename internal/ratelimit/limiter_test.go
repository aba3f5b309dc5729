package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmitWithinQuota(t *testing.T) {
	l := New(3, 10, time.Minute, time.Minute)
	cur := time.Unix(1000, 0)
	l.now = func() time.Time { return cur }

	assert.True(t, l.Admit("c1"))
	assert.True(t, l.Admit("c1"))
	assert.True(t, l.Admit("c1"))
	assert.False(t, l.Admit("c1"))
}

func TestAdmitDisjointClientsDontContend(t *testing.T) {
	l := New(1, 10, time.Minute, time.Minute)
	cur := time.Unix(1000, 0)
	l.now = func() time.Time { return cur }

	assert.True(t, l.Admit("a"))
	assert.True(t, l.Admit("b"))
	assert.False(t, l.Admit("a"))
	assert.False(t, l.Admit("b"))
}

func TestAdmitWindowSlides(t *testing.T) {
	l := New(2, 10, time.Minute, time.Minute)
	cur := time.Unix(1000, 0)
	l.now = func() time.Time { return cur }

	assert.True(t, l.Admit("c1"))
	assert.True(t, l.Admit("c1"))
	assert.False(t, l.Admit("c1"))

	cur = cur.Add(61 * time.Second)
	assert.True(t, l.Admit("c1"))
}

func TestCooloffBlocksAfterRepeatedRejects(t *testing.T) {
	l := New(1, 2, time.Minute, 90*time.Second)
	cur := time.Unix(1000, 0)
	l.now = func() time.Time { return cur }

	assert.True(t, l.Admit("c1"))
	assert.False(t, l.Admit("c1")) // reject 1
	assert.False(t, l.Admit("c1")) // reject 2 -> trips cooloff

	// Even after the window would normally clear, cooloff still blocks.
	cur = cur.Add(61 * time.Second)
	assert.False(t, l.Admit("c1"))

	cur = cur.Add(30 * time.Second)
	assert.True(t, l.Admit("c1"))
}

func TestAdmitConcurrentSameClient(t *testing.T) {
	l := New(100, 1000, time.Minute, time.Minute)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("c1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, admitted)
}

func TestForgetClearsState(t *testing.T) {
	l := New(1, 10, time.Minute, time.Minute)
	assert.True(t, l.Admit("c1"))
	l.Forget("c1")
	assert.True(t, l.Admit("c1"))
}
