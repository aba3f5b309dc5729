// Package ratelimit implements per-client sliding-window admission
// control: at most N admissions per 60-second window, tracked as a log
// of recent admission timestamps per client, plus a reject-accumulation
// cool-off.
package ratelimit

import (
	"sync"
	"time"
)

const window = 60 * time.Second

// clientState is one client's sliding-window log and cool-off bookkeeping.
// Disjoint clients never contend on each other's state.
type clientState struct {
	mu            sync.Mutex
	admissions    []time.Time
	rejects       []time.Time
	cooloffUntil  time.Time
}

// Limiter enforces "at most N admissions per 60s" per client identifier.
type Limiter struct {
	quota           int
	rejectThreshold int
	rejectHorizon   time.Duration
	cooloff         time.Duration
	now             func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
}

// New builds a Limiter. quota is N admissions per 60s window.
// rejectThreshold rejects within rejectHorizon triggers a cooloff block.
func New(quota, rejectThreshold int, rejectHorizon, cooloff time.Duration) *Limiter {
	return &Limiter{
		quota:           quota,
		rejectThreshold: rejectThreshold,
		rejectHorizon:   rejectHorizon,
		cooloff:         cooloff,
		now:             time.Now,
		clients:         make(map[string]*clientState),
	}
}

func (l *Limiter) stateFor(clientID string) *clientState {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.clients[clientID]
	if !ok {
		cs = &clientState{}
		l.clients[clientID] = cs
	}
	return cs
}

// Admit reports whether clientID is admitted right now. On success it
// records the admission timestamp; on rejection it records a reject and,
// if rejects within the reject horizon reach the threshold, starts a
// cool-off during which every Admit call fails immediately regardless of
// the sliding window.
func (l *Limiter) Admit(clientID string) bool {
	cs := l.stateFor(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := l.now()

	if now.Before(cs.cooloffUntil) {
		cs.rejects = append(cs.rejects, now)
		return false
	}

	cutoff := now.Add(-window)
	cs.admissions = dropOlderThan(cs.admissions, cutoff)

	if len(cs.admissions) >= l.quota {
		cs.rejects = dropOlderThan(cs.rejects, now.Add(-l.rejectHorizon))
		cs.rejects = append(cs.rejects, now)
		if len(cs.rejects) >= l.rejectThreshold {
			cs.cooloffUntil = now.Add(l.cooloff)
		}
		return false
	}

	cs.admissions = append(cs.admissions, now)
	return true
}

// dropOlderThan removes timestamps at or before cutoff from the front of a
// sorted-by-arrival slice, bounding memory by the quota.
func dropOlderThan(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	out := make([]time.Time, len(ts)-i)
	copy(out, ts[i:])
	return out
}

// Forget discards a client's state, used once a client's connection has
// closed and its disconnect grace period has passed with no reconnect.
func (l *Limiter) Forget(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, clientID)
}
