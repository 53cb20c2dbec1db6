// Package timer tracks elapsed and remaining time for the active round of a
// match, including pause accumulation and a debounced expiry callback.
package timer

import (
	"sync"
	"time"
)

// ExpireFunc is invoked when the scheduled duration of a round elapses while
// the timer is running. It receives the round number the timer was started
// for; the caller must re-validate that round under its own lock, since a
// manual transition may have already closed it.
type ExpireFunc func(round int)

// RoundTimer times one round at a time. Starting a new round supersedes the
// previous one; a superseded or stopped timer's expiry never fires.
type RoundTimer struct {
	mu sync.Mutex

	clock    Clock
	onExpire ExpireFunc

	round       int
	scheduled   time.Duration
	startedAt   time.Time
	pausedAccum time.Duration
	pausedAt    time.Time

	running bool
	paused  bool
	gen     uint64
	pending StopTimer
}

// New creates a RoundTimer using the given clock. A nil clock falls back to
// real time.
func New(clock Clock, onExpire ExpireFunc) *RoundTimer {
	if clock == nil {
		clock = NewRealClock()
	}
	return &RoundTimer{clock: clock, onExpire: onExpire}
}

// Start begins timing the given round for the scheduled duration. Any
// previous round timing is discarded.
func (t *RoundTimer) Start(round int, scheduled time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelPendingLocked()
	t.gen++
	t.round = round
	t.scheduled = scheduled
	t.startedAt = t.clock.Now()
	t.pausedAccum = 0
	t.running = true
	t.paused = false
	t.scheduleLocked(scheduled)
}

// Pause freezes the remaining time. No-op unless running and not paused.
func (t *RoundTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.paused {
		return
	}
	t.paused = true
	t.pausedAt = t.clock.Now()
	t.cancelPendingLocked()
	t.gen++
}

// Resume restarts the elapsed reference without changing remaining time.
// No-op unless paused.
func (t *RoundTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || !t.paused {
		return
	}
	t.pausedAccum += t.clock.Now().Sub(t.pausedAt)
	t.paused = false
	t.gen++
	t.scheduleLocked(t.remainingLocked())
}

// Stop discards the current round timing. The expiry callback will not fire.
func (t *RoundTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelPendingLocked()
	t.gen++
	t.running = false
	t.paused = false
}

// Remaining returns the time left in the active round, floored at zero.
func (t *RoundTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// Elapsed returns how long the active round has effectively run, excluding
// paused time.
func (t *RoundTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// Round returns the round number the timer was last started for.
func (t *RoundTimer) Round() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.round
}

func (t *RoundTimer) elapsedLocked() time.Duration {
	if !t.running {
		return 0
	}
	ref := t.clock.Now()
	if t.paused {
		ref = t.pausedAt
	}
	elapsed := ref.Sub(t.startedAt) - t.pausedAccum
	if elapsed < 0 {
		return 0
	}
	if elapsed > t.scheduled {
		return t.scheduled
	}
	return elapsed
}

func (t *RoundTimer) remainingLocked() time.Duration {
	if !t.running {
		return 0
	}
	return t.scheduled - t.elapsedLocked()
}

func (t *RoundTimer) scheduleLocked(in time.Duration) {
	gen := t.gen
	round := t.round
	t.pending = t.clock.AfterFunc(in, func() {
		t.fire(gen, round)
	})
}

func (t *RoundTimer) cancelPendingLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// fire delivers the expiry exactly once per scheduled generation. A timer
// that outlived a Stop, Pause, or a newer Start is stale and does nothing.
func (t *RoundTimer) fire(gen uint64, round int) {
	t.mu.Lock()
	if gen != t.gen || !t.running || t.paused {
		t.mu.Unlock()
		return
	}
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb(round)
	}
}
