package ratelimit

import (
	"sync"
	"time"
)

// Decision is the result of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// SlidingWindow is a per-account sliding-window admission controller.
// Each check prunes timestamps older than the window, so memory is
// bounded by active accounts times the ceiling. Checks for the same
// account are linearizable; accounts do not affect each other beyond
// sharing the lock.
type SlidingWindow struct {
	ceiling int
	window  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	accounts map[string][]time.Time
}

// NewSlidingWindow builds a limiter allowing ceiling requests per
// account within the trailing window.
func NewSlidingWindow(ceiling int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		ceiling:  ceiling,
		window:   window,
		now:      time.Now,
		accounts: make(map[string][]time.Time),
	}
}

// Allow admits or rejects one request for the account. On rejection the
// decision carries the duration after which the oldest timestamp ages
// out of the window.
func (l *SlidingWindow) Allow(accountID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.prune(accountID, now)

	if len(stamps) >= l.ceiling {
		oldest := stamps[0]
		retry := oldest.Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	l.accounts[accountID] = append(stamps, now)
	return Decision{Allowed: true, Remaining: l.ceiling - len(stamps) - 1}
}

// Remaining reports how many requests the account has left in the
// current window without consuming one.
func (l *SlidingWindow) Remaining(accountID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.prune(accountID, l.now())
	if r := l.ceiling - len(stamps); r > 0 {
		return r
	}
	return 0
}

// Reset clears the account's window. Administrative override.
func (l *SlidingWindow) Reset(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, accountID)
}

// prune drops timestamps outside the window. Caller holds the lock.
// Timestamps are appended in order, so the slice stays sorted and the
// cut point is the first in-window entry.
func (l *SlidingWindow) prune(accountID string, now time.Time) []time.Time {
	stamps := l.accounts[accountID]
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	if i == len(stamps) {
		delete(l.accounts, accountID)
		return nil
	}
	kept := append([]time.Time(nil), stamps[i:]...)
	l.accounts[accountID] = kept
	return kept
}
