package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock steps time manually for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(ceiling int, window time.Duration) (*SlidingWindow, *fakeClock) {
	l := NewSlidingWindow(ceiling, window)
	clock := newFakeClock()
	l.now = clock.Now
	return l, clock
}

// TestCeilingEnforced admits exactly the ceiling and rejects the next
// request with a retry hint.
func TestCeilingEnforced(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)

	for i := 0; i < 100; i++ {
		if d := l.Allow("acct"); !d.Allowed {
			t.Fatalf("request %d rejected below the ceiling", i+1)
		}
	}
	d := l.Allow("acct")
	if d.Allowed {
		t.Fatal("request above the ceiling admitted")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("retry hint out of range: %v", d.RetryAfter)
	}
}

// TestWindowSlides verifies old timestamps age out and free capacity.
func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	l.Allow("acct")
	clock.Advance(30 * time.Second)
	l.Allow("acct")
	l.Allow("acct")

	if d := l.Allow("acct"); d.Allowed {
		t.Fatal("fourth request inside the window admitted")
	}

	// The first timestamp ages out 30s later.
	clock.Advance(31 * time.Second)
	if d := l.Allow("acct"); !d.Allowed {
		t.Fatal("request rejected after the oldest timestamp aged out")
	}
}

// TestRetryAfterMatchesOldest checks the hint equals the time until the
// oldest in-window timestamp expires.
func TestRetryAfterMatchesOldest(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("acct")
	clock.Advance(10 * time.Second)
	l.Allow("acct")
	clock.Advance(5 * time.Second)

	d := l.Allow("acct")
	if d.Allowed {
		t.Fatal("expected rejection")
	}
	if want := 45 * time.Second; d.RetryAfter != want {
		t.Fatalf("expected retry after %v, got %v", want, d.RetryAfter)
	}
}

// TestAccountsIsolated verifies one account's usage never affects
// another.
func TestAccountsIsolated(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	l.Allow("a")
	l.Allow("a")
	if d := l.Allow("a"); d.Allowed {
		t.Fatal("account a over ceiling admitted")
	}
	if d := l.Allow("b"); !d.Allowed {
		t.Fatal("account b rejected by account a's usage")
	}
}

func TestRemainingAndReset(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	l.Allow("acct")
	l.Allow("acct")
	if got := l.Remaining("acct"); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}

	l.Reset("acct")
	if got := l.Remaining("acct"); got != 5 {
		t.Fatalf("expected full quota after reset, got %d", got)
	}
}

// TestConcurrentAllow hammers one account from many goroutines; the
// admitted count must equal the ceiling exactly.
func TestConcurrentAllow(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if d := l.Allow("acct"); d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Fatalf("expected exactly 100 admitted, got %d", allowed)
	}
}

// TestThroughputGuardSheds verifies the bid-path bucket rejects once the
// burst is spent and never blocks.
func TestThroughputGuardSheds(t *testing.T) {
	g := NewThroughputGuard(1, 5)

	for i := 0; i < 5; i++ {
		if !g.Allow() {
			t.Fatalf("burst request %d rejected", i+1)
		}
	}
	if g.Allow() {
		t.Fatal("request beyond burst admitted")
	}
}
