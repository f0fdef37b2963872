package budget

import (
	"sync"
	"testing"
	"time"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestLimiter_UnderLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(10, clock.Now)

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(); err != nil {
			t.Errorf("Call %d: expected no error, got %v", i+1, err)
		}
		clock.Advance(1 * time.Second)
	}
}

func TestLimiter_AtLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(10, clock.Now)

	for i := 0; i < 10; i++ {
		if err := limiter.Allow(); err != nil {
			t.Errorf("Call %d: expected no error, got %v", i+1, err)
		}
	}

	if err := limiter.Allow(); err == nil {
		t.Error("Call 11: expected rate limit error, got nil")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(2, clock.Now)

	if err := limiter.Allow(); err != nil {
		t.Fatalf("Call 1: %v", err)
	}
	if err := limiter.Allow(); err != nil {
		t.Fatalf("Call 2: %v", err)
	}
	if err := limiter.Allow(); err == nil {
		t.Fatal("Call 3: expected rate limit error")
	}

	// After the window passes, capacity frees up.
	clock.Advance(61 * time.Second)
	if err := limiter.Allow(); err != nil {
		t.Errorf("Call after window: expected no error, got %v", err)
	}
}

func TestLimiter_Stats(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(5, clock.Now)

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(); err != nil {
			t.Fatalf("Call %d: %v", i+1, err)
		}
	}

	inWindow, remaining := limiter.Stats()
	if inWindow != 3 {
		t.Errorf("expected 3 calls in window, got %d", inWindow)
	}
	if remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", remaining)
	}
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(50, clock.Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Allow(); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed calls, got %d", allowed)
	}
}
