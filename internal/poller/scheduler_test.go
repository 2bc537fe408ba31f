package poller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// TestScheduler_FiresImmediately verifies the action runs on scheduling,
// not only after the first interval elapses.
func TestScheduler_FiresImmediately(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	var count atomic.Int32
	if err := s.Schedule("status", time.Hour, func(ctx context.Context) { count.Add(1) }); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return count.Load() == 1 }) {
		t.Fatalf("action fired %d times, want 1 immediately", count.Load())
	}
}

func TestScheduler_Repeats(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	var count atomic.Int32
	if err := s.Schedule("status", 20*time.Millisecond, func(ctx context.Context) { count.Add(1) }); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return count.Load() >= 4 }) {
		t.Errorf("action fired %d times, want at least 4", count.Load())
	}
}

// TestScheduler_ReplaceOnce mirrors schedule(key, 5000, f) followed by
// schedule(key, 2000, g) with shorter intervals.
func TestScheduler_ReplaceOnce(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	var fCount, gCount atomic.Int32
	if err := s.Schedule("status", time.Hour, func(ctx context.Context) { fCount.Add(1) }); err != nil {
		t.Fatalf("Schedule(f) error = %v", err)
	}
	if !waitFor(t, time.Second, func() bool { return fCount.Load() == 1 }) {
		t.Fatalf("f fired %d times before replacement, want 1", fCount.Load())
	}

	if err := s.Schedule("status", 20*time.Millisecond, func(ctx context.Context) { gCount.Add(1) }); err != nil {
		t.Fatalf("Schedule(g) error = %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return gCount.Load() >= 1 }) {
		t.Fatal("g did not fire immediately after replacement")
	}
	if !waitFor(t, 2*time.Second, func() bool { return gCount.Load() >= 4 }) {
		t.Errorf("g fired %d times, want repeated firing", gCount.Load())
	}
	if got := fCount.Load(); got != 1 {
		t.Errorf("f fired %d times, want exactly 1", got)
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "status" {
		t.Errorf("Keys() = %v, want [status]", keys)
	}
	if d, ok := s.Interval("status"); !ok || d != 20*time.Millisecond {
		t.Errorf("Interval(status) = %v, %v", d, ok)
	}
}

// TestScheduler_ReplaceWaitsForInFlightAction verifies an in-flight action of
// the replaced timer is cancelled and finishes before the new one fires.
func TestScheduler_ReplaceWaitsForInFlightAction(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	started := make(chan struct{})
	err := s.Schedule("status", time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		record("old done")
	})
	if err != nil {
		t.Fatalf("Schedule(old) error = %v", err)
	}
	<-started

	err = s.Schedule("status", time.Hour, func(ctx context.Context) { record("new fired") })
	if err != nil {
		t.Fatalf("Schedule(new) error = %v", err)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "old done" || events[1] != "new fired" {
		t.Errorf("events = %v, want [old done, new fired]", events)
	}
}

// TestScheduler_NoOverlapPerKey verifies a slow action never runs concurrently
// with itself; ticks during the action are dropped.
func TestScheduler_NoOverlapPerKey(t *testing.T) {
	s := NewScheduler(testLogger())

	var inFlight, maxInFlight, calls atomic.Int32
	err := s.Schedule("status", 5*time.Millisecond, func(ctx context.Context) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
	})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent actions = %d, want 1", got)
	}
	// 200ms / 30ms per action bounds the number of calls well below one per tick
	if got := calls.Load(); got > 10 {
		t.Errorf("calls = %d, ticks during a running action should be dropped", got)
	}
}

func TestScheduler_KeysRunIndependently(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	block := make(chan struct{})
	defer close(block)

	var fast atomic.Int32
	_ = s.Schedule("slow", 10*time.Millisecond, func(ctx context.Context) {
		select {
		case <-block:
		case <-ctx.Done():
		}
	})
	_ = s.Schedule("fast", 10*time.Millisecond, func(ctx context.Context) { fast.Add(1) })

	if !waitFor(t, 2*time.Second, func() bool { return fast.Load() >= 3 }) {
		t.Errorf("fast key fired %d times while slow key was blocked", fast.Load())
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	var count atomic.Int32
	_ = s.Schedule("status", 10*time.Millisecond, func(ctx context.Context) { count.Add(1) })
	waitFor(t, time.Second, func() bool { return count.Load() >= 2 })

	s.Cancel("status")
	after := count.Load()
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != after {
		t.Errorf("action fired %d times after Cancel", got-after)
	}

	// idempotent, unknown keys are a no-op
	s.Cancel("status")
	s.Cancel("never-scheduled")

	if keys := s.Keys(); len(keys) != 0 {
		t.Errorf("Keys() = %v after Cancel, want empty", keys)
	}
}

// TestScheduler_StopBeforeSchedule verifies Stop on an empty scheduler is a
// safe no-op and that later scheduling is rejected.
func TestScheduler_StopBeforeSchedule(t *testing.T) {
	s := NewScheduler(testLogger())
	s.Stop()
	s.Stop()

	err := s.Schedule("status", time.Second, func(ctx context.Context) {})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Schedule() after Stop error = %v, want ErrStopped", err)
	}
}

func TestScheduler_StopCancelsActionContext(t *testing.T) {
	s := NewScheduler(testLogger())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	_ = s.Schedule("status", time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	select {
	case <-cancelled:
	default:
		t.Error("action context was not cancelled by Stop()")
	}
}

func TestScheduler_InvalidArguments(t *testing.T) {
	s := NewScheduler(testLogger())
	defer s.Stop()

	if err := s.Schedule("status", 0, func(ctx context.Context) {}); err == nil {
		t.Error("Schedule() with zero interval error = nil")
	}
	if err := s.Schedule("status", -time.Second, func(ctx context.Context) {}); err == nil {
		t.Error("Schedule() with negative interval error = nil")
	}
	if err := s.Schedule("status", time.Second, nil); err == nil {
		t.Error("Schedule() with nil action error = nil")
	}
}

// TestScheduler_PanicRecovery verifies a panicking action is logged with a
// correlation ID and the timer keeps ticking.
func TestScheduler_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	var bufMu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &bufMu}, nil))

	s := NewScheduler(logger)
	defer s.Stop()

	var count atomic.Int32
	_ = s.Schedule("status", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
		panic("adapter exploded")
	})

	if !waitFor(t, 2*time.Second, func() bool { return count.Load() >= 3 }) {
		t.Fatalf("action fired %d times after panicking, want timer to keep running", count.Load())
	}

	bufMu.Lock()
	out := buf.String()
	bufMu.Unlock()
	if !strings.Contains(out, "correlation_id=") || !strings.Contains(out, "adapter exploded") {
		t.Errorf("panic log missing correlation id or message: %s", out)
	}
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
