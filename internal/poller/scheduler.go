package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStopped is returned by [Scheduler.Schedule] after [Scheduler.Stop].
var ErrStopped = errors.New("scheduler stopped")

// Action is the work a timer performs on every tick.
//
// The context is cancelled when the timer is replaced, cancelled, or the
// scheduler stops. Long-running actions (network fetches) must honour it.
type Action func(ctx context.Context)

// timer is one repeating, cancellable schedule.
type timer struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// Scheduler owns one repeating timer per key.
//
// Each key runs on its own goroutine and executes its action serially:
// ticks that arrive while the action is still running are dropped, so a
// key never has two actions in flight. Different keys run independently.
//
// All methods are safe for concurrent use. Schedule and Cancel wait for the
// replaced timer's goroutine to exit, so they must not be called from
// within the action of the same key.
type Scheduler struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[string]*timer
	stopped bool
}

// NewScheduler creates an empty [Scheduler].
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*timer),
	}
}

// Schedule installs a timer for key that fires action immediately and then
// every interval.
//
// If a timer already exists for key it is replaced exactly once: its
// context is cancelled and Schedule waits for its goroutine to exit before
// the new timer starts. The old action therefore never fires after the new
// one has been installed.
//
// Returns an error if interval is not positive or the scheduler is stopped.
func (s *Scheduler) Schedule(key string, interval time.Duration, action Action) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %q: interval must be positive, got %s", key, interval)
	}
	if action == nil {
		return fmt.Errorf("schedule %q: action is nil", key)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &timer{
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	old := s.timers[key]
	s.timers[key] = t
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
		s.logger.Debug("timer replaced", "key", key, "old_interval", old.interval.String(), "interval", interval.String())
	}

	go s.run(ctx, key, t, action)
	return nil
}

// Cancel stops the timer for key and waits for its goroutine to exit.
// Cancelling an unknown key is a no-op.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	t := s.timers[key]
	delete(s.timers, key)
	s.mu.Unlock()

	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Stop cancels every timer and waits for all of them to exit.
//
// Stop is idempotent and safe to call on a scheduler that never scheduled
// anything. After Stop, Schedule returns [ErrStopped].
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancel()
	timers := make([]*timer, 0, len(s.timers))
	for key, t := range s.timers {
		timers = append(timers, t)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	for _, t := range timers {
		<-t.done
	}
}

// Keys returns the currently scheduled keys in sorted order.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.timers))
	for k := range s.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interval returns the interval of the timer for key, if scheduled.
func (s *Scheduler) Interval(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return 0, false
	}
	return t.interval, true
}

// run is the per-key loop: fire now, then on every tick until cancelled.
func (s *Scheduler) run(ctx context.Context, key string, t *timer, action Action) {
	defer close(t.done)

	// replaced or stopped before the goroutine got going
	if ctx.Err() != nil {
		return
	}
	s.fire(ctx, key, action)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx, key, action)
		}
	}
}

// fire runs the action with panic recovery.
// A panicking action is logged with a correlation ID and the timer keeps running.
func (s *Scheduler) fire(ctx context.Context, key string, action Action) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled action panic",
				"correlation_id", uuid.NewString(),
				"key", key,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	action(ctx)
}
