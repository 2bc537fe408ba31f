package mcdash

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newUpstream serves config at /config and each route body at its path.
// Unknown paths answer 500.
func newUpstream(t *testing.T, config string, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if r.URL.Path == "/config" {
			body, ok = config, true
		}
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collect runs d until timeout and fails if nothing was published.
func collect(t *testing.T, d *Dashboard, timeout time.Duration, views *[]View, mu *sync.Mutex) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*views) == 0 {
		t.Fatal("no views published")
	}
}

// settled returns the last view whose primary source had settled.
func settled(views []View) (View, bool) {
	for i := len(views) - 1; i >= 0; i-- {
		if !views[i].Loading {
			return views[i], true
		}
	}
	return View{}, false
}

func TestWithViewCallback_InvokedOnPublish(t *testing.T) {
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 50}`, nil)

	var callCount atomic.Int32
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(View) { callCount.Add(1) }),
		WithConfigInterval(time.Hour),
		WithPort(19200),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_ = d.Start(ctx)

	// config publish plus at least one primary publish
	if callCount.Load() < 2 {
		t.Errorf("callback invoked %d times, want at least 2", callCount.Load())
	}
}

func TestWithViewCallback_MockMode(t *testing.T) {
	// no status routes: any live fetch would fail
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 50, "page_title": "Mock"}`, nil)

	var mu sync.Mutex
	var views []View
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(v View) {
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}),
		WithConfigInterval(time.Hour),
		WithPort(19201),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	collect(t, d, 250*time.Millisecond, &views, &mu)

	mu.Lock()
	defer mu.Unlock()
	if !views[0].Loading || views[0].Record != nil {
		t.Errorf("first view = %+v, want loading without record", views[0])
	}

	v, ok := settled(views)
	if !ok {
		t.Fatal("primary never settled")
	}
	if v.Mode != ModeMock || v.Config.PageTitle != "Mock" {
		t.Errorf("mode = %v, title = %q", v.Mode, v.Config.PageTitle)
	}
	if v.Error != nil {
		t.Errorf("Error = %v, want nil in mock mode", v.Error)
	}
	if v.Record == nil || !v.Record.Online || v.Record.LatencyMs == nil {
		t.Fatalf("Record = %+v, want mock record", v.Record)
	}
	if lat := *v.Record.LatencyMs; lat < 5 || lat > 500 {
		t.Errorf("LatencyMs = %d, want within [5, 500]", lat)
	}
}

func TestWithViewCallback_MergesSecondary(t *testing.T) {
	up := newUpstream(t, `{"polling_interval": 50}`, map[string]string{
		"/status":           `{"online": true, "latency": 40, "players": {"online": 2, "max": 20}, "ip": "10.0.0.1"}`,
		"/status-mcsrvstat": `{"online": true, "latency": 12, "ip": "203.0.113.7", "hostname": "play.example.net", "players": {"online": 9, "max": 50}}`,
	})

	ext, err := NewSource("mcsrvstat", "/status-mcsrvstat", WithShape(ShapeMCSrvStat))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	var mu sync.Mutex
	var views []View
	d, err := New(
		WithUpstream(up.URL),
		WithSecondary(ext),
		WithViewCallback(func(v View) {
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}),
		WithConfigInterval(time.Hour),
		WithPort(19202),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	collect(t, d, 300*time.Millisecond, &views, &mu)

	mu.Lock()
	defer mu.Unlock()
	v, ok := settled(views)
	if !ok || v.Record == nil {
		t.Fatal("no merged record published")
	}
	if v.Mode != ModeLive {
		t.Errorf("Mode = %v, want live", v.Mode)
	}
	// both sources settle every 50ms, so the last view carries the merge
	if *v.Record.LatencyMs != 12 {
		t.Errorf("LatencyMs = %d, want 12 from mcsrvstat", *v.Record.LatencyMs)
	}
	if v.Record.Extra["ip"] != "203.0.113.7" || v.Record.Extra["hostname"] != "play.example.net" {
		t.Errorf("identity = %v, want mcsrvstat identity", v.Record.Extra)
	}
	if v.Record.Players.Online != 2 {
		t.Errorf("Players.Online = %d, want 2 from primary", v.Record.Players.Online)
	}
	if v.Overrides["latency_ms"] != "mcsrvstat" {
		t.Errorf("Overrides = %v", v.Overrides)
	}
}

func TestWithViewCallback_PrimaryError(t *testing.T) {
	// /status is not routed and answers 500
	up := newUpstream(t, `{"polling_interval": 50}`, nil)

	var mu sync.Mutex
	var views []View
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(v View) {
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}),
		WithConfigInterval(time.Hour),
		WithPort(19203),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	collect(t, d, 200*time.Millisecond, &views, &mu)

	mu.Lock()
	defer mu.Unlock()
	v, ok := settled(views)
	if !ok {
		t.Fatal("primary never settled")
	}
	if v.Error == nil || v.Error.Kind != ErrPrimaryStatusFetch || v.Error.Source != "primary" {
		t.Errorf("Error = %+v, want primary_status_fetch from primary", v.Error)
	}
	if v.Record != nil {
		t.Errorf("Record = %+v, want nil on primary failure", v.Record)
	}
}

func TestWithViewCallback_PanicRecovery(t *testing.T) {
	up := newUpstream(t, `{"simulate_offline": true, "polling_interval": 50}`, nil)

	var mu sync.Mutex
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, nil))

	var afterPanic atomic.Int32
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(View) { panic("boom") }),
		WithViewCallback(func(View) { afterPanic.Add(1) }),
		WithConfigInterval(time.Hour),
		WithPort(19204),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if afterPanic.Load() == 0 {
		t.Error("callback after the panicking one was never invoked")
	}

	mu.Lock()
	logs := buf.String()
	mu.Unlock()
	if !strings.Contains(logs, "view callback panicked") {
		t.Error("panic was not logged")
	}
	if !strings.Contains(logs, "correlation_id=") {
		t.Error("panic log lacks a correlation id")
	}
}

// lockedWriter serializes writes from the controller and test goroutines.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestWithViewCallback_NilIsSafe(t *testing.T) {
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 50}`, nil)

	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(nil),
		WithConfigInterval(time.Hour),
		WithPort(19205),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(d.viewCallbacks) != 0 {
		t.Errorf("viewCallbacks = %d, want 0", len(d.viewCallbacks))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

// TestWithViewCallback_NoSharedReferences verifies each callback receives
// its own copy of the record.
func TestWithViewCallback_NoSharedReferences(t *testing.T) {
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 50}`, nil)

	var mu sync.Mutex
	var second []View
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(v View) {
			if v.Record != nil {
				v.Record.Online = false
				v.Record.Players.Online = -1
				v.Record.Extra["hostname"] = "mutated"
				v.Record.Extra["plugins"].([]string)[0] = "mutated"
			}
		}),
		WithViewCallback(func(v View) {
			mu.Lock()
			second = append(second, v)
			mu.Unlock()
		}),
		WithConfigInterval(time.Hour),
		WithPort(19206),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	collect(t, d, 200*time.Millisecond, &second, &mu)

	mu.Lock()
	defer mu.Unlock()
	v, ok := settled(second)
	if !ok || v.Record == nil {
		t.Fatal("no record published")
	}
	if !v.Record.Online || v.Record.Players.Online != 3 || v.Record.Extra["hostname"] == "mutated" {
		t.Errorf("Record = %+v, mutation leaked between callbacks", v.Record)
	}
	if plugins := v.Record.Extra["plugins"].([]string); plugins[0] != "EssentialsX" {
		t.Errorf("plugins = %v, nested mutation leaked between callbacks", plugins)
	}
}

func TestWithViewCallback_ExecutionOrder(t *testing.T) {
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 50}`, nil)

	var mu sync.Mutex
	var order []int
	record := func(n int) func(View) {
		return func(View) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}
	}

	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(record(1)),
		WithViewCallback(record(2)),
		WithViewCallback(record(3)),
		WithConfigInterval(time.Hour),
		WithPort(19207),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = d.Start(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 3 {
		t.Fatalf("order = %v, want at least one full round", order)
	}
	for i, n := range order {
		if want := i%3 + 1; n != want {
			t.Fatalf("order = %v, want 1,2,3 repeating", order)
		}
	}
}

func TestWithViewCallback_SequenceIncreases(t *testing.T) {
	up := newUpstream(t, `{"use_mock_data": true, "polling_interval": 30}`, nil)

	var mu sync.Mutex
	var views []View
	d, err := New(
		WithUpstream(up.URL),
		WithViewCallback(func(v View) {
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}),
		WithConfigInterval(time.Hour),
		WithPort(19208),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	collect(t, d, 200*time.Millisecond, &views, &mu)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range views {
		if v.Sequence != uint64(i+1) {
			t.Fatalf("views[%d].Sequence = %d, want %d", i, v.Sequence, i+1)
		}
		if v.PublishedAt.IsZero() {
			t.Fatalf("views[%d].PublishedAt not set", i)
		}
	}
}
