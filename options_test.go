package mcdash

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/mcdash/internal/merge"
)

const testUpstream = "http://backend.example:8000"

func TestNew_Valid(t *testing.T) {
	d, err := New(WithUpstream(testUpstream))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Upstream() != testUpstream {
		t.Errorf("Upstream() = %q, want %q", d.Upstream(), testUpstream)
	}
}

func TestNew_NoUpstream(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Error("New() expected error for missing upstream, got nil")
	}
}

func TestWithUpstream_Invalid(t *testing.T) {
	tests := []string{
		"",
		"backend:8000",
		"ftp://backend",
		"http://",
		"://bad",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := New(WithUpstream(raw)); err == nil {
				t.Errorf("New(WithUpstream(%q)) expected error, got nil", raw)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	d, err := New(WithUpstream(testUpstream))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.Port() != 8080 {
		t.Errorf("Port() = %v, want %v", d.Port(), 8080)
	}
	if d.ConfigInterval() != 5*time.Second {
		t.Errorf("ConfigInterval() = %v, want %v", d.ConfigInterval(), 5*time.Second)
	}

	sources := d.Sources()
	if len(sources) != 1 {
		t.Fatalf("len(Sources()) = %d, want 1", len(sources))
	}
	if sources[0].Name() != "primary" || sources[0].Path() != "/status" || sources[0].Shape() != ShapeStatus {
		t.Errorf("default primary = %+v", sources[0])
	}

	if !d.toggle.PreferExternal || d.toggle.Fields != merge.DefaultFields {
		t.Errorf("toggle = %+v, want prefer external latency and identity", d.toggle)
	}
	if !slices.Equal(d.Precedence(), []string{"external", "mcsrvstat", "mcsrvstatus"}) {
		t.Errorf("Precedence() = %v", d.Precedence())
	}
}

func TestWithPrimaryAndSecondary(t *testing.T) {
	primary, _ := NewSource("backend", "/v2/status")
	ext, _ := NewSource("mcsrvstat", "/status-mcsrvstat", WithShape(ShapeMCSrvStat))
	other, _ := NewSource("external", "/status-external")

	d, err := New(
		WithUpstream(testUpstream),
		WithPrimary(primary),
		WithSecondary(ext),
		WithSecondary(other),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var names []string
	for _, s := range d.Sources() {
		names = append(names, s.Name())
	}
	if !slices.Equal(names, []string{"backend", "mcsrvstat", "external"}) {
		t.Errorf("Sources() names = %v", names)
	}
}

func TestNew_DuplicateSourceNames(t *testing.T) {
	a, _ := NewSource("mcsrvstat", "/a")
	b, _ := NewSource("mcsrvstat", "/b")

	_, err := New(
		WithUpstream(testUpstream),
		WithSecondary(a),
		WithSecondary(b),
	)
	if err == nil || !strings.Contains(err.Error(), "duplicate source name") {
		t.Errorf("New() error = %v, want duplicate source name", err)
	}
}

func TestNew_SecondaryNamedLikePrimary(t *testing.T) {
	s, _ := NewSource("primary", "/status-other")

	if _, err := New(WithUpstream(testUpstream), WithSecondary(s)); err == nil {
		t.Error("New() expected error for secondary sharing the primary's name, got nil")
	}
}

func TestNew_ZeroValueSource(t *testing.T) {
	if _, err := New(WithUpstream(testUpstream), WithPrimary(Source{})); err == nil {
		t.Error("New() expected error for zero primary, got nil")
	}
	if _, err := New(WithUpstream(testUpstream), WithSecondary(Source{})); err == nil {
		t.Error("New() expected error for zero secondary, got nil")
	}
}

func TestSources_Immutability(t *testing.T) {
	ext, _ := NewSource("mcsrvstat", "/status-mcsrvstat")
	d, err := New(WithUpstream(testUpstream), WithSecondary(ext))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sources := d.Sources()
	sources[0] = Source{}

	if d.Sources()[0].Name() != "primary" {
		t.Error("modifying Sources() result affected the dashboard")
	}
}

func TestWithHeaders(t *testing.T) {
	d, err := New(
		WithUpstream(testUpstream),
		WithHeaders("Authorization", "Bearer token"),
		WithHeaders("X-Request-Source", "mcdash"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	headers := d.Headers()
	if headers["Authorization"] != "Bearer token" || headers["X-Request-Source"] != "mcdash" {
		t.Errorf("Headers() = %v", headers)
	}

	headers["Authorization"] = "changed"
	if d.Headers()["Authorization"] != "Bearer token" {
		t.Error("modifying Headers() result affected the dashboard")
	}
}

func TestWithHeaders_OddArgs(t *testing.T) {
	if _, err := New(WithUpstream(testUpstream), WithHeaders("Authorization")); err == nil {
		t.Error("New() expected error for odd header arguments, got nil")
	}
}

func TestWithDurations_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero request timeout", WithRequestTimeout(0)},
		{"negative request timeout", WithRequestTimeout(-time.Second)},
		{"zero config interval", WithConfigInterval(0)},
		{"negative config interval", WithConfigInterval(-time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(WithUpstream(testUpstream), tt.opt); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestWithConfigInterval(t *testing.T) {
	d, err := New(WithUpstream(testUpstream), WithConfigInterval(30*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.ConfigInterval() != 30*time.Second {
		t.Errorf("ConfigInterval() = %v, want 30s", d.ConfigInterval())
	}
}

func TestWithPort(t *testing.T) {
	d, err := New(WithUpstream(testUpstream), WithPort(9090))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Port() != 9090 {
		t.Errorf("Port() = %v, want %v", d.Port(), 9090)
	}
}

func TestWithPort_Invalid(t *testing.T) {
	for _, port := range []int{0, -1, 65536, 100000} {
		if _, err := New(WithUpstream(testUpstream), WithPort(port)); err == nil {
			t.Errorf("WithPort(%d) expected error, got nil", port)
		}
	}
}

func TestWithPort_ValidEdgeCases(t *testing.T) {
	for _, port := range []int{1, 65535} {
		d, err := New(WithUpstream(testUpstream), WithPort(port))
		if err != nil {
			t.Errorf("WithPort(%d) error = %v", port, err)
			continue
		}
		if d.Port() != port {
			t.Errorf("Port() = %v, want %v", d.Port(), port)
		}
	}
}

func TestWithMergeOptions(t *testing.T) {
	d, err := New(
		WithUpstream(testUpstream),
		WithPreferExternal(false),
		WithMergeFields("latency", "players"),
		WithPrecedence("mcsrvstat", "external"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.toggle.PreferExternal {
		t.Error("PreferExternal = true, want false")
	}
	if d.toggle.Fields != merge.FieldLatency|merge.FieldPlayers {
		t.Errorf("Fields = %v, want latency|players", d.toggle.Fields)
	}
	if !slices.Equal(d.Precedence(), []string{"mcsrvstat", "external"}) {
		t.Errorf("Precedence() = %v", d.Precedence())
	}
}

func TestWithMergeFields_Unknown(t *testing.T) {
	if _, err := New(WithUpstream(testUpstream), WithMergeFields("latency", "colour")); err == nil {
		t.Error("New() expected error for unknown merge field, got nil")
	}
}

func TestWithPrecedence_CopiesInput(t *testing.T) {
	order := []string{"a", "b"}
	d, err := New(WithUpstream(testUpstream), WithPrecedence(order...))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	order[0] = "changed"
	if d.Precedence()[0] != "a" {
		t.Error("modifying the input slice affected the dashboard")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d, err := New(WithUpstream(testUpstream), WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.logger != logger {
		t.Error("WithLogger() did not set the logger")
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(WithUpstream(testUpstream), WithLogger(nil))
	if err == nil {
		t.Error("New() expected error for nil logger, got nil")
	}
}

func TestWithLogger_DefaultsToSlogDefault(t *testing.T) {
	d, err := New(WithUpstream(testUpstream))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}
