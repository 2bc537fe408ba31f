package mcdash

import (
	"testing"
	"time"

	"github.com/jpalmerr/mcdash/internal/source"
)

func TestNewSource_Valid(t *testing.T) {
	s, err := NewSource("mcsrvstat", "/status-mcsrvstat")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if s.Name() != "mcsrvstat" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Path() != "/status-mcsrvstat" {
		t.Errorf("Path() = %q", s.Path())
	}
	if s.Shape() != ShapeStatus {
		t.Errorf("Shape() = %q, want %q", s.Shape(), ShapeStatus)
	}
	if s.Timeout() != 0 {
		t.Errorf("Timeout() = %v, want 0", s.Timeout())
	}
}

func TestNewSource_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		srcName string
		path    string
	}{
		{"empty name", "", "/status"},
		{"blank name", "   ", "/status"},
		{"empty path", "ext", ""},
		{"relative path", "ext", "status"},
		{"absolute url", "ext", "http://example.com/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSource(tt.srcName, tt.path); err == nil {
				t.Errorf("NewSource(%q, %q) expected error, got nil", tt.srcName, tt.path)
			}
		})
	}
}

func TestWithShape(t *testing.T) {
	s, err := NewSource("ext", "/status-mcsrvstat", WithShape(ShapeMCSrvStat))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if s.Shape() != ShapeMCSrvStat {
		t.Errorf("Shape() = %q, want %q", s.Shape(), ShapeMCSrvStat)
	}
}

func TestWithShape_Unknown(t *testing.T) {
	if _, err := NewSource("ext", "/x", WithShape("bedrock")); err == nil {
		t.Error("NewSource() expected error for unknown shape, got nil")
	}
}

func TestWithTimeout(t *testing.T) {
	s, err := NewSource("ext", "/x", WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if s.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", s.Timeout())
	}
}

func TestWithTimeout_Invalid(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second, 50 * time.Millisecond, 3 * time.Minute} {
		if _, err := NewSource("ext", "/x", WithTimeout(d)); err == nil {
			t.Errorf("WithTimeout(%v) expected error, got nil", d)
		}
	}
}

func TestWithTimeout_ValidEdgeCases(t *testing.T) {
	for _, d := range []time.Duration{100 * time.Millisecond, 2 * time.Minute} {
		if _, err := NewSource("ext", "/x", WithTimeout(d)); err != nil {
			t.Errorf("WithTimeout(%v) error = %v", d, err)
		}
	}
}

func TestSource_Spec(t *testing.T) {
	s, _ := NewSource("ext", "/status-mcsrvstat", WithShape(ShapeMCSrvStat), WithTimeout(time.Second))

	spec := s.spec(source.Secondary)
	want := source.Spec{
		Name:    "ext",
		Path:    "/status-mcsrvstat",
		Shape:   source.ShapeMCSrvStat,
		Role:    source.Secondary,
		Timeout: time.Second,
	}
	if spec != want {
		t.Errorf("spec() = %+v, want %+v", spec, want)
	}
}
