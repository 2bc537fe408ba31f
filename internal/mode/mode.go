// Package mode selects how status sources are polled.
package mode

import "fmt"

// Mode determines whether adapters hit the network, synthesize data, or
// report the canonical offline record.
//
// Precedence is Offline > Mock > Live.
type Mode int

const (
	// Live performs real fetches against the upstream sources.
	Live Mode = iota

	// Mock synthesizes a deterministic record with randomized latency.
	// No network I/O happens in this mode.
	Mock

	// Offline forces every source to the canonical offline record.
	Offline
)

// Resolve picks the [Mode] for a configuration snapshot.
func Resolve(simulateOffline, mockMode bool) Mode {
	switch {
	case simulateOffline:
		return Offline
	case mockMode:
		return Mock
	default:
		return Live
	}
}

// String returns the lowercase name used in logs and JSON.
func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Mock:
		return "mock"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Parse returns the mode named by s.
func Parse(s string) (Mode, error) {
	switch s {
	case "live":
		return Live, nil
	case "mock":
		return Mock, nil
	case "offline":
		return Offline, nil
	default:
		return Live, fmt.Errorf("unknown mode %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
