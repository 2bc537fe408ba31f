// Package status defines the canonical status record every source adapter
// normalizes into, and the tagged result type adapters return.
//
// Absence is explicit: optional groups are nil pointers, never zero values,
// so consumers do not have to re-derive whether a source reported a field.
package status

// Record is the canonical, post-normalization status of one source for one
// poll cycle.
//
// A Record is treated as immutable once returned by an adapter. Code that
// needs a modified copy must call [Record.Clone] first.
type Record struct {
	// Online reports whether the source considers the server reachable.
	Online bool `json:"online"`

	// LatencyMs is the round-trip latency in milliseconds, if known.
	LatencyMs *int `json:"latency_ms"`

	// Players is the player count and optional sample, if reported.
	Players *Players `json:"players"`

	// Version is the server version, if reported.
	Version *Version `json:"version"`

	// Motd is the message of the day in plain and HTML form, if reported.
	Motd *Motd `json:"motd"`

	// Software is the server implementation (e.g. "Paper"), if reported.
	Software *string `json:"software"`

	// Extra holds source-specific fields that have no canonical slot,
	// such as ip, hostname, plugins or debug flags.
	Extra map[string]any `json:"extra,omitempty"`
}

// Players is the player section of a [Record].
type Players struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	Sample []Player `json:"sample"`
}

// Player identifies a single connected player.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Version describes the server version.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Motd is the message of the day.
type Motd struct {
	Plain string `json:"plain"`
	HTML  string `json:"html"`
}

// Offline returns the canonical offline record: not online, every optional
// field nil.
func Offline() Record {
	return Record{Online: false}
}

// IsOffline reports whether r is the canonical offline record.
func (r Record) IsOffline() bool {
	return !r.Online &&
		r.LatencyMs == nil &&
		r.Players == nil &&
		r.Version == nil &&
		r.Motd == nil &&
		r.Software == nil &&
		len(r.Extra) == 0
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	cp := Record{Online: r.Online}

	if r.LatencyMs != nil {
		cp.LatencyMs = Int(*r.LatencyMs)
	}
	if r.Players != nil {
		p := *r.Players
		if r.Players.Sample != nil {
			p.Sample = append([]Player(nil), r.Players.Sample...)
		}
		cp.Players = &p
	}
	if r.Version != nil {
		v := *r.Version
		cp.Version = &v
	}
	if r.Motd != nil {
		m := *r.Motd
		cp.Motd = &m
	}
	if r.Software != nil {
		cp.Software = String(*r.Software)
	}
	if r.Extra != nil {
		cp.Extra = cloneMap(r.Extra)
	}

	return cp
}

// cloneValue copies the containers extras hold: decoded JSON objects and
// arrays, and string lists. Scalars are returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
