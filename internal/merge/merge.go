// Package merge reconciles the primary source's record with secondary
// sources into the single view consumers see.
package merge

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jpalmerr/mcdash/internal/status"
)

// FieldSet selects which record fields a secondary source may override.
type FieldSet uint16

const (
	FieldLatency FieldSet = 1 << iota
	// FieldIdentity covers the ip, hostname and port extras.
	FieldIdentity
	FieldOnline
	FieldPlayers
	FieldVersion
	FieldMotd
	FieldSoftware
	// FieldExtra covers every extra key, identity included.
	FieldExtra

	// FieldAll swaps in every non-null secondary field.
	FieldAll = FieldLatency | FieldIdentity | FieldOnline | FieldPlayers |
		FieldVersion | FieldMotd | FieldSoftware | FieldExtra

	// DefaultFields lets secondaries contribute latency and identity.
	DefaultFields = FieldLatency | FieldIdentity
)

type namedField struct {
	name string
	set  FieldSet
}

var fieldNames = []namedField{
	{"latency", FieldLatency},
	{"identity", FieldIdentity},
	{"online", FieldOnline},
	{"players", FieldPlayers},
	{"version", FieldVersion},
	{"motd", FieldMotd},
	{"software", FieldSoftware},
	{"extra", FieldExtra},
}

// identityKeys are the extras covered by FieldIdentity.
var identityKeys = []string{"ip", "hostname", "port"}

// ParseFieldSet parses field names such as "latency" or "identity".
// "all" selects FieldAll. An empty list yields DefaultFields.
func ParseFieldSet(names []string) (FieldSet, error) {
	if len(names) == 0 {
		return DefaultFields, nil
	}
	var fs FieldSet
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "all" {
			fs |= FieldAll
			continue
		}
		idx := slices.IndexFunc(fieldNames, func(f namedField) bool { return f.name == name })
		if idx < 0 {
			return 0, fmt.Errorf("unknown merge field %q", raw)
		}
		fs |= fieldNames[idx].set
	}
	return fs, nil
}

// Has reports whether every field in other is selected.
func (fs FieldSet) Has(other FieldSet) bool {
	return fs&other == other
}

func (fs FieldSet) String() string {
	if fs == FieldAll {
		return "all"
	}
	var parts []string
	for _, f := range fieldNames {
		if fs.Has(f.set) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// DefaultPrecedence lists secondary sources in ascending priority.
var DefaultPrecedence = []string{"external", "mcsrvstat", "mcsrvstatus"}

// Toggle parameterizes Merge.
type Toggle struct {
	// PreferExternal enables secondary overrides. When false the view is
	// the primary record unchanged.
	PreferExternal bool

	// Precedence orders secondaries from lowest to highest priority; the
	// last successful one wins a contested field. Secondaries missing from
	// the list rank below every listed source. Nil means DefaultPrecedence.
	Precedence []string

	// Fields restricts which fields secondaries may override.
	Fields FieldSet
}

// DefaultToggle prefers external data for latency and identity.
func DefaultToggle() Toggle {
	return Toggle{
		PreferExternal: true,
		Precedence:     slices.Clone(DefaultPrecedence),
		Fields:         DefaultFields,
	}
}

// View is the reconciled status shown to consumers.
type View struct {
	// Record is nil when the primary source failed or was skipped.
	Record *status.Record `json:"record"`

	// Error is the primary failure, if any.
	Error *status.Error `json:"error"`

	// Overrides maps an overridden field to the secondary that supplied it.
	Overrides map[string]string `json:"overrides,omitempty"`
}

// Merge builds the view from the primary result and secondary results
// keyed by source name.
//
// A failed primary yields a view carrying only the error. Failed, skipped
// and absent secondaries are ignored, and only non-null secondary values
// override.
func Merge(primary status.Result, secondaries map[string]status.Result, t Toggle) View {
	switch primary.Outcome {
	case status.Failed:
		return View{Error: primary.Err}
	case status.Skipped:
		return View{}
	}

	rec := primary.Record.Clone()
	v := View{Record: &rec}
	if !t.PreferExternal || t.Fields == 0 || len(secondaries) == 0 {
		return v
	}

	for _, name := range order(secondaries, t.Precedence) {
		res := secondaries[name]
		if !res.OK() {
			continue
		}
		apply(&rec, res.Record, t.Fields, func(field string) {
			if v.Overrides == nil {
				v.Overrides = make(map[string]string)
			}
			v.Overrides[field] = name
		})
	}
	return v
}

// order returns secondary names from lowest to highest priority.
func order(secondaries map[string]status.Result, precedence []string) []string {
	if precedence == nil {
		precedence = DefaultPrecedence
	}
	var unlisted []string
	for name := range secondaries {
		if !slices.Contains(precedence, name) {
			unlisted = append(unlisted, name)
		}
	}
	sort.Strings(unlisted)

	out := unlisted
	for _, name := range precedence {
		if _, ok := secondaries[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func apply(dst *status.Record, src status.Record, fs FieldSet, mark func(string)) {
	if fs.Has(FieldOnline) {
		dst.Online = src.Online
		mark("online")
	}
	if fs.Has(FieldLatency) && src.LatencyMs != nil {
		dst.LatencyMs = status.Int(*src.LatencyMs)
		mark("latency_ms")
	}
	if fs.Has(FieldPlayers) && src.Players != nil {
		cp := src.Clone()
		dst.Players = cp.Players
		mark("players")
	}
	if fs.Has(FieldVersion) && src.Version != nil {
		ver := *src.Version
		dst.Version = &ver
		mark("version")
	}
	if fs.Has(FieldMotd) && src.Motd != nil {
		motd := *src.Motd
		dst.Motd = &motd
		mark("motd")
	}
	if fs.Has(FieldSoftware) && src.Software != nil {
		dst.Software = status.String(*src.Software)
		mark("software")
	}

	keys := identityKeys
	if fs.Has(FieldExtra) {
		keys = make([]string, 0, len(src.Extra))
		for k := range src.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	} else if !fs.Has(FieldIdentity) {
		return
	}
	for _, k := range keys {
		val, ok := src.Extra[k]
		if !ok || val == nil {
			continue
		}
		if dst.Extra == nil {
			dst.Extra = make(map[string]any)
		}
		dst.Extra[k] = val
		mark("extra." + k)
	}
}
