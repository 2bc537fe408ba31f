package source

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jpalmerr/mcdash/internal/status"
)

// ErrMalformed is wrapped by every normalization failure.
var ErrMalformed = errors.New("malformed status payload")

// Shape names a source-specific payload layout.
type Shape string

const (
	// ShapeStatus is the dashboard backend's own /status document:
	// players.sample[].{name,id} (or player_list[].{name,uuid}),
	// version.{name,protocol}, motd.{plain,html}, latency, online.
	ShapeStatus Shape = "status"

	// ShapeMCSrvStat is the mcsrvstat.us v3 layout: players.list[].{name,uuid},
	// protocol.{version,name}, motd.{raw,clean,html}, ip, hostname, debug.*.
	ShapeMCSrvStat Shape = "mcsrvstat"
)

// Normalizer maps a raw payload into the canonical record.
type Normalizer func(body []byte) (status.Record, error)

// shapeRules parameterizes the shared normalizer per shape.
type shapeRules struct {
	requireOnline bool
	sampleKeys    []string
	extraKeys     []string
}

var rules = map[Shape]shapeRules{
	ShapeStatus: {
		sampleKeys: []string{"sample", "player_list"},
		extraKeys: []string{
			"ip", "port", "hostname", "icon", "map", "plugins", "mods",
			"description", "enforces_secure_chat", "forge_data", "external_latency",
		},
	},
	ShapeMCSrvStat: {
		requireOnline: true,
		sampleKeys:    []string{"list"},
		extraKeys: []string{
			"ip", "port", "hostname", "debug", "icon", "map", "gamemode",
			"serverid", "eula_blocked", "plugins", "mods", "info",
		},
	},
}

// NormalizerFor returns the normalizer for shape. An empty shape means
// [ShapeStatus].
func NormalizerFor(shape Shape) (Normalizer, error) {
	if shape == "" {
		shape = ShapeStatus
	}
	r, ok := rules[shape]
	if !ok {
		return nil, fmt.Errorf("unknown source shape %q (expected %q or %q)", shape, ShapeStatus, ShapeMCSrvStat)
	}
	return func(body []byte) (status.Record, error) {
		return normalize(body, r)
	}, nil
}

// NormalizeStatus normalizes a [ShapeStatus] payload.
func NormalizeStatus(body []byte) (status.Record, error) {
	return normalize(body, rules[ShapeStatus])
}

// NormalizeMCSrvStat normalizes a [ShapeMCSrvStat] payload.
func NormalizeMCSrvStat(body []byte) (status.Record, error) {
	return normalize(body, rules[ShapeMCSrvStat])
}

func normalize(body []byte, r shapeRules) (status.Record, error) {
	if !gjson.ValidBytes(body) {
		return status.Record{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return status.Record{}, fmt.Errorf("%w: expected object, got %s", ErrMalformed, doc.Type)
	}

	// a status document without an online flag still proves reachability
	rec := status.Record{Online: true}
	if online := doc.Get("online"); online.Exists() {
		rec.Online = online.Bool()
	} else if r.requireOnline {
		return status.Record{}, fmt.Errorf("%w: missing online field", ErrMalformed)
	}

	rec.LatencyMs = latencyOf(doc.Get("latency"))
	rec.Players = playersOf(doc.Get("players"), r.sampleKeys)
	rec.Version = versionOf(doc.Get("version"), doc.Get("protocol"))
	rec.Motd = motdOf(doc)
	rec.Software = stringOf(doc.Get("software"))
	rec.Extra = extrasOf(doc, r.extraKeys)

	return rec, nil
}

func latencyOf(v gjson.Result) *int {
	if v.Type != gjson.Number {
		return nil
	}
	return status.Int(int(math.Round(v.Float())))
}

func playersOf(v gjson.Result, sampleKeys []string) *status.Players {
	if !v.IsObject() {
		return nil
	}
	p := &status.Players{
		Online: int(v.Get("online").Int()),
		Max:    int(v.Get("max").Int()),
	}
	for _, key := range sampleKeys {
		list := v.Get(key)
		if !list.IsArray() {
			continue
		}
		p.Sample = make([]status.Player, 0, len(list.Array()))
		for _, entry := range list.Array() {
			id := entry.Get("id")
			if !id.Exists() {
				id = entry.Get("uuid")
			}
			p.Sample = append(p.Sample, status.Player{
				Name: entry.Get("name").String(),
				ID:   id.String(),
			})
		}
		break
	}
	return p
}

// versionOf accepts version.{name,protocol}, or a version string alongside
// protocol.{version,name}.
func versionOf(version, protocol gjson.Result) *status.Version {
	switch {
	case version.IsObject():
		return &status.Version{
			Name:     version.Get("name").String(),
			Protocol: int(version.Get("protocol").Int()),
		}
	case version.Type == gjson.String:
		v := &status.Version{Name: version.String()}
		if protocol.IsObject() {
			v.Protocol = int(protocol.Get("version").Int())
		} else if protocol.Type == gjson.Number {
			v.Protocol = int(protocol.Int())
		}
		return v
	case protocol.IsObject():
		return &status.Version{
			Name:     protocol.Get("name").String(),
			Protocol: int(protocol.Get("version").Int()),
		}
	default:
		return nil
	}
}

// motdOf accepts motd.{plain,html}, motd.{raw,clean,html} with string or
// line-list values, or flat motd_plain/motd_html fields.
func motdOf(doc gjson.Result) *status.Motd {
	m := doc.Get("motd")
	if m.IsObject() {
		plain, hasPlain := textOf(m.Get("plain"))
		if !hasPlain {
			plain, hasPlain = textOf(m.Get("clean"))
		}
		html, hasHTML := textOf(m.Get("html"))
		if !hasPlain && !hasHTML {
			return nil
		}
		return &status.Motd{Plain: plain, HTML: html}
	}
	if m.Type == gjson.String {
		return &status.Motd{Plain: m.String()}
	}

	plain, hasPlain := textOf(doc.Get("motd_plain"))
	html, hasHTML := textOf(doc.Get("motd_html"))
	if !hasPlain && !hasHTML {
		return nil
	}
	return &status.Motd{Plain: plain, HTML: html}
}

// textOf reads a string or a list of lines. Lines are concatenated as the
// upstream backend does.
func textOf(v gjson.Result) (string, bool) {
	switch {
	case v.Type == gjson.String:
		return v.String(), true
	case v.IsArray():
		var b strings.Builder
		for _, line := range v.Array() {
			b.WriteString(line.String())
		}
		return b.String(), true
	default:
		return "", false
	}
}

func stringOf(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	return status.String(v.String())
}

func extrasOf(doc gjson.Result, keys []string) map[string]any {
	var extra map[string]any
	for _, key := range keys {
		v := doc.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if extra == nil {
			extra = make(map[string]any, len(keys))
		}
		extra[key] = v.Value()
	}
	return extra
}
