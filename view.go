package mcdash

import (
	"maps"
	"slices"
	"time"

	"github.com/jpalmerr/mcdash/internal/mode"
	"github.com/jpalmerr/mcdash/internal/remoteconfig"
	"github.com/jpalmerr/mcdash/internal/status"
	"github.com/jpalmerr/mcdash/internal/store"
)

// Record is the canonical status of the server after normalization and
// merging. Optional groups are nil when no source reported them.
type Record = status.Record

// Players, Player, Version and Motd are the optional groups of a [Record].
type (
	Players = status.Players
	Player  = status.Player
	Version = status.Version
	Motd    = status.Motd
)

// Mode is how status sources are polled: live, mock or offline.
type Mode = mode.Mode

const (
	ModeLive    = mode.Live
	ModeMock    = mode.Mock
	ModeOffline = mode.Offline
)

// RemoteConfig is the configuration served by the upstream /config endpoint.
type RemoteConfig = remoteconfig.Configuration

// Link is an entry of [RemoteConfig.Links].
type Link = remoteconfig.Link

// Error is a failure attributed to one source. Use [errors.As] to inspect it.
type Error = status.Error

// ErrorKind classifies an [Error].
type ErrorKind = status.ErrorKind

const (
	ErrConfigFetch          = status.ConfigFetch
	ErrPrimaryStatusFetch   = status.PrimaryStatusFetch
	ErrSecondaryStatusFetch = status.SecondaryStatusFetch
	ErrDecode               = status.Decode
)

// View is the dashboard state delivered to callbacks registered with
// [WithViewCallback].
//
// Every View is an independent copy; callbacks may keep or modify it
// without affecting the dashboard.
type View struct {
	// Record is the merged status. Nil while loading, when the primary
	// source failed, or when it has no path configured.
	Record *Record

	// Error is the latest primary source failure, cleared by the next
	// primary success.
	Error *Error

	// Overrides maps each field taken from a secondary source to that
	// source's name, e.g. "latency_ms" -> "mcsrvstat".
	Overrides map[string]string

	// Loading is true until the primary source settles for the first time.
	Loading bool

	Mode   Mode
	Config RemoteConfig

	// PreferExternal reports whether secondaries could override the record.
	PreferExternal bool

	// Sequence increases by one with every published view.
	Sequence    uint64
	PublishedAt time.Time
}

// viewOf converts a published snapshot to the public [View].
func viewOf(snap store.Snapshot) View {
	v := View{
		Overrides:      maps.Clone(snap.View.Overrides),
		Loading:        snap.Loading,
		Mode:           snap.Mode,
		Config:         snap.Config,
		PreferExternal: snap.PreferExternal,
		Sequence:       snap.Sequence,
		PublishedAt:    snap.PublishedAt,
	}
	v.Config.Links = slices.Clone(snap.Config.Links)

	if snap.View.Record != nil {
		rec := snap.View.Record.Clone()
		v.Record = &rec
	}
	if snap.Error != nil {
		e := *snap.Error
		v.Error = &e
	}
	return v
}
