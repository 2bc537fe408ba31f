// Package remoteconfig fetches and holds the dashboard configuration served
// by the upstream /config endpoint.
//
// The current configuration is an immutable snapshot replaced wholesale on
// every successful refresh. A failed refresh keeps the previous snapshot, or
// the built-in defaults if none was ever fetched, so the dashboard always
// has a usable configuration.
package remoteconfig

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/jpalmerr/mcdash/internal/mode"
)

// Built-in defaults used until the first successful refresh.
const (
	DefaultPollingInterval = 10 * time.Second
	DefaultTitle           = "Minecraft Server Dashboard"
)

// Link is an external link shown in the dashboard links bar.
type Link struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Icon  *string `json:"icon,omitempty"`
}

// Configuration is one snapshot of the dashboard configuration.
type Configuration struct {
	MockMode        bool
	SimulateOffline bool

	// PollingInterval is always positive.
	PollingInterval time.Duration

	PageTitle     string
	HeaderTitle   string
	ServerAddress string
	Links         []Link
}

// Defaults returns the built-in configuration.
func Defaults() Configuration {
	return Configuration{
		PollingInterval: DefaultPollingInterval,
		PageTitle:       DefaultTitle,
		HeaderTitle:     DefaultTitle,
	}
}

// Mode resolves the polling mode this configuration selects.
func (c Configuration) Mode() mode.Mode {
	return mode.Resolve(c.SimulateOffline, c.MockMode)
}

// Equal reports whether two configurations are identical.
func (c Configuration) Equal(other Configuration) bool {
	return c.MockMode == other.MockMode &&
		c.SimulateOffline == other.SimulateOffline &&
		c.PollingInterval == other.PollingInterval &&
		c.PageTitle == other.PageTitle &&
		c.HeaderTitle == other.HeaderTitle &&
		c.ServerAddress == other.ServerAddress &&
		slices.EqualFunc(c.Links, other.Links, func(a, b Link) bool {
			return a.Title == b.Title && a.URL == b.URL &&
				((a.Icon == nil && b.Icon == nil) || (a.Icon != nil && b.Icon != nil && *a.Icon == *b.Icon))
		})
}

// wireConfig is the /config document. polling_interval is in milliseconds.
type wireConfig struct {
	UseMockData     *bool   `json:"use_mock_data"`
	SimulateOffline *bool   `json:"simulate_offline"`
	PollingInterval *int64  `json:"polling_interval"`
	PageTitle       *string `json:"page_title"`
	HeaderTitle     *string `json:"header_title"`
	ServerAddress   *string `json:"server_address"`
	FrontendLinks   []Link  `json:"frontend_links"`
}

// MarshalJSON writes the configuration in the /config wire layout.
func (c Configuration) MarshalJSON() ([]byte, error) {
	ms := c.PollingInterval.Milliseconds()
	links := c.Links
	if links == nil {
		links = []Link{}
	}
	return json.Marshal(wireConfig{
		UseMockData:     &c.MockMode,
		SimulateOffline: &c.SimulateOffline,
		PollingInterval: &ms,
		PageTitle:       &c.PageTitle,
		HeaderTitle:     &c.HeaderTitle,
		ServerAddress:   &c.ServerAddress,
		FrontendLinks:   links,
	})
}

// Decode parses a /config document. Absent fields take their default
// values. A non-positive polling_interval is rejected.
func Decode(body []byte) (Configuration, error) {
	var w wireConfig
	if err := json.Unmarshal(body, &w); err != nil {
		return Configuration{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg := Defaults()
	if w.UseMockData != nil {
		cfg.MockMode = *w.UseMockData
	}
	if w.SimulateOffline != nil {
		cfg.SimulateOffline = *w.SimulateOffline
	}
	if w.PollingInterval != nil {
		if *w.PollingInterval <= 0 {
			return Configuration{}, fmt.Errorf("polling_interval must be positive, got %d", *w.PollingInterval)
		}
		cfg.PollingInterval = time.Duration(*w.PollingInterval) * time.Millisecond
	}
	if w.PageTitle != nil {
		cfg.PageTitle = *w.PageTitle
	}
	if w.HeaderTitle != nil {
		cfg.HeaderTitle = *w.HeaderTitle
	}
	if w.ServerAddress != nil {
		cfg.ServerAddress = *w.ServerAddress
	}
	for i, link := range w.FrontendLinks {
		if link.URL == "" {
			return Configuration{}, fmt.Errorf("frontend_links[%d]: url is required", i)
		}
	}
	cfg.Links = w.FrontendLinks

	return cfg, nil
}
