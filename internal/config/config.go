// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Duration settings are stored as milliseconds and exposed as time.Duration.
// - External errors must be wrapped via this package's error kinds.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Ledger drivers accepted by LedgerDriver.
var ledgerDrivers = map[string]bool{"file": true, "sqlite": true, "sqlite3": true, "memory": true}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects console or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the ops HTTP listen address, e.g. ":9090". Empty
	// disables the ops server.
	Addr string `koanf:"addr"`

	// PollIntervalMS is the cycle period and the event bucket width.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// HTTPTimeoutMS bounds each feed or detail page request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// SendTimeoutMS bounds each webhook delivery.
	SendTimeoutMS int `koanf:"send_timeout_ms"`

	// SendRatePerSec limits deliveries per webhook endpoint.
	SendRatePerSec int `koanf:"send_rate_per_sec"`

	// Webhook destinations per category (comma-separated in env).
	EventWebhooks []string `koanf:"event_webhooks"`
	RaidWebhooks  []string `koanf:"raid_webhooks"`
	EggWebhooks   []string `koanf:"egg_webhooks"`

	// MentionRole is a role id pinged on every notification.
	MentionRole string `koanf:"mention_role"`

	// Feed document locations. Empty values use the public ScrapedDuck feed.
	EventsURL string `koanf:"events_url"`
	RaidsURL  string `koanf:"raids_url"`
	EggsURL   string `koanf:"eggs_url"`

	// StateDir holds the ledger files or database.
	StateDir string `koanf:"state_dir"`

	// LedgerDriver is one of file, sqlite, memory.
	LedgerDriver string `koanf:"ledger_driver"`

	// Timezone is the IANA zone for zone-less feed timestamps; empty means local.
	Timezone string `koanf:"timezone"`

	EnableEvents bool `koanf:"enable_events"`
	EnableRaids  bool `koanf:"enable_raids"`
	EnableEggs   bool `koanf:"enable_eggs"`

	// KeepRawEvents mirrors every fetched events document to StateDir/events.json.
	KeepRawEvents bool `koanf:"keep_raw_events"`

	// RunOnce runs a single cycle and exits.
	RunOnce bool `koanf:"run_once"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "console",
		Addr:           ":9090",
		PollIntervalMS: 300_000,
		HTTPTimeoutMS:  30_000,
		SendTimeoutMS:  10_000,
		SendRatePerSec: 2,
		StateDir:       "./data",
		LedgerDriver:   "file",
		EnableEvents:   true,
		EnableRaids:    true,
		EnableEggs:     false,
	}
}

// PollInterval returns the cycle period.
func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMS) }

// HTTPTimeout returns the feed request timeout.
func (c *Config) HTTPTimeout() time.Duration { return ms(c.HTTPTimeoutMS) }

// SendTimeout returns the webhook delivery timeout.
func (c *Config) SendTimeout() time.Duration { return ms(c.SendTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
	case c.HTTPTimeoutMS <= 0:
		return fmt.Errorf("%w: http_timeout_ms must be positive", ErrInvalidConfig)
	case c.SendTimeoutMS <= 0:
		return fmt.Errorf("%w: send_timeout_ms must be positive", ErrInvalidConfig)
	case !c.EnableEvents && !c.EnableRaids && !c.EnableEggs:
		return fmt.Errorf("%w: no dataset enabled", ErrInvalidConfig)
	case c.EnableEvents && len(c.EventWebhooks) == 0:
		return fmt.Errorf("%w: event_webhooks is required when events are enabled", ErrInvalidConfig)
	case c.EnableRaids && len(c.RaidWebhooks) == 0:
		return fmt.Errorf("%w: raid_webhooks is required when raids are enabled", ErrInvalidConfig)
	case c.EnableEggs && len(c.EggWebhooks) == 0:
		return fmt.Errorf("%w: egg_webhooks is required when eggs are enabled", ErrInvalidConfig)
	case !ledgerDrivers[strings.ToLower(strings.TrimSpace(c.LedgerDriver))]:
		return fmt.Errorf("%w: unknown ledger_driver %q", ErrInvalidConfig, c.LedgerDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
