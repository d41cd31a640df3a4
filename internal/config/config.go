// Package config loads and validates the billing daemon configuration.
//
// DESIGN: One YAML file, one Config struct, per-section Validate() methods.
// Threshold actions are kept in their configured string form ("play ding",
// "transfer 299 XML default") and parsed into callctl.Action variants once at
// load time; Validate rejects strings that do not parse.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxplane/nibblebill/internal/callctl"
)

// Config is the root daemon configuration.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Billing    BillingConfig    `yaml:"billing"`
	Server     ServerConfig     `yaml:"server"`
	Platform   PlatformConfig   `yaml:"platform"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Journal    JournalConfig    `yaml:"journal"`
	Log        LogConfig        `yaml:"log"`
}

// LedgerConfig points at the Redis ledger store.
type LedgerConfig struct {
	URL        string `yaml:"url"`             // redis://host:port/db
	TimeoutSec int    `yaml:"timeout_seconds"` // per-operation deadline
}

// Timeout returns the per-operation ledger deadline.
func (l *LedgerConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}

// Validate checks the ledger section.
func (l *LedgerConfig) Validate() error {
	if l.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	if _, err := url.Parse(l.URL); err != nil {
		return fmt.Errorf("ledger.url: %w", err)
	}
	if l.TimeoutSec <= 0 {
		return fmt.Errorf("ledger.timeout_seconds must be > 0, got %d", l.TimeoutSec)
	}
	return nil
}

// BillingConfig holds the global billing thresholds and actions. Per-call
// variables override the threshold amounts; the actions are global.
type BillingConfig struct {
	PercallMaxAmt float64 `yaml:"percall_max_amt"` // per-call spend cap, 0 = uncapped
	PercallAction string  `yaml:"percall_action"`  // runs when the cap is reached
	LowBalAmt     float64 `yaml:"lowbal_amt"`      // warning threshold
	LowBalAction  string  `yaml:"lowbal_action"`   // one-shot warning action
	NoBalAmt      float64 `yaml:"nobal_amt"`       // depletion threshold
	NoBalAction   string  `yaml:"nobal_action"`    // reroute/drop action, retried per tick
	HeartbeatSec  int     `yaml:"heartbeat"`       // billing tick interval, 0 = platform-driven
}

// Heartbeat returns the configured tick interval, zero when disabled.
func (b *BillingConfig) Heartbeat() time.Duration {
	return time.Duration(b.HeartbeatSec) * time.Second
}

// Validate checks the billing section, including action parseability.
func (b *BillingConfig) Validate() error {
	if b.HeartbeatSec < 0 {
		return fmt.Errorf("billing.heartbeat must be >= 0, got %d", b.HeartbeatSec)
	}
	if b.PercallMaxAmt < 0 {
		return fmt.Errorf("billing.percall_max_amt must be >= 0, got %f", b.PercallMaxAmt)
	}
	for name, s := range map[string]string{
		"billing.percall_action": b.PercallAction,
		"billing.lowbal_action":  b.LowBalAction,
		"billing.nobal_action":   b.NoBalAction,
	} {
		if _, err := callctl.ParseAction(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ParsedPercallAction returns the per-call cap action. Call after Validate.
func (b *BillingConfig) ParsedPercallAction() callctl.Action { return mustParse(b.PercallAction) }

// ParsedLowBalAction returns the low-balance action. Call after Validate.
func (b *BillingConfig) ParsedLowBalAction() callctl.Action { return mustParse(b.LowBalAction) }

// ParsedNoBalAction returns the no-balance action. Call after Validate.
func (b *BillingConfig) ParsedNoBalAction() callctl.Action { return mustParse(b.NoBalAction) }

func mustParse(s string) callctl.Action {
	a, err := callctl.ParseAction(s)
	if err != nil {
		// Validate runs before any caller gets here.
		panic(fmt.Sprintf("unvalidated action %q: %v", s, err))
	}
	return a
}

// ServerConfig configures the management HTTP server.
type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSec int `yaml:"write_timeout_seconds"`
}

// ReadTimeout returns the server read timeout.
func (s *ServerConfig) ReadTimeout() time.Duration {
	if s.ReadTimeoutSec <= 0 {
		return DefaultServerReadTimeout
	}
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the server write timeout.
func (s *ServerConfig) WriteTimeout() time.Duration {
	if s.WriteTimeoutSec <= 0 {
		return DefaultServerWriteTimeout
	}
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// Validate checks the server section.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", s.Port)
	}
	return nil
}

// PlatformConfig points at the call-control platform's callback endpoint.
// Empty URL means actions are dispatched to a controller wired in-process
// (library embedding).
type PlatformConfig struct {
	CallbackURL string `yaml:"callback_url"`
	TimeoutSec  int    `yaml:"timeout_seconds"`
}

// Timeout returns the callback request deadline.
func (p *PlatformConfig) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return DefaultPlatformTimeoutSec * time.Second
	}
	return time.Duration(p.TimeoutSec) * time.Second
}

// Validate checks the platform section.
func (p *PlatformConfig) Validate() error {
	if p.CallbackURL == "" {
		return nil
	}
	if _, err := url.Parse(p.CallbackURL); err != nil {
		return fmt.Errorf("platform.callback_url: %w", err)
	}
	return nil
}

// MonitoringConfig controls telemetry JSONL output.
type MonitoringConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TelemetryPath string `yaml:"telemetry_path"`
}

// JournalConfig controls the SQLite charge journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level string `yaml:"level"` // zerolog level name
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with every default value.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			URL:        DefaultLedgerURL,
			TimeoutSec: DefaultLedgerTimeoutSec,
		},
		Billing: BillingConfig{
			PercallAction: DefaultPercallAction,
			LowBalAction:  DefaultLowBalAction,
			NoBalAction:   DefaultNoBalAction,
			HeartbeatSec:  DefaultHeartbeatSec,
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
		Monitoring: MonitoringConfig{
			TelemetryPath: DefaultTelemetryPath,
		},
		Journal: JournalConfig{
			Path: DefaultJournalPath,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Billing.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Platform.Validate()
}

// RedactedLedgerURL returns the ledger URL with any password removed, for
// startup logs.
func (c *Config) RedactedLedgerURL() string {
	u, err := url.Parse(c.Ledger.URL)
	if err != nil {
		return "(invalid)"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
