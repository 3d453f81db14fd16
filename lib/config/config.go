// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("20m", "90s").
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats the duration like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// Config is the full configuration for the call service.
type Config struct {
	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Call configures session timing.
	Call CallConfig `yaml:"call"`

	// Ledger configures transcript storage tiering.
	Ledger LedgerConfig `yaml:"ledger"`

	// Guardrails configures validation phrase lists.
	Guardrails GuardrailsConfig `yaml:"guardrails"`

	// Upstream configures retry behavior for speech and language
	// model collaborators.
	Upstream UpstreamConfig `yaml:"upstream"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Database is the SQLite database file for sessions, turns,
	// audit events, and summaries.
	Database string `yaml:"database"`

	// Socket is the Unix socket the caller-facing API listens on.
	Socket string `yaml:"socket"`
}

// CallConfig configures session timing.
type CallConfig struct {
	// Duration is the fixed timebox for every call. The hard stop
	// fires exactly this long after start, regardless of traffic.
	Duration Duration `yaml:"duration"`

	// SilenceWindow is how long a session may go without a turn
	// before the engine sends a check-in prompt. A second window of
	// silence after the check-in terminates the session.
	SilenceWindow Duration `yaml:"silence_window"`

	// StaleTTL is how long a session may sit in created or ready
	// before the expiry sweep marks it expired.
	StaleTTL Duration `yaml:"stale_ttl"`
}

// LedgerConfig configures transcript tiering.
type LedgerConfig struct {
	// ColdAfter is the age at which turns move from the hot tier to
	// the compressed cold tier.
	ColdAfter Duration `yaml:"cold_after"`

	// SweepInterval is how often the tiering sweep runs.
	SweepInterval Duration `yaml:"sweep_interval"`

	// RetainPrompts stores full prompt text on every turn instead of
	// only the prompt hash. Off by default: prompts embed the sealed
	// bundle, and data minimization keeps them out of storage unless
	// a guardrail fired or an operator explicitly asked.
	RetainPrompts bool `yaml:"retain_prompts"`
}

// GuardrailsConfig configures validation phrase lists. These extend
// the built-in prohibited categories; they never replace them.
type GuardrailsConfig struct {
	// ExtraDeniedTopics are denied in every session, in addition to
	// each bundle's own deny list.
	ExtraDeniedTopics []string `yaml:"extra_denied_topics"`
}

// UpstreamConfig configures the speech, language model, case
// directory, and timeline collaborators.
type UpstreamConfig struct {
	// Attempts is the maximum number of tries per call (first try
	// included).
	Attempts int `yaml:"attempts"`

	// Backoff is the delay before the first retry; it doubles per
	// subsequent retry.
	Backoff Duration `yaml:"backoff"`

	// SpeechURL is the base URL of the speech service (transcription
	// and synthesis).
	SpeechURL string `yaml:"speech_url"`

	// ModelURL is the base URL of the language model service.
	ModelURL string `yaml:"model_url"`

	// CaseURL is the base URL of the case management system: the
	// case directory, rule book, and timeline all live behind it.
	CaseURL string `yaml:"case_url"`

	// AuthToken is the bearer token presented to every upstream
	// service. Empty disables the Authorization header.
	AuthToken string `yaml:"auth_token"`
}

// Default returns the configuration used when a field is omitted from
// the file.
func Default() Config {
	return Config{
		Call: CallConfig{
			Duration:      Duration(20 * time.Minute),
			SilenceWindow: Duration(2 * time.Minute),
			StaleTTL:      Duration(30 * time.Minute),
		},
		Ledger: LedgerConfig{
			ColdAfter:     Duration(30 * 24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Upstream: UpstreamConfig{
			Attempts: 3,
			Backoff:  Duration(500 * time.Millisecond),
		},
	}
}

// Load reads and validates the configuration file at path. Missing
// fields take their defaults; invalid values are errors, not
// warnings.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants the engine depends on.
func (c Config) Validate() error {
	if c.Paths.Database == "" {
		return fmt.Errorf("paths.database is required")
	}
	if c.Paths.Socket == "" {
		return fmt.Errorf("paths.socket is required")
	}
	if c.Call.Duration <= 0 {
		return fmt.Errorf("call.duration must be positive, got %s", c.Call.Duration)
	}
	if c.Call.SilenceWindow <= 0 {
		return fmt.Errorf("call.silence_window must be positive, got %s", c.Call.SilenceWindow)
	}
	if c.Call.StaleTTL <= 0 {
		return fmt.Errorf("call.stale_ttl must be positive, got %s", c.Call.StaleTTL)
	}
	if c.Ledger.ColdAfter <= 0 {
		return fmt.Errorf("ledger.cold_after must be positive, got %s", c.Ledger.ColdAfter)
	}
	if c.Ledger.SweepInterval <= 0 {
		return fmt.Errorf("ledger.sweep_interval must be positive, got %s", c.Ledger.SweepInterval)
	}
	if c.Upstream.Attempts < 1 {
		return fmt.Errorf("upstream.attempts must be at least 1, got %d", c.Upstream.Attempts)
	}
	if c.Upstream.Backoff < 0 {
		return fmt.Errorf("upstream.backoff must not be negative, got %s", c.Upstream.Backoff)
	}
	if c.Upstream.SpeechURL == "" {
		return fmt.Errorf("upstream.speech_url is required")
	}
	if c.Upstream.ModelURL == "" {
		return fmt.Errorf("upstream.model_url is required")
	}
	if c.Upstream.CaseURL == "" {
		return fmt.Errorf("upstream.case_url is required")
	}
	return nil
}
