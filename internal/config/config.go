// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from config.yaml.
type Config struct {
	Operator  OperatorConfig  `yaml:"operator"`
	Lines     LinesConfig     `yaml:"lines"`
	Store     StoreConfig     `yaml:"store"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Backend   BackendConfig   `yaml:"backend"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Console   ConsoleConfig   `yaml:"console"`
}

// OperatorConfig identifies the trusted principal. Any call from one of the
// listed numbers is granted full permission.
type OperatorConfig struct {
	Name    string   `yaml:"name"`
	Numbers []string `yaml:"numbers"`
}

// LinesConfig bounds concurrent conversations and confirmation waits.
type LinesConfig struct {
	MaxActive           int      `yaml:"max_active"`
	ConfirmationTimeout Duration `yaml:"confirmation_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StoreConfig selects the audit/directory database backend.
// Driver "sqlite" uses Path; driver "mysql" uses Host/Port/Database.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// TelephonyConfig holds call-control provider settings.
type TelephonyConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	FromNumber   string `yaml:"from_number"`
	WebhookToken string `yaml:"webhook_token"`
}

// BackendConfig holds the realtime speech/LLM backend settings.
type BackendConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Voice  string `yaml:"voice"`
}

// FallbackConfig controls out-of-band delivery when the operator is not on
// any call. Preference is "text", "call" or "both"; Slack, Discord and email
// channels are additive and used when configured.
type FallbackConfig struct {
	Preference     string `yaml:"preference"`
	Email          string `yaml:"email"`
	SMTPAddr       string `yaml:"smtp_addr"`
	SMTPFrom       string `yaml:"smtp_from"`
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// ConsoleConfig holds the operator HTTP control surface settings.
type ConsoleConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Operator.Name == "" {
		c.Operator.Name = "Operator"
	}
	if c.Lines.MaxActive == 0 {
		c.Lines.MaxActive = 10
	}
	if c.Lines.ConfirmationTimeout == 0 {
		c.Lines.ConfirmationTimeout = Duration(5 * time.Minute)
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "switchboard.db"
	}
	if c.Store.Host == "" {
		c.Store.Host = "127.0.0.1"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 3306
	}
	if c.Store.Database == "" {
		c.Store.Database = "switchboard"
	}
	if c.Fallback.Preference == "" {
		c.Fallback.Preference = "text"
	}
	if c.Console.Port == 0 {
		c.Console.Port = 8090
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if len(c.Operator.Numbers) == 0 {
		errs = append(errs, "operator.numbers is required")
	}
	if c.Lines.MaxActive < 1 {
		errs = append(errs, "lines.max_active must be at least 1")
	}
	switch c.Store.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite or mysql)", c.Store.Driver))
	}
	switch c.Fallback.Preference {
	case "text", "call", "both":
	default:
		errs = append(errs, fmt.Sprintf("fallback.preference %q is not supported (text, call or both)", c.Fallback.Preference))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
