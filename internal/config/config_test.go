package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const minimalYAML = `
operator:
  numbers:
    - "+15550001111"
`

// --- Parse tests ---

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Operator.Name != "Operator" {
		t.Errorf("operator name = %q, want Operator", cfg.Operator.Name)
	}
	if cfg.Lines.MaxActive != 10 {
		t.Errorf("max active = %d, want 10", cfg.Lines.MaxActive)
	}
	if cfg.Lines.ConfirmationTimeout.Std() != 5*time.Minute {
		t.Errorf("confirmation timeout = %s, want 5m", cfg.Lines.ConfirmationTimeout.Std())
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Fallback.Preference != "text" {
		t.Errorf("fallback preference = %q, want text", cfg.Fallback.Preference)
	}
	if cfg.Console.Port != 8090 {
		t.Errorf("console port = %d, want 8090", cfg.Console.Port)
	}
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
operator:
  name: Mate
  numbers:
    - "+15550001111"
    - "+15550002222"
lines:
  max_active: 4
  confirmation_timeout: 90s
store:
  driver: mysql
  host: db.internal
  database: swb
telephony:
  base_url: https://voice.example.com
  api_key: sk-123
  from_number: "+15557770000"
backend:
  url: wss://realtime.example.com
  api_key: sk-456
  voice: alloy
fallback:
  preference: both
  slack_token: xoxb-1
  slack_channel: C1234
console:
  port: 9000
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Operator.Name != "Mate" || len(cfg.Operator.Numbers) != 2 {
		t.Errorf("operator = %+v", cfg.Operator)
	}
	if cfg.Lines.MaxActive != 4 {
		t.Errorf("max active = %d, want 4", cfg.Lines.MaxActive)
	}
	if cfg.Lines.ConfirmationTimeout.Std() != 90*time.Second {
		t.Errorf("confirmation timeout = %s, want 90s", cfg.Lines.ConfirmationTimeout.Std())
	}
	if cfg.Store.Driver != "mysql" || cfg.Store.Host != "db.internal" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.Port != 3306 {
		t.Errorf("store port = %d, want default 3306", cfg.Store.Port)
	}
	if cfg.Fallback.Preference != "both" {
		t.Errorf("preference = %q", cfg.Fallback.Preference)
	}
	if cfg.Console.Port != 9000 {
		t.Errorf("console port = %d", cfg.Console.Port)
	}
}

func TestParse_MissingOperatorNumbers(t *testing.T) {
	_, err := Parse([]byte(`operator: {name: Mate}`))
	if err == nil || !strings.Contains(err.Error(), "operator.numbers") {
		t.Fatalf("error = %v, want operator.numbers validation", err)
	}
}

func TestParse_BadDriver(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
store:
  driver: postgres
`))
	if err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("error = %v, want store.driver validation", err)
	}
}

func TestParse_BadPreference(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
fallback:
  preference: carrier-pigeon
`))
	if err == nil || !strings.Contains(err.Error(), "fallback.preference") {
		t.Fatalf("error = %v, want fallback.preference validation", err)
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + `
lines:
  confirmation_timeout: soon
`))
	if err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("operator: ["))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

// --- Load tests ---

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Operator.Numbers) != 1 {
		t.Errorf("numbers = %v", cfg.Operator.Numbers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// --- Duration round-trip ---

func TestDuration_MarshalRoundTrip(t *testing.T) {
	in := struct {
		Timeout Duration `yaml:"timeout"`
	}{Timeout: Duration(90 * time.Second)}

	data, err := yaml.Marshal(&in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct {
		Timeout Duration `yaml:"timeout"`
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if out.Timeout.Std() != 90*time.Second {
		t.Errorf("round trip = %s, want 90s", out.Timeout.Std())
	}
}
