package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
logging:
  level: "DEBUG"
  console: true
source:
  api_key: "key"
  fetch_limit: 3
tracker:
  max_wallets: 5
  poll_interval: "90s"
storage:
  driver: "file"
  path: "./state"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Tracker.MaxWallets != 5 || cfg.Source.FetchLimit != 3 {
		t.Fatalf("numbers lost: %+v", cfg)
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "tok"},
  "storage": {"driver": "sqlite", "path": "./db"}
}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "tok"
  shiny_new_knob: true
storage:
  driver: "file"
  path: "./state"
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestLoadRejectsTrailingJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"storage":{"driver":"file"}}{"extra":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("HELIUS_API_KEY", "env-key")

	path := writeConfig(t, "config.yaml", `
storage:
  driver: "file"
  path: "./state"
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env fallback", cfg.Telegram.Token)
	}
	if cfg.Source.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env fallback", cfg.Source.APIKey)
	}
}

func TestEnvDoesNotOverrideFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "file-token"
storage:
  driver: "file"
  path: "./state"
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Fatalf("token = %q, file value must win", cfg.Telegram.Token)
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", "90s")
	if err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected negative rejection")
	}
	d, err = ParseDurationField("x", "")
	if err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "", 7*time.Second)
	if err != nil || d != 7*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	m := NewManager("unused")
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second) // buffer full: oldest dropped, newest kept

	select {
	case got := <-sub:
		if got != second {
			t.Fatal("expected the newest config after a burst")
		}
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}
}
