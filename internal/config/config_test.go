package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moodboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected http port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Type != "bolt" || cfg.Storage.Key != "moods" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if !cfg.Chart.Reverse || cfg.Chart.FillAlpha != 0.9 {
		t.Errorf("unexpected chart defaults: %+v", cfg.Chart)
	}
	if cfg.Admin.PasswordHash != "" {
		t.Error("admin password should be unset by default")
	}
	if cfg.Events.Enabled {
		t.Error("events should be disabled by default")
	}
	if len(cfg.Timeline) != 4 || cfg.Timeline[0].Label != "Kick-off" || cfg.Timeline[0].Details == "" {
		t.Errorf("unexpected default timeline: %+v", cfg.Timeline)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9000
  cors_origins: ["https://example.org"]
storage:
  type: Redis
  key: team-moods
  redis:
    host: redis.internal
    port: 6380
chart:
  reverse: false
  fill_alpha: 0.85
  timezone: Europe/Amsterdam
timeline:
  - label: Retro
    details: Terugblik op het kwartaal.
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("expected http port 9000, got %d", cfg.Server.HTTPPort)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://example.org" {
		t.Errorf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Key != "team-moods" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.Redis.Host != "redis.internal" || cfg.Storage.Redis.Port != 6380 {
		t.Errorf("unexpected redis: %+v", cfg.Storage.Redis)
	}
	if cfg.Storage.Redis.DialTimeout != "5s" {
		t.Errorf("expected redis defaults to survive, got %q", cfg.Storage.Redis.DialTimeout)
	}
	if cfg.Chart.Reverse || cfg.Chart.FillAlpha != 0.85 {
		t.Errorf("unexpected chart: %+v", cfg.Chart)
	}
	loc, err := cfg.Chart.Location()
	if err != nil || loc.String() != "Europe/Amsterdam" {
		t.Errorf("unexpected location %v: %v", loc, err)
	}
	if len(cfg.Timeline) != 1 || cfg.Timeline[0] != (TimelineItem{Label: "Retro", Details: "Terugblik op het kwartaal."}) {
		t.Errorf("file timeline should replace the default, got %+v", cfg.Timeline)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MOODBOARD_SERVER_HTTP_PORT", "8181")
	t.Setenv("MOODBOARD_STORAGE_TYPE", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.HTTPPort != 8181 {
		t.Errorf("expected env http port 8181, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage, got %s", cfg.Storage.Type)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "server:\n  http_port: 70000\n", "invalid HTTP port"},
		{"bad storage", "storage:\n  type: etcd\n", "unknown storage type"},
		{"missing path", "storage:\n  type: sqlite\n  path: \"\"\n", "storage path is required"},
		{"alpha too low", "chart:\n  fill_alpha: 0.5\n", "fill_alpha"},
		{"bad timezone", "chart:\n  timezone: Mars/Olympus\n", "chart.timezone"},
		{"bad duration", "admin:\n  session_timeout: soon\n", "admin.session_timeout"},
		{"bad log format", "logging:\n  format: xml\n", "logging format"},
		{"events without url", "events:\n  enabled: true\n  url: \"\"\n", "events.url"},
		{"timeline without label", "timeline:\n  - details: leeg\n", "timeline[0].label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFindUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8080
  htp_port: 1
storage:
  redis:
    hots: localhost
`)

	unknown, err := FindUnknownKeys(path)
	if err != nil {
		t.Fatalf("FindUnknownKeys failed: %v", err)
	}
	want := []string{"server.htp_port", "storage.redis.hots"}
	if len(unknown) != len(want) {
		t.Fatalf("expected %v, got %v", want, unknown)
	}
	for i := range want {
		if unknown[i] != want[i] {
			t.Errorf("unknown[%d] = %s, want %s", i, unknown[i], want[i])
		}
	}
}

func TestDefaultsMatchLoad(t *testing.T) {
	d := Defaults()
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Server.HTTPPort != cfg.Server.HTTPPort || d.Chart.DateFormat != cfg.Chart.DateFormat {
		t.Error("Defaults differs from Load with no file")
	}
}
