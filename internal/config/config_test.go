package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	cfg := newDefaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "data/daybook.db" {
		t.Errorf("expected default db path data/daybook.db, got %s", cfg.Database.Path)
	}
	if cfg.Model.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected default model url %s", cfg.Model.BaseURL)
	}
	if time.Duration(cfg.Backup.Interval) != 24*time.Hour {
		t.Errorf("expected default backup interval 24h, got %v", time.Duration(cfg.Backup.Interval))
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected default log config %+v", cfg.Log)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daybook.yaml")

	content := `
server:
  port: 9090
  read_timeout: 45s
database:
  path: /tmp/test.db
model:
  base_url: http://models.internal:8000/v1
  name: llama3.1
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if time.Duration(cfg.Server.ReadTimeout) != 45*time.Second {
		t.Errorf("expected read timeout 45s, got %v", time.Duration(cfg.Server.ReadTimeout))
	}
	// Unset values keep defaults.
	if time.Duration(cfg.Server.WriteTimeout) != 300*time.Second {
		t.Errorf("expected default write timeout, got %v", time.Duration(cfg.Server.WriteTimeout))
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("expected db path /tmp/test.db, got %s", cfg.Database.Path)
	}
	if cfg.Model.Name != "llama3.1" {
		t.Errorf("expected model llama3.1, got %s", cfg.Model.Name)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DAYBOOK_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DAYBOOK_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("DAYBOOK_PORT", "3000")
	t.Setenv("DAYBOOK_DB_PATH", "/var/lib/daybook/db.sqlite")
	t.Setenv("DAYBOOK_MODEL_URL", "https://api.openai.com/v1")
	t.Setenv("DAYBOOK_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DAYBOOK_BACKUP_ENDPOINT", "s3.example.com")
	t.Setenv("DAYBOOK_BACKUP_BUCKET", "daybook-backups")
	t.Setenv("DAYBOOK_BACKUP_INTERVAL", "6h")
	t.Setenv("DAYBOOK_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/daybook/db.sqlite" {
		t.Errorf("unexpected db path %s", cfg.Database.Path)
	}
	if cfg.Model.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected model url %s", cfg.Model.BaseURL)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("expected api key from env")
	}
	if cfg.Backup.Bucket != "daybook-backups" {
		t.Errorf("unexpected bucket %s", cfg.Backup.Bucket)
	}
	if time.Duration(cfg.Backup.Interval) != 6*time.Hour {
		t.Errorf("unexpected backup interval %v", time.Duration(cfg.Backup.Interval))
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("unexpected log level %s", cfg.Log.Level)
	}
}

func TestEnvOverrideInvalidPortIgnored(t *testing.T) {
	t.Setenv("DAYBOOK_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("DAYBOOK_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port for invalid override, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing model url", func(c *Config) { c.Model.BaseURL = "" }, true},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, true},
		{"bucket without endpoint", func(c *Config) { c.Backup.Bucket = "b" }, true},
		{"bucket with endpoint", func(c *Config) {
			c.Backup.Bucket = "b"
			c.Backup.Endpoint = "s3.example.com"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newDefaults()
			tt.mutate(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationYAML(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	if out != "1m30s" {
		t.Errorf("expected 1m30s, got %v", out)
	}
}
