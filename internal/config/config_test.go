package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", c.Server.Addr)
	}
	if c.Database.Path != "evidenca.sqlite3" {
		t.Errorf("expected evidenca.sqlite3, got %q", c.Database.Path)
	}
	if c.Auth.TokenTTL != 7*24*time.Hour {
		t.Errorf("expected a week, got %v", c.Auth.TokenTTL)
	}
	if c.Barcode.MaxAttempts != 1000 {
		t.Errorf("expected 1000 attempts, got %d", c.Barcode.MaxAttempts)
	}
	if c.Redis.Addr != "" {
		t.Errorf("expected no redis by default, got %q", c.Redis.Addr)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("EVIDENCA_SERVER_ADDR", ":9090")
	t.Setenv("EVIDENCA_AUTH_TOKEN_TTL", "12h")
	t.Setenv("EVIDENCA_REDIS_ADDR", "localhost:6379")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %q", c.Server.Addr)
	}
	if c.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("expected 12h, got %v", c.Auth.TokenTTL)
	}
	if c.Redis.Addr != "localhost:6379" {
		t.Errorf("expected redis address, got %q", c.Redis.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidenca.yaml")
	data := []byte(`
server:
  addr: "127.0.0.1:7000"
  cors_allowed_origins: ["https://inventory.example.org"]
database:
  path: /var/lib/evidenca/db.sqlite3
barcode:
  max_attempts: 50
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("expected file address, got %q", c.Server.Addr)
	}
	if len(c.Server.CORSAllowedOrigins) != 1 {
		t.Errorf("expected one CORS origin, got %v", c.Server.CORSAllowedOrigins)
	}
	if c.Barcode.MaxAttempts != 50 {
		t.Errorf("expected 50 attempts, got %d", c.Barcode.MaxAttempts)
	}
	if c.Auth.AdminUser != "Admin" {
		t.Errorf("expected default admin user, got %q", c.Auth.AdminUser)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("EVIDENCA_BARCODE_MAX_ATTEMPTS", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for zero attempts")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
