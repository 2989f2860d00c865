package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("database.max_connections = %d", cfg.Database.MaxConnections)
	}
	if cfg.Converter.Program != "yt-dlp-convert" {
		t.Errorf("converter.program = %q", cfg.Converter.Program)
	}
	if cfg.Converter.MaxConcurrent != 3 {
		t.Errorf("converter.max_concurrent = %d", cfg.Converter.MaxConcurrent)
	}
	if cfg.Converter.Timeout != "5m" {
		t.Errorf("converter.timeout = %q", cfg.Converter.Timeout)
	}
	if cfg.Limits.LinkExpiry != "60m" {
		t.Errorf("limits.link_expiry = %q", cfg.Limits.LinkExpiry)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
port = 9090

[converter]
program = "custom-convert"
args = ["--quiet", "--no-color"]

[auth]
jwt_secret = "file-secret"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Converter.Program != "custom-convert" {
		t.Errorf("converter.program = %q", cfg.Converter.Program)
	}
	if len(cfg.Converter.Args) != 2 || cfg.Converter.Args[0] != "--quiet" {
		t.Errorf("converter.args = %v", cfg.Converter.Args)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("auth.jwt_secret = %q", cfg.Auth.JWTSecret)
	}
	// File values overlay defaults without clobbering untouched keys.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q", cfg.Server.Host)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MC_SERVER_PORT", "7070")
	t.Setenv("MC_LOGGING_LEVEL", "debug")
	t.Setenv("MC_DATABASE_URL", "postgres://u:p@localhost:5432/mc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Database.URL != "postgres://u:p@localhost:5432/mc" {
		t.Errorf("database.url = %q", cfg.Database.URL)
	}
}

func TestLoadEnvUnderscoredKeys(t *testing.T) {
	t.Setenv("MC_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("MC_CONVERTER_MAX_CONCURRENT", "7")
	t.Setenv("MC_DATABASE_MAX_CONNECTIONS", "11")
	t.Setenv("MC_LIMITS_LINK_EXPIRY", "15m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("auth.jwt_secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Converter.MaxConcurrent != 7 {
		t.Errorf("converter.max_concurrent = %d", cfg.Converter.MaxConcurrent)
	}
	if cfg.Database.MaxConnections != 11 {
		t.Errorf("database.max_connections = %d", cfg.Database.MaxConnections)
	}
	if cfg.Limits.LinkExpiry != "15m" {
		t.Errorf("limits.link_expiry = %q", cfg.Limits.LinkExpiry)
	}
}

func TestLoadEmptyEnvDoesNotClobber(t *testing.T) {
	t.Setenv("MC_LOGGING_LEVEL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("empty env var overrode default: %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
