package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Converter ConverterConfig `koanf:"converter"`
	Limits    LimitsConfig    `koanf:"limits"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	JWTExpiry string `koanf:"jwt_expiry"`
}

type ConverterConfig struct {
	Program       string   `koanf:"program"`
	Args          []string `koanf:"args"`
	DownloadDir   string   `koanf:"download_dir"`
	MaxConcurrent int      `koanf:"max_concurrent"`
	Timeout       string   `koanf:"timeout"`
}

type LimitsConfig struct {
	LinkExpiry string `koanf:"link_expiry"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: MC_<SECTION>_<KEY> -> section.key. Only the first
	// underscore separates the section, so underscored leaves like
	// MC_CONVERTER_MAX_CONCURRENT land on converter.max_concurrent.
	// Empty values are skipped so they cannot clobber TOML config.
	if err := k.Load(env.ProviderWithValue("MC_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		trimmed := strings.ToLower(strings.TrimPrefix(key, "MC_"))
		section, rest, ok := strings.Cut(trimmed, "_")
		if !ok {
			return trimmed, value
		}
		return section + "." + rest, value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
