package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.max_connections": 25,

		"auth.jwt_expiry": "24h",

		"converter.program":        "yt-dlp-convert",
		"converter.download_dir":   "/data/downloads",
		"converter.max_concurrent": 3,
		"converter.timeout":        "5m",

		"limits.link_expiry": "60m",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
