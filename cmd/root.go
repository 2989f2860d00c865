package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "mediaconverter",
		Version: version,
		Usage:   "Convert YouTube and SoundCloud media to MP3 — submit now, download when ready.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("MEDIACONVERTER_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("MEDIACONVERTER_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
		},
	}
}
