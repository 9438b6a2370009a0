// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Create a config.toml from the bundled template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Initialize the SQLite mirror and run migrations",
				Action:  r.SetupDatabase,
			},
		},
	}
}

// authCommand handles OAuth flows against both providers.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Run the OAuth flow for a provider (spotify or strava)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check which providers have a working session",
				Action: r.AuthStatus,
			},
		},
	}
}

// syncCommand refreshes the local run history.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch recent runs, join weather, and refresh snapshots",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-runs",
				Usage: "Maximum number of runs to fetch",
			},
			&cli.BoolFlag{
				Name:  "no-weather",
				Usage: "Skip the weather join",
			},
			&cli.BoolFlag{
				Name:  "daemon",
				Usage: "Keep running and sync on a cron schedule",
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron expression for --daemon (overrides [sync] schedule)",
			},
		},
		Action: r.Sync,
	}
}

// runsCommand inspects and moves run data.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect and export the synced run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List synced runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RunsList,
			},
			{
				Name:  "export",
				Usage: "Export runs or engineered features to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (csv, markdown, json)",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.BoolFlag{
						Name:  "features",
						Usage: "Export engineered features instead of raw runs",
					},
				},
				Action: r.RunsExport,
			},
			{
				Name:  "import",
				Usage: "Import a .fit activity file into the run history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.RunsImport,
			},
			{
				Name:  "streams",
				Usage: "Export per-run time series (GPS, heart rate, cadence)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (json or csv)",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent file writers",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Only export the most recent N runs",
					},
				},
				Action: r.RunsStreams,
			},
		},
	}
}

// generateCommand builds a playlist from a recorded run.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate a playlist from a synced run",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "run",
				Usage: "Run ID to generate for (defaults to the most recent run)",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Target strategy, rules or model (overrides [recommender] strategy)",
			},
			&cli.StringSliceFlag{
				Name:  "genres",
				Usage: "Preferred genres for the search bias (overrides [recommender] preferred_genres)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the created playlist in a browser",
			},
		},
		Action: r.Generate,
	}
}

// planCommand builds a playlist for a run that has not happened yet.
func planCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Generate a playlist for a planned run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "pace",
				Usage:    "Planned pace per km (e.g. 5:30)",
				Required: true,
			},
			&cli.Float64Flag{
				Name:     "distance",
				Usage:    "Planned distance in km",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Run type (easy, tempo, interval, long, race, steady)",
			},
			&cli.Float64Flag{
				Name:  "temp",
				Usage: "Expected temperature in °C",
			},
			&cli.StringFlag{
				Name:  "time-of-day",
				Usage: "Morning, Afternoon, Evening or Night",
			},
			&cli.BoolFlag{
				Name:  "forecast",
				Usage: "Pull the temperature from the weather forecast at the home location",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
		},
		Action: r.Plan,
	}
}

// quickCommand builds a playlist from a bare intent.
func quickCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "quick",
		Usage: "Generate a playlist from an intent (slow, steady, fast)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "intent"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
		},
		Action: r.Quick,
	}
}

// playlistCommand inspects and decorates created playlists.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Inspect and decorate generated playlists",
		Commands: []*cli.Command{
			{
				Name:  "latest",
				Usage: "Show the most recently generated playlist",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistLatest,
			},
			{
				Name:  "cover",
				Usage: "Upload a cover image to a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "image",
						Usage:    "Path to a JPEG or PNG image",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Playlist ID (defaults to the latest generated playlist)",
					},
				},
				Action: r.PlaylistCover,
			},
		},
	}
}

// cacheCommand manages the SQLite mirror and audio-feature cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local database cache",
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show cached run and audio-feature counts",
				Action: r.CacheInfo,
			},
			{
				Name:  "clear",
				Usage: "Clear cached rows",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "runs",
						Usage: "Clear the mirrored runs",
					},
					&cli.BoolFlag{
						Name:  "features",
						Usage: "Clear the audio-feature cache",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive generation.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive TUI for playlist generation",
		Action:  r.TUI,
	}
}
