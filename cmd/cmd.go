// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func outputFlags(pretty bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: pretty,
		},
	}
}

func ownerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "owner",
		Aliases: []string{"o"},
		Usage:   "Venue owner ID",
	}
}

// serveCommand runs the HTTP API and realtime feed
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the jukebox API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles database setup and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending SQLite migrations",
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the latest SQLite migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// songCommand handles catalog lookups and request operations
func songCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "song",
		Usage: "Search the catalog and manage song requests",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search the catalog for tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "term"},
				},
				Flags: append(outputFlags(false),
					&cli.StringFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Restrict the search to artist or track",
					},
				),
				Action: r.SongSearch,
			},
			{
				Name:   "recommendations",
				Usage:  "List recommended tracks",
				Flags:  outputFlags(false),
				Action: r.SongRecommendations,
			},
			{
				Name:  "request",
				Usage: "Request a track in a venue",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Flags: append(outputFlags(false),
					ownerFlag(),
					&cli.StringFlag{
						Name:  "customer",
						Usage: "Customer ID making the request",
					},
				),
				Action: r.SongRequest,
			},
			{
				Name:  "review",
				Usage: "Approve or reject a request",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reject",
						Usage: "Reject instead of approve",
					},
				},
				Action: r.SongReview,
			},
			{
				Name:  "reset",
				Usage: "Delete a rejected request so it can be requested again",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SongReset,
			},
			{
				Name:  "play",
				Usage: "Mark an approved request as playing",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SongPlay,
			},
		},
	}
}

// queueCommand handles a venue's queue as a whole
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect and advance a venue's queue",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List pending, approved and rejected requests",
				Flags:  append(outputFlags(true), ownerFlag()),
				Action: r.QueueList,
			},
			{
				Name:   "next",
				Usage:  "Play the next approved request",
				Flags:  []cli.Flag{ownerFlag()},
				Action: r.QueueNext,
			},
			{
				Name:  "export",
				Usage: "Export the queue to CSV, Markdown or text",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:  "format",
						Usage: "csv, markdown or text",
						Value: "csv",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path (defaults to the owner ID)",
					},
					&cli.BoolFlag{
						Name:  "download-cover",
						Usage: "Save the playing song's cover next to the Markdown export",
					},
				},
				Action: r.QueueExport,
			},
			{
				Name:  "export-all",
				Usage: "Export several venues' queues concurrently",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "owner",
						Usage:    "Owner (venue) ID, repeatable",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "json, csv, markdown or txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Output directory (default: jukebox_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (max 10)",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Snapshot requests per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "download-cover",
						Usage: "Save each playing song's cover with Markdown exports",
					},
				},
				Action: r.QueueExportAll,
			},
		},
	}
}

// watchCommand returns the top-level TUI command for the owner console.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"ui", "console"},
		Usage:   "Launch the live owner console",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where the console writes its logs",
				Value: "./tmp/jukebox-console.log",
			},
		},
		Action: r.Watch,
	}
}

// tokenCommand issues owner tokens
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage owner tokens",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Sign an owner token with auth.jwt_secret",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: r.TokenIssue,
			},
		},
	}
}
