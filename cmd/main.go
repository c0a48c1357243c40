package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/shared"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command with the global flags every subcommand reads through [Runner.Before].
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "jukebox",
		Usage:   "Song request queue for venues",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file loaded before applying JUKEBOX_* overrides",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Jukebox server address (overrides client.api_url)",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Owner token sent with review, reset and play requests",
				Sources: cli.EnvVars("JUKEBOX_TOKEN"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}
