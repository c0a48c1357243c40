package main

import (
	"context"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/ui"
)

// Watch launches the owner console bound to the server's realtime feed.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	r.SetLogger(fileLogger)

	header := http.Header{}
	if token := cmd.String("token"); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	channel := realtime.NewWSChannel(r.config.Client.RealtimeURL, header, fileLogger)
	store := client.NewStore(owner, api, channel, fileLogger)

	model := ui.NewModel(ctx, store, api)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
