package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/tasks"
)

// QueueView is the JSON shape of `queue list`.
type QueueView struct {
	OwnerID    string               `json:"owner_id"`
	NowPlaying *models.RequestSong  `json:"now_playing,omitempty"`
	Queue      []models.RequestSong `json:"queue"`
	Pending    []models.RequestSong `json:"pending"`
	Rejected   []models.RequestSong `json:"rejected"`
}

// loadStore fills a client store from a one-off snapshot.
//
// The store has no change feed: it is only read once. Like any playback-owning
// client, loading starts the first approved request when nothing is playing.
func (r *Runner) loadStore(ctx context.Context, owner string) (*client.Store, error) {
	api, err := r.client()
	if err != nil {
		return nil, err
	}
	store := client.NewStore(owner, api, nil, r.logger)
	if err := store.FetchSnapshot(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// QueueList prints the owner's play queue and review buckets without changing playback.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	rows, err := api.Snapshot(ctx, owner)
	if err != nil {
		return err
	}
	export := formatter.NewQueueExport(owner, rows, time.Now())

	view := QueueView{
		OwnerID:  owner,
		Queue:    export.ByStatus(models.StatusApproved),
		Pending:  export.ByStatus(models.StatusPending),
		Rejected: export.ByStatus(models.StatusRejected),
	}
	if playing, ok := export.NowPlaying(); ok {
		view.NowPlaying = &playing
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Queue for %s", owner))
	if view.NowPlaying != nil {
		r.writePlain("▶ %s\n", describe(*view.NowPlaying))
	} else {
		r.writePlain("Nothing playing\n")
	}
	r.writeSection("Play queue", view.Queue)
	r.writeSection("Pending review", view.Pending)
	r.writeSection("Rejected", view.Rejected)
	return nil
}

func (r *Runner) writeSection(title string, rows []models.RequestSong) {
	r.writePlainln("%s (%d)", title, len(rows))
	for _, row := range rows {
		marker := " "
		if row.IsPlaying {
			marker = "▶"
		}
		r.writePlain("%s #%-4d %s\n", marker, row.ID, describe(row))
	}
}

func describe(r models.RequestSong) string {
	return fmt.Sprintf("%s - %s [%s] by %s", r.ArtistName, r.SongTitle, r.PlayTime, r.CustomerID)
}

// QueueNext advances playback to the next approved request.
//
// When nothing is playing, loading the queue already starts the first approved request.
func (r *Runner) QueueNext(ctx context.Context, cmd *cli.Command) error {
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}

	store, err := r.loadStore(ctx, owner)
	if err != nil {
		return err
	}

	playing, ok := store.NowPlaying()
	switch {
	case store.StartedPlayback():
		r.writePlain("▶ %s\n", describe(playing))
		return nil
	case !ok:
		r.writePlain("Queue is empty\n")
		return nil
	}

	next, err := store.Advance(ctx)
	if errors.Is(err, shared.ErrEndOfQueue) {
		r.writePlain("End of queue\n")
		return nil
	}
	if err != nil {
		return err
	}
	r.writePlain("▶ %s\n", describe(*next))
	return nil
}

// QueueExport writes the owner's queue to disk in the chosen format.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	rows, err := api.Snapshot(ctx, owner)
	if err != nil {
		return err
	}
	export := formatter.NewQueueExport(owner, rows, time.Now())
	output := cmd.String("output")

	switch format := strings.ToLower(cmd.String("format")); format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Requests written to %s\n", result.RequestsFile)
		r.writePlain("✓ Metadata written to %s\n", result.MetadataFile)
	case "markdown", "md":
		result, err := formatter.WriteMarkdownExport(export, output, cmd.Bool("download-cover"))
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			r.logger.Warn("export warning", "error", w)
		}
		for _, f := range result.Files {
			r.writePlain("✓ Wrote %s\n", f)
		}
	case "text", "txt":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Queue written to %s\n", path)
	default:
		return fmt.Errorf("%w: format %q must be csv, markdown or text", shared.ErrInvalidFlag, format)
	}
	return nil
}

// QueueExportAll exports several owners' queues with a rate limited worker pool.
func (r *Runner) QueueExportAll(ctx context.Context, cmd *cli.Command) error {
	owners := cmd.StringSlice("owner")
	if len(owners) == 0 {
		return fmt.Errorf("%w: at least one --owner", shared.ErrMissingArgument)
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	format := strings.ToLower(cmd.String("format"))
	switch format {
	case "md":
		format = "markdown"
	case "text":
		format = "txt"
	case "json", "csv", "markdown", "txt":
	default:
		return fmt.Errorf("%w: format %q must be json, csv, markdown or txt", shared.ErrInvalidFlag, format)
	}

	prog := make(chan tasks.ProgressUpdate, len(owners)*2+1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range prog {
			r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()

	result, err := tasks.NewExporter(api).BulkExport(ctx, prog, owners, tasks.BulkExportOpts{
		Format:        format,
		OutputDir:     cmd.String("output-dir"),
		NumWorkers:    int(cmd.Int("workers")),
		RateLimit:     cmd.Float("rate"),
		DownloadCover: cmd.Bool("download-cover"),
	})
	close(prog)
	<-done
	if err != nil {
		return err
	}

	for _, res := range result.Results {
		if res.Success {
			r.writePlain("✓ %s: %d requests, %d files\n", res.OwnerID, res.Requests, len(res.Files))
		} else {
			r.writePlain("✗ %s: %v\n", res.OwnerID, res.Error)
		}
	}
	r.writePlain("Exported %d/%d venues to %s\n", result.SuccessfulExports, result.TotalVenues, result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}
