package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// SongSearch searches the catalog through the server.
func (r *Runner) SongSearch(ctx context.Context, cmd *cli.Command) error {
	term := cmd.StringArg("term")
	if term == "" {
		return fmt.Errorf("%w: search term", shared.ErrMissingArgument)
	}

	api, err := r.client()
	if err != nil {
		return err
	}

	r.logger.Debug("searching catalog", "filter", cmd.String("filter"), "term", term)
	songs, err := api.Search(ctx, cmd.String("filter"), term)
	if err != nil {
		return err
	}
	return r.writeSongs(cmd, fmt.Sprintf("Results for %q", term), songs)
}

// SongRecommendations lists the catalog's recommended tracks.
func (r *Runner) SongRecommendations(ctx context.Context, cmd *cli.Command) error {
	api, err := r.client()
	if err != nil {
		return err
	}

	songs, err := api.Recommendations(ctx)
	if err != nil {
		return err
	}
	return r.writeSongs(cmd, "Recommendations", songs)
}

func (r *Runner) writeSongs(cmd *cli.Command, title string, songs []models.Song) error {
	if cmd.Bool("json") {
		return r.writeJSON(songs, cmd.Bool("pretty"))
	}

	r.writePlainHeader(title)
	if len(songs) == 0 {
		r.writePlain("No tracks found\n")
		return nil
	}
	for i, s := range songs {
		r.writePlain("%2d. %s - %s [%s]\n", i+1, s.Artist, s.Title, s.PlayTime)
		r.writePlain("    id: %s\n", s.ID)
	}
	return nil
}

// SongRequest requests a track on behalf of a customer.
func (r *Runner) SongRequest(ctx context.Context, cmd *cli.Command) error {
	track := cmd.StringArg("track")
	if track == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}
	customer := cmd.String("customer")
	if customer == "" {
		return fmt.Errorf("%w: --customer", shared.ErrMissingArgument)
	}

	api, err := r.client()
	if err != nil {
		return err
	}

	song, err := api.RequestSong(ctx, track, customer, owner)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}
	status := models.InitialStatus(customer, owner)
	r.writePlain("✓ Requested %s - %s (%s)\n", song.Artist, song.Title, status)
	return nil
}

// SongReview approves a request, or rejects it with --reject.
func (r *Runner) SongReview(ctx context.Context, cmd *cli.Command) error {
	id, err := requestID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	approved := !cmd.Bool("reject")
	if err := api.ReviewSong(ctx, id, approved); err != nil {
		return err
	}
	r.writePlain("✓ Request %d %s\n", id, models.ReviewStatus(approved))
	return nil
}

// SongReset deletes a rejected request.
func (r *Runner) SongReset(ctx context.Context, cmd *cli.Command) error {
	id, err := requestID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	if err := api.ResetRejectedSong(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Request %d reset\n", id)
	return nil
}

// SongPlay marks an approved request as the venue's playing song.
func (r *Runner) SongPlay(ctx context.Context, cmd *cli.Command) error {
	id, err := requestID(cmd)
	if err != nil {
		return err
	}
	api, err := r.client()
	if err != nil {
		return err
	}

	if err := api.SetPlaying(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Request %d is playing\n", id)
	return nil
}
