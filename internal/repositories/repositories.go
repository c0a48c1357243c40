// package repositories provides persistence layer implementations for request rows.
package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// RequestStore persists [models.RequestSong] rows partitioned by owner.
//
// Mutations return the row images they changed so callers can publish change events
// without a second read.
type RequestStore interface {
	// Create inserts req as a non-playing row and sets its ID.
	// Returns [shared.ErrDuplicateRequest] when the customer already requested the song.
	Create(ctx context.Context, req *models.RequestSong) error

	// Get returns the row with id or [shared.ErrRequestNotFound].
	Get(ctx context.Context, id int64) (*models.RequestSong, error)

	// FindBySongAndCustomer returns the customer's existing request for a song or [shared.ErrRequestNotFound].
	FindBySongAndCustomer(ctx context.Context, songID, customerID string) (*models.RequestSong, error)

	// ListByOwner returns every row of the owner, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.RequestSong, error)

	// UpdateStatus sets the status unconditionally. Leaving the approved state clears is_playing.
	UpdateStatus(ctx context.Context, id int64, status models.Status) (*models.RowChange, error)

	// DeleteRejected removes a rejected row and returns its last image.
	// Returns [shared.ErrInvalidStatus] when the row is not rejected at the time of the delete.
	DeleteRejected(ctx context.Context, id int64) (*models.RequestSong, error)

	// SetPlaying marks id as the owner's only playing row inside one transaction
	// and returns every row whose flag changed. Repeating the call returns no changes.
	SetPlaying(ctx context.Context, id int64) ([]models.RowChange, error)
}

// requestColumns is the column list shared by every SELECT and RETURNING clause.
const requestColumns = `id, song_id, song_title, artist_name, cover_image, play_time, customer_id, owner_id, status, is_playing, created_at`

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*models.RequestSong, error) {
	var r models.RequestSong
	var status string
	if err := s.Scan(
		&r.ID,
		&r.SongID,
		&r.SongTitle,
		&r.ArtistName,
		&r.CoverImage,
		&r.PlayTime,
		&r.CustomerID,
		&r.OwnerID,
		&status,
		&r.IsPlaying,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// playPlan is the outcome of [planSetPlaying]: the flag changes needed to make one row the owner's only playing row.
type playPlan struct {
	target  models.RequestSong
	cleared []models.RequestSong
	changes []models.RowChange
}

// noop reports whether the target already is the owner's only playing row.
func (p playPlan) noop() bool {
	return len(p.changes) == 0
}

// planSetPlaying decides which of the owner's rows change when id starts playing.
func planSetPlaying(rows []models.RequestSong, id int64) (*playPlan, error) {
	var plan playPlan
	found := false
	for _, row := range rows {
		if row.ID == id {
			plan.target = row
			found = true
			continue
		}
		if row.IsPlaying {
			plan.cleared = append(plan.cleared, row)
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: %d", shared.ErrRequestNotFound, id)
	}
	if plan.target.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: request %d is %s, only approved requests can play", shared.ErrInvalidStatus, id, plan.target.Status)
	}

	for _, row := range plan.cleared {
		next := row
		next.IsPlaying = false
		plan.changes = append(plan.changes, models.RowChange{Old: row, New: next})
	}
	if !plan.target.IsPlaying {
		next := plan.target
		next.IsPlaying = true
		plan.changes = append(plan.changes, models.RowChange{Old: plan.target, New: next})
	}
	return &plan, nil
}

// statusChange computes the new image of old after a review.
func statusChange(old models.RequestSong, status models.Status) (*models.RowChange, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, status)
	}
	next := old
	next.Status = status
	next.IsPlaying = old.IsPlaying && status == models.StatusApproved
	return &models.RowChange{Old: old, New: next}, nil
}

var (
	_ RequestStore = (*RequestRepository)(nil)
	_ RequestStore = (*PGRequestRepository)(nil)
)
