package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// RequestRepository implements [RequestStore] on SQLite.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new RequestRepository with the given database connection
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new [models.RequestSong] and sets its ID
func (r *RequestRepository) Create(ctx context.Context, req *models.RequestSong) error {
	req.IsPlaying = false
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO request_songs (song_id, song_title, artist_name, cover_image, play_time, customer_id, owner_id, status, is_playing, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		req.SongID,
		req.SongTitle,
		req.ArtistName,
		req.CoverImage,
		req.PlayTime,
		req.CustomerID,
		req.OwnerID,
		string(req.Status),
		req.CreatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: song %s for customer %s", shared.ErrDuplicateRequest, req.SongID, req.CustomerID)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read request id: %w", err)
	}
	req.ID = id

	return nil
}

// Get retrieves a request by ID
func (r *RequestRepository) Get(ctx context.Context, id int64) (*models.RequestSong, error) {
	return r.getWith(ctx, r.db, id)
}

// FindBySongAndCustomer retrieves the request a customer made for a song
func (r *RequestRepository) FindBySongAndCustomer(ctx context.Context, songID, customerID string) (*models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE song_id = ? AND customer_id = ?`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, songID, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s for customer %s", shared.ErrRequestNotFound, songID, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	return req, nil
}

// ListByOwner retrieves all requests of an owner ordered by creation time
func (r *RequestRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.RequestSong, error) {
	return r.listWith(ctx, r.db, ownerID)
}

// UpdateStatus sets the status of a request and returns both row images
func (r *RequestRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) (*models.RowChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := r.getWith(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	change, err := statusChange(*old, status)
	if err != nil {
		return nil, err
	}

	query := `UPDATE request_songs SET status = ?, is_playing = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, string(change.New.Status), change.New.IsPlaying, id); err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return change, nil
}

// DeleteRejected removes a rejected request and returns the deleted row
func (r *RequestRepository) DeleteRejected(ctx context.Context, id int64) (*models.RequestSong, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := r.getWith(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != models.StatusRejected {
		return nil, fmt.Errorf("%w: request %d is %s", shared.ErrInvalidStatus, id, old.Status)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM request_songs WHERE id = ? AND status = ?`, id, string(models.StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("failed to delete request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: request %d is no longer rejected", shared.ErrInvalidStatus, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return old, nil
}

// SetPlaying makes id the owner's only playing row in one transaction
func (r *RequestRepository) SetPlaying(ctx context.Context, id int64) ([]models.RowChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := r.getWith(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.listWith(ctx, tx, target.OwnerID)
	if err != nil {
		return nil, err
	}

	plan, err := planSetPlaying(rows, id)
	if err != nil {
		return nil, err
	}
	if plan.noop() {
		return nil, tx.Commit()
	}

	// Clear before set: the partial unique index rejects two playing rows at any point.
	clearQuery := `UPDATE request_songs SET is_playing = 0 WHERE owner_id = ? AND is_playing = 1 AND id <> ?`
	if _, err := tx.ExecContext(ctx, clearQuery, target.OwnerID, id); err != nil {
		return nil, fmt.Errorf("failed to clear playing flag: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE request_songs SET is_playing = 1 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to set playing flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit playing change: %w", err)
	}
	return plan.changes, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *RequestRepository) getWith(ctx context.Context, q querier, id int64) (*models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE id = ?`

	req, err := scanRequest(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *RequestRepository) listWith(ctx context.Context, q querier, ownerID string) ([]models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE owner_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []models.RequestSong{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return requests, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
