package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// PgxPool is the subset of [pgxpool.Pool] used by [PGRequestRepository].
// It is implemented by *pgxpool.Pool and can be mocked for testing.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQuerier is satisfied by [PgxPool] and [pgx.Tx].
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

const songCustomerIndex = "idx_request_songs_song_customer"

// postgresSchema creates the request table and its invariant-enforcing indexes.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS request_songs (
		id BIGSERIAL PRIMARY KEY,
		song_id TEXT NOT NULL,
		song_title TEXT NOT NULL,
		artist_name TEXT NOT NULL,
		cover_image TEXT NOT NULL DEFAULT '',
		play_time TEXT NOT NULL DEFAULT '0:00',
		customer_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		is_playing BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + songCustomerIndex + ` ON request_songs(song_id, customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_request_songs_owner_created ON request_songs(owner_id, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_request_songs_owner_playing ON request_songs(owner_id) WHERE is_playing`,
}

// NewPostgresPool connects to the Postgres database at url and verifies the connection.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// MigratePostgres creates the request schema when it does not exist yet.
func MigratePostgres(ctx context.Context, db PgxPool) error {
	for _, stmt := range postgresSchema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	return nil
}

// PGRequestRepository implements [RequestStore] on Postgres.
type PGRequestRepository struct {
	db PgxPool
}

// NewPGRequestRepository creates a PGRequestRepository over a pool.
func NewPGRequestRepository(db PgxPool) *PGRequestRepository {
	return &PGRequestRepository{db: db}
}

// Create inserts a new [models.RequestSong] and sets its ID
func (r *PGRequestRepository) Create(ctx context.Context, req *models.RequestSong) error {
	req.IsPlaying = false
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO request_songs (song_id, song_title, artist_name, cover_image, play_time, customer_id, owner_id, status, is_playing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		req.SongID,
		req.SongTitle,
		req.ArtistName,
		req.CoverImage,
		req.PlayTime,
		req.CustomerID,
		req.OwnerID,
		string(req.Status),
		req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		if isPGUniqueViolation(err, songCustomerIndex) {
			return fmt.Errorf("%w: song %s for customer %s", shared.ErrDuplicateRequest, req.SongID, req.CustomerID)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID
func (r *PGRequestRepository) Get(ctx context.Context, id int64) (*models.RequestSong, error) {
	return r.getWith(ctx, r.db, id, "")
}

// FindBySongAndCustomer retrieves the request a customer made for a song
func (r *PGRequestRepository) FindBySongAndCustomer(ctx context.Context, songID, customerID string) (*models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE song_id = $1 AND customer_id = $2`

	req, err := scanRequest(r.db.QueryRow(ctx, query, songID, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s for customer %s", shared.ErrRequestNotFound, songID, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	return req, nil
}

// ListByOwner retrieves all requests of an owner ordered by creation time
func (r *PGRequestRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.RequestSong, error) {
	return r.listWith(ctx, r.db, ownerID, "")
}

// UpdateStatus sets the status of a request and returns both row images
func (r *PGRequestRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) (*models.RowChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := r.getWith(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}

	change, err := statusChange(*old, status)
	if err != nil {
		return nil, err
	}

	query := `UPDATE request_songs SET status = $1, is_playing = $2 WHERE id = $3`
	if _, err := tx.Exec(ctx, query, string(change.New.Status), change.New.IsPlaying, id); err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return change, nil
}

// DeleteRejected removes a rejected request and returns the deleted row.
//
// Only a row that is still rejected when the DELETE runs is removed.
func (r *PGRequestRepository) DeleteRejected(ctx context.Context, id int64) (*models.RequestSong, error) {
	query := `DELETE FROM request_songs WHERE id = $1 AND status = 'rejected' RETURNING ` + requestColumns

	old, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return old, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to delete request: %w", err)
	}

	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM request_songs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request status: %w", err)
	}
	return nil, fmt.Errorf("%w: request %d is %s", shared.ErrInvalidStatus, id, status)
}

// SetPlaying makes id the owner's only playing row in one transaction.
//
// Every row of the owner is locked first, so concurrent calls for the same venue run one after another.
func (r *PGRequestRepository) SetPlaying(ctx context.Context, id int64) ([]models.RowChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID string
	err = tx.QueryRow(ctx, `SELECT owner_id FROM request_songs WHERE id = $1`, id).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request owner: %w", err)
	}

	rows, err := r.listWith(ctx, tx, ownerID, " FOR UPDATE")
	if err != nil {
		return nil, err
	}

	plan, err := planSetPlaying(rows, id)
	if err != nil {
		return nil, err
	}
	if plan.noop() {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit playing change: %w", err)
		}
		return nil, nil
	}

	clearQuery := `UPDATE request_songs SET is_playing = FALSE WHERE owner_id = $1 AND is_playing AND id <> $2`
	if _, err := tx.Exec(ctx, clearQuery, ownerID, id); err != nil {
		return nil, fmt.Errorf("failed to clear playing flag: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE request_songs SET is_playing = TRUE WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to set playing flag: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit playing change: %w", err)
	}
	return plan.changes, nil
}

func (r *PGRequestRepository) getWith(ctx context.Context, q pgQuerier, id int64, lock string) (*models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE id = $1` + lock

	req, err := scanRequest(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", shared.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *PGRequestRepository) listWith(ctx context.Context, q pgQuerier, ownerID, lock string) ([]models.RequestSong, error) {
	query := `SELECT ` + requestColumns + ` FROM request_songs WHERE owner_id = $1 ORDER BY created_at ASC, id ASC` + lock

	rows, err := q.Query(ctx, query, ownerID)
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

func isPGUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == "" || pgErr.ConstraintName == constraint
}
