package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

var baseTime = time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)

func newRequest(songID, customerID, ownerID string, offset time.Duration) *models.RequestSong {
	song := models.Song{ID: songID, Title: "Title " + songID, Artist: "Artist", CoverImage: "https://img/" + songID, PlayTime: "3:30"}
	return models.NewRequestSong(song, customerID, ownerID, baseTime.Add(offset))
}

func mustCreate(t *testing.T, repo RequestStore, req *models.RequestSong) *models.RequestSong {
	t.Helper()
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

func approve(t *testing.T, repo RequestStore, id int64) {
	t.Helper()
	if _, err := repo.UpdateStatus(context.Background(), id, models.StatusApproved); err != nil {
		t.Fatalf("failed to approve request %d: %v", id, err)
	}
}

func playingIDs(t *testing.T, repo RequestStore, ownerID string) []int64 {
	t.Helper()
	rows, err := repo.ListByOwner(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("failed to list requests: %v", err)
	}
	var ids []int64
	for _, row := range rows {
		if row.IsPlaying {
			ids = append(ids, row.ID)
		}
	}
	return ids
}

func TestRequestRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))

		if req.ID == 0 {
			t.Error("request ID should be set after creation")
		}

		got, err := repo.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to get request: %v", err)
		}

		if got.SongTitle != "Title trk-1" || got.Status != models.StatusPending || got.IsPlaying {
			t.Errorf("unexpected stored row %+v", got)
		}

		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("expected created_at %v, got %v", baseTime, got.CreatedAt)
		}
	})

	t.Run("Create owner request is approved", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "venue-1", "venue-1", 0))

		got, err := repo.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to get request: %v", err)
		}
		if got.Status != models.StatusApproved {
			t.Errorf("expected approved, got %s", got.Status)
		}
	})

	t.Run("Create duplicate", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))

		err := repo.Create(ctx, newRequest("trk-1", "cust-1", "venue-1", time.Minute))
		if !errors.Is(err, shared.ErrDuplicateRequest) {
			t.Errorf("expected ErrDuplicateRequest, got %v", err)
		}

		// another customer may request the same song
		mustCreate(t, repo, newRequest("trk-1", "cust-2", "venue-1", time.Minute))
	})

	t.Run("Create invalid", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := newRequest("trk-1", "cust-1", "", 0)
		if err := repo.Create(ctx, req); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get not found", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, 42); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}
	})

	t.Run("FindBySongAndCustomer", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))

		got, err := repo.FindBySongAndCustomer(ctx, "trk-1", "cust-1")
		if err != nil {
			t.Fatalf("failed to find request: %v", err)
		}
		if got.ID != req.ID {
			t.Errorf("expected id %d, got %d", req.ID, got.ID)
		}

		if _, err := repo.FindBySongAndCustomer(ctx, "trk-1", "cust-2"); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}
	})

	t.Run("ListByOwner", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		third := mustCreate(t, repo, newRequest("trk-3", "cust-1", "venue-1", 3*time.Minute))
		first := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", time.Minute))
		second := mustCreate(t, repo, newRequest("trk-2", "cust-2", "venue-1", 2*time.Minute+500*time.Millisecond))
		mustCreate(t, repo, newRequest("trk-9", "cust-1", "venue-2", 0))

		rows, err := repo.ListByOwner(ctx, "venue-1")
		if err != nil {
			t.Fatalf("failed to list requests: %v", err)
		}

		want := []int64{first.ID, second.ID, third.ID}
		if len(rows) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(rows))
		}
		for i, row := range rows {
			if row.ID != want[i] {
				t.Errorf("row %d: expected id %d, got %d", i, want[i], row.ID)
			}
			if row.OwnerID != "venue-1" {
				t.Errorf("row %d leaked from owner %s", i, row.OwnerID)
			}
		}

		empty, err := repo.ListByOwner(ctx, "nobody")
		if err != nil {
			t.Fatalf("failed to list requests: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", empty)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))

		change, err := repo.UpdateStatus(ctx, req.ID, models.StatusApproved)
		if err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		if change.Old.Status != models.StatusPending || change.New.Status != models.StatusApproved {
			t.Errorf("unexpected change %+v -> %+v", change.Old.Status, change.New.Status)
		}

		// last write wins
		if _, err := repo.UpdateStatus(ctx, req.ID, models.StatusRejected); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		got, err := repo.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to get request: %v", err)
		}
		if got.Status != models.StatusRejected {
			t.Errorf("expected rejected, got %s", got.Status)
		}

		if _, err := repo.UpdateStatus(ctx, 999, models.StatusApproved); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}

		if _, err := repo.UpdateStatus(ctx, req.ID, models.Status("playing")); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("UpdateStatus clears playing flag", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))
		approve(t, repo, req.ID)

		if _, err := repo.SetPlaying(ctx, req.ID); err != nil {
			t.Fatalf("failed to set playing: %v", err)
		}

		change, err := repo.UpdateStatus(ctx, req.ID, models.StatusRejected)
		if err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		if !change.Old.IsPlaying || change.New.IsPlaying {
			t.Errorf("expected playing flag to be cleared, got %+v", change)
		}
		if ids := playingIDs(t, repo, "venue-1"); len(ids) != 0 {
			t.Errorf("expected no playing rows, got %v", ids)
		}
	})

	t.Run("DeleteRejected", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))
		if _, err := repo.UpdateStatus(ctx, req.ID, models.StatusRejected); err != nil {
			t.Fatalf("failed to reject request: %v", err)
		}

		deleted, err := repo.DeleteRejected(ctx, req.ID)
		if err != nil {
			t.Fatalf("failed to delete request: %v", err)
		}
		if deleted.ID != req.ID || deleted.OwnerID != "venue-1" || deleted.Status != models.StatusRejected {
			t.Errorf("unexpected deleted row %+v", deleted)
		}

		if _, err := repo.Get(ctx, req.ID); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound after delete, got %v", err)
		}

		if _, err := repo.DeleteRejected(ctx, req.ID); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound on second delete, got %v", err)
		}

		// the customer can request the song again
		mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", time.Minute))
	})

	t.Run("DeleteRejected Keeps Reviewed Rows", func(t *testing.T) {
		repo := NewRequestRepository(setupTestDB(t))
		req := mustCreate(t, repo, newRequest("trk-1", "cust-1", "venue-1", 0))
		if _, err := repo.UpdateStatus(ctx, req.ID, models.StatusRejected); err != nil {
			t.Fatalf("failed to reject request: %v", err)
		}
		approve(t, repo, req.ID)

		if _, err := repo.DeleteRejected(ctx, req.ID); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus for an approved row, got %v", err)
		}

		row, err := repo.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("approved row should survive: %v", err)
		}
		if row.Status != models.StatusApproved {
			t.Errorf("expected approved row, got %s", row.Status)
		}
	})
}
