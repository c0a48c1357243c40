package queue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

type fixture struct {
	service *Service
	store   *repositories.RequestRepository
	catalog *tu.MockCatalog
	hub     *realtime.Hub
}

// steppingClock returns a clock that advances one minute per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := log.New(io.Discard)
	hub := realtime.NewHub(64, logger)
	t.Cleanup(func() { hub.Close() })

	store := repositories.NewRequestRepository(db)
	catalog := tu.NewMockCatalog(tu.Song("T1"), tu.Song("T2"), tu.Song("T3"))
	service := NewService(store, catalog, hub, logger).WithClock(steppingClock())

	return &fixture{service: service, store: store, catalog: catalog, hub: hub}
}

func (f *fixture) subscribe(t *testing.T, ownerID string) *realtime.Subscription {
	t.Helper()
	sub, err := f.hub.Subscribe(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	t.Cleanup(sub.Close)
	return sub
}

func next(t *testing.T, sub *realtime.Subscription) models.ChangeEvent {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.ChangeEvent{}
}

func noEvent(t *testing.T, sub *realtime.Subscription) {
	t.Helper()
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(30 * time.Millisecond):
	}
}

func (f *fixture) only(t *testing.T, ownerID string) models.RequestSong {
	t.Helper()
	rows, err := f.store.ListByOwner(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	return rows[0]
}

func TestRequestSong(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Pending Request", func(t *testing.T) {
		f := setup(t)
		sub := f.subscribe(t, "venue-1")

		song, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1")
		if err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		if song.Title != "Title T1" {
			t.Errorf("unexpected song %+v", song)
		}

		row := f.only(t, "venue-1")
		if row.Status != models.StatusPending || row.IsPlaying {
			t.Errorf("expected pending non-playing row, got %+v", row)
		}
		if row.SongTitle != "Title T1" || row.PlayTime != "3:30" {
			t.Errorf("expected catalog metadata on row, got %+v", row)
		}

		e := next(t, sub)
		if e.Type != models.EventInsert || e.New.ID != row.ID {
			t.Errorf("expected INSERT for %d, got %+v", row.ID, e)
		}
		noEvent(t, sub)
	})

	t.Run("Owner Request Is Approved", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "venue-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		if row := f.only(t, "venue-1"); row.Status != models.StatusApproved {
			t.Errorf("expected approved, got %s", row.Status)
		}
	})

	t.Run("Duplicate Request", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}

		_, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1")
		if !errors.Is(err, shared.ErrDuplicateRequest) {
			t.Fatalf("expected ErrDuplicateRequest, got %v", err)
		}
		if calls := f.catalog.Calls("Track"); calls != 1 {
			t.Errorf("expected catalog to be skipped for duplicates, got %d calls", calls)
		}

		if _, err := f.service.RequestSong(ctx, "T1", "cust-2", "venue-1"); err != nil {
			t.Errorf("another customer should be able to request the song: %v", err)
		}
	})

	t.Run("Catalog Failure Aborts Before Write", func(t *testing.T) {
		f := setup(t)
		sub := f.subscribe(t, "venue-1")
		f.catalog.Err = errors.New("token expired")

		_, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1")
		if !errors.Is(err, shared.ErrUpstreamCatalog) {
			t.Fatalf("expected ErrUpstreamCatalog, got %v", err)
		}

		rows, _ := f.store.ListByOwner(ctx, "venue-1")
		if len(rows) != 0 {
			t.Errorf("expected no rows, got %d", len(rows))
		}
		noEvent(t, sub)
	})

	t.Run("Unknown Track", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.RequestSong(ctx, "nope", "cust-1", "venue-1")
		if !errors.Is(err, shared.ErrUpstreamCatalog) || !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected upstream not found, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		f := setup(t)
		tc := [][3]string{
			{"", "cust-1", "venue-1"},
			{"T1", " ", "venue-1"},
			{"T1", "cust-1", ""},
		}
		for _, args := range tc {
			if _, err := f.service.RequestSong(ctx, args[0], args[1], args[2]); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for %v, got %v", args, err)
			}
		}
	})
}

func TestReviewSong(t *testing.T) {
	ctx := context.Background()

	t.Run("Last Write Wins", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		id := f.only(t, "venue-1").ID
		sub := f.subscribe(t, "venue-1")

		if err := f.service.ReviewSong(ctx, id, true); err != nil {
			t.Fatalf("failed to approve: %v", err)
		}
		if err := f.service.ReviewSong(ctx, id, false); err != nil {
			t.Fatalf("failed to reject: %v", err)
		}

		if row := f.only(t, "venue-1"); row.Status != models.StatusRejected {
			t.Errorf("expected rejected, got %s", row.Status)
		}

		first, second := next(t, sub), next(t, sub)
		if first.Type != models.EventUpdate || first.Old.Status != models.StatusPending || first.New.Status != models.StatusApproved {
			t.Errorf("unexpected first update %+v", first)
		}
		if second.Old.Status != models.StatusApproved || second.New.Status != models.StatusRejected {
			t.Errorf("unexpected second update %+v", second)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		f := setup(t)
		if err := f.service.ReviewSong(ctx, 99, true); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}
		if err := f.service.ReviewSong(ctx, 0, true); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Rejecting Playing Request Stops It", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "venue-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		id := f.only(t, "venue-1").ID
		if err := f.service.SetPlaying(ctx, id); err != nil {
			t.Fatalf("failed to set playing: %v", err)
		}
		if err := f.service.ReviewSong(ctx, id, false); err != nil {
			t.Fatalf("failed to reject: %v", err)
		}
		if row := f.only(t, "venue-1"); row.IsPlaying {
			t.Error("expected rejected row to stop playing")
		}
	})
}

func TestResetRejectedSong(t *testing.T) {
	ctx := context.Background()

	t.Run("Request Again After Reset", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		id := f.only(t, "venue-1").ID
		if err := f.service.ReviewSong(ctx, id, false); err != nil {
			t.Fatalf("failed to reject: %v", err)
		}

		sub := f.subscribe(t, "venue-1")
		if err := f.service.ResetRejectedSong(ctx, id); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}
		e := next(t, sub)
		if e.Type != models.EventDelete || e.Old.ID != id || e.OwnerID != "venue-1" {
			t.Errorf("expected DELETE for %d, got %+v", id, e)
		}

		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Errorf("expected second request to succeed, got %v", err)
		}
	})

	t.Run("Only Rejected Requests", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		id := f.only(t, "venue-1").ID
		if err := f.service.ResetRejectedSong(ctx, id); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
		f.only(t, "venue-1")
	})

	t.Run("Not Found", func(t *testing.T) {
		f := setup(t)
		if err := f.service.ResetRejectedSong(ctx, 42); !errors.Is(err, shared.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}
	})
}

func TestSetPlaying(t *testing.T) {
	ctx := context.Background()

	approve := func(t *testing.T, f *fixture, songs ...string) []int64 {
		t.Helper()
		for _, s := range songs {
			if _, err := f.service.RequestSong(ctx, s, "venue-1", "venue-1"); err != nil {
				t.Fatalf("failed to request %s: %v", s, err)
			}
		}
		rows, _ := f.store.ListByOwner(ctx, "venue-1")
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		return ids
	}

	playing := func(t *testing.T, f *fixture) []int64 {
		t.Helper()
		rows, _ := f.store.ListByOwner(ctx, "venue-1")
		var ids []int64
		for _, r := range rows {
			if r.IsPlaying {
				ids = append(ids, r.ID)
			}
		}
		return ids
	}

	t.Run("Moves Playback", func(t *testing.T) {
		f := setup(t)
		ids := approve(t, f, "T1", "T2")
		sub := f.subscribe(t, "venue-1")

		if err := f.service.SetPlaying(ctx, ids[0]); err != nil {
			t.Fatalf("failed to set playing: %v", err)
		}
		if e := next(t, sub); e.New.ID != ids[0] || !e.New.IsPlaying {
			t.Errorf("unexpected event %+v", e)
		}

		if err := f.service.SetPlaying(ctx, ids[1]); err != nil {
			t.Fatalf("failed to set playing: %v", err)
		}
		cleared, set := next(t, sub), next(t, sub)
		if cleared.New.ID != ids[0] || cleared.New.IsPlaying {
			t.Errorf("expected first row to be cleared, got %+v", cleared)
		}
		if set.New.ID != ids[1] || !set.New.IsPlaying || set.Old.Status != set.New.Status {
			t.Errorf("expected same-status update setting second row, got %+v", set)
		}

		if got := playing(t, f); len(got) != 1 || got[0] != ids[1] {
			t.Errorf("expected only %d playing, got %v", ids[1], got)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := setup(t)
		ids := approve(t, f, "T1")
		if err := f.service.SetPlaying(ctx, ids[0]); err != nil {
			t.Fatalf("failed to set playing: %v", err)
		}
		sub := f.subscribe(t, "venue-1")
		if err := f.service.SetPlaying(ctx, ids[0]); err != nil {
			t.Fatalf("failed to repeat set playing: %v", err)
		}
		noEvent(t, sub)
	})

	t.Run("Pending Request", func(t *testing.T) {
		f := setup(t)
		if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
		id := f.only(t, "venue-1").ID
		if err := f.service.SetPlaying(ctx, id); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("Concurrent Calls Keep One Playing", func(t *testing.T) {
		f := setup(t)
		ids := approve(t, f, "T1", "T2", "T3")

		var wg sync.WaitGroup
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if err := f.service.SetPlaying(ctx, id); err != nil {
					t.Errorf("set playing %d: %v", id, err)
				}
			}(ids[i%len(ids)])
		}
		wg.Wait()

		if got := playing(t, f); len(got) != 1 {
			t.Errorf("expected exactly one playing row, got %v", got)
		}
	})
}

type failingBroker struct{ realtime.Broker }

func (failingBroker) Publish(context.Context, models.ChangeEvent) error {
	return shared.ErrBrokerClosed
}

func TestPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	var buf bytes.Buffer
	logger := log.New(&buf)
	service := NewService(f.store, f.catalog, failingBroker{}, logger)

	if _, err := service.RequestSong(ctx, "T1", "cust-1", "venue-1"); err != nil {
		t.Fatalf("expected write to succeed despite publish failure, got %v", err)
	}
	if !strings.Contains(buf.String(), "failed to publish change") {
		t.Errorf("expected publish failure to be logged, got %q", buf.String())
	}
	f.only(t, "venue-1")
}

func TestCatalogPassthrough(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	songs, err := f.service.RecommendedSongs(ctx)
	if err != nil || len(songs) != 3 {
		t.Fatalf("unexpected recommendations %v (%v)", songs, err)
	}

	songs, err = f.service.Search(ctx, "track", "t2")
	if err != nil || len(songs) != 1 || songs[0].ID != "T2" {
		t.Fatalf("unexpected search result %v (%v)", songs, err)
	}

	f.catalog.Err = errors.New("rate limited")
	if _, err := f.service.RecommendedSongs(ctx); !errors.Is(err, shared.ErrUpstreamCatalog) {
		t.Errorf("expected ErrUpstreamCatalog, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, s := range []string{"T3", "T1", "T2"} {
		if _, err := f.service.RequestSong(ctx, s, "cust-1", "venue-1"); err != nil {
			t.Fatalf("failed to request: %v", err)
		}
	}
	if _, err := f.service.RequestSong(ctx, "T1", "cust-1", "venue-2"); err == nil {
		t.Fatal("expected duplicate across venues for the same customer")
	}

	rows, err := f.service.Snapshot(ctx, "venue-1")
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	got := []string{rows[0].SongID, rows[1].SongID, rows[2].SongID}
	if strings.Join(got, ",") != "T3,T1,T2" {
		t.Errorf("expected creation order, got %v", got)
	}

	if _, err := f.service.Snapshot(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	row, err := f.service.Request(ctx, rows[0].ID)
	if err != nil || row.SongID != "T3" {
		t.Errorf("unexpected request %+v (%v)", row, err)
	}
}
