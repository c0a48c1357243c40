package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	t.Run("InitialStatus", func(t *testing.T) {
		if got := InitialStatus("venue-1", "venue-1"); got != StatusApproved {
			t.Errorf("owner request should be approved, got %s", got)
		}
		if got := InitialStatus("cust-1", "venue-1"); got != StatusPending {
			t.Errorf("customer request should be pending, got %s", got)
		}
	})

	t.Run("ReviewStatus", func(t *testing.T) {
		if ReviewStatus(true) != StatusApproved || ReviewStatus(false) != StatusRejected {
			t.Error("unexpected review mapping")
		}
	})

	t.Run("ParseStatus", func(t *testing.T) {
		got, err := ParseStatus(" Approved ")
		if err != nil || got != StatusApproved {
			t.Errorf("expected approved, got %q (%v)", got, err)
		}
		if _, err := ParseStatus("playing"); err == nil {
			t.Error("expected error for unknown status")
		}
	})
}

func TestRequestSong(t *testing.T) {
	created := time.Date(2024, 5, 1, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))
	song := Song{ID: "trk-1", Title: "Hey Jude", Artist: "The Beatles", CoverImage: "https://img/1", PlayTime: "7:11"}

	row := NewRequestSong(song, "cust-1", "venue-1", created)

	t.Run("NewRequestSong", func(t *testing.T) {
		if row.Status != StatusPending {
			t.Errorf("expected pending, got %s", row.Status)
		}
		if row.CreatedAt.Location() != time.UTC {
			t.Errorf("expected created_at in UTC, got %v", row.CreatedAt.Location())
		}
		if row.Song() != song {
			t.Errorf("expected song %+v, got %+v", song, row.Song())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		if err := row.Validate(); err != nil {
			t.Errorf("expected valid row: %v", err)
		}

		bad := *row
		bad.OwnerID = ""
		if err := bad.Validate(); err == nil {
			t.Error("expected error for missing owner")
		}

		playing := *row
		playing.IsPlaying = true
		if err := playing.Validate(); err == nil {
			t.Error("pending rows must not play")
		}
	})

	t.Run("JSON layout", func(t *testing.T) {
		data, err := json.Marshal(row)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		for _, key := range []string{"id", "song_id", "song_title", "artist_name", "cover_image", "play_time", "customer_id", "owner_id", "status", "is_playing", "created_at"} {
			if _, ok := fields[key]; !ok {
				t.Errorf("missing json field %s", key)
			}
		}
	})

	t.Run("Before", func(t *testing.T) {
		a := RequestSong{ID: 2, CreatedAt: created}
		b := RequestSong{ID: 1, CreatedAt: created.Add(time.Second)}
		c := RequestSong{ID: 3, CreatedAt: created}
		if !a.Before(b) || b.Before(a) {
			t.Error("expected creation time ordering")
		}
		if !a.Before(c) {
			t.Error("expected id tie break")
		}
	})
}

func TestChangeEvent(t *testing.T) {
	row := RequestSong{ID: 1, SongID: "trk-1", CustomerID: "c", OwnerID: "venue-1", Status: StatusPending}

	t.Run("constructors", func(t *testing.T) {
		ins := InsertEvent(row)
		if ins.Type != EventInsert || ins.New == nil || ins.Old != nil || ins.OwnerID != "venue-1" {
			t.Errorf("unexpected insert event %+v", ins)
		}

		next := row
		next.Status = StatusApproved
		upd := UpdateEvent(RowChange{Old: row, New: next})
		if upd.Old.Status != StatusPending || upd.New.Status != StatusApproved {
			t.Errorf("unexpected update images %+v %+v", upd.Old, upd.New)
		}

		del := DeleteEvent(row)
		if del.Row().ID != 1 || del.New != nil {
			t.Errorf("unexpected delete event %+v", del)
		}
	})

	t.Run("decode", func(t *testing.T) {
		data, err := json.Marshal(InsertEvent(row))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		e, err := DecodeChangeEvent(data)
		if err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if e.Type != EventInsert || e.New.SongID != "trk-1" {
			t.Errorf("unexpected decoded event %+v", e)
		}
	})

	t.Run("validate", func(t *testing.T) {
		tc := []struct {
			name  string
			event ChangeEvent
		}{
			{name: "no owner", event: ChangeEvent{Type: EventInsert, New: &row}},
			{name: "insert without row", event: ChangeEvent{Type: EventInsert, OwnerID: "venue-1"}},
			{name: "update without old", event: ChangeEvent{Type: EventUpdate, OwnerID: "venue-1", New: &row}},
			{name: "owner mismatch", event: ChangeEvent{Type: EventDelete, OwnerID: "venue-2", Old: &row}},
			{name: "unknown type", event: ChangeEvent{Type: "TRUNCATE", OwnerID: "venue-1"}},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.event.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}

		if err := SubscribedEvent("venue-1").Validate(); err != nil {
			t.Errorf("subscribed ack should validate: %v", err)
		}
	})
}
