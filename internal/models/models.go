package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the review state of a [RequestSong].
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a case-insensitive string into a [Status].
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// InitialStatus is the status of a newly created request.
// An owner requesting a song in their own venue skips review.
func InitialStatus(customerID, ownerID string) Status {
	if customerID == ownerID {
		return StatusApproved
	}
	return StatusPending
}

// ReviewStatus maps an owner's decision to a status.
func ReviewStatus(approved bool) Status {
	if approved {
		return StatusApproved
	}
	return StatusRejected
}

// Song is catalog track metadata normalized for display.
type Song struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	CoverImage string `json:"cover_image"`
	PlayTime   string `json:"play_time"`
}

// RequestSong is a customer's request for a song in an owner's venue.
type RequestSong struct {
	ID         int64     `json:"id"`
	SongID     string    `json:"song_id"`
	SongTitle  string    `json:"song_title"`
	ArtistName string    `json:"artist_name"`
	CoverImage string    `json:"cover_image"`
	PlayTime   string    `json:"play_time"`
	CustomerID string    `json:"customer_id"`
	OwnerID    string    `json:"owner_id"`
	Status     Status    `json:"status"`
	IsPlaying  bool      `json:"is_playing"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRequestSong builds an unsaved request for song with the status implied by the customer and owner.
func NewRequestSong(song Song, customerID, ownerID string, createdAt time.Time) *RequestSong {
	return &RequestSong{
		SongID:     song.ID,
		SongTitle:  song.Title,
		ArtistName: song.Artist,
		CoverImage: song.CoverImage,
		PlayTime:   song.PlayTime,
		CustomerID: customerID,
		OwnerID:    ownerID,
		Status:     InitialStatus(customerID, ownerID),
		CreatedAt:  createdAt.UTC(),
	}
}

// Song returns the catalog metadata stored on the request.
func (r RequestSong) Song() Song {
	return Song{
		ID:         r.SongID,
		Title:      r.SongTitle,
		Artist:     r.ArtistName,
		CoverImage: r.CoverImage,
		PlayTime:   r.PlayTime,
	}
}

// Validate checks the fields a store requires before inserting the row.
func (r RequestSong) Validate() error {
	var missing []string
	if r.SongID == "" {
		missing = append(missing, "song_id")
	}
	if r.CustomerID == "" {
		missing = append(missing, "customer_id")
	}
	if r.OwnerID == "" {
		missing = append(missing, "owner_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.IsPlaying && r.Status != StatusApproved {
		return fmt.Errorf("only approved requests can play")
	}
	return nil
}

// Before orders requests by creation time, breaking ties by id.
func (r RequestSong) Before(other RequestSong) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return r.ID < other.ID
}
