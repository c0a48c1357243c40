package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the kind of row change carried by a [ChangeEvent].
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"

	// EventSubscribed acknowledges that a subscription is live; it carries no row.
	EventSubscribed EventType = "SUBSCRIBED"
)

// ChangeEvent describes one committed change to a request row.
//
// INSERT carries New, DELETE carries Old and UPDATE carries both images.
type ChangeEvent struct {
	Type       EventType    `json:"type"`
	OwnerID    string       `json:"owner_id"`
	New        *RequestSong `json:"new,omitempty"`
	Old        *RequestSong `json:"old,omitempty"`
	CommitTime time.Time    `json:"commit_timestamp"`
}

// RowChange holds the images of a row before and after a mutation.
type RowChange struct {
	Old RequestSong
	New RequestSong
}

// InsertEvent builds the event for a newly created row.
func InsertEvent(row RequestSong) ChangeEvent {
	return ChangeEvent{Type: EventInsert, OwnerID: row.OwnerID, New: &row, CommitTime: time.Now().UTC()}
}

// UpdateEvent builds the event for a changed row.
func UpdateEvent(change RowChange) ChangeEvent {
	old, next := change.Old, change.New
	return ChangeEvent{Type: EventUpdate, OwnerID: next.OwnerID, Old: &old, New: &next, CommitTime: time.Now().UTC()}
}

// DeleteEvent builds the event for a removed row.
func DeleteEvent(row RequestSong) ChangeEvent {
	return ChangeEvent{Type: EventDelete, OwnerID: row.OwnerID, Old: &row, CommitTime: time.Now().UTC()}
}

// SubscribedEvent acknowledges a subscription for ownerID.
func SubscribedEvent(ownerID string) ChangeEvent {
	return ChangeEvent{Type: EventSubscribed, OwnerID: ownerID, CommitTime: time.Now().UTC()}
}

// Row returns the most recent image carried by the event.
func (e ChangeEvent) Row() *RequestSong {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Validate checks that the event carries the images its type requires.
func (e ChangeEvent) Validate() error {
	if e.OwnerID == "" {
		return fmt.Errorf("event without owner")
	}
	switch e.Type {
	case EventInsert:
		if e.New == nil {
			return fmt.Errorf("INSERT without new row")
		}
	case EventUpdate:
		if e.New == nil || e.Old == nil {
			return fmt.Errorf("UPDATE requires old and new rows")
		}
	case EventDelete:
		if e.Old == nil {
			return fmt.Errorf("DELETE without old row")
		}
	case EventSubscribed:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if row := e.Row(); row != nil && row.OwnerID != e.OwnerID {
		return fmt.Errorf("event owner %q does not match row owner %q", e.OwnerID, row.OwnerID)
	}
	return nil
}

// DecodeChangeEvent parses and validates a JSON encoded event.
func DecodeChangeEvent(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to decode change event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}
