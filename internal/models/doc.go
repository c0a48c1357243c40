// Package models defines domain entities and change events for the jukebox request queue.
//
// The package contains two categories of types:
//
// 1. Catalog data: lightweight values produced by a music catalog
//   - [Song] : normalized track metadata (id, title, artist, cover image, "M:SS" play time)
//
// 2. Queue state: rows persisted per venue owner and the events describing their changes
//   - [RequestSong] : one customer request, partitioned by owner and moved through [Status] values
//   - [ChangeEvent] : INSERT, UPDATE and DELETE notifications carrying full row images
//   - [RowChange] : old and new images returned by repository mutations
//
// Status transitions are decided here ([InitialStatus], [ReviewStatus]) so that every store and
// transport agrees on them.
package models
