// Package repositories implements persistence for song request rows.
//
// Two implementations of [RequestStore] share one schema and one set of rules:
//   - [RequestRepository] : SQLite through database/sql, migrated by the embedded shared migrations
//   - [PGRequestRepository] : Postgres through pgx, migrated by [MigratePostgres]
//
// Both stores enforce the queue invariants at the storage layer. A unique index on
// (song_id, customer_id) rejects duplicate requests, and a unique partial index on owner_id
// for playing rows keeps at most one playing row per owner. [RequestStore.SetPlaying] clears
// and sets the flag inside a single transaction so concurrent calls cannot leave two rows playing.
package repositories
