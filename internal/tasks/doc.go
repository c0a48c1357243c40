// Package tasks runs long operations over many venues with real-time progress reporting.
//
// # Core Operations
//
// [Exporter.BulkExport] exports the queues of several owners concurrently:
//   - Fetches each owner's snapshot through a [Snapshotter], paced by a rate limiter
//   - Hands snapshots to a bounded worker pool that writes CSV, Markdown, text or JSON files
//   - Writes an export_manifest.json summarizing successes and failures
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
