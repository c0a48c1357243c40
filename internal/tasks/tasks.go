package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/models"
)

// Snapshotter lists every request of an owner.
//
// [services.APIService] and [queue.Service] satisfy it.
type Snapshotter interface {
	Snapshot(ctx context.Context, ownerID string) ([]models.RequestSong, error)
}

// VenueExportJob is one fetched queue waiting to be written.
type VenueExportJob struct {
	OwnerID string
	Export  *formatter.QueueExport
}

// VenueExportResult is the outcome of exporting one owner's queue.
type VenueExportResult struct {
	OwnerID  string   `json:"owner_id"`
	Requests int      `json:"requests"`
	Success  bool     `json:"success"`
	Files    []string `json:"files,omitempty"`
	Error    error    `json:"-"`
	Message  string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a [Exporter.BulkExport] run.
type BulkExportResult struct {
	TotalVenues       int                 `json:"total_venues"`
	SuccessfulExports int                 `json:"successful_exports"`
	FailedExports     int                 `json:"failed_exports"`
	OutputDirectory   string              `json:"output_directory"`
	ManifestPath      string              `json:"-"`
	Results           []VenueExportResult `json:"results"`
}

// Exporter writes owner queues to disk.
type Exporter struct {
	source Snapshotter
	now    func() time.Time
}

// NewExporter creates an exporter reading snapshots from source.
func NewExporter(source Snapshotter) *Exporter {
	return &Exporter{source: source, now: time.Now}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// writeManifest records the run as indented JSON at path.
func writeManifest(result *BulkExportResult, format, path string) error {
	for i := range result.Results {
		if err := result.Results[i].Error; err != nil {
			result.Results[i].Message = err.Error()
		}
	}

	manifest := struct {
		Format      string    `json:"format"`
		GeneratedAt time.Time `json:"generated_at"`
		*BulkExportResult
	}{format, time.Now().UTC(), result}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
