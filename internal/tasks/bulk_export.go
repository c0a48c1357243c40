package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/shared"
)

// BulkExportOpts contains configuration for bulk queue exports.
type BulkExportOpts struct {
	Format        string  // Export format: json, csv, markdown, txt
	OutputDir     string  // Base output directory (default: jukebox_export_{epoch})
	NumWorkers    int     // Concurrent workers (default: 5)
	RateLimit     float64 // Snapshot requests per second (default: 5)
	DownloadCover bool    // Save the playing song's cover with Markdown exports
}

// BulkExport exports the queues of several owners concurrently with rate limiting and progress tracking.
//
// Snapshots are fetched one at a time at the configured rate and written by a pool of workers.
// A failed owner is recorded in the result and the run continues. A manifest summarizing
// every owner is written to the output directory.
func (e *Exporter) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	owners []string,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: snapshot source not initialized", shared.ErrServiceUnavailable)
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("%w: no owners to export", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("jukebox_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalVenues:     len(owners),
		OutputDirectory: opts.OutputDir,
		Results:         make([]VenueExportResult, 0, len(owners)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan VenueExportJob, len(owners))
	results := make(chan VenueExportResult, len(owners))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, fetchingQueuesUpdate(len(owners)))
		for i, owner := range owners {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			rows, err := e.source.Snapshot(ctx, owner)
			if err != nil {
				results <- VenueExportResult{
					OwnerID: owner,
					Error:   fmt.Errorf("failed to fetch queue: %w", err),
				}
				continue
			}

			jobs <- VenueExportJob{
				OwnerID: owner,
				Export:  formatter.NewQueueExport(owner, rows, e.now()),
			}

			e.sendProgress(prog, exportingQueueUpdate(i+1, len(owners), owner))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(owners), res.OwnerID, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(owners), res.OwnerID, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports queues from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan VenueExportJob,
	results chan<- VenueExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportSingleQueue(job, opts)
	}
}

// exportSingleQueue exports one owner's queue to the requested format.
func (e *Exporter) exportSingleQueue(j VenueExportJob, opts BulkExportOpts) VenueExportResult {
	result := VenueExportResult{
		OwnerID:  j.OwnerID,
		Requests: len(j.Export.Requests),
		Files:    []string{},
	}

	switch opts.Format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(j.Export, filepath.Join(opts.OutputDir, j.OwnerID))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.RequestsFile, csvRes.MetadataFile}

	case "markdown":
		mdRes, err := formatter.WriteMarkdownExport(j.Export, filepath.Join(opts.OutputDir, j.OwnerID), opts.DownloadCover)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case "txt":
		path, err := formatter.WriteTextExport(j.Export, filepath.Join(opts.OutputDir, j.OwnerID+"_queue.txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case "json":
		jsonPath := filepath.Join(opts.OutputDir, j.OwnerID+".json")
		data, err := json.MarshalIndent(j.Export, "", "  ")
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{jsonPath}

	default:
		result.Error = fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, opts.Format)
		return result
	}

	result.Success = true
	return result
}
