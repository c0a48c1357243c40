// package services defines the [Catalog] interface for music catalogs and HTTP clients for external APIs
//
// Spotify, jukebox REST API
package services

import (
	"context"

	"github.com/desertthunder/jukebox/internal/models"
)

// Catalog defines the interface for music catalogs that songs can be requested from.
//
// Implementations normalize provider metadata into [models.Song] and report provider
// failures wrapped in [shared.ErrUpstreamCatalog].
type Catalog interface {
	// Track retrieves a single track by its catalog ID.
	Track(ctx context.Context, trackID string) (*models.Song, error)

	// Search finds tracks matching term. filter narrows the match to "track", "artist" or "album";
	// an empty filter matches any field.
	Search(ctx context.Context, filter, term string) ([]models.Song, error)

	// Recommendations returns songs suggested by the catalog for an empty queue.
	Recommendations(ctx context.Context) ([]models.Song, error)

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}

// SearchFilters lists the accepted values of the Search filter argument.
var SearchFilters = []string{"", "track", "artist", "album"}

// ValidSearchFilter reports whether filter is one of [SearchFilters].
func ValidSearchFilter(filter string) bool {
	for _, f := range SearchFilters {
		if f == filter {
			return true
		}
	}
	return false
}
