// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// MockCatalog is a test double for [services.Catalog] backed by an in-memory track list.
type MockCatalog struct {
	mu     sync.Mutex
	tracks map[string]models.Song
	order  []string
	calls  map[string]int

	// Err, when set, is returned by every call wrapped in [shared.ErrUpstreamCatalog].
	Err error
}

// NewMockCatalog creates a catalog that knows the given songs.
func NewMockCatalog(songs ...models.Song) *MockCatalog {
	m := &MockCatalog{tracks: make(map[string]models.Song), calls: make(map[string]int)}
	for _, s := range songs {
		m.Add(s)
	}
	return m
}

// Add registers a song with the catalog.
func (m *MockCatalog) Add(s models.Song) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.tracks[s.ID] = s
}

// Calls returns how many times method was called.
func (m *MockCatalog) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockCatalog) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if m.Err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstreamCatalog, m.Err)
	}
	return nil
}

func (m *MockCatalog) Track(ctx context.Context, trackID string) (*models.Song, error) {
	if err := m.record("Track"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrUpstreamCatalog, shared.ErrTrackNotFound, trackID)
	}
	return &s, nil
}

func (m *MockCatalog) Search(ctx context.Context, filter, term string) ([]models.Song, error) {
	if err := m.record("Search"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	term = strings.ToLower(term)
	songs := []models.Song{}
	for _, id := range m.order {
		s := m.tracks[id]
		var field string
		switch filter {
		case "artist":
			field = s.Artist
		case "track":
			field = s.Title
		default:
			field = s.Title + " " + s.Artist
		}
		if strings.Contains(strings.ToLower(field), term) {
			songs = append(songs, s)
		}
	}
	return songs, nil
}

func (m *MockCatalog) Recommendations(ctx context.Context) ([]models.Song, error) {
	if err := m.record("Recommendations"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	songs := make([]models.Song, 0, len(m.order))
	for _, id := range m.order {
		songs = append(songs, m.tracks[id])
	}
	return songs, nil
}

func (m *MockCatalog) Name() string { return "mock" }

// Song builds a catalog song with predictable metadata for id.
func Song(id string) models.Song {
	return models.Song{
		ID:         id,
		Title:      "Title " + id,
		Artist:     "Artist " + id,
		CoverImage: "https://covers.example/" + id + ".jpg",
		PlayTime:   "3:30",
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
