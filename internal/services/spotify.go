// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultSearchLimit = 20
	defaultRateLimit   = 10
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifySearchResponse represents the response of the search endpoint for type=track.
type SpotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// SpotifyRecommendations represents the response of the recommendations endpoint.
type SpotifyRecommendations struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOptions configures a [SpotifyService].
//
// BaseURL, TokenURL, HTTPClient and TokenSource default to the public Spotify endpoints
// and a client credentials token source built from ClientID and ClientSecret.
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	Market       string
	SeedGenres   []string
	RateLimit    float64
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
	TokenSource  oauth2.TokenSource
}

// SpotifyOptionsFromConfig builds options from the [shared.SpotifyConfig] section.
func SpotifyOptionsFromConfig(c shared.SpotifyConfig) SpotifyOptions {
	return SpotifyOptions{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Market:       c.Market,
		SeedGenres:   c.SeedGenres,
		RateLimit:    c.RateLimit,
	}
}

// SpotifyService implements [Catalog] with the Spotify Web API.
// Uses the [oauth2] client credentials grant, so no user authorization is involved.
type SpotifyService struct {
	baseURL    string
	market     string
	seedGenres []string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyService creates a new Spotify catalog from opts.
func NewSpotifyService(opts SpotifyOptions) (*SpotifyService, error) {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}

	source := opts.TokenSource
	if source == nil {
		if opts.ClientID == "" {
			return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
		}
		if opts.ClientSecret == "" {
			return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
		}

		tokenURL := opts.TokenURL
		if tokenURL == "" {
			tokenURL = spotifyTokenURL
		}

		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     tokenURL,
		}
		// The token source keeps using base for refreshes long after this call returns.
		source = cc.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	seeds := opts.SeedGenres
	if len(seeds) == 0 {
		seeds = []string{"pop"}
	}

	return &SpotifyService{
		baseURL:    baseURL,
		market:     opts.Market,
		seedGenres: seeds,
		httpClient: &http.Client{
			Timeout:   base.Timeout,
			Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, source), Base: base.Transport},
		},
		limiter: rate.NewLimiter(rate.Limit(limit), int(limit)+1),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated, rate limited GET against the Spotify API and decodes the JSON result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstreamCatalog, err)
	}

	if s.market != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("market", s.market)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpstreamCatalog, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return spotifyStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrUpstreamCatalog, err)
	}
	return nil
}

func spotifyStatusError(resp *http.Response) error {
	var body spotifyError
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s", shared.ErrUpstreamCatalog, shared.ErrTrackNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited, retry after %ss", shared.ErrUpstreamCatalog, resp.Header.Get("Retry-After"))
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid token: %s", shared.ErrUpstreamCatalog, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrUpstreamCatalog, resp.StatusCode, msg)
	}
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.Song, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: empty track id", shared.ErrInvalidInput)
	}

	var track SpotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), nil, &track); err != nil {
		return nil, err
	}

	song := NormalizeTrack(track)
	return &song, nil
}

// Search finds tracks matching term, optionally restricted to one field.
func (s *SpotifyService) Search(ctx context.Context, filter, term string) ([]models.Song, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: empty search term", shared.ErrInvalidInput)
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	if !ValidSearchFilter(filter) {
		return nil, fmt.Errorf("%w: unknown search filter %q", shared.ErrInvalidInput, filter)
	}

	q := term
	if filter != "" {
		q = filter + ":" + term
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", "track")
	query.Set("limit", fmt.Sprint(defaultSearchLimit))

	var response SpotifySearchResponse
	if err := s.doRequest(ctx, "/search", query, &response); err != nil {
		return nil, err
	}

	return NormalizeTracks(response.Tracks.Items), nil
}

// Recommendations returns tracks seeded by the configured genres.
func (s *SpotifyService) Recommendations(ctx context.Context) ([]models.Song, error) {
	seeds := s.seedGenres
	if len(seeds) > 5 {
		seeds = seeds[:5]
	}

	query := url.Values{}
	query.Set("seed_genres", strings.Join(seeds, ","))
	query.Set("limit", fmt.Sprint(defaultSearchLimit))

	var response SpotifyRecommendations
	if err := s.doRequest(ctx, "/recommendations", query, &response); err != nil {
		return nil, err
	}

	return NormalizeTracks(response.Tracks), nil
}

// NormalizeTrack converts a [SpotifyTrack] into a [models.Song].
//
// Artist names are joined with ", " and the widest album image is used as the cover.
func NormalizeTrack(t SpotifyTrack) models.Song {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}

	var cover SpotifyImage
	for _, img := range t.Album.Images {
		if cover.URL == "" || img.Width > cover.Width {
			cover = img
		}
	}

	return models.Song{
		ID:         t.ID,
		Title:      t.Name,
		Artist:     strings.Join(names, ", "),
		CoverImage: cover.URL,
		PlayTime:   shared.FormatPlayTime(t.DurationMS),
	}
}

// NormalizeTracks converts tracks in order, skipping entries without an ID.
func NormalizeTracks(tracks []SpotifyTrack) []models.Song {
	songs := make([]models.Song, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		songs = append(songs, NormalizeTrack(t))
	}
	return songs
}
