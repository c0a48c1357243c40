// HTTP client for the jukebox REST API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Envelope is the JSON body of every acknowledgement and failure returned by the jukebox API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SongRequestBody is the JSON body of POST /song/request.
type SongRequestBody struct {
	Song       string `json:"song"`
	CustomerID string `json:"customerId"`
	OwnerID    string `json:"ownerId"`
}

// ReviewBody is the JSON body of POST /song/review/{id}.
type ReviewBody struct {
	Approved bool `json:"approved"`
}

// APIService is a client for a running jukebox server.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewAPIService creates a new API client for the jukebox server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential.
func (a *APIService) WithToken(token string) *APIService {
	c := *a
	c.token = token
	return &c
}

// BaseURL returns the server address the client talks to.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// do performs a request and decodes a successful body into out.
// Failed responses are decoded as an [Envelope] and mapped to shared errors by status code.
func (a *APIService) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env Envelope
		_ = json.Unmarshal(data, &env)
		return statusError(resp.StatusCode, env.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError maps an API status code back to the shared error it was produced from.
func statusError(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}

	var base error
	switch code {
	case http.StatusBadRequest:
		base = shared.ErrInvalidInput
	case http.StatusUnauthorized:
		base = shared.ErrUnauthorized
	case http.StatusForbidden:
		base = shared.ErrForbidden
	case http.StatusNotFound:
		base = shared.ErrRequestNotFound
	case http.StatusConflict:
		base = shared.ErrDuplicateRequest
	case http.StatusUnprocessableEntity:
		base = shared.ErrInvalidStatus
	case http.StatusBadGateway:
		base = shared.ErrUpstreamCatalog
	case http.StatusServiceUnavailable:
		base = shared.ErrServiceUnavailable
	default:
		base = shared.ErrAPIRequest
	}
	return fmt.Errorf("%w: %s (status %d)", base, message, code)
}

// ack performs a request whose success body is an [Envelope] and decodes its data into out.
func (a *APIService) ack(ctx context.Context, method, path string, body, out any) error {
	var env Envelope
	if err := a.do(ctx, method, path, body, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// Health checks that the server is up.
func (a *APIService) Health(ctx context.Context) error {
	return a.ack(ctx, http.MethodGet, "/health", nil, nil)
}

// Search searches the catalog through the server.
func (a *APIService) Search(ctx context.Context, filter, term string) ([]models.Song, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("searchTerm", term)

	var songs []models.Song
	if err := a.do(ctx, http.MethodGet, "/song/search?"+q.Encode(), nil, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// Recommendations lists catalog recommendations through the server.
func (a *APIService) Recommendations(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := a.do(ctx, http.MethodGet, "/song/recommendations", nil, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// RequestSong submits a customer's request for trackID in the owner's venue.
func (a *APIService) RequestSong(ctx context.Context, trackID, customerID, ownerID string) (*models.Song, error) {
	body := SongRequestBody{Song: trackID, CustomerID: customerID, OwnerID: ownerID}

	var song models.Song
	if err := a.ack(ctx, http.MethodPost, "/song/request", body, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

// ReviewSong approves or rejects a request.
func (a *APIService) ReviewSong(ctx context.Context, id int64, approved bool) error {
	return a.ack(ctx, http.MethodPost, "/song/review/"+strconv.FormatInt(id, 10), ReviewBody{Approved: approved}, nil)
}

// ResetRejectedSong deletes a rejected request.
func (a *APIService) ResetRejectedSong(ctx context.Context, id int64) error {
	return a.ack(ctx, http.MethodPost, "/song/reset-rejected/"+strconv.FormatInt(id, 10), nil, nil)
}

// SetPlaying marks a request as the venue's playing song.
func (a *APIService) SetPlaying(ctx context.Context, id int64) error {
	return a.ack(ctx, http.MethodPost, "/song/set-playing/"+strconv.FormatInt(id, 10), nil, nil)
}

// Snapshot lists every request of the owner, oldest first.
func (a *APIService) Snapshot(ctx context.Context, ownerID string) ([]models.RequestSong, error) {
	var rows []models.RequestSong
	if err := a.ack(ctx, http.MethodGet, "/song/requests/"+url.PathEscape(ownerID), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
