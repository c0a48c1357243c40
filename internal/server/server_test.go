package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/queue"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

type harness struct {
	server  *httptest.Server
	api     *services.APIService
	service *queue.Service
	catalog *tu.MockCatalog
	hub     *realtime.Hub
	auth    *Auth
}

func newHarness(t *testing.T, secret string) *harness {
	t.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard)

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, shared.RunMigrations(ctx, db))
	t.Cleanup(func() { db.Close() })

	hub := realtime.NewHub(64, logger)
	t.Cleanup(func() { hub.Close() })

	catalog := tu.NewMockCatalog(tu.Song("T1"), tu.Song("T2"))
	service := queue.NewService(repositories.NewRequestRepository(db), catalog, hub, logger)
	auth := NewAuth(shared.AuthConfig{JWTSecret: secret, Issuer: "jukebox-test"})

	srv := New(Options{
		Queue:       service,
		Feed:        realtime.NewHandler(hub, realtime.HandlerOptions{Logger: logger}),
		Auth:        auth,
		CatalogName: catalog.Name(),
		Logger:      logger,
	})
	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)

	return &harness{
		server:  server,
		api:     services.NewAPIService(server.URL, server.Client()),
		service: service,
		catalog: catalog,
		hub:     hub,
		auth:    auth,
	}
}

func (h *harness) requestID(t *testing.T, ownerID string) int64 {
	t.Helper()
	rows, err := h.api.Snapshot(context.Background(), ownerID)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	return rows[len(rows)-1].ID
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()

	t.Run("Health", func(t *testing.T) {
		h := newHarness(t, "")
		require.NoError(t, h.api.Health(ctx))
	})

	t.Run("Request Lifecycle", func(t *testing.T) {
		h := newHarness(t, "")

		song, err := h.api.RequestSong(ctx, "T1", "cust-1", "venue-1")
		require.NoError(t, err)
		assert.Equal(t, "Title T1", song.Title)

		id := h.requestID(t, "venue-1")
		require.NoError(t, h.api.ReviewSong(ctx, id, true))
		require.NoError(t, h.api.SetPlaying(ctx, id))

		rows, err := h.api.Snapshot(ctx, "venue-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.StatusApproved, rows[0].Status)
		assert.True(t, rows[0].IsPlaying)

		require.NoError(t, h.api.ReviewSong(ctx, id, false))
		require.NoError(t, h.api.ResetRejectedSong(ctx, id))

		rows, err = h.api.Snapshot(ctx, "venue-1")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Error Statuses", func(t *testing.T) {
		h := newHarness(t, "")

		_, err := h.api.RequestSong(ctx, "T1", "cust-1", "venue-1")
		require.NoError(t, err)

		_, err = h.api.RequestSong(ctx, "T1", "cust-1", "venue-1")
		assert.ErrorIs(t, err, shared.ErrDuplicateRequest)

		assert.ErrorIs(t, h.api.ReviewSong(ctx, 404, true), shared.ErrRequestNotFound)
		assert.ErrorIs(t, h.api.SetPlaying(ctx, h.requestID(t, "venue-1")), shared.ErrInvalidStatus)

		h.catalog.Err = errors.New("rate limited")
		_, err = h.api.RequestSong(ctx, "T2", "cust-1", "venue-1")
		assert.ErrorIs(t, err, shared.ErrUpstreamCatalog)
	})

	t.Run("Envelope Shape", func(t *testing.T) {
		h := newHarness(t, "")

		resp, err := http.Post(h.server.URL+"/song/request", "application/json", strings.NewReader(`{"song":"T1","customerId":"c","ownerId":""}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["message"])
	})

	t.Run("Bad Input", func(t *testing.T) {
		h := newHarness(t, "")

		tc := []struct {
			path string
			body string
		}{
			{path: "/song/review/abc", body: `{"approved":true}`},
			{path: "/song/review/1", body: `{not json`},
			{path: "/song/set-playing/-1", body: ``},
			{path: "/song/request", body: `{"song":"T1","unknown":1}`},
		}
		for _, tt := range tc {
			resp, err := http.Post(h.server.URL+tt.path, "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.path)
		}
	})

	t.Run("Catalog Passthrough", func(t *testing.T) {
		h := newHarness(t, "")

		songs, err := h.api.Search(ctx, "track", "t1")
		require.NoError(t, err)
		assert.Len(t, songs, 1)

		songs, err = h.api.Recommendations(ctx)
		require.NoError(t, err)
		assert.Len(t, songs, 2)
	})

	t.Run("Realtime Feed", func(t *testing.T) {
		h := newHarness(t, "")

		url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/realtime?owner_id=venue-1"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		var ack models.ChangeEvent
		require.NoError(t, conn.ReadJSON(&ack))
		assert.Equal(t, models.EventSubscribed, ack.Type)

		_, err = h.api.RequestSong(ctx, "T1", "cust-1", "venue-1")
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(time.Second))
		var e models.ChangeEvent
		require.NoError(t, conn.ReadJSON(&e))
		assert.Equal(t, models.EventInsert, e.Type)
		assert.Equal(t, "T1", e.New.SongID)
	})
}

func TestOwnerAuth(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "test-secret")

	_, err := h.api.RequestSong(ctx, "T1", "cust-1", "venue-1")
	require.NoError(t, err)
	id := h.requestID(t, "venue-1")

	t.Run("Missing Token", func(t *testing.T) {
		assert.ErrorIs(t, h.api.ReviewSong(ctx, id, true), shared.ErrUnauthorized)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		assert.ErrorIs(t, h.api.WithToken("garbage").ReviewSong(ctx, id, true), shared.ErrUnauthorized)
	})

	t.Run("Expired Token", func(t *testing.T) {
		token, err := h.auth.IssueToken("venue-1", -time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, h.api.WithToken(token).ReviewSong(ctx, id, true), shared.ErrUnauthorized)
	})

	t.Run("Other Owner", func(t *testing.T) {
		token, err := h.auth.IssueToken("venue-2", time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, h.api.WithToken(token).ReviewSong(ctx, id, true), shared.ErrForbidden)
	})

	t.Run("Owner", func(t *testing.T) {
		token, err := h.auth.IssueToken("venue-1", time.Hour)
		require.NoError(t, err)
		require.NoError(t, h.api.WithToken(token).ReviewSong(ctx, id, true))
	})

	t.Run("Public Routes", func(t *testing.T) {
		_, err := h.api.RequestSong(ctx, "T2", "cust-1", "venue-1")
		require.NoError(t, err)
		_, err = h.api.Snapshot(ctx, "venue-1")
		require.NoError(t, err)
	})
}

func TestAuth(t *testing.T) {
	assert.Nil(t, NewAuth(shared.AuthConfig{}))

	a := NewAuth(shared.AuthConfig{JWTSecret: "s", Issuer: "jukebox"})
	token, err := a.IssueToken("venue-1", time.Hour)
	require.NoError(t, err)

	owner, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "venue-1", owner)

	other := NewAuth(shared.AuthConfig{JWTSecret: "s", Issuer: "someone-else"})
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	expired, err := a.IssueToken("venue-1", -time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(expired)
	assert.ErrorIs(t, err, shared.ErrTokenExpired)

	_, err = a.IssueToken("", time.Hour)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestErrorStatus(t *testing.T) {
	tc := []struct {
		err  error
		want int
	}{
		{err: shared.ErrInvalidInput, want: http.StatusBadRequest},
		{err: shared.ErrUnauthorized, want: http.StatusUnauthorized},
		{err: shared.ErrForbidden, want: http.StatusForbidden},
		{err: fmt.Errorf("wrapped: %w", shared.ErrRequestNotFound), want: http.StatusNotFound},
		{err: shared.ErrDuplicateRequest, want: http.StatusConflict},
		{err: shared.ErrInvalidStatus, want: http.StatusUnprocessableEntity},
		{err: shared.ErrUpstreamCatalog, want: http.StatusBadGateway},
		{err: shared.ErrServiceUnavailable, want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tc {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/song/request", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
