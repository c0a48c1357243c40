package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"status": "ok", "catalog": s.catalog})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	songs, err := s.queue.Search(r.Context(), q.Get("filter"), q.Get("searchTerm"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	songs, err := s.queue.RecommendedSongs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body services.SongRequestBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	song, err := s.queue.RequestSong(r.Context(), body.Song, body.CustomerID, body.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, song)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rows, err := s.queue.Snapshot(r.Context(), chi.URLParam(r, "ownerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, rows)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id, err := s.ownedRequestID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body services.ReviewBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := s.queue.ReviewSong(r.Context(), id, body.Approved); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := s.ownedRequestID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.queue.ResetRejectedSong(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleSetPlaying(w http.ResponseWriter, r *http.Request) {
	id, err := s.ownedRequestID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.queue.SetPlaying(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// ownedRequestID parses the {id} path parameter. With auth enabled the request must belong to the token's owner.
func (s *Server) ownedRequestID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: request id %q", shared.ErrInvalidInput, raw)
	}

	if s.auth == nil {
		return id, nil
	}
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		return 0, shared.ErrUnauthorized
	}
	row, err := s.queue.Request(r.Context(), id)
	if err != nil {
		return 0, err
	}
	if row.OwnerID != ownerID {
		return 0, fmt.Errorf("%w: request %d belongs to another venue", shared.ErrForbidden, id)
	}
	return id, nil
}
