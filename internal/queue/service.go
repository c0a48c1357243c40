package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Service coordinates the catalog, the request store and the change feed.
type Service struct {
	store   repositories.RequestStore
	catalog services.Catalog
	broker  realtime.Broker
	logger  *log.Logger
	now     func() time.Time
}

// NewService creates a queue service. The logger defaults to stderr.
func NewService(store repositories.RequestStore, catalog services.Catalog, broker realtime.Broker, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		store:   store,
		catalog: catalog,
		broker:  broker,
		logger:  shared.WithLogger(logger, "component", "queue"),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to stamp new requests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func required(fields ...string) error {
	for i := 0; i < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%w: missing %s", shared.ErrInvalidInput, fields[i])
		}
	}
	return nil
}

func validID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: request id %d", shared.ErrInvalidInput, id)
	}
	return nil
}

// publish sends e on the broker. Failures are logged and never retried.
func (s *Service) publish(ctx context.Context, e models.ChangeEvent) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, e); err != nil {
		row := e.Row()
		var id int64
		if row != nil {
			id = row.ID
		}
		s.logger.Error("failed to publish change", "type", e.Type, "id", id, "owner", e.OwnerID, "error", err)
	}
}

// catalogError makes sure every catalog failure matches [shared.ErrUpstreamCatalog].
func catalogError(err error) error {
	if errors.Is(err, shared.ErrUpstreamCatalog) || errors.Is(err, shared.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrUpstreamCatalog, err)
}

// RequestSong records customerID's request for trackID in ownerID's venue.
//
// The duplicate check and the catalog lookup both happen before the insert, so a failing
// catalog never leaves a row behind. Requests made by the owner are approved immediately.
func (s *Service) RequestSong(ctx context.Context, trackID, customerID, ownerID string) (*models.Song, error) {
	trackID, customerID, ownerID = strings.TrimSpace(trackID), strings.TrimSpace(customerID), strings.TrimSpace(ownerID)
	if err := required("song", trackID, "customer id", customerID, "owner id", ownerID); err != nil {
		return nil, err
	}

	existing, err := s.store.FindBySongAndCustomer(ctx, trackID, customerID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: request %d", shared.ErrDuplicateRequest, existing.ID)
	case !errors.Is(err, shared.ErrRequestNotFound):
		return nil, err
	}

	song, err := s.catalog.Track(ctx, trackID)
	if err != nil {
		return nil, catalogError(err)
	}

	row := models.NewRequestSong(*song, customerID, ownerID, s.now())
	if err := s.store.Create(ctx, row); err != nil {
		return nil, err
	}

	s.logger.Info("request created", "id", row.ID, "song", row.SongID, "owner", ownerID, "status", row.Status)
	s.publish(ctx, models.InsertEvent(*row))
	return song, nil
}

// ReviewSong approves or rejects a request. The last review wins.
func (s *Service) ReviewSong(ctx context.Context, id int64, approved bool) error {
	if err := validID(id); err != nil {
		return err
	}

	change, err := s.store.UpdateStatus(ctx, id, models.ReviewStatus(approved))
	if err != nil {
		return err
	}

	s.logger.Info("request reviewed", "id", id, "owner", change.New.OwnerID, "from", change.Old.Status, "to", change.New.Status)
	s.publish(ctx, models.UpdateEvent(*change))
	return nil
}

// ResetRejectedSong deletes a rejected request so the customer can request the song again.
func (s *Service) ResetRejectedSong(ctx context.Context, id int64) error {
	if err := validID(id); err != nil {
		return err
	}

	deleted, err := s.store.DeleteRejected(ctx, id)
	if err != nil {
		return err
	}

	s.logger.Info("request reset", "id", id, "owner", deleted.OwnerID)
	s.publish(ctx, models.DeleteEvent(*deleted))
	return nil
}

// SetPlaying makes id the owner's only playing request. Repeating the call changes nothing.
func (s *Service) SetPlaying(ctx context.Context, id int64) error {
	if err := validID(id); err != nil {
		return err
	}

	changes, err := s.store.SetPlaying(ctx, id)
	if err != nil {
		return err
	}

	if len(changes) > 0 {
		s.logger.Info("now playing", "id", id, "owner", changes[0].New.OwnerID, "changed", len(changes))
	}
	for _, c := range changes {
		s.publish(ctx, models.UpdateEvent(c))
	}
	return nil
}

// RecommendedSongs passes through to the catalog.
func (s *Service) RecommendedSongs(ctx context.Context) ([]models.Song, error) {
	songs, err := s.catalog.Recommendations(ctx)
	if err != nil {
		return nil, catalogError(err)
	}
	return songs, nil
}

// Search passes through to the catalog.
func (s *Service) Search(ctx context.Context, filter, term string) ([]models.Song, error) {
	songs, err := s.catalog.Search(ctx, filter, term)
	if err != nil {
		return nil, catalogError(err)
	}
	return songs, nil
}

// Snapshot returns every request of the owner, oldest first.
func (s *Service) Snapshot(ctx context.Context, ownerID string) ([]models.RequestSong, error) {
	if err := required("owner id", ownerID); err != nil {
		return nil, err
	}
	return s.store.ListByOwner(ctx, strings.TrimSpace(ownerID))
}

// Request returns a single request.
func (s *Service) Request(ctx context.Context, id int64) (*models.RequestSong, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}
