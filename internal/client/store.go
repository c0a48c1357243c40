// package client keeps a venue's request queue in sync on the client side
package client

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/realtime"
	"github.com/desertthunder/jukebox/internal/shared"
)

const resyncTimeout = 15 * time.Second

// Backend is the part of the queue API the store depends on.
//
// Both [services.APIService] and [queue.Service] satisfy it.
type Backend interface {
	Snapshot(ctx context.Context, ownerID string) ([]models.RequestSong, error)
	SetPlaying(ctx context.Context, id int64) error
}

// Unsubscribe tears down a store subscription. Calling it more than once is safe.
type Unsubscribe func()

// Store mirrors one owner's requests.
//
// Rows live in a single map keyed by id, with a separate slice recording arrival order.
// Status buckets are derived on read. The playing request is tracked apart from the rows,
// so same-status updates never change bucket contents.
type Store struct {
	ownerID string
	backend Backend
	channel realtime.Channel
	logger  *log.Logger

	mu        sync.Mutex
	rows      map[int64]models.RequestSong
	order     []int64
	playingID int64
	gen       uint64
	loading   int
	started   bool
	backlog   []models.ChangeEvent
	listeners []func()
}

// NewStore creates an empty store for ownerID.
func NewStore(ownerID string, backend Backend, channel realtime.Channel, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		ownerID: ownerID,
		backend: backend,
		channel: channel,
		logger:  shared.WithLogger(logger, "component", "store", "owner", ownerID),
		rows:    make(map[int64]models.RequestSong),
	}
}

// OwnerID returns the owner whose queue the store mirrors.
func (s *Store) OwnerID() string { return s.ownerID }

// OnChange registers fn to run after every change to the store's contents.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// FetchSnapshot replaces the store's contents with the owner's rows.
//
// When no approved row is playing, playback starts on the first approved row.
// Events received while any snapshot is loading are queued and applied on top of it.
// Only the most recently started load installs its rows; older results are discarded.
func (s *Store) FetchSnapshot(ctx context.Context) error {
	return s.load(ctx, s.beginLoad())
}

// beginLoad starts queueing events and returns the generation of the new load.
func (s *Store) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.loading++
	return s.gen
}

func (s *Store) load(ctx context.Context, gen uint64) error {
	rows, err := s.backend.Snapshot(ctx, s.ownerID)

	s.mu.Lock()
	installed := err == nil && s.install(gen, rows)
	s.endLoad(installed)

	var bootstrap int64
	if installed && s.playingID == 0 {
		if queue := s.approvedQueue(); len(queue) > 0 {
			bootstrap = queue[0].ID
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if !installed {
		s.logger.Debug("discarded stale snapshot", "generation", gen)
		return nil
	}
	if bootstrap == 0 {
		return nil
	}
	if err := s.backend.SetPlaying(ctx, bootstrap); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	s.logger.Debug("started playback", "id", bootstrap)
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.setPlaying(bootstrap)
	return nil
}

// StartedPlayback reports whether the last snapshot load started playback because nothing was playing.
func (s *Store) StartedPlayback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// install replaces the rows when gen is the newest load. Must be called with the lock held.
func (s *Store) install(gen uint64, rows []models.RequestSong) bool {
	if gen != s.gen {
		return false
	}
	s.started = false
	s.rows = make(map[int64]models.RequestSong, len(rows))
	s.order = s.order[:0]
	s.playingID = 0
	for _, row := range rows {
		if row.OwnerID != s.ownerID {
			continue
		}
		if _, dup := s.rows[row.ID]; !dup {
			s.order = append(s.order, row.ID)
		}
		s.rows[row.ID] = row
		if row.IsPlaying && row.Status == models.StatusApproved {
			s.playingID = row.ID
		}
	}
	return true
}

// endLoad finishes one load and applies queued events once the newest rows are installed
// or nothing is loading anymore. Must be called with the lock held.
func (s *Store) endLoad(installed bool) {
	s.loading--
	if !installed && s.loading > 0 {
		return
	}
	backlog := s.backlog
	s.backlog = nil
	for _, e := range backlog {
		s.apply(e)
	}
}

func (s *Store) setPlaying(id int64) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if ok && row.Status == models.StatusApproved {
		s.playingID = id
	}
	s.mu.Unlock()
	s.notify()
}

// ApplyInsert adds row to the store. Repeated inserts of the same row are absorbed.
func (s *Store) ApplyInsert(row models.RequestSong) {
	s.mu.Lock()
	s.insert(row)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) insert(row models.RequestSong) {
	existing, ok := s.rows[row.ID]
	switch {
	case !ok:
		s.order = append(s.order, row.ID)
	case existing.Status != row.Status:
		s.moveToEnd(row.ID)
	}
	s.rows[row.ID] = row
	if row.IsPlaying && row.Status == models.StatusApproved {
		s.playingID = row.ID
	}
}

// ApplyUpdate moves the row to the bucket of its new status.
//
// An update that keeps the status leaves every bucket untouched and only tracks is_playing.
func (s *Store) ApplyUpdate(old, next models.RequestSong) {
	s.mu.Lock()
	s.update(old, next)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) update(old, next models.RequestSong) {
	switch {
	case next.IsPlaying && next.Status == models.StatusApproved:
		s.playingID = next.ID
	case s.playingID == next.ID:
		s.playingID = 0
	}

	if old.Status == next.Status {
		return
	}
	if _, ok := s.rows[next.ID]; ok {
		s.moveToEnd(next.ID)
	} else {
		s.order = append(s.order, next.ID)
	}
	s.rows[next.ID] = next
}

// ApplyDelete removes a rejected row. Deletes of rows in other states are ignored.
func (s *Store) ApplyDelete(row models.RequestSong) {
	s.mu.Lock()
	removed := s.delete(row)
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

func (s *Store) delete(row models.RequestSong) bool {
	existing, ok := s.rows[row.ID]
	if !ok || existing.Status != models.StatusRejected {
		return false
	}
	delete(s.rows, row.ID)
	s.order = slices.DeleteFunc(s.order, func(id int64) bool { return id == row.ID })
	return true
}

func (s *Store) moveToEnd(id int64) {
	s.order = slices.DeleteFunc(s.order, func(v int64) bool { return v == id })
	s.order = append(s.order, id)
}

// handle applies one event from the channel, queueing it while a snapshot is loading.
func (s *Store) handle(e models.ChangeEvent) {
	if e.OwnerID != s.ownerID {
		return
	}
	s.mu.Lock()
	if s.loading > 0 {
		s.backlog = append(s.backlog, e)
		s.mu.Unlock()
		return
	}
	s.apply(e)
	s.mu.Unlock()
	s.notify()
}

// apply must be called with the lock held.
func (s *Store) apply(e models.ChangeEvent) {
	switch e.Type {
	case models.EventInsert:
		if e.New != nil && e.New.OwnerID == s.ownerID {
			s.insert(*e.New)
		}
	case models.EventUpdate:
		if e.Old != nil && e.New != nil && e.New.OwnerID == s.ownerID {
			s.update(*e.Old, *e.New)
		}
	case models.EventDelete:
		if e.Old != nil && e.Old.OwnerID == s.ownerID {
			s.delete(*e.Old)
		}
	}
}

// Subscribe binds the store to the owner's change feed and loads a snapshot.
//
// Every reconnect of the feed triggers a fresh snapshot.
func (s *Store) Subscribe(ctx context.Context) (Unsubscribe, error) {
	gen := s.beginLoad()

	stop, err := s.channel.Subscribe(ctx, s.ownerID, s.handle, s.resync)
	if err != nil {
		s.mu.Lock()
		s.endLoad(false)
		s.mu.Unlock()
		return nil, err
	}

	if err := s.load(ctx, gen); err != nil {
		stop()
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(stop) }, nil
}

func (s *Store) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if err := s.FetchSnapshot(ctx); err != nil {
		s.logger.Error("resync failed", "error", err)
		return
	}
	s.logger.Info("resynced after reconnect")
}

// bucket returns rows with status in arrival order, with is_playing taken from the
// tracked playing row. Must be called with the lock held.
func (s *Store) bucket(status models.Status) []models.RequestSong {
	rows := []models.RequestSong{}
	for _, id := range s.order {
		if row := s.rows[id]; row.Status == status {
			row.IsPlaying = row.Status == models.StatusApproved && row.ID == s.playingID
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *Store) approvedQueue() []models.RequestSong {
	rows := s.bucket(models.StatusApproved)
	slices.SortStableFunc(rows, func(a, b models.RequestSong) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return rows
}

// Pending returns pending rows in arrival order.
func (s *Store) Pending() []models.RequestSong {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket(models.StatusPending)
}

// Approved returns approved rows in arrival order.
func (s *Store) Approved() []models.RequestSong {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket(models.StatusApproved)
}

// Rejected returns rejected rows in arrival order.
func (s *Store) Rejected() []models.RequestSong {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket(models.StatusRejected)
}

// DerivedApprovedQueue returns approved rows oldest first. This is the playback order.
func (s *Store) DerivedApprovedQueue() []models.RequestSong {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvedQueue()
}

// NowPlaying returns the playing request, if any.
func (s *Store) NowPlaying() (models.RequestSong, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[s.playingID]
	if !ok || row.Status != models.StatusApproved {
		return models.RequestSong{}, false
	}
	row.IsPlaying = true
	return row, true
}

// Advance starts playback of the approved row after the playing one, or the first row when
// nothing is playing. Returns [shared.ErrEndOfQueue] after the last row.
func (s *Store) Advance(ctx context.Context) (*models.RequestSong, error) {
	s.mu.Lock()
	queue := s.approvedQueue()
	current := s.playingID
	s.mu.Unlock()

	idx := 0
	if current != 0 {
		idx = slices.IndexFunc(queue, func(r models.RequestSong) bool { return r.ID == current }) + 1
	}
	if idx >= len(queue) {
		return nil, shared.ErrEndOfQueue
	}

	next := queue[idx]
	if err := s.backend.SetPlaying(ctx, next.ID); err != nil {
		return nil, err
	}
	s.setPlaying(next.ID)
	next.IsPlaying = true
	return &next, nil
}

// Songs returns the catalog metadata of rows.
func Songs(rows []models.RequestSong) []models.Song {
	songs := make([]models.Song, len(rows))
	for i, r := range rows {
		songs[i] = r.Song()
	}
	return songs
}
