package realtime

import (
	"context"
	"sync"

	"github.com/desertthunder/jukebox/internal/models"
)

const defaultBuffer = 64

// Broker publishes change events and hands out owner scoped subscriptions.
type Broker interface {
	Publish(ctx context.Context, e models.ChangeEvent) error
	Subscribe(ctx context.Context, ownerID string) (*Subscription, error)
	Close() error
}

// Subscription is a live stream of events for one owner.
//
// The events channel is closed when the subscription ends, whether by [Subscription.Close],
// eviction or broker shutdown.
type Subscription struct {
	ownerID string
	events  chan models.ChangeEvent
	once    sync.Once
	stop    func()
}

func newSubscription(ownerID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Subscription{ownerID: ownerID, events: make(chan models.ChangeEvent, buffer)}
}

// OwnerID returns the owner the subscription is filtered on.
func (s *Subscription) OwnerID() string { return s.ownerID }

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan models.ChangeEvent { return s.events }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
