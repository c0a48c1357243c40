package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Hub is an in-process [Broker].
//
// A single goroutine owns the subscriber table; register, unregister and broadcast
// requests reach it over channels.
type Hub struct {
	owners map[string]map[*Subscription]bool

	broadcast  chan models.ChangeEvent
	register   chan *Subscription
	unregister chan *Subscription
	count      chan countQuery

	buffer int
	logger *log.Logger

	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

type countQuery struct {
	ownerID string
	reply   chan int
}

// NewHub creates a hub whose subscriptions buffer up to buffer events, and starts its run loop.
func NewHub(buffer int, logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	h := &Hub{
		owners:     make(map[string]map[*Subscription]bool),
		broadcast:  make(chan models.ChangeEvent),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		count:      make(chan countQuery),
		buffer:     buffer,
		logger:     logger,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case sub := <-h.register:
			subs, ok := h.owners[sub.ownerID]
			if !ok {
				subs = make(map[*Subscription]bool)
				h.owners[sub.ownerID] = subs
			}
			subs[sub] = true

		case sub := <-h.unregister:
			h.remove(sub)

		case q := <-h.count:
			q.reply <- len(h.owners[q.ownerID])

		case e := <-h.broadcast:
			for sub := range h.owners[e.OwnerID] {
				select {
				case sub.events <- e:
				default:
					h.logger.Warn("evicting slow subscriber", "owner", e.OwnerID)
					h.remove(sub)
				}
			}

		case <-h.done:
			for _, subs := range h.owners {
				for sub := range subs {
					close(sub.events)
				}
			}
			h.owners = nil
			return
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	subs, ok := h.owners[sub.ownerID]
	if !ok || !subs[sub] {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.owners, sub.ownerID)
	}
}

// Publish delivers e to the owner's current subscribers.
func (h *Hub) Publish(ctx context.Context, e models.ChangeEvent) error {
	if e.OwnerID == "" {
		return fmt.Errorf("%w: event without owner", shared.ErrInvalidInput)
	}
	select {
	case h.broadcast <- e:
		return nil
	case <-h.done:
		return shared.ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a subscription for ownerID.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", shared.ErrInvalidInput)
	}

	sub := newSubscription(ownerID, h.buffer)
	sub.stop = func() {
		select {
		case h.unregister <- sub:
		case <-h.stopped:
		}
	}

	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, shared.ErrBrokerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribers returns the number of live subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	q := countQuery{ownerID: ownerID, reply: make(chan int, 1)}
	select {
	case h.count <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

// Close stops the run loop and closes every open subscription.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
	return nil
}

var _ Broker = (*Hub)(nil)
