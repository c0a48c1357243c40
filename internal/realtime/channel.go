package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Channel is the client side of an owner's change feed.
//
// onEvent receives every row change. onReconnect runs after the feed recovered from a
// dropped connection, when events may have been missed. The returned function unsubscribes
// and may be called more than once.
type Channel interface {
	Subscribe(ctx context.Context, ownerID string, onEvent func(models.ChangeEvent), onReconnect func()) (func(), error)
}

// Backoff yields exponentially growing reconnect delays capped at Max.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// Delay returns the wait before the given zero based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	min, max := b.Min, b.Max
	if min <= 0 {
		min = 250 * time.Millisecond
	}
	if max < min {
		max = 30 * time.Second
	}
	d := min
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// WSChannel is a [Channel] over the websocket feed served by [Handler].
type WSChannel struct {
	baseURL string
	dialer  *websocket.Dialer
	header  http.Header
	backoff Backoff
	logger  *log.Logger
}

// NewWSChannel creates a channel dialing the feed at baseURL, e.g. ws://localhost:3000/realtime.
func NewWSChannel(baseURL string, header http.Header, logger *log.Logger) *WSChannel {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &WSChannel{
		baseURL: baseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		header:  header,
		backoff: Backoff{Min: 250 * time.Millisecond, Max: 15 * time.Second},
		logger:  logger,
	}
}

// WithBackoff replaces the reconnect delays.
func (c *WSChannel) WithBackoff(b Backoff) *WSChannel {
	c.backoff = b
	return c
}

// dial connects and waits for the SUBSCRIBED acknowledgement.
func (c *WSChannel) dial(ctx context.Context, ownerID string) (*websocket.Conn, error) {
	feed, err := FeedURL(c.baseURL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: realtime url: %w", shared.ErrInvalidConfig, err)
	}

	conn, _, err := c.dialer.DialContext(ctx, feed, c.header)
	if err != nil {
		return nil, fmt.Errorf("%w: realtime dial: %w", shared.ErrServiceUnavailable, err)
	}

	conn.SetReadDeadline(time.Now().Add(writeWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: realtime handshake: %w", shared.ErrServiceUnavailable, err)
	}
	ack, err := models.DecodeChangeEvent(data)
	if err != nil || ack.Type != models.EventSubscribed {
		conn.Close()
		return nil, fmt.Errorf("%w: expected subscription acknowledgement", shared.ErrServiceUnavailable)
	}
	conn.SetReadDeadline(time.Time{})
	return conn, nil
}

// Subscribe returns after the first connection is acknowledged.
func (c *WSChannel) Subscribe(ctx context.Context, ownerID string, onEvent func(models.ChangeEvent), onReconnect func()) (func(), error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner id", shared.ErrInvalidInput)
	}

	conn, err := c.dial(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var (
		mu      sync.Mutex
		current = conn
		once    sync.Once
	)

	unsubscribe := func() {
		once.Do(func() {
			cancel()
			mu.Lock()
			current.Close()
			mu.Unlock()
		})
	}

	go func() {
		logger := c.logger.With("owner", ownerID)
		for {
			c.read(runCtx, current, ownerID, onEvent)
			if runCtx.Err() != nil {
				return
			}

			logger.Warn("realtime connection lost, reconnecting")
			next, ok := c.reconnect(runCtx, ownerID, logger)
			if !ok {
				return
			}
			mu.Lock()
			if runCtx.Err() != nil {
				mu.Unlock()
				next.Close()
				return
			}
			current = next
			mu.Unlock()

			if onReconnect != nil {
				onReconnect()
			}
		}
	}()

	return unsubscribe, nil
}

// read delivers events from conn until it fails.
func (c *WSChannel) read(ctx context.Context, conn *websocket.Conn, ownerID string, onEvent func(models.ChangeEvent)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("realtime read ended", "owner", ownerID, "error", err)
			}
			return
		}
		e, err := models.DecodeChangeEvent(data)
		if err != nil {
			c.logger.Warn("dropping malformed event", "owner", ownerID, "error", err)
			continue
		}
		if e.Type == models.EventSubscribed || e.OwnerID != ownerID {
			continue
		}
		onEvent(e)
	}
}

func (c *WSChannel) reconnect(ctx context.Context, ownerID string, logger *log.Logger) (*websocket.Conn, bool) {
	for attempt := 0; ; attempt++ {
		if !sleep(ctx, c.backoff.Delay(attempt)) {
			return nil, false
		}
		conn, err := c.dial(ctx, ownerID)
		if err == nil {
			logger.Info("realtime reconnected", "attempts", attempt+1)
			return conn, true
		}
		logger.Debug("realtime reconnect failed", "attempt", attempt+1, "error", err)
	}
}

// LocalChannel is a [Channel] over an in-process [Broker].
type LocalChannel struct {
	broker  Broker
	backoff Backoff
	logger  *log.Logger
}

// NewLocalChannel creates a channel that subscribes to broker directly.
func NewLocalChannel(broker Broker, logger *log.Logger) *LocalChannel {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LocalChannel{broker: broker, backoff: Backoff{Min: 10 * time.Millisecond, Max: time.Second}, logger: logger}
}

// Subscribe resubscribes when the broker evicts the subscription and then calls onReconnect.
func (c *LocalChannel) Subscribe(ctx context.Context, ownerID string, onEvent func(models.ChangeEvent), onReconnect func()) (func(), error) {
	sub, err := c.broker.Subscribe(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var (
		mu      sync.Mutex
		current = sub
		once    sync.Once
	)

	unsubscribe := func() {
		once.Do(func() {
			cancel()
			mu.Lock()
			current.Close()
			mu.Unlock()
		})
	}

	go func() {
		for {
			for e := range current.Events() {
				if e.OwnerID == ownerID {
					onEvent(e)
				}
			}
			if runCtx.Err() != nil {
				return
			}

			var next *Subscription
			for attempt := 0; next == nil; attempt++ {
				if !sleep(runCtx, c.backoff.Delay(attempt)) {
					return
				}
				next, err = c.broker.Subscribe(runCtx, ownerID)
				if errors.Is(err, shared.ErrBrokerClosed) {
					return
				}
			}

			mu.Lock()
			if runCtx.Err() != nil {
				mu.Unlock()
				next.Close()
				return
			}
			current = next
			mu.Unlock()

			c.logger.Debug("local feed resubscribed", "owner", ownerID)
			if onReconnect != nil {
				onReconnect()
			}
		}
	}()

	return unsubscribe, nil
}

var (
	_ Channel = (*WSChannel)(nil)
	_ Channel = (*LocalChannel)(nil)
)
