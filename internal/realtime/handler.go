package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const (
	writeWait          = 10 * time.Second
	defaultPingPeriod  = 30 * time.Second
	maxInboundMessage  = 512
	ownerQueryParam    = "owner_id"
	defaultRoutePrefix = "/realtime"
)

// HandlerOptions configures a [Handler].
type HandlerOptions struct {
	// AllowedOrigins lists browser origins allowed to connect. Empty or "*" allows any.
	AllowedOrigins []string
	PingInterval   time.Duration
	Logger         *log.Logger
}

// Handler serves owner scoped change feeds over websockets.
type Handler struct {
	broker       Broker
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *log.Logger
}

// NewHandler creates a websocket handler streaming events from broker.
func NewHandler(broker Broker, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingPeriod
	}
	return &Handler{
		broker:       broker,
		pingInterval: ping,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header, which come from non-browser clients.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		return set[origin]
	}
}

func (h *Handler) Routes() []string {
	return []string{defaultRoutePrefix}
}

// ServeHTTP subscribes before upgrading so nothing committed after the acknowledgement is missed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get(ownerQueryParam))
	if ownerID == "" {
		http.Error(w, "missing owner_id", http.StatusBadRequest)
		return
	}
	if !h.upgrader.CheckOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	sub, err := h.broker.Subscribe(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("subscribe failed", "owner", ownerID, "error", err)
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn("websocket upgrade failed", "owner", ownerID, "error", err)
		return
	}

	logger := h.logger.With("conn", shared.GenerateID(), "owner", ownerID, "remote", r.RemoteAddr)
	logger.Debug("realtime client connected")

	c := &wsConn{conn: conn, sub: sub, ping: h.pingInterval, logger: logger, closed: make(chan struct{})}
	go c.writePump()
	c.readPump()
}

// wsConn pairs one websocket with its subscription.
type wsConn struct {
	conn   *websocket.Conn
	sub    *Subscription
	ping   time.Duration
	logger *log.Logger
	closed chan struct{}
}

// readPump discards inbound messages and keeps the read deadline moving on pongs.
func (c *wsConn) readPump() {
	defer func() {
		close(c.closed)
		c.sub.Close()
	}()

	c.conn.SetReadLimit(maxInboundMessage)
	pongWait := c.ping * 2
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("realtime read failed", "error", err)
			}
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(models.SubscribedEvent(c.sub.OwnerID())); err != nil {
		return
	}

	for {
		select {
		case e, ok := <-c.sub.Events():
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription ended"))
				return
			}
			if err := c.write(e); err != nil {
				c.logger.Warn("realtime write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConn) write(e models.ChangeEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// FeedURL builds the websocket URL for ownerID from a base such as ws://host:3000/realtime.
func FeedURL(base, ownerID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultRoutePrefix
	}
	q := u.Query()
	q.Set(ownerQueryParam, ownerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
