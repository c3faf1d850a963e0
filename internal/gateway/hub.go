package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/inkwell/internal/api/middleware"
	"github.com/phrazzld/inkwell/internal/api/shared"
	"github.com/phrazzld/inkwell/internal/events"
	"github.com/phrazzld/inkwell/internal/metrics"
	"github.com/phrazzld/inkwell/internal/redact"
	"github.com/phrazzld/inkwell/internal/service/auth"
)

// Defaults for Options fields left zero.
const (
	DefaultSendBuffer   = 32
	DefaultReadLimit    = 4096
	DefaultPongWait     = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// ErrNotStarted is logged when a connection arrives before Start.
var ErrNotStarted = errors.New("gateway hub not started")

// Options tunes a Hub.
type Options struct {
	// Topic is the bus topic carrying job status events.
	Topic string
	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	PongWait       time.Duration
	WriteTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.Topic == "" {
		o.Topic = events.TopicJobStatus
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// Hub owns the live connections and their job groups.
type Hub struct {
	jwt      auth.JWTService
	bus      events.Bus
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	started bool
	clients map[*client]struct{}
	groups  map[uuid.UUID]map[*client]struct{}
}

// NewHub creates a hub that authenticates with jwt and relays events from bus.
func NewHub(jwt auth.JWTService, bus events.Bus, opts Options, logger *slog.Logger) (*Hub, error) {
	if jwt == nil || bus == nil {
		return nil, errors.New("gateway: jwt service and event bus are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()

	h := &Hub{
		jwt:     jwt,
		bus:     bus,
		opts:    opts,
		logger:  logger.With(slog.String("component", "gateway")),
		clients: make(map[*client]struct{}),
		groups:  make(map[uuid.UUID]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h, nil
}

// Start subscribes to the status topic and relays events until ctx is done,
// at which point every connection is closed.
func (h *Hub) Start(ctx context.Context) error {
	sub, err := h.bus.Subscribe(ctx, h.opts.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.opts.Topic, err)
	}

	h.mu.Lock()
	h.started = true
	h.mu.Unlock()

	go func() {
		defer sub.Close()
		defer h.closeAll()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.Events():
				if !ok {
					h.logger.Warn("status subscription ended")
					return
				}
				h.dispatch(e)
			}
		}
	}()
	return nil
}

// ServeHTTP authenticates the request and upgrades it to a websocket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()
	if !started {
		h.logger.Error("rejecting websocket connection", slog.String("error", ErrNotStarted.Error()))
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Realtime updates unavailable")
		return
	}

	token, err := middleware.BearerToken(r)
	if err != nil {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	claims, err := h.jwt.ValidateToken(r.Context(), token)
	if err != nil {
		h.logger.Debug("websocket token rejected", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, claims.UserID)
	h.register(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin) || slices.Contains(h.opts.AllowedOrigins, "*")
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnected()
	h.logger.Debug("websocket connected", slog.String("user_id", c.userID.String()))
}

// unregister removes c from the hub and closes its send channel. It is
// safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for jobID := range c.jobs {
		h.leaveLocked(c, jobID)
	}
	close(c.send)
	h.mu.Unlock()

	metrics.WSDisconnected()
	h.logger.Debug("websocket disconnected", slog.String("user_id", c.userID.String()))
}

func (h *Hub) join(c *client, jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	group := h.groups[jobID]
	if group == nil {
		group = make(map[*client]struct{})
		h.groups[jobID] = group
	}
	group[c] = struct{}{}
	c.jobs[jobID] = struct{}{}
}

func (h *Hub) leave(c *client, jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, jobID)
}

func (h *Hub) leaveLocked(c *client, jobID uuid.UUID) {
	delete(c.jobs, jobID)
	group := h.groups[jobID]
	delete(group, c)
	if len(group) == 0 {
		delete(h.groups, jobID)
	}
}

// dispatch relays e to the owner's connections in the job's group. A
// connection whose buffer is full is dropped.
func (h *Hub) dispatch(e events.Event) {
	frame := encodeFrame(OutboundFrame{Event: EventJobStatus, JobID: e.JobID.String(), Data: &e})

	var slow []*client
	h.mu.RLock()
	for c := range h.groups[e.JobID] {
		if c.userID != e.UserID {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", slog.String("user_id", c.userID.String()))
		h.unregister(c)
	}
}

// reply queues a frame for c without blocking.
func (h *Hub) reply(c *client, f OutboundFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- encodeFrame(f):
	default:
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
