package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains user_id -> set of connections and delivers per-user events.
// A user may hold several connections (tabs, devices). With Redis configured,
// events go through the user's channel so every instance delivers exactly once.
type Hub struct {
	// userID -> map[clientID]*Client
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per user
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance delivery).
type RedisPublisher interface {
	PublishUserEvent(userID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to user channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client. Starts the Redis subscription for the user on their first connection.
// SUBSCRIBE runs without h.mu held; when two connections of one user race, the
// later subscription is cancelled and the user keeps exactly one.
func (h *Hub) Register(c *Client) {
	userID := c.UserID
	var (
		cancel func()
		failed bool
	)
	for {
		h.mu.Lock()
		_, subscribed := h.subs[userID]
		if !subscribed && cancel != nil {
			h.subs[userID] = cancel
			cancel, subscribed = nil, true
		}
		if subscribed || failed || h.redisSub == nil {
			if h.users[userID] == nil {
				h.users[userID] = make(map[string]*Client)
			}
			h.users[userID][c.ID] = c
			h.mu.Unlock()
			break
		}
		h.mu.Unlock()

		var err error
		cancel, err = h.redisSub.SubscribeUser(userID, func(event string, payload []byte) {
			h.deliver(userID, event, json.RawMessage(payload))
		})
		if err != nil {
			h.logger.Warn("subscribe user channel failed", zap.Error(err), zap.String("user_id", userID.String()))
			failed = true
		}
	}
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", userID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the user's last connection closes.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.users[c.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := m[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	close(c.send)
	var cancel func()
	if len(m) == 0 {
		delete(h.users, c.UserID)
		cancel = h.subs[c.UserID]
		delete(h.subs, c.UserID)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// PublishToUser delivers an event to every connection of userID on any instance.
func (h *Hub) PublishToUser(userID uuid.UUID, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if h.redis != nil {
		return h.redis.PublishUserEvent(userID, event, data)
	}
	h.deliver(userID, event, data)
	return nil
}

// Connections returns the number of local connections held by userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// deliver sends to local connections only. Slow clients drop the event.
func (h *Hub) deliver(userID uuid.UUID, event string, data []byte) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping event", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}
