package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	commonlog "filevault/server/common/log"
	"filevault/server/fileman/domain"
)

const (
	eventsChannel = "fileman:events"
	writeTimeout  = 5 * time.Second
	readTimeout   = 90 * time.Second
)

type Client struct {
	ID     string
	UserID string
	Email  string
	Conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *Client) WriteJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteJSON(payload)
}

// Message is what connected clients receive when a listing they can see
// changed.
type Message struct {
	Type  string           `json:"type"`
	Event domain.FileEvent `json:"event"`
}

// Hub pushes file events to the owner's and sharees' websocket connections.
// With Redis attached, events go through a pub/sub channel so every instance
// delivers to its own connections.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	redis     *redis.Client
	redisSub  *redis.PubSub
	subCancel context.CancelFunc
	upgrader  websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:  map[string]*Client{},
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *Hub) UseRedis(client *redis.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redis = client
}

func (h *Hub) StartRedisSubscriber(ctx context.Context) error {
	h.mu.Lock()
	if h.redis == nil {
		h.mu.Unlock()
		return errors.New("redis client is nil")
	}
	if h.redisSub != nil {
		h.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := h.redis.Subscribe(subCtx, eventsChannel)
	h.redisSub = sub
	h.subCancel = cancel
	h.mu.Unlock()

	go h.consume(subCtx, sub)
	return nil
}

func (h *Hub) StopRedisSubscriber() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subCancel != nil {
		h.subCancel()
		h.subCancel = nil
	}
	if h.redisSub != nil {
		_ = h.redisSub.Close()
		h.redisSub = nil
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// Publish implements the file service's event sink.
func (h *Hub) Publish(ctx context.Context, event domain.FileEvent) error {
	h.mu.RLock()
	redisClient := h.redis
	h.mu.RUnlock()

	if redisClient != nil {
		b, err := json.Marshal(event)
		if err != nil {
			return err
		}
		err = redisClient.Publish(ctx, eventsChannel, b).Err()
		if err == nil {
			return nil
		}
		commonlog.Warnf("event=fileman_hub action=publish status=failed kind=%s error=%v", event.Kind, err)
	}
	count := h.deliver(event)
	commonlog.Debugf("event=fileman_hub action=local_dispatch kind=%s file_id=%s fanout_count=%d", event.Kind, event.FileID, count)
	return nil
}

func (h *Hub) deliver(event domain.FileEvent) int {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, c := range h.clients {
		if c.UserID == event.OwnerID || slices.Contains(event.SharedWith, c.Email) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	msg := Message{Type: "files.changed", Event: event}
	for _, c := range targets {
		if err := c.WriteJSON(msg); err != nil {
			commonlog.Debugf("event=fileman_hub action=write status=failed client_id=%s error=%v", c.ID, err)
		}
	}
	return len(targets)
}

func (h *Hub) consume(ctx context.Context, sub *redis.PubSub) {
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		var event domain.FileEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			continue
		}
		count := h.deliver(event)
		commonlog.Debugf("event=fileman_hub action=consume kind=%s file_id=%s fanout_count=%d", event.Kind, event.FileID, count)
	}
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away. Clients only need to read; anything they send just
// extends the read deadline.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, caller domain.Identity) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{
		ID:     uuid.NewString(),
		UserID: caller.UserID,
		Email:  domain.NormalizeEmail(caller.Email),
		Conn:   conn,
	}
	h.Register(client)
	defer h.Unregister(client)

	_ = client.WriteJSON(map[string]any{
		"type":         "files.connected",
		"user_id":      caller.UserID,
		"connected_at": time.Now().UTC(),
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return nil
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
