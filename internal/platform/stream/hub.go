// Package stream pushes domain events to connected WebSocket clients. Clients
// subscribe to event topics after connecting; the hub fans each broadcast out
// to that topic's subscribers without ever blocking the publisher.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Message is the frame written to subscribed clients.
type Message struct {
	Topic  string          `json:"topic"`
	SentAt time.Time       `json:"sentAt"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Command is an inbound client frame adjusting topic subscriptions.
type Command struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Conn abstracts the WebSocket connection so the hub can be tested without a
// network socket.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected consumer. Send is drained by the write pump; a full
// buffer drops frames for that client rather than stalling the hub.
type Client struct {
	ID     uuid.UUID
	Topics []string
	Send   chan []byte
	conn   Conn
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	byTopic map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byTopic: make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	for _, topic := range c.Topics {
		h.addSubscription(c, topic)
	}
}

// Unregister drops the client from every topic and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, topic := range c.Topics {
		h.dropSubscription(c, topic)
	}
	delete(h.clients, c)
	close(c.Send)
}

func (h *Hub) Subscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.addSubscription(c, topic)
	}
	c.Topics = append(c.Topics, topics...)
}

func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		h.dropSubscription(c, topic)
		dropped[topic] = struct{}{}
	}

	kept := c.Topics[:0]
	for _, topic := range c.Topics {
		if _, ok := dropped[topic]; !ok {
			kept = append(kept, topic)
		}
	}
	c.Topics = kept
}

// addSubscription and dropSubscription require h.mu held.
func (h *Hub) addSubscription(c *Client, topic string) {
	if h.byTopic[topic] == nil {
		h.byTopic[topic] = make(map[*Client]struct{})
	}
	h.byTopic[topic][c] = struct{}{}
}

func (h *Hub) dropSubscription(c *Client, topic string) {
	if subs, ok := h.byTopic[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.byTopic, topic)
		}
	}
}

// HandleCommand applies an inbound subscribe/unsubscribe frame. Unknown
// actions are ignored.
func (h *Hub) HandleCommand(c *Client, cmd Command) {
	switch cmd.Action {
	case "subscribe":
		h.Subscribe(c, cmd.Topics)
	case "unsubscribe":
		h.Unsubscribe(c, cmd.Topics)
	}
}

// Broadcast marshals payload and delivers it to every subscriber of topic.
// Slow clients are skipped, never waited on.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal stream payload")
		return
	}
	frame, err := json.Marshal(Message{Topic: topic, SentAt: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("marshal stream frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.byTopic[topic] {
		select {
		case c.Send <- frame:
		default:
			h.logger.Warn().Str("topic", topic).Str("client", c.ID.String()).Msg("stream buffer full, frame dropped")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[topic])
}

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Auth happens in middleware; origin checks belong to the proxy.
	},
}

// Handler upgrades authenticated HTTP requests to WebSocket connections.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/stream", h.Connect)
}

func (h *Handler) Connect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:   uuid.New(),
		Send: make(chan []byte, 256),
		conn: ws,
	}
	h.hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		h.hub.HandleCommand(client, cmd)
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for frame := range client.Send {
		if err := client.conn.WriteMessage(gws.TextMessage, frame); err != nil {
			return
		}
	}
}
