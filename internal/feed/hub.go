package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"littlejoys/internal/domain"
	"littlejoys/internal/observability"
)

// Hub maintains live feed subscribers and pushes newly published posts
// to all of them
type Hub struct {
	clients map[*Client]bool

	broadcast chan []byte

	register chan *Client

	unregister chan *Client

	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			observability.FeedConnectionsActive.Inc()
			slog.Info("feed subscriber registered",
				slog.String("user", client.userID))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
					observability.FeedMessagesSent.WithLabelValues("new_post").Inc()
				default:
					// Subscriber's send buffer is full, close connection
					h.closeClientSend(client)
					delete(h.clients, client)
				}
			}
		}
	}
}

// unregisterClient safely removes a subscriber from the hub
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.closeClientSend(client)
		observability.FeedConnectionsActive.Dec()
		slog.Info("feed subscriber unregistered",
			slog.String("user", client.userID))
	}
}

// closeClientSend safely closes a subscriber's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for client := range h.clients {
		h.closeClientSend(client)
		slog.Info("closed feed subscriber connection",
			slog.String("user", client.userID))
	}

	slog.Info("feed hub shutdown complete")
}

// feedMessage is the frame pushed to subscribers
type feedMessage struct {
	Type string       `json:"type"`
	Post *domain.Post `json:"post,omitempty"`
}

// BroadcastPost pushes a newly published post to all subscribers
func (h *Hub) BroadcastPost(post *domain.Post) {
	data, err := json.Marshal(feedMessage{Type: "new_post", Post: post})
	if err != nil {
		slog.Error("failed to marshal feed message",
			slog.String("error", err.Error()),
			slog.String("post_id", post.ID))
		return
	}
	h.broadcast <- data
}

// Register registers a subscriber with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a subscriber from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
