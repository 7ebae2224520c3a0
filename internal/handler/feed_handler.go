package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"littlejoys/internal/feed"
	"littlejoys/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, check against allowed origins
		return true
	},
}

// FeedHandler upgrades connections onto the live post feed
type FeedHandler struct {
	hub *feed.Hub
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(hub *feed.Hub) *FeedHandler {
	return &FeedHandler{hub: hub}
}

// HandleConnection handles WebSocket upgrade and subscription
func (h *FeedHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("user", userID))
		return
	}

	client := feed.NewClient(r.Context(), h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
