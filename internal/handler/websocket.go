package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"campuspulse/internal/domain"
	"campuspulse/internal/hub"
)

type SessionLookup interface {
	Session(ctx context.Context, id string) (domain.SessionView, error)
}

type WSHandler struct {
	hub      *hub.Hub
	sessions SessionLookup
	origins  []string
	logger   *slog.Logger
}

func NewWSHandler(h *hub.Hub, sessions SessionLookup, origins []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, sessions: sessions, origins: origins, logger: logger.With("component", "websocket")}
}

type WSMessage struct {
	Type string `json:"type"`
}

type PongMessage struct {
	Type string `json:"type"`
}

// ServeWS streams the map surface commands of one session. The latest
// batch is replayed on connect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.sessions.Session(r.Context(), sessionID); err != nil {
		respondErr(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), sessionID, 64)
	h.hub.Register(client)
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.sendSnapshot(ctx, client)

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			h.sendPong(client)
		case "snapshot":
			h.sendSnapshot(ctx, client)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendSnapshot(ctx context.Context, client *hub.Client) {
	commands := h.hub.Snapshot(ctx, client.SessionID)
	if commands == nil {
		commands = []domain.SurfaceCommand{}
	}

	data, err := hub.Encode("snapshot", client.SessionID, commands)
	if err != nil {
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(PongMessage{Type: "pong"})
	if err != nil {
		return
	}

	select {
	case client.Send <- data:
	default:
	}
}
