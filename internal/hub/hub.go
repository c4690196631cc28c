// Package hub fans map surface commands out to the WebSocket clients
// watching a planner session.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"campuspulse/internal/cache"
	"campuspulse/internal/domain"
)

type Client struct {
	ID        string
	SessionID string
	Send      chan []byte
}

func NewClient(id, sessionID string, bufferSize int) *Client {
	return &Client{
		ID:        id,
		SessionID: sessionID,
		Send:      make(chan []byte, bufferSize),
	}
}

// SnapshotStore persists the last command batch of every session so that a
// widget reconnecting to another instance can redraw its map. With a store
// configured the hub keeps no snapshots of its own; expiry is the store's.
type SnapshotStore interface {
	SetJSONCompressed(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSONCompressed(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	sessionClients map[string]map[*Client]struct{}
	snapshots      map[string][]domain.SurfaceCommand

	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.SessionCommands

	snapshotStore SnapshotStore
	snapshotTTL   time.Duration

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		sessionClients: make(map[string]map[*Client]struct{}),
		snapshots:      make(map[string][]domain.SurfaceCommand),
		register:       make(chan *Client, 16),
		unregister:     make(chan *Client, 16),
		broadcast:      make(chan domain.SessionCommands, 256),
		logger:         logger.With("component", "hub"),
	}
}

// WithSnapshotStore mirrors snapshots into store for ttl.
func (h *Hub) WithSnapshotStore(store SnapshotStore, ttl time.Duration) *Hub {
	h.snapshotStore = store
	h.snapshotTTL = ttl
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case batch := <-h.broadcast:
			h.fanout(batch)
		}
	}
}

// Publish records commands as the session's latest state and queues them for
// delivery. A session_ended batch drops the snapshot.
func (h *Hub) Publish(sessionID string, commands []domain.SurfaceCommand) {
	if len(commands) == 0 {
		return
	}

	ended := commands[len(commands)-1].Type == domain.CommandSessionEnded

	if h.snapshotStore != nil {
		h.persistSnapshot(sessionID, commands, ended)
	} else {
		h.mu.Lock()
		if ended {
			delete(h.snapshots, sessionID)
		} else {
			h.snapshots[sessionID] = commands
		}
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- domain.SessionCommands{SessionID: sessionID, Commands: commands}:
	default:
		h.logger.Warn("broadcast channel full, dropping commands", "session_id", sessionID, "count", len(commands))
	}
}

func (h *Hub) persistSnapshot(sessionID string, commands []domain.SurfaceCommand, ended bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := cache.KeySessionOverlay(sessionID)
	if ended {
		if err := h.snapshotStore.Delete(ctx, key); err != nil {
			h.logger.Warn("failed to drop snapshot", "session_id", sessionID, "error", err)
		}
		return
	}
	if err := h.snapshotStore.SetJSONCompressed(ctx, key, commands, h.snapshotTTL); err != nil {
		h.logger.Warn("failed to persist snapshot", "session_id", sessionID, "error", err)
	}
}

// Snapshot returns the latest command batch of a session.
func (h *Hub) Snapshot(ctx context.Context, sessionID string) []domain.SurfaceCommand {
	if h.snapshotStore == nil {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.snapshots[sessionID]
	}

	var stored []domain.SurfaceCommand
	found, err := h.snapshotStore.GetJSONCompressed(ctx, cache.KeySessionOverlay(sessionID), &stored)
	if err != nil {
		h.logger.Warn("failed to load snapshot", "session_id", sessionID, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return stored
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type    string                 `json:"type"`
	Payload domain.SessionCommands `json:"payload"`
}

// Encode builds the wire form of a command batch.
func Encode(msgType, sessionID string, commands []domain.SurfaceCommand) ([]byte, error) {
	return json.Marshal(Message{
		Type:    msgType,
		Payload: domain.SessionCommands{SessionID: sessionID, Commands: commands},
	})
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	if h.sessionClients[client.SessionID] == nil {
		h.sessionClients[client.SessionID] = make(map[*Client]struct{})
	}
	h.sessionClients[client.SessionID][client] = struct{}{}
	h.logger.Debug("client registered", "client_id", client.ID, "session_id", client.SessionID, "total", len(h.clients))
}

func (h *Hub) fanout(batch domain.SessionCommands) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.sessionClients[batch.SessionID]
	if len(clients) == 0 {
		return
	}

	data, err := Encode("commands", batch.SessionID, batch.Commands)
	if err != nil {
		h.logger.Error("failed to encode commands", "session_id", batch.SessionID, "error", err)
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	if clients := h.sessionClients[client.SessionID]; clients != nil {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessionClients, client.SessionID)
		}
	}

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.sessionClients = make(map[string]map[*Client]struct{})
}
