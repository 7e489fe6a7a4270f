package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clusterChannel is the redis pub/sub channel used to fan pushes out to
// every running instance. Each instance delivers to its local clients only.
const clusterChannel = "cluster_events"

// Push is the envelope written to the client socket.
type Push struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	TargetUserID string `json:"target_user_id"` // "*" means broadcast
	Push         Push   `json:"push"`
}

// Hub maintains the set of active clients and routes server pushes
// (paper ingestion lifecycle events) to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	rdb    *redis.Client
	logger *log.Logger
}

func NewHub(rdb *redis.Client, logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		logger:     logger,
	}
}

// Run processes register/unregister requests. Call it once from a goroutine
// at startup.
func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToCluster()
	}
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Printf("[WS] client connected: user=%s", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			conns := h.clients[client.UserID]
			for i, c := range conns {
				if c == client {
					h.clients[client.UserID] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			close(client.Send)
			h.logger.Printf("[WS] client disconnected: user=%s", client.UserID)
		}
	}
}

// Send delivers a typed push to every connection of one user. When redis is
// configured the push goes through the cluster channel so instances other
// than the one handling the request can reach the user's sockets.
func (h *Hub) Send(userID uuid.UUID, eventType string, data interface{}) {
	push := Push{Type: eventType, Data: data}
	if h.rdb != nil {
		h.publishToCluster(clusterMessage{TargetUserID: userID.String(), Push: push})
		return
	}
	h.sendLocal(userID, push)
}

// Broadcast delivers a typed push to every connected user.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	push := Push{Type: eventType, Data: data}
	if h.rdb != nil {
		h.publishToCluster(clusterMessage{TargetUserID: "*", Push: push})
		return
	}
	h.broadcastLocal(push)
}

func (h *Hub) sendLocal(userID uuid.UUID, push Push) {
	payload, err := json.Marshal(push)
	if err != nil {
		h.logger.Printf("[WS ERROR] marshal push: %v", err)
		return
	}

	h.mu.RLock()
	conns := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range conns {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer, drop the push rather than block the hub.
			h.logger.Printf("[WS] send buffer full, dropping push for user=%s", userID)
		}
	}
}

func (h *Hub) broadcastLocal(push Push) {
	payload, err := json.Marshal(push)
	if err != nil {
		h.logger.Printf("[WS ERROR] marshal push: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, conns := range h.clients {
		for _, client := range conns {
			select {
			case client.Send <- payload:
			default:
				h.logger.Printf("[WS] send buffer full, dropping push for user=%s", userID)
			}
		}
	}
}

func (h *Hub) publishToCluster(msg clusterMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("[WS ERROR] marshal cluster message: %v", err)
		return
	}
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Printf("[WS ERROR] publish to cluster: %v", err)
	}
}

func (h *Hub) subscribeToCluster() {
	sub := h.rdb.Subscribe(context.Background(), clusterChannel)
	defer sub.Close()

	h.logger.Printf("[WS] subscribed to redis channel %q", clusterChannel)
	for msg := range sub.Channel() {
		var cm clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
			h.logger.Printf("[WS ERROR] unmarshal cluster message: %v", err)
			continue
		}
		if cm.TargetUserID == "*" {
			h.broadcastLocal(cm.Push)
			continue
		}
		userID, err := uuid.Parse(cm.TargetUserID)
		if err != nil {
			h.logger.Printf("[WS ERROR] bad target user id %q: %v", cm.TargetUserID, err)
			continue
		}
		h.sendLocal(userID, cm.Push)
	}
}
