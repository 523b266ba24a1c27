package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientEvent is an inbound realtime frame.
type clientEvent struct {
	Type       string `json:"type"` // "join-room" | "leave-room" | "send-message"
	RoomID     int64  `json:"roomId"`
	Body       string `json:"body,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

// ServerEvent is an outbound realtime frame.
type ServerEvent struct {
	Type string `json:"type"` // "room-joined" | "receive-message" | "error" | "info"
	Data any    `json:"data,omitempty"`
}

// Conn is one realtime connection. A user may hold several at once; each
// is independently addressable and carries its own room membership.
type Conn struct {
	id     string
	userID UserID
	sock   *websocket.Conn
	send   chan ServerEvent

	// joined is guarded by the hub mutex.
	joined map[RoomID]bool
}

// Hub is the in-process connection registry: connections and their room
// membership. Membership is ephemeral, rebuilt from explicit join events
// after every reconnect; the stores stay the only authoritative state.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[RoomID]map[*Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[RoomID]map[*Conn]bool),
	}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

// unregister drops the connection and its memberships. Disconnect cleanup
// only; messages are durable before broadcast, so nothing is lost.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range c.joined {
		h.dropMemberLocked(c, roomID)
	}
	delete(h.conns, c.id)
}

func (h *Hub) join(c *Conn, roomID RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Conn]bool)
	}
	h.rooms[roomID][c] = true
	c.joined[roomID] = true
}

func (h *Hub) leave(c *Conn, roomID RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropMemberLocked(c, roomID)
	delete(c.joined, roomID)
}

func (h *Hub) dropMemberLocked(c *Conn, roomID RoomID) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) isJoined(c *Conn, roomID RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.joined[roomID]
}

// broadcast fans an event out to every connection joined to the room,
// the sender's own connection included.
func (h *Hub) broadcast(roomID RoomID, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		select {
		case c.send <- evt:
		default:
			// Drop the event if the connection's buffer is full
		}
	}
}

// MessageBroker ties realtime connections to the persistent chat stores.
type MessageBroker struct {
	hub      *Hub
	rooms    RoomRegistry
	messages MessageStore

	lockMu    sync.Mutex
	roomLocks map[RoomID]*sync.Mutex
}

func NewMessageBroker(hub *Hub, rooms RoomRegistry, messages MessageStore) *MessageBroker {
	return &MessageBroker{
		hub:       hub,
		rooms:     rooms,
		messages:  messages,
		roomLocks: make(map[RoomID]*sync.Mutex),
	}
}

func (b *MessageBroker) roomLock(roomID RoomID) *sync.Mutex {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()
	if b.roomLocks[roomID] == nil {
		b.roomLocks[roomID] = &sync.Mutex{}
	}
	return b.roomLocks[roomID]
}

// SendMessage persists the message, then broadcasts the stored copy (with
// the store-assigned id and timestamp) to every joined connection, then
// refreshes the room preview. Persist-then-broadcast runs under a
// per-room lock so concurrent senders cannot interleave the visible
// order. An error means nothing was broadcast.
func (b *MessageBroker) SendMessage(ctx context.Context, roomID RoomID, body string, senderID UserID, senderName string) (Message, error) {
	lock := b.roomLock(roomID)
	lock.Lock()
	msg, err := b.messages.Append(ctx, roomID, senderID, senderName, body)
	if err != nil {
		lock.Unlock()
		return Message{}, err
	}
	b.hub.broadcast(roomID, ServerEvent{Type: "receive-message", Data: msg})
	lock.Unlock()

	// Preview is listing-only; a failure here never unwinds the send.
	if err := b.rooms.UpdatePreview(ctx, roomID, msg.Body); err != nil {
		log.Printf("failed to update preview for room %d: %v", roomID, err)
	}
	return msg, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set Origin-independent headers on WS; the HTTP
	// layer's CORS policy is the gate that matters here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws?token=...
func wsHandler(broker *MessageBroker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		c := &Conn{
			id:     uuid.NewString(),
			userID: userID,
			sock:   sock,
			send:   make(chan ServerEvent, 16),
			joined: make(map[RoomID]bool),
		}
		broker.hub.register(c)

		// Announce connection to this client
		c.send <- ServerEvent{Type: "info", Data: "connected"}

		// Start writer
		go connWriter(c)
		// Start reader (blocks)
		connReader(broker, c)
	}
}

func connReader(b *MessageBroker, c *Conn) {
	defer func() {
		b.hub.unregister(c)
		c.sock.Close()
	}()

	c.sock.SetReadLimit(1 << 20)
	_ = c.sock.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.sock.SetPongHandler(func(string) error {
		_ = c.sock.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.sock.ReadMessage()
		if err != nil {
			return
		}

		var evt clientEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			c.send <- errorEvent("invalid event format")
			continue
		}

		b.handleEvent(c, evt)
	}
}

func (b *MessageBroker) handleEvent(c *Conn, evt clientEvent) {
	ctx := context.Background()
	roomID := RoomID(evt.RoomID)

	switch evt.Type {
	case "join-room":
		// Room access is the registry's participant gate; a foreign or
		// unknown room fails identically.
		if _, err := b.rooms.GetRoom(ctx, roomID, c.userID); err != nil {
			c.send <- errorEvent("room not found")
			return
		}
		b.hub.join(c, roomID)
		c.send <- ServerEvent{Type: "room-joined", Data: map[string]RoomID{"roomId": roomID}}

	case "leave-room":
		b.hub.leave(c, roomID)

	case "send-message":
		if !b.hub.isJoined(c, roomID) {
			c.send <- errorEvent("join the room before sending")
			return
		}
		// The sender identity comes from the authenticated connection,
		// never from the payload.
		if _, err := b.SendMessage(ctx, roomID, evt.Body, c.userID, evt.SenderName); err != nil {
			c.send <- sendFailureEvent(err)
		}

	default:
		c.send <- errorEvent("unknown event type")
	}
}

func errorEvent(msg string) ServerEvent {
	return ServerEvent{Type: "error", Data: map[string]string{"message": msg}}
}

// sendFailureEvent reports a failed send to the sender only.
func sendFailureEvent(err error) ServerEvent {
	switch {
	case errors.Is(err, ErrMessageTooLong):
		return errorEvent("message too long")
	case errors.Is(err, ErrValidation):
		return errorEvent("empty message")
	default:
		return errorEvent("cannot send message")
	}
}

func connWriter(c *Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.sock.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
