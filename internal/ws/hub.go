package ws

import (
	"sync"

	"github.com/Vasu1712/scenyx-radio/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SendBuffer is the number of frames queued per client before it is dropped.
const SendBuffer = 256

type Client struct {
	ID   string
	Send chan []byte
	Conn *websocket.Conn // nil in tests

	room string // guarded by Hub.mu
}

// NewClient wraps a connection with a fresh id and send buffer.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, SendBuffer),
		Conn: conn,
	}
}

// Hub tracks connected clients and which station room each one is in.
// A client is in at most one room. Clients whose Send buffer is full are
// dropped: removed from the hub and their Send channel closed.
//
// The hub never calls into a station, so stations may call it while holding
// their own lock.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{} // station -> members
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewHub(m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		metrics: m,
		log:     log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.Connections.Inc()
	}
}

// Unregister removes the client and closes its Send channel. It returns the
// room the client was in, if any. Safe to call more than once.
func (h *Hub) Unregister(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := c.room
	h.removeLocked(c)
	return room
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leaveLocked(c)
	delete(h.clients, c)
	close(c.Send)
	if h.metrics != nil {
		h.metrics.Connections.Dec()
	}
}

func (h *Hub) leaveLocked(c *Client) string {
	prev := c.room
	if prev == "" {
		return ""
	}
	if members, ok := h.rooms[prev]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, prev)
		}
	}
	c.room = ""
	return prev
}

// Join moves the client into room and returns the room it left. Joining the
// room it is already in is a no-op. Unregistered clients are ignored.
func (h *Hub) Join(c *Client, room string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return ""
	}
	if c.room == room {
		return ""
	}
	prev := h.leaveLocked(c)
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.room = room
	return prev
}

// Leave takes the client out of its room and returns the room it left.
func (h *Hub) Leave(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(c)
}

// Room returns the room the client is in, or "".
func (h *Hub) Room(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.room
}

func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RenameRoom moves every member of oldName to newName and tells each of them
// to rejoin under the new name.
func (h *Hub) RenameRoom(oldName, newName string) {
	frame, err := Encode(TypeRadioRenamedRejoin, RadioRenamedData{OldName: oldName, NewName: newName})
	if err != nil {
		h.log.Error().Err(err).Msg("encode rejoin")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[oldName]
	delete(h.rooms, oldName)
	if len(members) == 0 {
		return
	}
	h.rooms[newName] = members
	for c := range members {
		c.room = newName
	}
	h.deliverLocked(members, frame)
}

// CloseRoom sends reason as an error to every member and empties the room.
func (h *Hub) CloseRoom(room, reason string) {
	frame, err := Encode(TypeError, ErrorData{Message: reason})
	if err != nil {
		h.log.Error().Err(err).Msg("encode close")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	delete(h.rooms, room)
	for c := range members {
		c.room = ""
	}
	h.deliverLocked(members, frame)
}

// Send queues a message for a single client.
func (h *Hub) Send(c *Client, t MessageType, data any) {
	frame, err := Encode(t, data)
	if err != nil {
		h.log.Error().Err(err).Msg("encode message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.deliverLocked(map[*Client]struct{}{c: {}}, frame)
}

// SendError reports a failed command to the client that sent it.
func (h *Hub) SendError(c *Client, err error) {
	h.Send(c, TypeError, ErrorData{Message: err.Error()})
}

// BroadcastRoom sends a message to every member of room.
func (h *Hub) BroadcastRoom(room string, t MessageType, data any) {
	frame, err := Encode(t, data)
	if err != nil {
		h.log.Error().Err(err).Msg("encode message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(h.rooms[room], frame)
}

// BroadcastGlobal sends a message to every registered client.
func (h *Hub) BroadcastGlobal(t MessageType, data any) {
	frame, err := Encode(t, data)
	if err != nil {
		h.log.Error().Err(err).Msg("encode message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(h.clients, frame)
}

func (h *Hub) deliverLocked(targets map[*Client]struct{}, frame []byte) {
	var slow []*Client
	for c := range targets {
		select {
		case c.Send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.log.Warn().Str("client", c.ID).Msg("send buffer full, dropping client")
		h.removeLocked(c)
	}
}
