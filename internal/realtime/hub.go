package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub groups connections into rooms keyed by room token.
type Hub struct {
	rooms   map[string]map[Conn]struct{}
	joined  map[Conn]map[string]struct{}
	locator Locator
	mu      sync.RWMutex
}

func NewHub(locator Locator) *Hub {
	return &Hub{
		rooms:   make(map[string]map[Conn]struct{}),
		joined:  make(map[Conn]map[string]struct{}),
		locator: locator,
	}
}

// Join adds conn to the room. Dead connections are skipped.
func (h *Hub) Join(roomToken string, conn Conn) bool {
	if conn == nil || !conn.Alive() {
		return false
	}

	h.mu.Lock()
	if h.rooms[roomToken] == nil {
		h.rooms[roomToken] = make(map[Conn]struct{})
	}
	h.rooms[roomToken][conn] = struct{}{}
	if h.joined[conn] == nil {
		h.joined[conn] = make(map[string]struct{})
	}
	h.joined[conn][roomToken] = struct{}{}
	memberCount := len(h.rooms[roomToken])
	h.mu.Unlock()

	log.Debug().
		Str("roomToken", roomToken).
		Int64("userId", conn.UserID()).
		Int("memberCount", memberCount).
		Msg("connection joined room")

	return true
}

func (h *Hub) Leave(roomToken string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomToken, conn)
}

// LeaveAll drops conn from every room it joined.
func (h *Hub) LeaveAll(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomToken := range h.joined[conn] {
		h.removeLocked(roomToken, conn)
	}
	delete(h.joined, conn)
}

// CloseRoom removes every member of the room.
func (h *Hub) CloseRoom(roomToken string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.rooms[roomToken] {
		h.removeLocked(roomToken, conn)
	}
	delete(h.rooms, roomToken)
}

func (h *Hub) removeLocked(roomToken string, conn Conn) {
	if members, ok := h.rooms[roomToken]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, roomToken)
		}
	}
	if rooms, ok := h.joined[conn]; ok {
		delete(rooms, roomToken)
		if len(rooms) == 0 {
			delete(h.joined, conn)
		}
	}
}

// Broadcast sends ev to every live member and returns how many accepted it.
func (h *Hub) Broadcast(roomToken string, ev Event) int {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[roomToken]))
	for conn := range h.rooms[roomToken] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range members {
		if conn.Send(ev) {
			delivered++
		} else {
			log.Warn().
				Str("roomToken", roomToken).
				Int64("userId", conn.UserID()).
				Str("eventType", ev.Type).
				Msg("dropped room event")
		}
	}
	return delivered
}

// SendToUser delivers ev to the user's current connection, if any.
func (h *Hub) SendToUser(userID int64, ev Event) bool {
	conn, ok := h.locator.Lookup(userID)
	if !ok {
		return false
	}
	return conn.Send(ev)
}

func (h *Hub) Members(roomToken string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]Conn, 0, len(h.rooms[roomToken]))
	for conn := range h.rooms[roomToken] {
		members = append(members, conn)
	}
	return members
}

func (h *Hub) InRoom(roomToken string, conn Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomToken][conn]
	return ok
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
