package memory

import (
	"log/slog"
	"sync"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Hub is an in-process app.Broadcaster. Each room has its own subscriber set and lock;
// delivery never blocks, and a subscriber that cannot take an event is dropped and closed.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*roomSubscribers
	log   *slog.Logger
}

type roomSubscribers struct {
	mu    sync.Mutex
	sinks map[string]app.Sink // connectionID -> sink
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{rooms: make(map[string]*roomSubscribers), log: log}
}

func (h *Hub) Subscribe(roomCode, connectionID string, sink app.Sink) {
	rs := h.room(roomCode, true)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.sinks[connectionID] = sink
}

func (h *Hub) Unsubscribe(roomCode, connectionID string) {
	rs := h.room(roomCode, false)
	if rs == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.sinks, connectionID)
}

func (h *Hub) Publish(roomCode string, ev domain.Event) {
	rs := h.room(roomCode, false)
	if rs == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for connectionID, sink := range rs.sinks {
		h.deliverLocked(rs, roomCode, connectionID, sink, ev)
	}
}

func (h *Hub) Send(roomCode, connectionID string, ev domain.Event) {
	rs := h.room(roomCode, false)
	if rs == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if sink, ok := rs.sinks[connectionID]; ok {
		h.deliverLocked(rs, roomCode, connectionID, sink, ev)
	}
}

func (h *Hub) Teardown(roomCode string) {
	h.mu.Lock()
	rs, ok := h.rooms[roomCode]
	delete(h.rooms, roomCode)
	h.mu.Unlock()
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	for connectionID, sink := range rs.sinks {
		sink.Close()
		delete(rs.sinks, connectionID)
	}
}

// Subscribers reports how many connections are subscribed to a room.
func (h *Hub) Subscribers(roomCode string) int {
	rs := h.room(roomCode, false)
	if rs == nil {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.sinks)
}

func (h *Hub) deliverLocked(rs *roomSubscribers, roomCode, connectionID string, sink app.Sink, ev domain.Event) {
	if err := sink.Deliver(ev); err != nil {
		h.log.Warn("dropping slow subscriber", "room", roomCode, "conn", connectionID, "event", ev.Name, "err", err)
		delete(rs.sinks, connectionID)
		sink.Close()
	}
}

func (h *Hub) room(roomCode string, create bool) *roomSubscribers {
	h.mu.RLock()
	rs, ok := h.rooms[roomCode]
	h.mu.RUnlock()
	if ok || !create {
		return rs
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if rs, ok := h.rooms[roomCode]; ok {
		return rs
	}
	rs = &roomSubscribers{sinks: make(map[string]app.Sink)}
	h.rooms[roomCode] = rs
	return rs
}
