package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomStore.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) Insert(_ context.Context, room *app.Room) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code()]; ok {
		return false, nil
	}
	s.rooms[room.Code()] = room
	return true, nil
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Delete removes room only while its code still maps to that same room.
func (s *RoomStore) Delete(_ context.Context, room *app.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room.Code()] == room {
		delete(s.rooms, room.Code())
	}
}

// Rooms returns the live rooms ordered by code.
func (s *RoomStore) Rooms() []*app.Room {
	s.mu.RLock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

func (s *RoomStore) KeepAlive(context.Context) {}
