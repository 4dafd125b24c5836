package redis

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/app"
)

// RoomStore keeps live rooms in process and reserves their codes in Redis, so instances
// sharing one Redis never hand out the same code. Reservations expire after ttl unless
// KeepAlive refreshes them.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	log    *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

// NewRoomStore builds a store whose reservations are tagged with owner (an instance id).
func NewRoomStore(client *redis.Client, ttl time.Duration, owner string, log *slog.Logger) *RoomStore {
	if log == nil {
		log = slog.Default()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		owner:  owner,
		log:    log,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Insert(ctx context.Context, room *app.Room) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[room.Code()]; taken {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, roomKey(room.Code()), s.owner, s.ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
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

// Delete drops room from the index if its code still maps to it, then releases the
// reservation when this instance still owns it.
func (s *RoomStore) Delete(ctx context.Context, room *app.Room) {
	code := room.Code()
	s.mu.Lock()
	current, ok := s.rooms[code]
	if ok && current == room {
		delete(s.rooms, code)
	}
	s.mu.Unlock()
	if !ok || current != room {
		return
	}
	if err := releaseScript.Run(ctx, s.client, []string{roomKey(code)}, s.owner).Err(); err != nil {
		s.log.Warn("release room code failed", "room", code, "err", err)
	}
}

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

// KeepAlive extends every reservation this instance still owns. A key that expired and
// was taken by another instance is left alone.
func (s *RoomStore) KeepAlive(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	s.mu.RLock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	if len(codes) == 0 {
		return
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.Cmd, len(codes))
	for i, code := range codes {
		cmds[i] = refreshScript.Eval(ctx, pipe, []string{roomKey(code)}, s.owner, s.ttl.Milliseconds())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("refresh room codes failed", "rooms", len(codes), "err", err)
		return
	}
	for i, cmd := range cmds {
		if n, _ := cmd.Int64(); n == 0 {
			s.log.Warn("room code reservation lost", "room", codes[i])
		}
	}
}

// Reservations hold the owner id; both scripts act only when it still matches.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

func roomKey(code string) string {
	return "quiz:room:" + code
}
