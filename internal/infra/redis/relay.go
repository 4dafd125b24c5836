package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const defaultRelayQueue = 1024

// Relay decorates a Broadcaster and mirrors every room broadcast onto the Redis channel
// quiz:room:{code}:events, for dashboards and other instances. Local delivery is never
// held up by Redis: events are queued and published by Run, and dropped if the queue is full.
type Relay struct {
	app.Broadcaster
	client *redis.Client
	queue  chan domain.Event
	log    *slog.Logger
}

func NewRelay(inner app.Broadcaster, client *redis.Client, queueSize int, log *slog.Logger) *Relay {
	if queueSize <= 0 {
		queueSize = defaultRelayQueue
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		Broadcaster: inner,
		client:      client,
		queue:       make(chan domain.Event, queueSize),
		log:         log,
	}
}

func (r *Relay) Publish(roomCode string, ev domain.Event) {
	r.Broadcaster.Publish(roomCode, ev)
	select {
	case r.queue <- ev:
	default:
		r.log.Warn("relay queue full, event dropped", "room", roomCode, "event", ev.Name, "seq", ev.Seq)
	}
}

// Run publishes queued events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			raw, err := json.Marshal(ev)
			if err != nil {
				r.log.Error("encode relay event", "room", ev.RoomCode, "event", ev.Name, "err", err)
				continue
			}
			if err := r.client.Publish(ctx, EventsChannel(ev.RoomCode), raw).Err(); err != nil {
				r.log.Warn("relay publish failed", "room", ev.RoomCode, "event", ev.Name, "err", err)
			}
		}
	}
}

// EventsChannel is the pub/sub channel carrying a room's broadcasts.
func EventsChannel(roomCode string) string {
	return "quiz:room:" + roomCode + ":events"
}
