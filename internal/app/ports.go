package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RoomStore is the code-to-room index behind the registry. Implementations hold their
// own short-lived lock, independent of any room's lock.
type RoomStore interface {
	// Insert adds the room unless its code is already taken.
	Insert(ctx context.Context, room *Room) (bool, error)
	Get(code string) (*Room, bool)
	// Delete removes room only if its code still maps to that same room.
	Delete(ctx context.Context, room *Room)
	Rooms() []*Room
	// KeepAlive refreshes any external reservation of the live codes.
	KeepAlive(ctx context.Context)
}

// Sink is one subscriber connection. Deliver must not block.
type Sink interface {
	Deliver(ev domain.Event) error
	Close()
}

// Broadcaster fans room events out to subscribers. Events published for one room must
// reach each of that room's subscribers in publish order.
type Broadcaster interface {
	Subscribe(roomCode, connectionID string, sink Sink)
	Unsubscribe(roomCode, connectionID string)
	Publish(roomCode string, ev domain.Event)
	Send(roomCode, connectionID string, ev domain.Event)
	// Teardown closes every subscriber of the room.
	Teardown(roomCode string)
}

// Archiver receives the summary of closed rooms.
type Archiver interface {
	Archive(ctx context.Context, archive domain.RoomArchive) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Subscribe(string, string, Sink) {}
func (nopBroadcaster) Unsubscribe(string, string) {}
func (nopBroadcaster) Publish(string, domain.Event) {}
func (nopBroadcaster) Send(string, string, domain.Event) {}
func (nopBroadcaster) Teardown(string) {}

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, domain.RoomArchive) error { return nil }
