package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

const (
	defaultCodeLength = 5
	maxCodeAttempts   = 64
)

// Registry is the process-wide table of live rooms. It owns creation, lookup and
// destruction; everything else holds a room only for the duration of one call.
type Registry struct {
	store       RoomStore
	quizzes     QuizRepository
	broadcaster Broadcaster
	archiver    Archiver
	codeLength  int
	now         func() time.Time
	log         *slog.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

func WithArchiver(a Archiver) RegistryOption {
	return func(r *Registry) {
		if a != nil {
			r.archiver = a
		}
	}
}

func WithCodeLength(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.codeLength = n
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRegistry(store RoomStore, quizzes QuizRepository, broadcaster Broadcaster, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:       store,
		quizzes:     quizzes,
		broadcaster: broadcaster,
		archiver:    nopArchiver{},
		codeLength:  defaultCodeLength,
		now:         time.Now,
		log:         slog.Default(),
	}
	if r.broadcaster == nil {
		r.broadcaster = nopBroadcaster{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoomRequest describes a new session. RequestedCode is optional; when a
// ConnectionID is given that connection is subscribed and receives roomCreated.
type CreateRoomRequest struct {
	QuizID        string
	RequestedCode string
	PresenterID   string
	ConnectionID  string
	Sink          Sink
}

// CreateRoom snapshots the quiz and registers a new room in Lobby.
func (r *Registry) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	requested := strings.TrimSpace(req.RequestedCode)
	if requested != "" && !r.validCode(requested) {
		return nil, domain.ErrInvalidRoomCode
	}

	quiz, err := r.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	var room *Room
	if requested != "" {
		room = r.newRoom(requested, quiz, req.PresenterID)
		ok, err := r.store.Insert(ctx, room)
		if err != nil {
			return nil, fmt.Errorf("reserve room code: %w", err)
		}
		if !ok {
			return nil, domain.ErrCodeInUse
		}
	} else {
		room, err = r.allocate(ctx, quiz, req.PresenterID)
		if err != nil {
			return nil, err
		}
	}

	if req.ConnectionID != "" {
		room.attachCreator(req.ConnectionID, req.Sink)
	}
	r.log.Info("room created", "room", room.Code(), "quiz", quiz.ID, "presenter", req.PresenterID)
	return room, nil
}

func (r *Registry) allocate(ctx context.Context, quiz domain.Quiz, presenterID string) (*Room, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.randomCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.store.Get(code); taken {
			continue
		}
		room := r.newRoom(code, quiz, presenterID)
		ok, err := r.store.Insert(ctx, room)
		if err != nil {
			return nil, fmt.Errorf("reserve room code: %w", err)
		}
		if ok {
			return room, nil
		}
	}
	return nil, domain.ErrCodeSpaceFull
}

func (r *Registry) newRoom(code string, quiz domain.Quiz, presenterID string) *Room {
	return NewRoom(code, quiz,
		WithBroadcaster(r.broadcaster),
		WithClock(r.now),
		WithPresenter(presenterID),
		WithRoomLogger(r.log),
	)
}

// randomCode draws codeLength decimal digits from crypto/rand.
func (r *Registry) randomCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < r.codeLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func (r *Registry) validCode(code string) bool {
	if len(code) != r.codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// GetRoom looks up a live room.
func (r *Registry) GetRoom(code string) (*Room, error) {
	room, ok := r.store.Get(strings.TrimSpace(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// CloseRoom closes the room, removes it from the live index and archives its summary.
// Archiving happens after the room lock is released and never fails the close.
func (r *Registry) CloseRoom(ctx context.Context, code, reason string) error {
	room, err := r.GetRoom(code)
	if err != nil {
		return err
	}
	archive, err := room.close(reason)
	if err != nil {
		return err
	}
	r.retire(ctx, room, archive)
	return nil
}

// retire unindexes a room that this caller closed and archives it. The store only drops
// the code while it still maps to this room, so a code reused after the close survives.
func (r *Registry) retire(ctx context.Context, room *Room, archive domain.RoomArchive) {
	r.store.Delete(ctx, room)
	if err := r.archiver.Archive(ctx, archive); err != nil {
		r.log.Warn("archive room failed", "room", archive.Code, "err", err)
	}
	r.log.Info("room closed", "room", archive.Code, "reason", archive.Reason, "status", archive.FinalStatus)
}

// Rooms lists the live rooms.
func (r *Registry) Rooms() []*Room {
	return r.store.Rooms()
}

// SweepIdle closes every idle room and returns their codes.
func (r *Registry) SweepIdle(ctx context.Context, idleTimeout time.Duration) []string {
	now := r.now()
	var closed []string
	for _, room := range r.store.Rooms() {
		if !room.IsIdle(now, idleTimeout) {
			continue
		}
		archive, err := room.closeIfIdle(now, idleTimeout, "idle")
		if err != nil {
			r.log.Debug("idle close skipped", "room", room.Code(), "err", err)
			continue
		}
		r.retire(ctx, room, archive)
		closed = append(closed, room.Code())
	}
	r.store.KeepAlive(ctx)
	return closed
}
