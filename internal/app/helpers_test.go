package app_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

// sink records every event delivered to one connection.
type sink struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (s *sink) Deliver(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *sink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sink) named(name string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (s *sink) last(t *testing.T, name string) domain.Event {
	t.Helper()
	evs := s.named(name)
	if len(evs) == 0 {
		t.Fatalf("no %s event delivered", name)
	}
	return evs[len(evs)-1]
}

func (s *sink) all() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	room      *app.Room
	hub       *memory.Hub
	clock     *clock
	presenter *sink
}

// newFixture builds a room over threeQuestionQuiz with a presenter screen attached.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := memory.NewHub(nil)
	clk := newClock()
	room := app.NewRoom("12345", threeQuestionQuiz(),
		app.WithBroadcaster(hub),
		app.WithClock(clk.Now),
		app.WithPresenter("host"),
	)
	presenter := &sink{}
	if _, err := room.Watch("screen", presenter); err != nil {
		t.Fatalf("watch: %v", err)
	}
	return &fixture{room: room, hub: hub, clock: clk, presenter: presenter}
}

func (f *fixture) join(t *testing.T, playerID, name, conn string) (*sink, domain.ResumePayload) {
	t.Helper()
	s := &sink{}
	resume, err := f.room.Join(app.JoinRequest{PlayerID: playerID, DisplayName: name, ConnectionID: conn, Sink: s})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return s, resume
}

func (f *fixture) submit(t *testing.T, playerID, choiceID string) domain.AnswerAck {
	t.Helper()
	ack, err := f.room.SubmitAnswer(app.SubmitRequest{PlayerID: playerID, ChoiceID: choiceID})
	if err != nil {
		t.Fatalf("submit %s/%s: %v", playerID, choiceID, err)
	}
	return ack
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func threeQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "General knowledge",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Choices: []domain.Choice{
					{ID: "A", Text: "3"},
					{ID: "B", Text: "4"},
					{ID: "C", Text: "5"},
				},
				CorrectChoiceID: "B",
			},
			{
				ID:   "q2",
				Text: "Capital of France?",
				Choices: []domain.Choice{
					{ID: "A", Text: "Paris"},
					{ID: "B", Text: "Lyon"},
				},
				CorrectChoiceID: "A",
				Points:          2,
			},
			{
				ID:   "q3",
				Text: "Largest planet?",
				Choices: []domain.Choice{
					{ID: "A", Text: "Mars"},
					{ID: "B", Text: "Jupiter"},
				},
				CorrectChoiceID: "B",
			},
		},
	}
}
