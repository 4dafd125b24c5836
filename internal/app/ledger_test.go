package app

import (
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func testQuestion() domain.Question {
	return domain.Question{
		ID:              "q",
		Choices:         []domain.Choice{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		CorrectChoiceID: "C",
	}
}

func TestLedgerLastWriteWins(t *testing.T) {
	start := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	l := newLedger(0, testQuestion(), start)

	if _, err := l.record("p1", "A", start.Add(time.Second)); err != nil {
		t.Fatalf("record: %v", err)
	}
	out, err := l.record("p1", "C", start.Add(2*time.Second))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !out.replaced || !out.submission.IsCorrect {
		t.Fatalf("expected correct replacement, got %+v", out)
	}

	out, _ = l.record("p1", "B", start.Add(1500*time.Millisecond))
	if !out.stale || out.submission.ChoiceID != "C" {
		t.Fatalf("older submission must be ignored, got %+v", out)
	}

	if _, err := l.record("p1", "X", start.Add(3*time.Second)); err != domain.ErrUnknownChoice {
		t.Fatalf("expected unknown choice, got %v", err)
	}

	counts := l.counts()
	want := []domain.ChoiceCount{{ChoiceID: "A"}, {ChoiceID: "B"}, {ChoiceID: "C", Count: 1}}
	if len(counts) != len(want) {
		t.Fatalf("expected %d counts, got %+v", len(want), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("count %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}
}

func TestLedgerClampsSubmitTime(t *testing.T) {
	start := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	now := start.Add(time.Minute)
	l := newLedger(0, testQuestion(), start)

	cases := map[string]struct {
		sent, want time.Time
	}{
		"zero":   {time.Time{}, now},
		"future": {now.Add(time.Hour), now},
		"past":   {start.Add(-time.Hour), start},
		"inside": {start.Add(time.Second), start.Add(time.Second)},
	}
	for name, tc := range cases {
		if got := l.clampSubmitTime(tc.sent, now); !got.Equal(tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestRosterLeaveAndRejoin(t *testing.T) {
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	r := newRoster()
	r.join("p1", "c1", "Alice", now)
	r.join("p2", "c2", "Bob", now)

	if _, ok := r.leave("c1", now); !ok {
		t.Fatalf("expected c1 to leave")
	}
	if r.connectedCount() != 1 || len(r.connected()) != 1 {
		t.Fatalf("expected only Bob connected")
	}

	out := r.join("p1", "c3", "Alice", now)
	if !out.reconnected || out.previousConn != "" {
		t.Fatalf("expected plain reconnect, got %+v", out)
	}
	out = r.join("p1", "c4", "Alice", now)
	if out.previousConn != "c3" {
		t.Fatalf("expected c3 to be replaced, got %+v", out)
	}
	if _, ok := r.leave("c3", now); ok {
		t.Fatalf("replaced connection must not disconnect the player")
	}
	if len(r.all()) != 2 || r.all()[0].PlayerID != "p1" {
		t.Fatalf("roster must keep join order without duplicates")
	}

	r.purge()
	if len(r.all()) != 0 || r.connectedCount() != 0 {
		t.Fatalf("purge should empty the roster")
	}
}

func TestIdleCloseRechecksUnderLock(t *testing.T) {
	start := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	now := start
	room := NewRoom("12345", domain.Quiz{ID: "quiz", Questions: []domain.Question{testQuestion()}},
		WithClock(func() time.Time { return now }))

	later := start.Add(2 * time.Hour)
	if !room.IsIdle(later, time.Hour) {
		t.Fatalf("expected untouched room to be idle")
	}
	// a player arrives between the idle check and the close
	now = later
	if _, err := room.Join(JoinRequest{DisplayName: "Alice", ConnectionID: "c1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := room.closeIfIdle(later, time.Hour, "idle"); err != errRoomActive {
		t.Fatalf("expected idle close to back off, got %v", err)
	}
	if room.Info().Status != domain.StatusLobby {
		t.Fatalf("room must stay open, got %s", room.Info().Status)
	}

	room.Leave("c1")
	archive, err := room.closeIfIdle(later.Add(2*time.Hour), time.Hour, "idle")
	if err != nil || archive.Reason != "idle" {
		t.Fatalf("expected idle close once abandoned, got %+v %v", archive, err)
	}
}
