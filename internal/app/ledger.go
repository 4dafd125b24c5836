package app

import (
	"time"

	"live-quiz-service/internal/domain"
)

// ledger records the submissions for one presented question, keyed by playerID.
type ledger struct {
	index       int
	question    domain.Question
	presentedAt time.Time
	revealed    bool
	entries     map[string]domain.Submission
}

type recordOutcome struct {
	submission domain.Submission
	replaced   bool
	stale      bool
}

func newLedger(index int, question domain.Question, presentedAt time.Time) *ledger {
	return &ledger{
		index:       index,
		question:    question,
		presentedAt: presentedAt,
		entries:     make(map[string]domain.Submission),
	}
}

// record applies last-write-wins by submission time. An older timestamp than the one on
// file is stale and ignored; re-sending the recorded choice keeps the original entry.
func (l *ledger) record(playerID, choiceID string, at time.Time) (recordOutcome, error) {
	if !l.question.HasChoice(choiceID) {
		return recordOutcome{}, domain.ErrUnknownChoice
	}

	prev, exists := l.entries[playerID]
	if exists {
		if at.Before(prev.SubmittedAt) {
			return recordOutcome{submission: prev, stale: true}, nil
		}
		if prev.ChoiceID == choiceID {
			return recordOutcome{submission: prev}, nil
		}
	}

	sub := domain.Submission{
		ChoiceID:    choiceID,
		SubmittedAt: at,
		IsCorrect:   choiceID == l.question.CorrectChoiceID,
	}
	l.entries[playerID] = sub
	return recordOutcome{submission: sub, replaced: exists}, nil
}

func (l *ledger) submission(playerID string) (domain.Submission, bool) {
	sub, ok := l.entries[playerID]
	return sub, ok
}

// counts returns one entry per choice in question order, zero counts included.
func (l *ledger) counts() []domain.ChoiceCount {
	tally := make(map[string]int, len(l.question.Choices))
	for _, sub := range l.entries {
		tally[sub.ChoiceID]++
	}
	out := make([]domain.ChoiceCount, 0, len(l.question.Choices))
	for _, c := range l.question.Choices {
		out = append(out, domain.ChoiceCount{ChoiceID: c.ID, Count: tally[c.ID]})
	}
	return out
}

// clampSubmitTime bounds a client supplied timestamp to [presentedAt, now]. A zero value
// means the server clock.
func (l *ledger) clampSubmitTime(sent, now time.Time) time.Time {
	if sent.IsZero() || sent.After(now) {
		return now
	}
	if sent.Before(l.presentedAt) {
		return l.presentedAt
	}
	return sent
}
