package app

import (
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// revealLocked aggregates a question. Every roster participant gets a row; players who
// did not answer show a nil choice and count as incorrect without entering the ledger.
func (r *Room) revealLocked(l *ledger) domain.RevealPayload {
	players := r.roster.all()
	results := make([]domain.PlayerResult, 0, len(players))
	for _, p := range players {
		row := domain.PlayerResult{PlayerID: p.PlayerID, DisplayName: p.DisplayName}
		if sub, ok := l.submission(p.PlayerID); ok {
			choice := sub.ChoiceID
			row.ChoiceID = &choice
			row.IsCorrect = sub.IsCorrect
		}
		results = append(results, row)
	}
	return domain.RevealPayload{
		QuestionIndex:    l.index,
		CorrectChoiceID:  l.question.CorrectChoiceID,
		PerChoiceCounts:  l.counts(),
		PerPlayerResults: results,
		Standings:        r.standingsLocked(),
	}
}

type tally struct {
	participant *domain.Participant
	score       int
	correct     int
	lastScored  time.Time
}

// standingsLocked scores revealed questions only, so an active question never leaks.
func (r *Room) standingsLocked() []domain.Standing {
	players := r.roster.all()
	tallies := make([]*tally, 0, len(players))
	for _, p := range players {
		t := &tally{participant: p}
		for _, l := range r.ledgers {
			if !l.revealed {
				continue
			}
			sub, ok := l.submission(p.PlayerID)
			if !ok || !sub.IsCorrect {
				continue
			}
			t.score += l.question.Worth()
			t.correct++
			if sub.SubmittedAt.After(t.lastScored) {
				t.lastScored = sub.SubmittedAt
			}
		}
		tallies = append(tallies, t)
	}

	// Score desc, then whoever reached it earlier, then name.
	sort.Slice(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.lastScored.Equal(b.lastScored) {
			return a.lastScored.Before(b.lastScored)
		}
		if a.participant.DisplayName != b.participant.DisplayName {
			return a.participant.DisplayName < b.participant.DisplayName
		}
		return a.participant.PlayerID < b.participant.PlayerID
	})

	out := make([]domain.Standing, 0, len(tallies))
	for i, t := range tallies {
		out = append(out, domain.Standing{
			Rank:           i + 1,
			PlayerID:       t.participant.PlayerID,
			DisplayName:    t.participant.DisplayName,
			Score:          t.score,
			CorrectAnswers: t.correct,
		})
	}
	return out
}
