package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// Archive keeps closed room summaries in memory (used when no database is configured).
type Archive struct {
	mu      sync.Mutex
	entries []domain.RoomArchive
	limit   int
}

// NewArchive keeps at most limit entries, dropping the oldest; limit <= 0 keeps everything.
func NewArchive(limit int) *Archive {
	return &Archive{limit: limit}
}

func (a *Archive) Archive(_ context.Context, archive domain.RoomArchive) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, archive)
	if a.limit > 0 && len(a.entries) > a.limit {
		a.entries = a.entries[len(a.entries)-a.limit:]
	}
	return nil
}

// Entries returns a copy of the archived summaries, oldest first.
func (a *Archive) Entries() []domain.RoomArchive {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.RoomArchive(nil), a.entries...)
}
