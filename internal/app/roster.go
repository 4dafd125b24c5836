package app

import (
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// roster tracks every player that ever joined the room, in join order.
type roster struct {
	order    []string
	byPlayer map[string]*domain.Participant
	byConn   map[string]string
}

type joinOutcome struct {
	participant *domain.Participant
	reconnected bool
	// previousConn is the connection being replaced, if it was still connected.
	previousConn string
}

func newRoster() *roster {
	return &roster{
		byPlayer: make(map[string]*domain.Participant),
		byConn:   make(map[string]string),
	}
}

func (r *roster) join(playerID, connectionID, displayName string, now time.Time) joinOutcome {
	if p, ok := r.byPlayer[playerID]; ok {
		out := joinOutcome{participant: p, reconnected: true}
		if p.Status == domain.ParticipantConnected && p.ConnectionID != connectionID {
			out.previousConn = p.ConnectionID
		}
		delete(r.byConn, p.ConnectionID)
		p.ConnectionID = connectionID
		p.DisplayName = displayName
		p.Status = domain.ParticipantConnected
		p.LastSeen = now
		r.byConn[connectionID] = playerID
		return out
	}

	p := &domain.Participant{
		PlayerID:     playerID,
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Status:       domain.ParticipantConnected,
		JoinedAt:     now,
		LastSeen:     now,
	}
	r.byPlayer[playerID] = p
	r.byConn[connectionID] = playerID
	r.order = append(r.order, playerID)
	return joinOutcome{participant: p}
}

// leave disconnects whoever currently holds connectionID. A connection that has already
// been replaced by a reconnect matches nobody.
func (r *roster) leave(connectionID string, now time.Time) (*domain.Participant, bool) {
	playerID, ok := r.byConn[connectionID]
	if !ok {
		return nil, false
	}
	p := r.byPlayer[playerID]
	if p.ConnectionID != connectionID {
		return nil, false
	}
	delete(r.byConn, connectionID)
	p.Status = domain.ParticipantDisconnected
	p.LastSeen = now
	return p, true
}

// release disconnects whichever player other than keep is still bound to connectionID.
func (r *roster) release(connectionID, keep string, now time.Time) bool {
	holder, ok := r.byConn[connectionID]
	if !ok || holder == keep {
		return false
	}
	_, ok = r.leave(connectionID, now)
	return ok
}

func (r *roster) get(playerID string) (*domain.Participant, bool) {
	p, ok := r.byPlayer[playerID]
	return p, ok
}

// all returns every participant ever joined, in join order.
func (r *roster) all() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byPlayer[id])
	}
	return out
}

func (r *roster) connectedCount() int {
	return len(r.byConn)
}

// connected lists live participants, flagging display names shared by more than one of them.
func (r *roster) connected() []domain.ParticipantView {
	names := make(map[string]int)
	for _, id := range r.order {
		p := r.byPlayer[id]
		if p.Status == domain.ParticipantConnected {
			names[nameKey(p.DisplayName)]++
		}
	}
	out := make([]domain.ParticipantView, 0, len(r.byConn))
	for _, id := range r.order {
		p := r.byPlayer[id]
		if p.Status != domain.ParticipantConnected {
			continue
		}
		out = append(out, domain.ParticipantView{
			PlayerID:      p.PlayerID,
			DisplayName:   p.DisplayName,
			DuplicateName: names[nameKey(p.DisplayName)] > 1,
		})
	}
	return out
}

// nameTaken reports whether another participant already uses displayName.
func (r *roster) nameTaken(displayName, exceptPlayer string) bool {
	key := nameKey(displayName)
	for id, p := range r.byPlayer {
		if id != exceptPlayer && nameKey(p.DisplayName) == key {
			return true
		}
	}
	return false
}

func (r *roster) purge() {
	r.order = nil
	r.byPlayer = make(map[string]*domain.Participant)
	r.byConn = make(map[string]string)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
