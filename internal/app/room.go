package app

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

const (
	maxDisplayName = 40
	maxPlayerID    = 64
)

// errRoomActive stops an idle close when the room became active again.
var errRoomActive = errors.New("room is active")

// Room is one live session. Every operation takes the room's mutex, so presenter actions,
// submissions and roster changes are applied one at a time. Events are handed to the
// broadcaster while the lock is held, which keeps per-room delivery in transition order.
type Room struct {
	mu           sync.Mutex
	code         string
	quiz         domain.Quiz
	presenterID  string
	status       domain.RoomStatus
	current      int
	roster       *roster
	ledgers      map[int]*ledger
	screens      map[string]struct{}
	seq          uint64
	createdAt    time.Time
	lastActivity time.Time

	now         func() time.Time
	newID       func() string
	broadcaster Broadcaster
	log         *slog.Logger
}

// RoomOption customizes a Room at construction.
type RoomOption func(*Room)

func WithBroadcaster(b Broadcaster) RoomOption {
	return func(r *Room) {
		if b != nil {
			r.broadcaster = b
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) RoomOption {
	return func(r *Room) { r.now = now }
}

func WithPresenter(identity string) RoomOption {
	return func(r *Room) { r.presenterID = identity }
}

func WithRoomLogger(log *slog.Logger) RoomOption {
	return func(r *Room) {
		if log != nil {
			r.log = log
		}
	}
}

// WithIDGenerator replaces the playerID minting function.
func WithIDGenerator(gen func() string) RoomOption {
	return func(r *Room) { r.newID = gen }
}

// NewRoom is exported for infrastructure layers and tests; production rooms come from
// Registry.CreateRoom. The quiz is deep-copied.
func NewRoom(code string, quiz domain.Quiz, opts ...RoomOption) *Room {
	r := &Room{
		code:        code,
		quiz:        quiz.Clone(),
		status:      domain.StatusLobby,
		current:     -1,
		roster:      newRoster(),
		ledgers:     make(map[int]*ledger),
		screens:     make(map[string]struct{}),
		now:         time.Now,
		newID:       uuid.NewString,
		broadcaster: nopBroadcaster{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.createdAt = r.now()
	r.lastActivity = r.createdAt
	r.log = r.log.With("room", code)
	return r
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) QuizID() string {
	return r.quiz.ID
}

func (r *Room) PresenterID() string {
	return r.presenterID
}

// CanBeDrivenBy reports whether the principal may run presenter operations on this room.
func (r *Room) CanBeDrivenBy(p domain.Principal) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RolePresenter:
		return r.presenterID == "" || r.presenterID == p.Identity
	default:
		return false
	}
}

// Info returns a summary of the room.
func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{
		Code:             r.code,
		QuizID:           r.quiz.ID,
		Title:            r.quiz.Title,
		Status:           r.status,
		QuestionIndex:    r.current,
		TotalQuestions:   len(r.quiz.Questions),
		ConnectedPlayers: r.roster.connectedCount(),
		CreatedAt:        r.createdAt,
	}
}

// PresentQuestion shows question idx. Questions go strictly in order starting at 0;
// re-presenting the active question is a no-op.
func (r *Room) PresentQuestion(idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.terminalErrLocked(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(r.quiz.Questions) {
		return domain.ErrQuestionOutOfRange
	}

	switch r.status {
	case domain.StatusLobby:
		if idx != 0 {
			return domain.ErrOutOfOrderQuestion
		}
	case domain.StatusQuestionActive:
		if idx == r.current {
			r.lastActivity = r.now()
			return nil
		}
		if idx != r.current+1 {
			return domain.ErrOutOfOrderQuestion
		}
		return domain.ErrAnswerNotRevealed
	case domain.StatusAnswerRevealed:
		if idx != r.current+1 {
			return domain.ErrOutOfOrderQuestion
		}
	}

	now := r.now()
	r.current = idx
	r.status = domain.StatusQuestionActive
	r.ledgers[idx] = newLedger(idx, r.quiz.Questions[idx], now)
	r.lastActivity = now

	r.publishLocked(domain.EventQuestionPresented, domain.QuestionPayload{
		QuestionIndex:  idx,
		TotalQuestions: len(r.quiz.Questions),
		Question:       domain.ViewOf(r.quiz.Questions[idx]),
	})
	r.log.Debug("question presented", "index", idx)
	return nil
}

// RevealAnswer closes the active question and broadcasts its results. Revealing an
// already revealed question is a no-op.
func (r *Room) RevealAnswer() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.terminalErrLocked(); err != nil {
		return err
	}
	switch r.status {
	case domain.StatusAnswerRevealed:
		r.lastActivity = r.now()
		return nil
	case domain.StatusQuestionActive:
	default:
		return domain.ErrInvalidTransition
	}

	l, ok := r.ledgers[r.current]
	if !ok {
		return domain.ErrInvalidTransition
	}
	l.revealed = true
	r.status = domain.StatusAnswerRevealed
	r.lastActivity = r.now()

	r.publishLocked(domain.EventAnswerRevealed, r.revealLocked(l))
	r.log.Debug("answer revealed", "index", r.current, "submissions", len(l.entries))
	return nil
}

// CompleteQuiz ends the quiz after the last question has been revealed.
func (r *Room) CompleteQuiz() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.terminalErrLocked(); err != nil {
		return err
	}
	if r.status != domain.StatusAnswerRevealed {
		return domain.ErrInvalidTransition
	}
	if r.current+1 < len(r.quiz.Questions) {
		return domain.ErrQuestionsRemaining
	}

	r.status = domain.StatusCompleted
	r.lastActivity = r.now()
	r.publishLocked(domain.EventQuizCompleted, domain.CompletedPayload{
		FinalStandings: r.standingsLocked(),
	})
	r.log.Info("quiz completed", "players", len(r.roster.order))
	return nil
}

// close moves the room to Closed from any state, including Completed, and tears down
// every subscriber after the roomClosed broadcast.
func (r *Room) close(reason string) (domain.RoomArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(reason)
}

// closeIfIdle closes the room only if it is still idle once the lock is held, so a
// player joining after the idle check keeps the room open.
func (r *Room) closeIfIdle(now time.Time, timeout time.Duration, reason string) (domain.RoomArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != domain.StatusClosed && !r.idleLocked(now, timeout) {
		return domain.RoomArchive{}, errRoomActive
	}
	return r.closeLocked(reason)
}

func (r *Room) closeLocked(reason string) (domain.RoomArchive, error) {
	if r.status == domain.StatusClosed {
		return domain.RoomArchive{}, domain.ErrRoomClosed
	}

	now := r.now()
	archive := domain.RoomArchive{
		Code:           r.code,
		QuizID:         r.quiz.ID,
		PresenterID:    r.presenterID,
		FinalStatus:    r.status,
		Reason:         reason,
		QuestionsShown: len(r.ledgers),
		Players:        len(r.roster.order),
		Standings:      r.standingsLocked(),
		CreatedAt:      r.createdAt,
		ClosedAt:       now,
	}

	r.status = domain.StatusClosed
	r.lastActivity = now
	r.publishLocked(domain.EventRoomClosed, domain.ClosedPayload{Reason: reason})
	r.broadcaster.Teardown(r.code)
	r.screens = make(map[string]struct{})
	r.roster.purge()
	return archive, nil
}

// JoinRequest is a player joining or reconnecting. An empty PlayerID mints a new identity.
type JoinRequest struct {
	PlayerID     string
	DisplayName  string
	ConnectionID string
	Sink         Sink
}

// Join adds or reconnects a player. The connection is subscribed and sent resumeState in
// the same critical section as the roster change, so it neither misses nor duplicates any
// broadcast around the join.
func (r *Room) Join(req JoinRequest) (domain.ResumePayload, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
		return domain.ResumePayload{}, domain.ErrInvalidName
	}
	playerID := strings.TrimSpace(req.PlayerID)
	if len(playerID) > maxPlayerID {
		return domain.ResumePayload{}, domain.ErrInvalidPlayerID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == domain.StatusClosed {
		return domain.ResumePayload{}, domain.ErrRoomClosed
	}
	if playerID == "" {
		playerID = r.newID()
	}

	now := r.now()
	// a connection speaks for one identity: drop a screen or another player bound to it
	delete(r.screens, req.ConnectionID)
	r.roster.release(req.ConnectionID, playerID, now)
	out := r.roster.join(playerID, req.ConnectionID, name, now)
	if out.previousConn != "" {
		r.sendLocked(out.previousConn, domain.EventSessionReplaced, domain.SessionReplacedPayload{PlayerID: playerID})
		r.broadcaster.Unsubscribe(r.code, out.previousConn)
	}
	if req.Sink != nil {
		r.broadcaster.Subscribe(r.code, req.ConnectionID, req.Sink)
	}

	resume := r.resumeLocked(out.participant)
	resume.Reconnected = out.reconnected
	resume.DuplicateName = r.roster.nameTaken(name, playerID)
	r.sendLocked(req.ConnectionID, domain.EventResumeState, resume)

	r.lastActivity = now
	r.publishLocked(domain.EventParticipantsUpdated, domain.ParticipantsPayload{
		Participants: r.roster.connected(),
	})
	r.log.Debug("player joined", "player", playerID, "reconnected", out.reconnected)
	return resume, nil
}

// Watch attaches a presenter screen. Screens receive every broadcast but are not players.
func (r *Room) Watch(connectionID string, sink Sink) (domain.ResumePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == domain.StatusClosed {
		return domain.ResumePayload{}, domain.ErrRoomClosed
	}
	now := r.now()
	released := r.roster.release(connectionID, "", now)
	r.screens[connectionID] = struct{}{}
	if sink != nil {
		r.broadcaster.Subscribe(r.code, connectionID, sink)
	}
	r.lastActivity = now

	resume := r.resumeLocked(nil)
	r.sendLocked(connectionID, domain.EventResumeState, resume)
	if released {
		r.publishLocked(domain.EventParticipantsUpdated, domain.ParticipantsPayload{
			Participants: r.roster.connected(),
		})
	}
	return resume, nil
}

// attachCreator subscribes the creating presenter's connection and confirms creation.
func (r *Room) attachCreator(connectionID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.screens[connectionID] = struct{}{}
	if sink != nil {
		r.broadcaster.Subscribe(r.code, connectionID, sink)
	}
	r.sendLocked(connectionID, domain.EventRoomCreated, domain.RoomCreatedPayload{
		RoomCode:       r.code,
		QuizID:         r.quiz.ID,
		Title:          r.quiz.Title,
		TotalQuestions: len(r.quiz.Questions),
		Status:         r.status,
	})
}

// Leave detaches a connection. Players are marked disconnected but keep their history;
// a connection that has already been replaced is ignored.
func (r *Room) Leave(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if _, ok := r.screens[connectionID]; ok {
		delete(r.screens, connectionID)
		r.broadcaster.Unsubscribe(r.code, connectionID)
		r.lastActivity = now
		return true
	}

	p, ok := r.roster.leave(connectionID, now)
	if !ok {
		return false
	}
	r.broadcaster.Unsubscribe(r.code, connectionID)
	r.lastActivity = now
	r.publishLocked(domain.EventParticipantsUpdated, domain.ParticipantsPayload{
		Participants: r.roster.connected(),
	})
	r.log.Debug("player left", "player", p.PlayerID)
	return true
}

// SubmitRequest is one answer submission. ConnectionID, when set, must be the player's
// current connection. SentAt is optional and clamped to the question's lifetime.
type SubmitRequest struct {
	PlayerID     string
	ConnectionID string
	ChoiceID     string
	SentAt       time.Time
}

// SubmitAnswer records the player's choice for the active question. The acknowledgement
// goes to the submitting player only.
func (r *Room) SubmitAnswer(req SubmitRequest) (domain.AnswerAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.StatusQuestionActive {
		return domain.AnswerAck{}, domain.ErrRoomNotAcceptingAnswers
	}
	p, ok := r.roster.get(req.PlayerID)
	if !ok {
		return domain.AnswerAck{}, domain.ErrParticipantNotFound
	}
	if req.ConnectionID != "" && p.ConnectionID != req.ConnectionID {
		return domain.AnswerAck{}, domain.ErrStaleConnection
	}

	l := r.ledgers[r.current]
	now := r.now()
	out, err := l.record(req.PlayerID, req.ChoiceID, l.clampSubmitTime(req.SentAt, now))
	if err != nil {
		return domain.AnswerAck{}, err
	}

	p.LastSeen = now
	r.lastActivity = now
	ack := domain.AnswerAck{
		QuestionIndex: r.current,
		ChoiceID:      out.submission.ChoiceID,
		SubmittedAt:   out.submission.SubmittedAt,
		Replaced:      out.replaced,
		Stale:         out.stale,
	}
	if p.Status == domain.ParticipantConnected {
		r.sendLocked(p.ConnectionID, domain.EventAnswerAccepted, ack)
	}
	return ack, nil
}

// Submission returns the recorded submission of a player for a question index.
func (r *Room) Submission(questionIndex int, playerID string) (domain.Submission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[questionIndex]
	if !ok {
		return domain.Submission{}, false
	}
	return l.submission(playerID)
}

// Participants returns every participant that ever joined, connected or not.
func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.roster.all()
	out := make([]domain.Participant, 0, len(all))
	for _, p := range all {
		out = append(out, *p)
	}
	return out
}

// IsIdle reports whether nobody is connected and nothing happened for at least timeout.
func (r *Room) IsIdle(now time.Time, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idleLocked(now, timeout)
}

func (r *Room) idleLocked(now time.Time, timeout time.Duration) bool {
	if r.roster.connectedCount() > 0 || len(r.screens) > 0 {
		return false
	}
	return now.Sub(r.lastActivity) >= timeout
}

func (r *Room) terminalErrLocked() error {
	switch r.status {
	case domain.StatusCompleted:
		return domain.ErrRoomTerminal
	case domain.StatusClosed:
		return domain.ErrRoomClosed
	}
	return nil
}

func (r *Room) resumeLocked(p *domain.Participant) domain.ResumePayload {
	res := domain.ResumePayload{
		RoomCode:       r.code,
		Status:         r.status,
		QuestionIndex:  r.current,
		TotalQuestions: len(r.quiz.Questions),
		Participants:   r.roster.connected(),
	}
	if p != nil {
		res.PlayerID = p.PlayerID
		res.DisplayName = p.DisplayName
	}

	switch r.status {
	case domain.StatusQuestionActive, domain.StatusAnswerRevealed:
		view := domain.ViewOf(r.quiz.Questions[r.current])
		res.Question = &view
		l := r.ledgers[r.current]
		if p != nil {
			if sub, ok := l.submission(p.PlayerID); ok {
				res.Answered = true
				res.ChoiceID = sub.ChoiceID
			}
		}
		if r.status == domain.StatusAnswerRevealed {
			reveal := r.revealLocked(l)
			res.Reveal = &reveal
		}
	case domain.StatusCompleted:
		res.FinalStandings = r.standingsLocked()
	}
	return res
}

func (r *Room) publishLocked(name string, payload any) {
	r.seq++
	r.broadcaster.Publish(r.code, domain.Event{
		Name:     name,
		RoomCode: r.code,
		Seq:      r.seq,
		Payload:  payload,
	})
}

func (r *Room) sendLocked(connectionID, name string, payload any) {
	if connectionID == "" {
		return
	}
	r.broadcaster.Send(r.code, connectionID, domain.Event{
		Name:     name,
		RoomCode: r.code,
		Seq:      r.seq,
		Payload:  payload,
	})
}
