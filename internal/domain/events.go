package domain

import "time"

// Event names sent to clients.
const (
	EventRoomCreated         = "roomCreated"
	EventParticipantsUpdated = "participantsUpdated"
	EventQuestionPresented   = "questionPresented"
	EventAnswerRevealed      = "answerRevealed"
	EventQuizCompleted       = "quizCompleted"
	EventRoomClosed          = "roomClosed"

	// Direct replies, delivered to a single connection.
	EventResumeState     = "resumeState"
	EventAnswerAccepted  = "answerAccepted"
	EventSessionReplaced = "sessionReplaced"
	EventError           = "error"
)

// Event is an outbound message. Seq is the room's broadcast sequence number; direct
// replies carry the sequence of the last broadcast so clients can resynchronize.
type Event struct {
	Name     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Seq      uint64 `json:"seq"`
	Payload  any    `json:"payload"`
}

// RoomCreatedPayload is sent to the presenter that created the room.
type RoomCreatedPayload struct {
	RoomCode       string     `json:"roomCode"`
	QuizID         string     `json:"quizId"`
	Title          string     `json:"title"`
	TotalQuestions int        `json:"totalQuestions"`
	Status         RoomStatus `json:"status"`
}

// ParticipantView is the public face of a connected player.
type ParticipantView struct {
	PlayerID      string `json:"playerId"`
	DisplayName   string `json:"displayName"`
	DuplicateName bool   `json:"duplicateName,omitempty"`
}

type ParticipantsPayload struct {
	Participants []ParticipantView `json:"participants"`
}

// QuestionView is a question without its correct choice.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices"`
	Points  int      `json:"points"`
}

// ViewOf strips the answer from a question.
func ViewOf(q Question) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Choices: append([]Choice(nil), q.Choices...),
		Points:  q.Worth(),
	}
}

type QuestionPayload struct {
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Question       QuestionView `json:"question"`
}

type ChoiceCount struct {
	ChoiceID string `json:"choiceId"`
	Count    int    `json:"count"`
}

// PlayerResult is one row of a reveal. ChoiceID is nil for players who did not answer.
type PlayerResult struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	ChoiceID    *string `json:"choiceId"`
	IsCorrect   bool    `json:"isCorrect"`
}

// Standing is a leaderboard row.
type Standing struct {
	Rank           int    `json:"rank"`
	PlayerID       string `json:"playerId"`
	DisplayName    string `json:"displayName"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
}

type RevealPayload struct {
	QuestionIndex    int            `json:"questionIndex"`
	CorrectChoiceID  string         `json:"correctChoiceId"`
	PerChoiceCounts  []ChoiceCount  `json:"perChoiceCounts"`
	PerPlayerResults []PlayerResult `json:"perPlayerResults"`
	Standings        []Standing     `json:"standings"`
}

type CompletedPayload struct {
	FinalStandings []Standing `json:"finalStandings"`
}

type ClosedPayload struct {
	Reason string `json:"reason"`
}

// ResumePayload lets a (re)connecting client render the room without replaying history.
type ResumePayload struct {
	RoomCode       string            `json:"roomCode"`
	Status         RoomStatus        `json:"status"`
	PlayerID       string            `json:"playerId,omitempty"`
	DisplayName    string            `json:"displayName,omitempty"`
	DuplicateName  bool              `json:"duplicateName,omitempty"`
	Reconnected    bool              `json:"reconnected"`
	QuestionIndex  int               `json:"questionIndex"`
	TotalQuestions int               `json:"totalQuestions"`
	Question       *QuestionView     `json:"question,omitempty"`
	Answered       bool              `json:"answered"`
	ChoiceID       string            `json:"choiceId,omitempty"`
	Reveal         *RevealPayload    `json:"reveal,omitempty"`
	FinalStandings []Standing        `json:"finalStandings,omitempty"`
	Participants   []ParticipantView `json:"participants"`
}

// AnswerAck acknowledges a submission to the submitting player only. It never carries
// correctness.
type AnswerAck struct {
	QuestionIndex int       `json:"questionIndex"`
	ChoiceID      string    `json:"choiceId"`
	SubmittedAt   time.Time `json:"submittedAt"`
	Replaced      bool      `json:"replaced"`
	Stale         bool      `json:"stale"`
}

type SessionReplacedPayload struct {
	PlayerID string `json:"playerId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}
