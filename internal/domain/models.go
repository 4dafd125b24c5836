package domain

import "time"

// Choice is one selectable answer of a question.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct choice.
type Question struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Choices         []Choice `json:"choices"`
	CorrectChoiceID string   `json:"correctChoiceId"`
	Points          int      `json:"points"` // defaults to 1 if zero
}

// HasChoice reports whether choiceID belongs to the question.
func (q Question) HasChoice(choiceID string) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// Worth returns the points awarded for a correct answer.
func (q Question) Worth() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Quiz is an ordered collection of questions as served by the catalog.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Clone returns a deep copy so a running room never shares slices with the catalog cache.
func (q Quiz) Clone() Quiz {
	out := Quiz{ID: q.ID, Title: q.Title, Questions: make([]Question, len(q.Questions))}
	for i, question := range q.Questions {
		question.Choices = append([]Choice(nil), question.Choices...)
		out.Questions[i] = question
	}
	return out
}

// Validate checks that the quiz can be played: at least one question, unique choice IDs
// per question and a correct choice that exists.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrInvalidQuiz
	}
	for _, question := range q.Questions {
		if len(question.Choices) == 0 {
			return ErrInvalidQuiz
		}
		seen := make(map[string]struct{}, len(question.Choices))
		for _, c := range question.Choices {
			if c.ID == "" {
				return ErrInvalidQuiz
			}
			if _, dup := seen[c.ID]; dup {
				return ErrInvalidQuiz
			}
			seen[c.ID] = struct{}{}
		}
		if _, ok := seen[question.CorrectChoiceID]; !ok {
			return ErrInvalidQuiz
		}
	}
	return nil
}

// RoomStatus is the state of a live session.
type RoomStatus string

const (
	StatusLobby          RoomStatus = "lobby"
	StatusQuestionActive RoomStatus = "question_active"
	StatusAnswerRevealed RoomStatus = "answer_revealed"
	StatusCompleted      RoomStatus = "completed"
	StatusClosed         RoomStatus = "closed"
)

// ParticipantStatus tracks whether a player currently has a live connection.
type ParticipantStatus string

const (
	ParticipantConnected    ParticipantStatus = "connected"
	ParticipantDisconnected ParticipantStatus = "disconnected"
)

// Participant represents a player in a room. PlayerID survives reconnects,
// ConnectionID does not.
type Participant struct {
	PlayerID     string
	ConnectionID string
	DisplayName  string
	Status       ParticipantStatus
	JoinedAt     time.Time
	LastSeen     time.Time
}

// Submission is one player's recorded choice for one question.
type Submission struct {
	ChoiceID    string    `json:"choiceId"`
	SubmittedAt time.Time `json:"submittedAt"`
	IsCorrect   bool      `json:"isCorrect"`
}

// Role is the capability granted to an authenticated caller.
type Role string

const (
	RolePlayer    Role = "player"
	RolePresenter Role = "presenter"
	RoleAdmin     Role = "admin"
)

// Principal is the authenticated caller as reported by the auth collaborator.
type Principal struct {
	Role     Role
	Identity string
}

// CanPresent reports whether the principal may create and drive rooms.
func (p Principal) CanPresent() bool {
	return p.Role == RolePresenter || p.Role == RoleAdmin
}

// RoomArchive is the read-only summary handed off when a room is closed.
type RoomArchive struct {
	Code           string     `json:"code"`
	QuizID         string     `json:"quizId"`
	PresenterID    string     `json:"presenterId"`
	FinalStatus    RoomStatus `json:"finalStatus"`
	Reason         string     `json:"reason"`
	QuestionsShown int        `json:"questionsShown"`
	Players        int        `json:"players"`
	Standings      []Standing `json:"standings"`
	CreatedAt      time.Time  `json:"createdAt"`
	ClosedAt       time.Time  `json:"closedAt"`
}

// RoomInfo is a point-in-time summary of a live room.
type RoomInfo struct {
	Code             string     `json:"code"`
	QuizID           string     `json:"quizId"`
	Title            string     `json:"title"`
	Status           RoomStatus `json:"status"`
	QuestionIndex    int        `json:"questionIndex"`
	TotalQuestions   int        `json:"totalQuestions"`
	ConnectedPlayers int        `json:"connectedPlayers"`
	CreatedAt        time.Time  `json:"createdAt"`
}
