package domain

import "errors"

// Kind classifies a rejection so callers know whether to fix input or resynchronize.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindStateConflict   Kind = "state_conflict"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
)

// Error is a rejected operation. Rejections never mutate room state.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "quiz_not_found", "quiz not found")
	// ErrRoomNotFound is returned for codes that are not in the live index.
	ErrRoomNotFound = newError(KindNotFound, "room_not_found", "room not found")
	// ErrParticipantNotFound is returned when a player acts before joining.
	ErrParticipantNotFound = newError(KindNotFound, "participant_not_found", "participant not found in room")

	ErrCodeInUse          = newError(KindStateConflict, "code_in_use", "room code already in use")
	ErrCodeSpaceFull      = newError(KindStateConflict, "code_space_exhausted", "could not allocate a free room code")
	ErrInvalidRoomCode    = newError(KindValidation, "invalid_room_code", "room code is malformed")
	ErrInvalidQuiz        = newError(KindValidation, "invalid_quiz", "quiz cannot be played")
	ErrInvalidName        = newError(KindValidation, "invalid_display_name", "display name must be 1-40 characters")
	ErrInvalidPlayerID    = newError(KindValidation, "invalid_player_id", "player id is malformed")
	ErrQuestionOutOfRange = newError(KindValidation, "question_out_of_range", "question index out of range")
	ErrUnknownChoice      = newError(KindValidation, "unknown_choice", "choice is not part of the current question")

	ErrOutOfOrderQuestion      = newError(KindStateConflict, "out_of_order_question", "questions must be presented in order")
	ErrAnswerNotRevealed       = newError(KindStateConflict, "answer_not_revealed", "reveal the current answer first")
	ErrInvalidTransition       = newError(KindStateConflict, "invalid_transition", "operation not allowed in the current room state")
	ErrQuestionsRemaining      = newError(KindStateConflict, "questions_remaining", "quiz still has unpresented questions")
	ErrRoomNotAcceptingAnswers = newError(KindStateConflict, "room_not_accepting_answers", "room is not accepting answers")
	ErrRoomTerminal            = newError(KindStateConflict, "room_terminal", "quiz is already completed")
	ErrRoomClosed              = newError(KindStateConflict, "room_closed", "room is closed")
	ErrStaleConnection         = newError(KindStateConflict, "stale_connection", "connection was replaced by a newer session")

	ErrForbidden       = newError(KindForbidden, "forbidden", "caller may not perform this operation")
	ErrUnauthenticated = newError(KindUnauthenticated, "unauthenticated", "invalid or missing credentials")
)

// NewValidationError builds an ad hoc validation error, e.g. for malformed frames.
func NewValidationError(code, msg string) *Error {
	return newError(KindValidation, code, msg)
}

// KindOf returns the Kind of a domain error, or "" for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf returns the machine readable code of a domain error, or "internal".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}
