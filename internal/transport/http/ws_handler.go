package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
)

const (
	defaultSendBuffer   = 64
	defaultPingInterval = 30 * time.Second
)

// WSHandler serves the room protocol on /ws. Each connection runs one reader (this
// handler) and one writer goroutine.
type WSHandler struct {
	registry     *app.Registry
	auth         auth.Authenticator
	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	log          *slog.Logger
}

type WSOption func(*WSHandler)

func WithSendBuffer(n int) WSOption {
	return func(h *WSHandler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithPingInterval(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

func WithWSLogger(log *slog.Logger) WSOption {
	return func(h *WSHandler) {
		if log != nil {
			h.log = log
		}
	}
}

func NewWSHandler(registry *app.Registry, authenticator auth.Authenticator, opts ...WSOption) *WSHandler {
	if authenticator == nil {
		authenticator = auth.Open{}
	}
	h := &WSHandler{
		registry: registry,
		auth:     authenticator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// request is the union of every inbound payload; each message type reads its own fields.
type request struct {
	RoomCode      string     `json:"roomCode"`
	QuizID        string     `json:"quizId"`
	DisplayName   string     `json:"displayName"`
	PlayerID      string     `json:"playerId"`
	QuestionIndex *int       `json:"questionIndex"`
	ChoiceID      string     `json:"choiceId"`
	SentAt        *time.Time `json:"sentAt"`
	Reason        string     `json:"reason"`
}

// ServeWS authenticates, upgrades and then processes frames until the socket closes.
// Players may connect without a token.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	log := h.log.With("conn", connID, "role", principal.Role)
	conn := newWSConn(connID, ws, h.sendBuffer, log)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		conn.writeLoop(h.pingInterval)
	}()

	s := &session{h: h, conn: conn, principal: principal, log: log}
	s.readLoop(r.Context())

	s.detach()
	conn.Close()
	<-writerDone
	log.Debug("connection closed")
}

func (h *WSHandler) principal(r *http.Request) (domain.Principal, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	if strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")) == "" {
		return domain.Principal{Role: domain.RolePlayer}, nil
	}
	return h.auth.Principal(token)
}

// session is the per-connection binding to at most one room. Only the reader goroutine
// touches it.
type session struct {
	h         *WSHandler
	conn      *wsConn
	principal domain.Principal
	log       *slog.Logger

	room     *app.Room
	playerID string
}

func (s *session) readLoop(ctx context.Context) {
	ws := s.conn.ws
	ws.SetReadLimit(maxMessageSize)
	pongWait := s.h.pingInterval * 2
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				s.reject(msg.Type, "", domain.NewValidationError("bad_frame", "frame is not valid JSON"))
				continue
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var req request
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				s.reject(msg.Type, "", domain.NewValidationError("bad_payload", "payload does not match "+msg.Type))
				continue
			}
		}
		req.RoomCode = strings.TrimSpace(req.RoomCode)
		if err := s.dispatch(ctx, msg.Type, req); err != nil {
			s.reject(msg.Type, req.RoomCode, err)
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (s *session) dispatch(ctx context.Context, typ string, req request) error {
	switch typ {
	case "createRoom":
		return s.createRoom(ctx, req)
	case "watchRoom":
		return s.watchRoom(req)
	case "joinRoom":
		return s.joinRoom(req)
	case "presentQuestion":
		room, err := s.presenterRoom(req.RoomCode)
		if err != nil {
			return err
		}
		if req.QuestionIndex == nil {
			return domain.ErrQuestionOutOfRange
		}
		return room.PresentQuestion(*req.QuestionIndex)
	case "revealAnswer":
		room, err := s.presenterRoom(req.RoomCode)
		if err != nil {
			return err
		}
		return room.RevealAnswer()
	case "completeQuiz":
		room, err := s.presenterRoom(req.RoomCode)
		if err != nil {
			return err
		}
		return room.CompleteQuiz()
	case "submitAnswer":
		return s.submitAnswer(req)
	case "leaveRoom":
		if s.room != nil && (req.RoomCode == "" || req.RoomCode == s.room.Code()) {
			s.detach()
		}
		return nil
	case "closeRoom":
		room, err := s.presenterRoom(req.RoomCode)
		if err != nil {
			return err
		}
		reason := req.Reason
		if reason == "" {
			reason = "closed by presenter"
		}
		return s.h.registry.CloseRoom(ctx, room.Code(), reason)
	default:
		return domain.NewValidationError("unsupported_type", "unsupported message type")
	}
}

func (s *session) createRoom(ctx context.Context, req request) error {
	if !s.principal.CanPresent() {
		return domain.ErrForbidden
	}
	s.detach()
	room, err := s.h.registry.CreateRoom(ctx, app.CreateRoomRequest{
		QuizID:        req.QuizID,
		RequestedCode: req.RoomCode,
		PresenterID:   s.principal.Identity,
		ConnectionID:  s.conn.id,
		Sink:          s.conn,
	})
	if err != nil {
		return err
	}
	s.room = room
	return nil
}

func (s *session) watchRoom(req request) error {
	room, err := s.presenterRoom(req.RoomCode)
	if err != nil {
		return err
	}
	if s.room != room || s.playerID != "" {
		s.detach()
	}
	if _, err := room.Watch(s.conn.id, s.conn); err != nil {
		return err
	}
	s.room = room
	return nil
}

func (s *session) joinRoom(req request) error {
	room, err := s.h.registry.GetRoom(req.RoomCode)
	if err != nil {
		return err
	}
	playerID := req.PlayerID
	if playerID == "" && s.principal.Role == domain.RolePlayer {
		playerID = s.principal.Identity
	}
	// keep the binding only when the same player rejoins the same room
	if s.room != nil && (s.room != room || s.playerID == "" || s.playerID != playerID) {
		s.detach()
	}

	resume, err := room.Join(app.JoinRequest{
		PlayerID:     playerID,
		DisplayName:  req.DisplayName,
		ConnectionID: s.conn.id,
		Sink:         s.conn,
	})
	if err != nil {
		return err
	}
	s.room = room
	s.playerID = resume.PlayerID
	s.log.Debug("joined room", "room", room.Code(), "player", resume.PlayerID, "reconnected", resume.Reconnected)
	return nil
}

func (s *session) submitAnswer(req request) error {
	if s.room == nil || s.playerID == "" || (req.RoomCode != "" && req.RoomCode != s.room.Code()) {
		return domain.ErrParticipantNotFound
	}
	sub := app.SubmitRequest{
		PlayerID:     s.playerID,
		ConnectionID: s.conn.id,
		ChoiceID:     req.ChoiceID,
	}
	if req.SentAt != nil {
		sub.SentAt = *req.SentAt
	}
	_, err := s.room.SubmitAnswer(sub)
	return err
}

// presenterRoom resolves a room the caller is allowed to drive.
func (s *session) presenterRoom(code string) (*app.Room, error) {
	if !s.principal.CanPresent() {
		return nil, domain.ErrForbidden
	}
	if code == "" && s.room != nil {
		code = s.room.Code()
	}
	room, err := s.h.registry.GetRoom(code)
	if err != nil {
		return nil, err
	}
	if !room.CanBeDrivenBy(s.principal) {
		return nil, domain.ErrForbidden
	}
	return room, nil
}

// detach leaves the bound room, if any.
func (s *session) detach() {
	if s.room == nil {
		return
	}
	s.room.Leave(s.conn.id)
	s.room = nil
	s.playerID = ""
}

func (s *session) reject(typ, roomCode string, err error) {
	payload := domain.ErrorPayload{
		Code:    domain.CodeOf(err),
		Kind:    domain.KindOf(err),
		Message: err.Error(),
		Request: typ,
	}
	if payload.Kind == "" {
		s.log.Error("request failed", "request", typ, "room", roomCode, "err", err)
		payload.Message = "internal error"
	}
	if err := s.conn.Deliver(domain.Event{Name: domain.EventError, RoomCode: roomCode, Payload: payload}); err != nil {
		s.log.Debug("error frame dropped", "err", err)
	}
}
