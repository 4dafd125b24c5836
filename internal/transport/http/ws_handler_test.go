package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type frame struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Seq      uint64          `json:"seq"`
	Payload  json.RawMessage `json:"payload"`
}

type testServer struct {
	*httptest.Server
	auth *auth.JWT
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	loader := memory.NewStaticQuizLoader(sampleQuizzes())
	registry := app.NewRegistry(memory.NewRoomStore(), memory.NewQuizRepository(loader, time.Minute), memory.NewHub(nil))
	authn := auth.NewJWT("test-secret", "live-quiz")

	router := NewRouter(
		NewWSHandler(registry, authn, WithSendBuffer(32)),
		NewRoomsHandler(registry, "https://quiz.example.com", nil),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, auth: authn}
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *testServer) token(t *testing.T, identity string, role domain.Role) string {
	t.Helper()
	tok, err := s.auth.Sign(identity, role, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, into any) frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type != typ {
			continue
		}
		if into != nil {
			if err := json.Unmarshal(f.Payload, into); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return f
	}
}

func TestWebSocketRoomFlow(t *testing.T) {
	srv := newTestServer(t)
	presenter := srv.dial(t, srv.token(t, "host-1", domain.RolePresenter))
	player := srv.dial(t, "")

	send(t, presenter, "createRoom", map[string]any{"quizId": "quiz-1"})
	var created domain.RoomCreatedPayload
	readUntil(t, presenter, domain.EventRoomCreated, &created)
	code := created.RoomCode
	if len(code) != 5 {
		t.Fatalf("unexpected room code %q", code)
	}

	send(t, player, "joinRoom", map[string]any{"roomCode": code, "displayName": "Alice"})
	var resume domain.ResumePayload
	readUntil(t, player, domain.EventResumeState, &resume)
	if resume.PlayerID == "" || resume.Status != domain.StatusLobby {
		t.Fatalf("unexpected resume %+v", resume)
	}
	var joined domain.ParticipantsPayload
	readUntil(t, presenter, domain.EventParticipantsUpdated, &joined)
	if len(joined.Participants) != 1 || joined.Participants[0].DisplayName != "Alice" {
		t.Fatalf("presenter should see Alice, got %+v", joined)
	}

	send(t, presenter, "presentQuestion", map[string]any{"roomCode": code, "questionIndex": 0})
	var presented map[string]any
	readUntil(t, player, domain.EventQuestionPresented, &presented)
	if raw, _ := json.Marshal(presented); bytes.Contains(raw, []byte("correctChoiceId")) {
		t.Fatalf("question leaked the answer: %s", raw)
	}

	send(t, player, "submitAnswer", map[string]any{"roomCode": code, "choiceId": "o2"})
	var ack domain.AnswerAck
	readUntil(t, player, domain.EventAnswerAccepted, &ack)
	if ack.ChoiceID != "o2" || ack.QuestionIndex != 0 {
		t.Fatalf("unexpected ack %+v", ack)
	}

	send(t, player, "revealAnswer", map[string]any{"roomCode": code})
	var rejected domain.ErrorPayload
	readUntil(t, player, domain.EventError, &rejected)
	if rejected.Kind != domain.KindForbidden || rejected.Request != "revealAnswer" {
		t.Fatalf("players must not drive the room, got %+v", rejected)
	}

	send(t, presenter, "revealAnswer", map[string]any{"roomCode": code})
	var reveal domain.RevealPayload
	readUntil(t, player, domain.EventAnswerRevealed, &reveal)
	if reveal.CorrectChoiceID != "o2" || len(reveal.PerPlayerResults) != 1 || !reveal.PerPlayerResults[0].IsCorrect {
		t.Fatalf("unexpected reveal %+v", reveal)
	}

	send(t, presenter, "closeRoom", map[string]any{"roomCode": code})
	var closed domain.ClosedPayload
	readUntil(t, player, domain.EventRoomClosed, &closed)
	if closed.Reason == "" {
		t.Fatalf("expected a close reason")
	}
}

func TestWebSocketReconnectResumes(t *testing.T) {
	srv := newTestServer(t)
	presenter := srv.dial(t, srv.token(t, "host-1", domain.RolePresenter))
	send(t, presenter, "createRoom", map[string]any{"quizId": "quiz-1", "roomCode": "42424"})
	readUntil(t, presenter, domain.EventRoomCreated, nil)

	first := srv.dial(t, "")
	send(t, first, "joinRoom", map[string]any{"roomCode": "42424", "displayName": "Bob"})
	var resume domain.ResumePayload
	readUntil(t, first, domain.EventResumeState, &resume)

	send(t, presenter, "presentQuestion", map[string]any{"roomCode": "42424", "questionIndex": 0})
	readUntil(t, first, domain.EventQuestionPresented, nil)
	send(t, first, "submitAnswer", map[string]any{"roomCode": "42424", "choiceId": "o1"})
	readUntil(t, first, domain.EventAnswerAccepted, nil)

	second := srv.dial(t, "")
	send(t, second, "joinRoom", map[string]any{"roomCode": "42424", "displayName": "Bob", "playerId": resume.PlayerID})
	var resumed domain.ResumePayload
	readUntil(t, second, domain.EventResumeState, &resumed)
	if !resumed.Reconnected || !resumed.Answered || resumed.ChoiceID != "o1" {
		t.Fatalf("expected resumed answered state, got %+v", resumed)
	}
	readUntil(t, first, domain.EventSessionReplaced, nil)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketErrorFrames(t *testing.T) {
	srv := newTestServer(t)
	player := srv.dial(t, "")

	send(t, player, "joinRoom", map[string]any{"roomCode": "00000", "displayName": "Ghost"})
	var notFound domain.ErrorPayload
	readUntil(t, player, domain.EventError, &notFound)
	if notFound.Code != domain.ErrRoomNotFound.Code || notFound.Kind != domain.KindNotFound {
		t.Fatalf("unexpected error %+v", notFound)
	}

	send(t, player, "createRoom", map[string]any{"quizId": "quiz-1"})
	var forbidden domain.ErrorPayload
	readUntil(t, player, domain.EventError, &forbidden)
	if forbidden.Kind != domain.KindForbidden {
		t.Fatalf("players cannot create rooms, got %+v", forbidden)
	}

	send(t, player, "dance", nil)
	var unsupported domain.ErrorPayload
	readUntil(t, player, domain.EventError, &unsupported)
	if unsupported.Kind != domain.KindValidation {
		t.Fatalf("unexpected error %+v", unsupported)
	}
}

func TestRoomHTTPRoutes(t *testing.T) {
	srv := newTestServer(t)
	presenter := srv.dial(t, srv.token(t, "host-1", domain.RolePresenter))
	send(t, presenter, "createRoom", map[string]any{"quizId": "quiz-1", "roomCode": "77777"})
	readUntil(t, presenter, domain.EventRoomCreated, nil)

	resp, err := http.Get(srv.URL + "/rooms/77777")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	defer resp.Body.Close()
	var info domain.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if resp.StatusCode != http.StatusOK || info.Code != "77777" || info.Status != domain.StatusLobby || info.TotalQuestions != 1 {
		t.Fatalf("unexpected info %d %+v", resp.StatusCode, info)
	}

	qr, err := http.Get(srv.URL + "/rooms/77777/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer qr.Body.Close()
	if qr.StatusCode != http.StatusOK || qr.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected qr response %d %s", qr.StatusCode, qr.Header.Get("Content-Type"))
	}

	missing, err := http.Get(srv.URL + "/rooms/99999")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy, got %d", health.StatusCode)
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Choices: []domain.Choice{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4"},
						{ID: "o3", Text: "5"},
					},
					CorrectChoiceID: "o2",
					Points:          1,
				},
			},
		},
	}
}

func TestWebSocketRejoinAsNewPlayerReleasesOldIdentity(t *testing.T) {
	srv := newTestServer(t)
	presenter := srv.dial(t, srv.token(t, "host-1", domain.RolePresenter))
	send(t, presenter, "createRoom", map[string]any{"quizId": "quiz-1", "roomCode": "31337"})
	readUntil(t, presenter, domain.EventRoomCreated, nil)

	player := srv.dial(t, "")
	send(t, player, "joinRoom", map[string]any{"roomCode": "31337", "displayName": "Alice"})
	readUntil(t, player, domain.EventResumeState, nil)
	send(t, player, "joinRoom", map[string]any{"roomCode": "31337", "displayName": "Bob"})
	var bob domain.ResumePayload
	readUntil(t, player, domain.EventResumeState, &bob)

	for {
		var update domain.ParticipantsPayload
		readUntil(t, presenter, domain.EventParticipantsUpdated, &update)
		if len(update.Participants) == 0 || update.Participants[len(update.Participants)-1].PlayerID != bob.PlayerID {
			continue
		}
		if len(update.Participants) != 1 {
			t.Fatalf("Alice must not linger once the socket speaks for Bob, got %+v", update.Participants)
		}
		break
	}

	resp, err := http.Get(srv.URL + "/rooms/31337")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	defer resp.Body.Close()
	var info domain.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.ConnectedPlayers != 1 {
		t.Fatalf("expected one connected player, got %d", info.ConnectedPlayers)
	}
}
