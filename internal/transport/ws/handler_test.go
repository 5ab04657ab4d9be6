package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizcine-server/internal/app"
	"quizcine-server/internal/domain"
	"quizcine-server/internal/infra/memory"
)

func newTestServer(t *testing.T, bank []domain.Question) *httptest.Server {
	t.Helper()
	hub := NewHub()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(bank), time.Minute)
	service := app.NewRoomService(memory.NewRoomStore(), questions, hub)
	handler := NewHandler(service, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// waitFor reads frames until one of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, want string) any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			var payload any
			_ = json.Unmarshal(msg.Payload, &payload)
			return payload
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return nil
}

func TestJoinAndAnswerFlow(t *testing.T) {
	server := newTestServer(t, nil)

	player := dial(t, server)
	send(t, player, "join", map[string]any{"room": "abcd", "name": "Alice"})

	joined, ok := waitFor(t, player, "joined").(map[string]any)
	if !ok || joined["id"] == "" {
		t.Fatalf("expected joined payload with id, got %+v", joined)
	}
	scores := waitFor(t, player, "scores").(map[string]any)
	if len(scores) != 1 {
		t.Fatalf("expected one player in scores, got %+v", scores)
	}

	host := dial(t, server)
	send(t, host, "host-join", map[string]any{"room": "ABCD"})
	waitFor(t, host, "scores")

	send(t, host, "start-question", map[string]any{
		"room":     "ABCD",
		"type":     "open",
		"text":     "Capital of France?",
		"answer":   "Paris",
		"points":   10,
		"duration": 20,
	})

	question := waitFor(t, player, "question").(map[string]any)
	if question["text"] != "Capital of France?" {
		t.Fatalf("unexpected question payload %+v", question)
	}
	if _, leaked := question["answer"]; leaked {
		t.Fatalf("question broadcast leaked the answer: %+v", question)
	}
	if accepting := waitFor(t, player, "accepting"); accepting != true {
		t.Fatalf("expected accepting:true, got %v", accepting)
	}

	send(t, player, "answer", map[string]any{"room": "ABCD", "name": "Alice", "answer": "paris"})
	waitFor(t, player, "answer-received")

	updated := waitFor(t, player, "scores").(map[string]any)
	for _, entry := range updated {
		e := entry.(map[string]any)
		if e["name"] == "Alice" && e["score"] != float64(15) {
			t.Fatalf("expected Alice at 15 (10 + quick bonus), got %+v", e)
		}
	}

	send(t, host, "reveal", map[string]any{"room": "ABCD"})
	reveal := waitFor(t, host, "reveal").(map[string]any)
	if reveal["answer"] != "Paris" {
		t.Fatalf("expected revealed answer, got %+v", reveal)
	}
	if accepting := waitFor(t, player, "accepting"); accepting != false {
		t.Fatalf("expected accepting:false, got %v", accepting)
	}
}

func TestRoundFlowFromRepository(t *testing.T) {
	server := newTestServer(t, []domain.Question{
		{Round: "Classics", Type: domain.OpenText, Text: "First?", Answer: "alpha", Points: 10, Duration: 30},
	})

	host := dial(t, server)
	send(t, host, "host-join", map[string]any{"room": "ROOM"})
	waitFor(t, host, "scores")

	send(t, host, "start-from-server", map[string]any{"room": "ROOM", "round": "classics"})
	loaded := waitFor(t, host, "server-round-loaded").(map[string]any)
	if loaded["count"] != float64(1) {
		t.Fatalf("expected round count 1, got %+v", loaded)
	}

	send(t, host, "next-from-server", map[string]any{"room": "ROOM"})
	question := waitFor(t, host, "question").(map[string]any)
	if question["text"] != "First?" {
		t.Fatalf("unexpected question %+v", question)
	}

	// Exhausted round produces a notice, not another question.
	send(t, host, "next-from-server", map[string]any{"room": "ROOM"})
	if notice := waitFor(t, host, "log"); notice == "" {
		t.Fatalf("expected exhaustion notice")
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	server := newTestServer(t, nil)

	conn := dial(t, server)
	send(t, conn, "join", map[string]any{"room": "", "name": ""})
	send(t, conn, "bogus-type", map[string]any{})
	send(t, conn, "join", map[string]any{"room": "OK", "name": "Alice"})

	// The valid join still succeeds after garbage frames.
	if joined := waitFor(t, conn, "joined"); joined == nil {
		t.Fatalf("expected joined after malformed frames")
	}
}
