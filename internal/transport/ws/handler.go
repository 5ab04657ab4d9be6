package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizcine-server/internal/app"
)

// Handler upgrades HTTP requests to websockets and dispatches inbound room
// events to the room service.
type Handler struct {
	service  *app.RoomService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(service *app.RoomService, hub *Hub) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Room     string `json:"room"`
	Name     string `json:"name"`
	PlayerID string `json:"playerId"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type roundPayload struct {
	Room  string `json:"room"`
	Round string `json:"round"`
}

type startQuestionPayload struct {
	Room     string   `json:"room"`
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	Image    string   `json:"image"`
	Choices  []string `json:"choices"`
	Answer   string   `json:"answer"`
	Points   int      `json:"points"`
	Duration int      `json:"duration"`
}

type answerPayload struct {
	Room   string `json:"room"`
	Name   string `json:"name"`
	Answer string `json:"answer"`
}

// ServeWS runs one connection: a writer goroutine drains the send channel
// while the read loop dispatches events until the peer goes away. Malformed
// or out-of-state events are dropped, never answered with an error.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:    newConnID(),
		send:  make(chan envelope, 16),
		rooms: make(map[string]struct{}),
	}
	h.hub.register(c)
	defer h.hub.remove(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	// Identity this connection plays under; a reclaimed playerId survives
	// reconnects, otherwise the connection ID is the player ID.
	playerID := c.id

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "join":
			var p joinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			code := app.CanonicalCode(p.Room)
			if code == "" || p.Name == "" {
				continue
			}
			if p.PlayerID != "" {
				playerID = p.PlayerID
			}
			h.hub.subscribe(c, code)
			h.service.Join(code, c.id, playerID, p.Name)

		case "host-join":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			code := app.CanonicalCode(p.Room)
			if code == "" {
				continue
			}
			h.hub.subscribe(c, code)
			h.service.HostJoin(code, c.id)

		case "start-from-server":
			var p roundPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.LoadRound(r.Context(), p.Room, c.id, p.Round)

		case "next-from-server":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.AdvanceQuestion(r.Context(), p.Room)

		case "start-question":
			var p startQuestionPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.StartQuestion(p.Room, app.ManualQuestion{
				Type:     p.Type,
				Text:     p.Text,
				Image:    p.Image,
				Choices:  p.Choices,
				Answer:   p.Answer,
				Points:   p.Points,
				Duration: p.Duration,
			})

		case "answer":
			var p answerPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.SubmitAnswer(p.Room, playerID, p.Answer)

		case "reveal":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.Reveal(p.Room)
		}
	}

	h.hub.remove(c)
	<-writerDone
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("rand.Read: %v", err)
		return ""
	}
	return hex.EncodeToString(buf)
}
