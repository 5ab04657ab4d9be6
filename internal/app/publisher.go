package app

// Event names pushed to clients. Names and payload field names are part of the
// wire contract shared with the web clients.
const (
	EventJoined       = "joined"
	EventPlayerJoined = "player-joined"
	EventScores       = "scores"
	EventRoundLoaded  = "server-round-loaded"
	EventQuestion     = "question"
	EventAccepting    = "accepting"
	EventReveal       = "reveal"
	EventAnswerSeen   = "answer-received"
	EventLog          = "log"
)

// Publisher fans events out to connected clients. Implementations must not
// block: a slow recipient loses frames, it never stalls the room.
type Publisher interface {
	// Broadcast delivers an event to every connection subscribed to the room.
	Broadcast(room, event string, payload any)
	// Send delivers an event to a single connection.
	Send(connID, event string, payload any)
}

// JoinedPayload acknowledges a join and carries the player's identity token.
type JoinedPayload struct {
	ID string `json:"id"`
}

// PlayerJoinedPayload announces a new player to the room.
type PlayerJoinedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoundLoadedPayload reports how many questions matched the requested round.
type RoundLoadedPayload struct {
	Count int `json:"count"`
}

// QuestionPayload is the outbound question frame. The correct answer and
// answer media are deliberately absent.
type QuestionPayload struct {
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Image       string   `json:"image"`
	Choices     []string `json:"choices"`
	AllowChange bool     `json:"allowChange"`
	Duration    int      `json:"duration"`
}

// RevealPayload discloses the answer after acceptance closes.
type RevealPayload struct {
	Answer      string `json:"answer"`
	AnswerImage string `json:"answerImage"`
}

// AnswerSeenPayload acknowledges that a submission was graded, without leaking
// whether it was correct.
type AnswerSeenPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
