package app

import (
	"sync"
	"time"

	"quizcine-server/internal/domain"
)

// Room is the per-code session state. All mutation happens under mu, held for
// the full duration of one inbound event, so answer arrival order at the
// server decides the quick bonus.
type Room struct {
	code string

	mu           sync.Mutex
	players      map[string]*domain.Player
	active       *domain.Question
	accepting    bool
	firstCorrect string
	round        string
	qIndex       int
	lastActive   time.Time
}

// NewRoom returns an idle room: no players, no active question, index before
// the first question.
func NewRoom(code string) *Room {
	return &Room{
		code:    code,
		players: make(map[string]*domain.Player),
		qIndex:  -1,
	}
}

// Code returns the room's canonical (uppercase) code.
func (r *Room) Code() string {
	return r.code
}

// LastActive reports when the room last processed an event. Used by the
// registry reaper.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// scoresLocked snapshots the public score table. Streaks stay internal.
func (r *Room) scoresLocked() domain.Scores {
	scores := make(domain.Scores, len(r.players))
	for id, p := range r.players {
		scores[id] = domain.ScoreEntry{Name: p.Name, Score: p.Score}
	}
	return scores
}

// Touch records activity on the room at t.
func (r *Room) Touch(t time.Time) {
	r.mu.Lock()
	r.lastActive = t
	r.mu.Unlock()
}
