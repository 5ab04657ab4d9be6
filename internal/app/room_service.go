package app

import (
	"context"
	"log"
	"strings"
	"time"

	"quizcine-server/internal/content"
	"quizcine-server/internal/domain"
)

// Bonus tuning. The quick bonus goes to the first correct answer per question;
// the streak bonus fires on every third consecutive correct answer.
const (
	quickBonus  = 5
	streakBonus = 5
	streakEvery = 3
)

// RoomRepository owns the room-code-to-room mapping. Rooms are created lazily
// and, unless the registry is configured with an idle TTL, never removed.
type RoomRepository interface {
	GetOrCreate(code string) *Room
}

// QuestionRepository loads the normalized question bank (from file, Postgres,
// or a cache in front of either).
type QuestionRepository interface {
	GetQuestions(ctx context.Context) ([]domain.Question, error)
}

// ManualQuestion is a host-authored question injected without touching the
// repository.
type ManualQuestion struct {
	Type     string
	Text     string
	Image    string
	Choices  []string
	Answer   string
	Points   int
	Duration int
}

// RoomService drives the per-room question lifecycle and scoring. Every
// operation locks the target room for its full duration, including the
// broadcasts it triggers.
type RoomService struct {
	rooms     RoomRepository
	questions QuestionRepository
	pub       Publisher
	now       func() time.Time
}

func NewRoomService(rooms RoomRepository, questions QuestionRepository, pub Publisher) *RoomService {
	return NewRoomServiceWithClock(rooms, questions, pub, time.Now)
}

// NewRoomServiceWithClock allows deterministic timestamps in tests.
func NewRoomServiceWithClock(rooms RoomRepository, questions QuestionRepository, pub Publisher, now func() time.Time) *RoomService {
	return &RoomService{rooms: rooms, questions: questions, pub: pub, now: now}
}

// CanonicalCode upper-cases and trims a room code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Join registers a player in the room and announces them. A playerID supplied
// by a reconnecting client reclaims its previous record; otherwise connID
// doubles as the player identity. Returns false when the join is ignored.
func (s *RoomService) Join(code, connID, playerID, name string) bool {
	code = CanonicalCode(code)
	if code == "" || name == "" {
		return false
	}
	if playerID == "" {
		playerID = connID
	}

	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	if p, ok := room.players[playerID]; ok {
		p.Name = name
	} else {
		room.players[playerID] = &domain.Player{Name: name}
	}
	scores := room.scoresLocked()

	s.pub.Send(connID, EventJoined, JoinedPayload{ID: playerID})
	s.pub.Broadcast(code, EventPlayerJoined, PlayerJoinedPayload{ID: playerID, Name: name})
	s.pub.Broadcast(code, EventScores, scores)
	return true
}

// HostJoin subscribes a host connection to the room without creating a
// player, replying with the current score table.
func (s *RoomService) HostJoin(code, connID string) bool {
	code = CanonicalCode(code)
	if code == "" {
		return false
	}

	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	s.pub.Send(connID, EventScores, room.scoresLocked())
	return true
}

// LoadRound selects a round for the room and resets the question cursor. The
// matching question count is reported to the requester only.
func (s *RoomService) LoadRound(ctx context.Context, code, connID, round string) {
	code = CanonicalCode(code)
	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	room.round = round
	room.qIndex = -1

	list := s.roundQuestions(ctx, round)
	s.pub.Send(connID, EventRoundLoaded, RoundLoadedPayload{Count: len(list)})
}

// AdvanceQuestion moves the room to its next question and opens the answer
// window. Past the end of the round it is an idempotent no-op that emits an
// informational notice.
func (s *RoomService) AdvanceQuestion(ctx context.Context, code string) {
	code = CanonicalCode(code)
	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	list := s.roundQuestions(ctx, room.round)
	if len(list) == 0 {
		s.pub.Broadcast(code, EventLog, "No questions in this round.")
		return
	}
	if room.qIndex >= len(list)-1 {
		s.pub.Broadcast(code, EventLog, "No more questions in this round.")
		return
	}

	room.qIndex++
	q := list[room.qIndex]
	s.openQuestionLocked(room, q)
}

// StartQuestion injects a host-authored question, bypassing the repository.
func (s *RoomService) StartQuestion(code string, manual ManualQuestion) {
	code = CanonicalCode(code)
	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	choices := content.CleanChoices(manual.Choices)
	points := manual.Points
	if points <= 0 {
		points = domain.DefaultPoints
	}
	duration := manual.Duration
	if duration <= 0 {
		duration = domain.DefaultDuration
	}

	q := domain.Question{
		Type:     content.DeriveKind(manual.Type, choices),
		Text:     content.SafeText(manual.Text),
		Image:    content.ResolveMediaRef(manual.Image),
		Choices:  choices,
		Answer:   manual.Answer,
		Points:   points,
		Duration: duration,
	}
	s.openQuestionLocked(room, q)
}

// SubmitAnswer grades a submission against the active question. Out-of-window
// submissions and unknown players are silently ignored.
func (s *RoomService) SubmitAnswer(code, playerID, answer string) {
	code = CanonicalCode(code)
	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	q := room.active
	if !room.accepting || q == nil {
		return
	}
	p, ok := room.players[playerID]
	if !ok {
		return
	}

	if content.Fold(answer) == content.Fold(q.Answer) {
		p.Score += q.Points
		if room.firstCorrect == "" {
			room.firstCorrect = playerID
			p.Score += quickBonus
		}
		p.Streak++
		if p.Streak >= streakEvery {
			p.Score += streakBonus
			p.Streak = 0
		}
	} else {
		p.Streak = 0
	}

	s.pub.Broadcast(code, EventAnswerSeen, AnswerSeenPayload{ID: playerID, Name: p.Name})
	s.pub.Broadcast(code, EventScores, room.scoresLocked())
}

// Reveal closes the answer window and discloses the stored answer. With no
// active question it still broadcasts empty values rather than failing.
func (s *RoomService) Reveal(code string) {
	code = CanonicalCode(code)
	room := s.rooms.GetOrCreate(code)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.lastActive = s.now()

	room.accepting = false

	reveal := RevealPayload{}
	if room.active != nil {
		reveal.Answer = room.active.Answer
		reveal.AnswerImage = room.active.AnswerImage
	}
	s.pub.Broadcast(code, EventAccepting, false)
	s.pub.Broadcast(code, EventReveal, reveal)
	s.pub.Broadcast(code, EventScores, room.scoresLocked())
}

// openQuestionLocked installs q as the active question and broadcasts it with
// the answer withheld. Caller holds room.mu.
func (s *RoomService) openQuestionLocked(room *Room, q domain.Question) {
	room.active = &q
	room.accepting = true
	room.firstCorrect = ""

	choices := []string{}
	if q.Type == domain.MultipleChoice && len(q.Choices) > 0 {
		choices = q.Choices
	}
	s.pub.Broadcast(room.code, EventQuestion, QuestionPayload{
		Type:        string(q.Type),
		Text:        q.Text,
		Image:       q.Image,
		Choices:     choices,
		AllowChange: true,
		Duration:    q.Duration,
	})
	s.pub.Broadcast(room.code, EventAccepting, true)
}

// roundQuestions loads and filters the bank for a round. Repository failures
// degrade to an empty list; a broken content source must not end a session.
func (s *RoomService) roundQuestions(ctx context.Context, round string) []domain.Question {
	all, err := s.questions.GetQuestions(ctx)
	if err != nil {
		log.Printf("load questions: %v", err)
		return nil
	}
	return content.FilterRound(all, round)
}
