package domain

// Kind discriminates how a question is answered.
type Kind string

const (
	// MultipleChoice questions carry up to four choices; the player submits the
	// literal text of the chosen one.
	MultipleChoice Kind = "mcq"
	// OpenText questions take free-form input graded by exact normalized equality.
	OpenText Kind = "open"
)

// Question is the canonical question shape produced by the content normalizer.
// Immutable once handed to a room for a turn; JSON tags match the content
// document served by GET /questions.
type Question struct {
	Round       string   `json:"round"`
	Type        Kind     `json:"type"`
	Text        string   `json:"question"`
	Image       string   `json:"image"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Points      int      `json:"points"`
	Duration    int      `json:"duration"`
	AnswerImage string   `json:"answerImage"`
}

// Default point and duration values substituted by the normalizer when the
// source record omits them.
const (
	DefaultPoints   = 10
	DefaultDuration = 30
)

// MaxChoices caps how many choices a multiple-choice question may carry.
const MaxChoices = 4

// Player is one scored participant of a room. Streak is server-internal and
// never serialized to clients.
type Player struct {
	Name   string
	Score  int
	Streak int
}

// ScoreEntry is the per-player view inside a scores broadcast.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Scores maps player ID to that player's public score view.
type Scores map[string]ScoreEntry
