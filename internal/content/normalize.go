// Package content maps loosely-structured question records onto the canonical
// domain.Question shape. Source documents come from spreadsheet exports with
// inconsistent column naming, so every field is resolved through an ordered
// list of candidate keys and malformed values degrade to defaults instead of
// erroring.
package content

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"quizcine-server/internal/domain"
)

// Candidate source keys per canonical field, tried in order. New upstream
// export conventions are added here, not as new branching logic.
var (
	roundKeys       = []string{"round", "category", "theme"}
	typeKeys        = []string{"type", "kind", "format"}
	textKeys        = []string{"question", "text", "prompt", "title"}
	imageKeys       = []string{"image", "img", "media", "questionImage"}
	choiceKeys      = []string{"choices", "options", "answers"}
	answerKeys      = []string{"answer", "correct", "solution"}
	pointKeys       = []string{"points", "value", "score"}
	durationKeys    = []string{"duration", "time", "seconds"}
	answerImageKeys = []string{"answerImage", "answer_image", "revealImage"}
)

var (
	drivePathID  = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveQueryID = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// ResolveMediaRef rewrites Google Drive sharing links to the direct-download
// form. Links already in that form pass through untouched, and anything
// without a recognizable file ID is returned unchanged.
func ResolveMediaRef(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "/uc?id=") {
		return raw
	}
	if m := drivePathID.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?id=" + m[1]
	}
	if m := driveQueryID.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?id=" + m[1]
	}
	return raw
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold canonicalizes a string for comparison: trimmed, lower-cased, combining
// diacritical marks stripped, runs of whitespace collapsed to single spaces.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(s), " ")
}

// SafeText suppresses prompts that are actually leaked type tags. Exports
// occasionally shift the type column into the question column; a prompt that
// reads "mcq" or "open" is a data-entry error, not a real question.
func SafeText(s string) string {
	switch Fold(s) {
	case string(domain.MultipleChoice), string(domain.OpenText):
		return ""
	}
	return s
}

// CleanChoices drops blank entries and caps the list at domain.MaxChoices.
func CleanChoices(choices []string) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, c)
		if len(out) == domain.MaxChoices {
			break
		}
	}
	return out
}

// Normalize converts one raw record into a fully-populated Question. It never
// fails; absent or malformed fields fall back to safe defaults.
func Normalize(raw map[string]any) domain.Question {
	q := domain.Question{
		Round:       firstString(raw, roundKeys),
		Text:        SafeText(firstString(raw, textKeys)),
		Image:       ResolveMediaRef(firstString(raw, imageKeys)),
		Choices:     CleanChoices(firstStrings(raw, choiceKeys)),
		Answer:      firstString(raw, answerKeys),
		Points:      firstNumber(raw, pointKeys, domain.DefaultPoints),
		Duration:    firstNumber(raw, durationKeys, domain.DefaultDuration),
		AnswerImage: ResolveMediaRef(firstString(raw, answerImageKeys)),
	}
	q.Type = DeriveKind(firstString(raw, typeKeys), q.Choices)
	return q
}

// NormalizeAll maps Normalize over a slice of raw records.
func NormalizeAll(raws []map[string]any) []domain.Question {
	out := make([]domain.Question, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

// FilterRound selects the questions whose round name Fold-equals name.
func FilterRound(questions []domain.Question, name string) []domain.Question {
	want := Fold(name)
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if Fold(q.Round) == want {
			out = append(out, q)
		}
	}
	return out
}

// DeriveKind resolves the question kind deterministically: an explicit tag
// wins, otherwise the presence of choices decides.
func DeriveKind(tag string, choices []string) domain.Kind {
	switch Fold(tag) {
	case string(domain.OpenText):
		return domain.OpenText
	case string(domain.MultipleChoice):
		return domain.MultipleChoice
	}
	if len(choices) > 0 {
		return domain.MultipleChoice
	}
	return domain.OpenText
}

func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstStrings(raw map[string]any, keys []string) []string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case []string:
			if len(v) > 0 {
				return v
			}
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func firstNumber(raw map[string]any, keys []string, fallback int) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
				return int(v)
			}
		case int:
			if v > 0 {
				return v
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}
