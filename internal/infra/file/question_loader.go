// Package file loads question banks from a JSON document on disk, the format
// produced by the spreadsheet export pipeline.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"quizcine-server/internal/content"
	"quizcine-server/internal/domain"
)

// QuestionLoader reads and normalizes a JSON question document. The document
// is either a top-level array of raw records or an object with a "questions"
// list; individual records can use any of the recognized field spellings.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

func (l *QuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrContentUnavailable, l.path, err)
	}
	raws, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrContentUnavailable, l.path, err)
	}
	return content.NormalizeAll(raws), nil
}

func decodeRecords(data []byte) ([]map[string]any, error) {
	var wrapper struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Questions != nil {
		return wrapper.Questions, nil
	}

	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}
