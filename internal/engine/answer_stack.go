package engine

import (
	"fmt"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// AnswerStack is the ordered, append-only history of per-question records.
// Records are mutated in place but never removed.
type AnswerStack struct {
	records []model.AnswerRecord
}

// Push appends the record of a question visited for the first time
func (s *AnswerStack) Push(rec model.AnswerRecord) error {
	if s.Get(rec.QuestionID) != nil {
		return fmt.Errorf("answer stack already holds question %s", rec.QuestionID)
	}
	s.records = append(s.records, rec)
	return nil
}

// Get returns the live record of questionID, nil when absent
func (s *AnswerStack) Get(questionID string) *model.AnswerRecord {
	for i := range s.records {
		if s.records[i].QuestionID == questionID {
			return &s.records[i]
		}
	}
	return nil
}

// Current returns the most recently pushed record
func (s *AnswerStack) Current() *model.AnswerRecord {
	if len(s.records) == 0 {
		return nil
	}
	return &s.records[len(s.records)-1]
}

// Len is the number of visited questions
func (s *AnswerStack) Len() int {
	return len(s.records)
}

// Records returns a deep copy in first-visit order
func (s *AnswerStack) Records() []model.AnswerRecord {
	out := make([]model.AnswerRecord, len(s.records))
	for i := range s.records {
		out[i] = *s.records[i].Clone()
	}
	return out
}

func (s *AnswerStack) clone() AnswerStack {
	return AnswerStack{records: s.Records()}
}
