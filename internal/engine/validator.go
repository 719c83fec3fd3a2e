package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// ValidationError explains why a record may not be submitted yet
type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Reason)
}

func invalid(q *model.Question, format string, args ...interface{}) error {
	return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf(format, args...)}
}

// Validate gates the answer intent. It returns nil or a *ValidationError.
func Validate(q *model.Question, rec *model.AnswerRecord) error {
	if rec == nil || rec.QuestionID != q.ID {
		return invalid(q, "no answer record")
	}

	switch q.Type {
	case model.QuestionTypeSingle, model.QuestionTypeMultiple, model.QuestionTypeRating:
		if !q.RequiresAnswer {
			return nil
		}
	}

	switch q.Type {
	case model.QuestionTypeSingle:
		if len(rec.Answers) == 0 {
			return required(q)
		}
		if len(rec.Answers) != 1 {
			return invalid(q, "exactly one answer must be selected")
		}
		return knownOptions(q, rec.Answers)

	case model.QuestionTypeMultiple:
		if len(rec.Answers) == 0 {
			return required(q)
		}
		return knownOptions(q, rec.Answers)

	case model.QuestionTypeRating:
		if len(rec.Answers) == 0 {
			return required(q)
		}
		if len(rec.Answers) != 1 {
			return invalid(q, "exactly one rating must be selected")
		}
		v, err := strconv.Atoi(strings.TrimSpace(rec.Answers[0]))
		if err != nil {
			return invalid(q, "rating %q is not a number", rec.Answers[0])
		}
		if v < q.Min || v > q.Max {
			return invalid(q, "rating must be between %d and %d", q.Min, q.Max)
		}
		return nil

	case model.QuestionTypeFreeText:
		text := ""
		if len(rec.Answers) > 0 {
			text = rec.Answers[0]
		}
		if q.TextLimit > 0 && utf8.RuneCountInString(text) > q.TextLimit {
			return invalid(q, "text exceeds %d characters", q.TextLimit)
		}
		if text == "" {
			return required(q)
		}
		return nil

	case model.QuestionTypePrototype:
		if !rec.Closed() {
			return invalid(q, "prototype task is not completed")
		}
		return nil
	}
	return invalid(q, "unsupported question type %q", q.Type)
}

func required(q *model.Question) error {
	if q.RequiresAnswer {
		return invalid(q, "answer is required")
	}
	return nil
}

func knownOptions(q *model.Question, ids []string) error {
	if len(q.Answers) == 0 {
		return nil
	}
	for _, id := range ids {
		if !q.HasOption(id) {
			return invalid(q, "unknown answer %q", id)
		}
	}
	return nil
}

// ApplyAnswer stores a selection in the record regardless of validity,
// so the respondent can change their mind before submitting.
func ApplyAnswer(q *model.Question, rec *model.AnswerRecord, answers []string) {
	switch q.Type {
	case model.QuestionTypeSingle, model.QuestionTypeRating, model.QuestionTypeFreeText:
		if len(answers) == 0 {
			rec.Answers = nil
			return
		}
		rec.Answers = []string{answers[0]}

	case model.QuestionTypeMultiple:
		seen := make(map[string]bool, len(answers))
		out := make([]string, 0, len(answers))
		for _, a := range answers {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
		if len(out) == 0 {
			out = nil
		}
		rec.Answers = out
	}
}
