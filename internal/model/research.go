package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDefinition marks a research definition that cannot be executed
var ErrDefinition = errors.New("invalid research definition")

// Research is the immutable questionnaire a respondent walks through
type Research struct {
	ID        string     `json:"id" bson:"_id"`
	Revision  int        `json:"revision" bson:"revision"`
	Title     string     `json:"title,omitempty" bson:"title,omitempty"`
	Questions []Question `json:"questions" bson:"questions"`
}

// Key identifies one revision of a research
func (r *Research) Key() string {
	return fmt.Sprintf("%s@%d", r.ID, r.Revision)
}

// ParseBootstrap decodes the JSON injected by the hosting page.
// Missing or malformed input is reported as ErrDefinition.
func ParseBootstrap(data []byte) (*Research, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty bootstrap input", ErrDefinition)
	}
	var r Research
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDefinition, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the structural rules the engine relies on
func (r *Research) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing research id", ErrDefinition)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: research %s has no questions", ErrDefinition, r.ID)
	}

	seen := make(map[string]bool, len(r.Questions))
	for i := range r.Questions {
		q := &r.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("%w: question #%d has no id", ErrDefinition, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %q", ErrDefinition, q.ID)
		}
		seen[q.ID] = true

		if !q.Type.Valid() {
			return fmt.Errorf("%w: question %s has unknown type %q", ErrDefinition, q.ID, q.Type)
		}
		switch q.Type {
		case QuestionTypeRating:
			if q.Min > q.Max {
				return fmt.Errorf("%w: rating question %s has min %d > max %d", ErrDefinition, q.ID, q.Min, q.Max)
			}
		case QuestionTypeFreeText:
			if q.TextLimit < 0 {
				return fmt.Errorf("%w: free-text question %s has negative textLimit", ErrDefinition, q.ID)
			}
		case QuestionTypePrototype:
			if err := validateScreens(q); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dangling edges are not rejected here; the engine treats them as no navigation.
func validateScreens(q *Question) error {
	if len(q.Screens) == 0 {
		return fmt.Errorf("%w: prototype question %s has no screens", ErrDefinition, q.ID)
	}
	screens := make(map[string]bool, len(q.Screens))
	for _, s := range q.Screens {
		if s.ID == "" {
			return fmt.Errorf("%w: prototype question %s has a screen without id", ErrDefinition, q.ID)
		}
		if screens[s.ID] {
			return fmt.Errorf("%w: prototype question %s has duplicate screen %q", ErrDefinition, q.ID, s.ID)
		}
		screens[s.ID] = true
		areas := make(map[string]bool, len(s.Areas))
		for _, a := range s.Areas {
			if strings.TrimSpace(a.ID) == "" {
				return fmt.Errorf("%w: screen %s has an area without id", ErrDefinition, s.ID)
			}
			if areas[a.ID] {
				return fmt.Errorf("%w: screen %s has duplicate area %q", ErrDefinition, s.ID, a.ID)
			}
			areas[a.ID] = true
			if a.Rect.Width <= 0 || a.Rect.Height <= 0 {
				return fmt.Errorf("%w: area %s on screen %s has non-positive size", ErrDefinition, a.ID, s.ID)
			}
		}
	}
	return nil
}
