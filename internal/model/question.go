package model

import (
	"encoding/json"
	"strings"
)

// QuestionType defines the type of question
type QuestionType string

const (
	QuestionTypeSingle    QuestionType = "single"    // One answer option
	QuestionTypeMultiple  QuestionType = "multiple"  // One or more answer options
	QuestionTypeRating    QuestionType = "rating"    // Integer value in [Min, Max]
	QuestionTypeFreeText  QuestionType = "free-text" // Text up to TextLimit runes
	QuestionTypePrototype QuestionType = "prototype" // Clickable screen graph
)

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingle, QuestionTypeMultiple, QuestionTypeRating, QuestionTypeFreeText, QuestionTypePrototype:
		return true
	}
	return false
}

// Question is one entry of a research. Fields after RequiresAnswer are type-specific.
type Question struct {
	ID             string          `json:"id" bson:"id"`
	Type           QuestionType    `json:"type" bson:"type"`
	Text           string          `json:"text" bson:"text"`
	RequiresAnswer bool            `json:"requiresAnswer" bson:"requiresAnswer"`
	DisplayRule    json.RawMessage `json:"displayRule,omitempty" bson:"displayRule,omitempty"` // Carried, never evaluated

	// single / multiple
	Answers []AnswerOption `json:"answers,omitempty" bson:"answers,omitempty"`
	// rating
	Min int `json:"min,omitempty" bson:"min,omitempty"`
	Max int `json:"max,omitempty" bson:"max,omitempty"`
	// free-text, 0 means unlimited
	TextLimit int `json:"textLimit,omitempty" bson:"textLimit,omitempty"`
	// prototype
	Screens []Screen `json:"screens,omitempty" bson:"screens,omitempty"`
}

// AnswerOption is a selectable option of a single/multiple question
type AnswerOption struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"text" bson:"text"`
}

// HasOption reports whether id is one of the authored options
func (q *Question) HasOption(id string) bool {
	for _, o := range q.Answers {
		if o.ID == id {
			return true
		}
	}
	return false
}

// IsPrototype is a shorthand used all over the engine
func (q *Question) IsPrototype() bool {
	return q.Type == QuestionTypePrototype
}

// Screen is a prototype canvas image with its hotspots
type Screen struct {
	ID             string `json:"id" bson:"id"`
	ImageRef       string `json:"imageRef" bson:"imageRef"`
	Areas          []Area `json:"areas" bson:"areas"`
	IsStartScreen  bool   `json:"isStartScreen" bson:"isStartScreen"`
	IsTargetScreen bool   `json:"isTargetScreen" bson:"isTargetScreen"`
}

// Area is a clickable hotspot. A nil GoToScreenID is a dead click region.
type Area struct {
	ID           string  `json:"id" bson:"id"`
	Rect         Rect    `json:"rect" bson:"rect"`
	GoToScreenID *string `json:"goToScreenId" bson:"goToScreenId"`
}

// Rect is an axis-aligned rectangle in screen image coordinates
type Rect struct {
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Contains reports whether the point lies inside r, edges included
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Target returns the trimmed goToScreenId, or "" when the area has no outgoing edge
func (a *Area) Target() string {
	if a.GoToScreenID == nil {
		return ""
	}
	return strings.TrimSpace(*a.GoToScreenID)
}
