package model

import "time"

// AnswerRecord is the Answer Stack entry of one visited question.
// Non-prototype questions use Answers; prototype questions use the remaining fields.
type AnswerRecord struct {
	QuestionID string       `json:"questionId" bson:"questionId"`
	Type       QuestionType `json:"type" bson:"type"`
	Answers    []string     `json:"answers,omitempty" bson:"answers,omitempty"` // Option ids, free text or rating value

	Completed    bool          `json:"completed,omitempty" bson:"completed,omitempty"`
	GivenUp      bool          `json:"givenUp,omitempty" bson:"givenUp,omitempty"` // Also set by skip on non-prototype questions
	StartTs      *time.Time    `json:"startTs,omitempty" bson:"startTs,omitempty"`
	EndTs        *time.Time    `json:"endTs,omitempty" bson:"endTs,omitempty"`
	ScreenVisits []ScreenVisit `json:"screenVisits,omitempty" bson:"screenVisits,omitempty"`
}

// ScreenVisit is one stay on a prototype screen; revisits get a new VisitID
type ScreenVisit struct {
	ScreenID string     `json:"screenId" bson:"screenId"`
	VisitID  string     `json:"visitId" bson:"visitId"`
	StartTs  time.Time  `json:"startTs" bson:"startTs"`
	EndTs    *time.Time `json:"endTs,omitempty" bson:"endTs,omitempty"`
	Clicks   []Click    `json:"clicks" bson:"clicks"`
}

// Click is a respondent click on a screen. A nil AreaID is a misclick.
type Click struct {
	X      float64   `json:"x" bson:"x"`
	Y      float64   `json:"y" bson:"y"`
	AreaID *string   `json:"areaId" bson:"areaId"`
	Ts     time.Time `json:"ts" bson:"ts"`
}

// Closed reports whether a prototype record reached a final outcome
func (r *AnswerRecord) Closed() bool {
	return r.Completed || r.GivenUp
}

// CurrentVisit returns the last screen visit, nil for non-prototype records
func (r *AnswerRecord) CurrentVisit() *ScreenVisit {
	if len(r.ScreenVisits) == 0 {
		return nil
	}
	return &r.ScreenVisits[len(r.ScreenVisits)-1]
}

// Clone returns a deep copy so snapshots never alias engine state
func (r *AnswerRecord) Clone() *AnswerRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Answers != nil {
		out.Answers = append([]string(nil), r.Answers...)
	}
	out.StartTs = cloneTime(r.StartTs)
	out.EndTs = cloneTime(r.EndTs)
	if r.ScreenVisits != nil {
		out.ScreenVisits = make([]ScreenVisit, len(r.ScreenVisits))
		for i, v := range r.ScreenVisits {
			v.EndTs = cloneTime(v.EndTs)
			v.Clicks = append([]Click(nil), v.Clicks...)
			out.ScreenVisits[i] = v
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
