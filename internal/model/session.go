package model

import "time"

// SessionState is the engine state name exposed to clients
type SessionState string

const (
	SessionStart            SessionState = "start"
	SessionSubmitted        SessionState = "question.submitted"
	SessionSubmitting       SessionState = "question.submitting"
	SessionEventSenderError SessionState = "question.event-sender-error"
	SessionSelectNextScreen SessionState = "question.select-next-screen"
	SessionFinished         SessionState = "finished"
)

// SessionSnapshot is the UI-facing view of one respondent session
type SessionSnapshot struct {
	SessionID        string         `json:"sessionId" bson:"sessionId"`
	ResearchID       string         `json:"researchId" bson:"researchId"`
	Revision         int            `json:"revision" bson:"revision"`
	State            SessionState   `json:"state" bson:"state"`
	Question         *Question      `json:"question" bson:"question"` // nil once finished
	Record           *AnswerRecord  `json:"record" bson:"record"`
	AnswerStack      []AnswerRecord `json:"answerStack" bson:"answerStack"`
	Finished         bool           `json:"finished" bson:"finished"`
	ValidationError  *string        `json:"validationError" bson:"validationError"`
	EventSenderError bool           `json:"eventSenderError" bson:"eventSenderError"`
	PendingEvents    int            `json:"pendingEvents" bson:"pendingEvents"`
	StartedAt        *time.Time     `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt" bson:"updatedAt"`
}
