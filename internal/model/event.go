package model

import "time"

// EventType is the kind of telemetry event sent to the collector
type EventType string

const (
	EventResearchLoad   EventType = "research-load"
	EventResearchStart  EventType = "research-start"
	EventResearchAnswer EventType = "research-answer"
	EventResearchFinish EventType = "research-finish"
)

// TelemetryEvent is the body POSTed to the collector endpoint
type TelemetryEvent struct {
	Type         EventType `json:"type"`
	ResearchID   string    `json:"researchId"`
	Revision     int       `json:"revision"`
	SessionID    string    `json:"sessionId"`
	AppName      string    `json:"appName"`
	QuestionID   *string   `json:"questionId"`
	QuestionType *string   `json:"questionType"`
	Answers      *string   `json:"answers"` // JSON-encoded answer record
	Ts           time.Time `json:"ts"`
}

// EventStatus is the delivery state of a pending event
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventSending   EventStatus = "sending"
	EventFailed    EventStatus = "failed"
)

// PendingEvent is a scheduled telemetry event awaiting confirmed delivery
type PendingEvent struct {
	ID        string         `json:"id"`
	DedupKey  string         `json:"dedupKey"`
	Payload   TelemetryEvent `json:"payload"`
	Status    EventStatus    `json:"status"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"lastError,omitempty"`
}
