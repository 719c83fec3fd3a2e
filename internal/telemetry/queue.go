// Package telemetry schedules and delivers respondent telemetry events.
package telemetry

import (
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// DedupKey is the identity used to suppress duplicate scheduling of one logical event
func DedupKey(eventType model.EventType, questionID *string) string {
	if questionID == nil {
		return string(eventType)
	}
	return string(eventType) + ":" + *questionID
}

// NewPendingEvent wraps a payload into a scheduled queue entry
func NewPendingEvent(id string, payload model.TelemetryEvent) model.PendingEvent {
	return model.PendingEvent{
		ID:       id,
		DedupKey: DedupKey(payload.Type, payload.QuestionID),
		Payload:  payload,
		Status:   model.EventScheduled,
	}
}

// Queue is an ordered retry queue of pending events.
// Entries leave the queue only on Ack; a failed entry keeps its payload and key.
// The zero value is ready to use.
type Queue struct {
	items     []model.PendingEvent
	delivered map[string]bool
}

// Clone returns an independent copy
func (q *Queue) Clone() Queue {
	out := Queue{
		items: append([]model.PendingEvent(nil), q.items...),
	}
	if q.delivered != nil {
		out.delivered = make(map[string]bool, len(q.delivered))
		for k := range q.delivered {
			out.delivered[k] = true
		}
	}
	return out
}

// Schedule appends ev unless its dedup key is already pending, in flight or delivered.
// Reports whether the event was added.
func (q *Queue) Schedule(ev model.PendingEvent) bool {
	if q.HasKey(ev.DedupKey) {
		return false
	}
	ev.Status = model.EventScheduled
	q.items = append(q.items, ev)
	return true
}

// HasKey reports whether key is pending or was already delivered
func (q *Queue) HasKey(key string) bool {
	if q.delivered[key] {
		return true
	}
	for _, it := range q.items {
		if it.DedupKey == key {
			return true
		}
	}
	return false
}

// Head returns the oldest pending event
func (q *Queue) Head() (model.PendingEvent, bool) {
	if len(q.items) == 0 {
		return model.PendingEvent{}, false
	}
	return q.items[0], true
}

// BeginSend marks the head as in flight and returns it.
// It returns false when the queue is empty or the head is already in flight.
func (q *Queue) BeginSend() (model.PendingEvent, bool) {
	if len(q.items) == 0 || q.items[0].Status == model.EventSending {
		return model.PendingEvent{}, false
	}
	q.items[0].Status = model.EventSending
	q.items[0].Attempts++
	return q.items[0], true
}

// Ack removes a delivered event and remembers its key
func (q *Queue) Ack(id string) bool {
	i := q.index(id)
	if i < 0 {
		return false
	}
	if q.delivered == nil {
		q.delivered = make(map[string]bool)
	}
	q.delivered[q.items[i].DedupKey] = true
	q.items = append(q.items[:i:i], q.items[i+1:]...)
	return true
}

// Fail marks an in-flight event as failed so the same entry is re-sent later
func (q *Queue) Fail(id string, err error) bool {
	i := q.index(id)
	if i < 0 {
		return false
	}
	q.items[i].Status = model.EventFailed
	if err != nil {
		q.items[i].LastError = err.Error()
	}
	return true
}

// Len is the number of undelivered events
func (q *Queue) Len() int {
	return len(q.items)
}

// Pending returns a copy of the undelivered events in send order
func (q *Queue) Pending() []model.PendingEvent {
	return append([]model.PendingEvent(nil), q.items...)
}

func (q *Queue) index(id string) int {
	for i, it := range q.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
