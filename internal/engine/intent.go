package engine

import (
	"errors"
	"fmt"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// Intent is a respondent action dispatched to the engine
type Intent interface {
	Kind() string
}

// SelectAnswer replaces the current selection of a non-prototype question
type SelectAnswer struct {
	Answers []string
}

// Answer submits the current record
type Answer struct{}

// Skip skips an optional question or gives up a prototype task
type Skip struct{}

// RetryEventSending re-sends the event whose delivery failed
type RetryEventSending struct{}

// Click is a click on the current prototype screen
type Click struct {
	X float64
	Y float64
}

func (SelectAnswer) Kind() string      { return "selectAnswer" }
func (Answer) Kind() string            { return "answer" }
func (Skip) Kind() string              { return "skip" }
func (RetryEventSending) Kind() string { return "retryEventSending" }
func (Click) Kind() string             { return "click" }

// Internal intents driving start-up and the send boundary.
type (
	start     struct{}
	beginSend struct{}
	sendDone  struct {
		eventID string
		err     error
	}
)

func (start) Kind() string     { return "start" }
func (beginSend) Kind() string { return "beginSend" }
func (sendDone) Kind() string  { return "sendDone" }

// ErrInvalidIntent is returned for intent requests that cannot be decoded
var ErrInvalidIntent = errors.New("invalid intent")

// FromRequest decodes the wire form of a respondent intent
func FromRequest(r model.IntentRequest) (Intent, error) {
	switch r.Type {
	case SelectAnswer{}.Kind():
		return SelectAnswer{Answers: r.Answers}, nil
	case Answer{}.Kind():
		return Answer{}, nil
	case Skip{}.Kind():
		return Skip{}, nil
	case RetryEventSending{}.Kind():
		return RetryEventSending{}, nil
	case Click{}.Kind():
		return Click{X: r.X, Y: r.Y}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidIntent, r.Type)
}
