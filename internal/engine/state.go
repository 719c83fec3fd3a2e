package engine

import (
	"errors"
	"fmt"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// StateKind is the engine's position in the question-screen state machine
type StateKind int

const (
	StateStart StateKind = iota
	StateSubmitted
	StateSubmitting
	StateEventSenderError
	StateSelectNextScreen // transient, never observed outside Transition
	StateFinished
)

var stateNames = map[StateKind]model.SessionState{
	StateStart:            model.SessionStart,
	StateSubmitted:        model.SessionSubmitted,
	StateSubmitting:       model.SessionSubmitting,
	StateEventSenderError: model.SessionEventSenderError,
	StateSelectNextScreen: model.SessionSelectNextScreen,
	StateFinished:         model.SessionFinished,
}

// Session returns the client-facing name of the state
func (s StateKind) Session() model.SessionState {
	return stateNames[s]
}

func (s StateKind) String() string {
	return string(stateNames[s])
}

var (
	ErrIntentRejected = errors.New("intent rejected")
	ErrBusy           = fmt.Errorf("%w: telemetry event is being sent", ErrIntentRejected)
	ErrFinished       = fmt.Errorf("%w: research is finished", ErrIntentRejected)
	ErrDeliveryFailed = fmt.Errorf("%w: telemetry delivery failed, retry required", ErrIntentRejected)
)

func rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIntentRejected, fmt.Sprintf(format, args...))
}
