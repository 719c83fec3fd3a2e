package engine

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/telemetry"
)

// Env supplies time and identifiers to Transition so replays are deterministic
type Env struct {
	Now   func() time.Time
	NewID func() string
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}

func (e Env) newID() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

// EffectKind names a side effect requested by Transition
type EffectKind int

const (
	EffectFlush          EffectKind = iota // deliver pending events, oldest first
	EffectSend                             // send Event, then feed the result back
	EffectDanglingEdge                     // a click hit an area pointing at a missing screen
	EffectDeliveryFailed                   // Event could not be delivered
)

// Effect is a side effect the runtime performs after a transition
type Effect struct {
	Kind  EffectKind
	Event model.PendingEvent
	Edge  DanglingEdge
	Err   error
}

// Machine is the complete engine state for one respondent session
type Machine struct {
	compiled  *Compiled
	sessionID string
	appName   string

	state            StateKind
	current          int
	stack            AnswerStack
	queue            telemetry.Queue
	startedAt        *time.Time
	validationError  *ValidationError
	eventSenderError bool
}

// NewMachine returns a machine in the Start state
func NewMachine(c *Compiled, sessionID, appName string) Machine {
	return Machine{
		compiled:  c,
		sessionID: sessionID,
		appName:   appName,
		state:     StateStart,
		current:   -1,
	}
}

func (m Machine) clone() Machine {
	out := m
	out.stack = m.stack.clone()
	out.queue = m.queue.Clone()
	if m.startedAt != nil {
		t := *m.startedAt
		out.startedAt = &t
	}
	if m.validationError != nil {
		v := *m.validationError
		out.validationError = &v
	}
	return out
}

// Transition applies one intent. The input machine is never mutated; on error
// it is returned unchanged together with an ErrIntentRejected-wrapped error.
func Transition(m Machine, in Intent, env Env) (Machine, []Effect, error) {
	if m.compiled == nil {
		return m, nil, rejected("no research loaded")
	}
	next := m.clone()

	var (
		effects []Effect
		err     error
	)
	switch in := in.(type) {
	case beginSend:
		effects = next.beginSend()
	case sendDone:
		effects = next.sendDone(in, env)
	default:
		switch next.state {
		case StateStart:
			effects, err = next.onStart(in, env)
		case StateSubmitted:
			effects, err = next.onSubmitted(in, env)
		case StateSubmitting:
			err = ErrBusy
		case StateEventSenderError:
			effects, err = next.onEventSenderError(in)
		case StateFinished:
			effects, err = next.onFinished(in)
		default:
			err = rejected("unexpected state %s", next.state)
		}
	}
	if err != nil {
		return m, nil, err
	}
	return next, effects, nil
}

func (m *Machine) onStart(in Intent, env Env) ([]Effect, error) {
	if _, ok := in.(start); !ok {
		return nil, rejected("%s before the research started", in.Kind())
	}
	m.enter(0, env)
	m.schedule(model.EventResearchLoad, nil, nil, env)
	m.state = StateSubmitted
	return []Effect{{Kind: EffectFlush}}, nil
}

func (m *Machine) onSubmitted(in Intent, env Env) ([]Effect, error) {
	q := m.compiled.Question(m.current)
	rec := m.stack.Get(q.ID)

	switch in := in.(type) {
	case SelectAnswer:
		if q.IsPrototype() {
			return nil, rejected("prototype question %s is answered by clicks", q.ID)
		}
		ApplyAnswer(q, rec, in.Answers)
		m.validationError = nil
		return m.markStarted(env), nil

	case Click:
		if !q.IsPrototype() {
			return nil, rejected("question %s is not a prototype", q.ID)
		}
		if rec.Closed() {
			return nil, rejected("prototype task %s is already closed", q.ID)
		}
		screen := rec.CurrentVisit().ScreenID
		res := applyClick(rec, m.compiled.Graph(q.ID), in.X, in.Y, env)
		m.validationError = nil
		effects := m.markStarted(env)
		if res.Dangling {
			effects = append(effects, Effect{Kind: EffectDanglingEdge, Edge: DanglingEdge{
				QuestionID: q.ID,
				ScreenID:   screen,
				AreaID:     *res.AreaID,
				Target:     res.Target,
			}})
		}
		return effects, nil

	case Answer:
		if err := Validate(q, rec); err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				ve = &ValidationError{QuestionID: q.ID, Reason: err.Error()}
			}
			m.validationError = ve
			return nil, nil
		}
		return m.completeStep(q, rec, env), nil

	case Skip:
		if q.IsPrototype() {
			if rec.Completed {
				return nil, rejected("prototype task %s is already completed", q.ID)
			}
		} else {
			if q.RequiresAnswer {
				return nil, rejected("question %s requires an answer", q.ID)
			}
			rec.Answers = nil
		}
		rec.GivenUp = true
		return m.completeStep(q, rec, env), nil

	case RetryEventSending:
		return nil, rejected("no failed delivery to retry")
	}
	return nil, rejected("unknown intent %s", in.Kind())
}

func (m *Machine) onEventSenderError(in Intent) ([]Effect, error) {
	if _, ok := in.(RetryEventSending); !ok {
		return nil, ErrDeliveryFailed
	}
	m.state = StateSubmitting
	return []Effect{{Kind: EffectFlush}}, nil
}

// Finished is terminal; only a failed research-finish delivery may be retried.
func (m *Machine) onFinished(in Intent) ([]Effect, error) {
	if _, ok := in.(RetryEventSending); !ok || m.queue.Len() == 0 {
		return nil, ErrFinished
	}
	return []Effect{{Kind: EffectFlush}}, nil
}

func (m *Machine) completeStep(q *model.Question, rec *model.AnswerRecord, env Env) []Effect {
	closeRecord(rec, env)
	m.validationError = nil
	m.schedule(model.EventResearchAnswer, q, rec, env)
	m.state = StateSubmitting
	return []Effect{{Kind: EffectFlush}}
}

func (m *Machine) beginSend() []Effect {
	if m.state == StateEventSenderError {
		return nil
	}
	ev, ok := m.queue.BeginSend()
	if !ok {
		return nil
	}
	return []Effect{{Kind: EffectSend, Event: ev}}
}

func (m *Machine) sendDone(in sendDone, env Env) []Effect {
	if in.err != nil {
		head, _ := m.queue.Head()
		m.queue.Fail(in.eventID, in.err)
		switch m.state {
		case StateSubmitting:
			m.state = StateEventSenderError
			m.eventSenderError = true
		case StateFinished:
			m.eventSenderError = true
		}
		return []Effect{{Kind: EffectDeliveryFailed, Event: head, Err: in.err}}
	}

	m.queue.Ack(in.eventID)
	if m.queue.Len() > 0 {
		return []Effect{{Kind: EffectFlush}}
	}
	switch m.state {
	case StateSubmitting:
		m.eventSenderError = false
		m.state = StateSelectNextScreen
		return m.selectNextScreen(env)
	case StateFinished:
		m.eventSenderError = false
	}
	return nil
}

// selectNextScreen is the zero-latency decision point after a delivered step.
func (m *Machine) selectNextScreen(env Env) []Effect {
	next, finished := NextQuestion(m.compiled, m.current)
	if finished {
		m.state = StateFinished
		m.schedule(model.EventResearchFinish, nil, nil, env)
		return []Effect{{Kind: EffectFlush}}
	}
	m.enter(next, env)
	m.state = StateSubmitted
	return nil
}

func (m *Machine) enter(i int, env Env) {
	q := m.compiled.Question(i)
	// Push only fails for an already visited question, which the linear rule never yields.
	_ = m.stack.Push(newRecord(q, m.compiled.Graph(q.ID), env))
	m.current = i
}

func (m *Machine) markStarted(env Env) []Effect {
	if m.startedAt != nil {
		return nil
	}
	now := env.now()
	m.startedAt = &now
	if !m.schedule(model.EventResearchStart, nil, nil, env) {
		return nil
	}
	return []Effect{{Kind: EffectFlush}}
}

func (m *Machine) schedule(t model.EventType, q *model.Question, rec *model.AnswerRecord, env Env) bool {
	r := m.compiled.Research()
	payload := model.TelemetryEvent{
		Type:       t,
		ResearchID: r.ID,
		Revision:   r.Revision,
		SessionID:  m.sessionID,
		AppName:    m.appName,
		Ts:         env.now(),
	}
	if q != nil {
		id, typ := q.ID, string(q.Type)
		payload.QuestionID = &id
		payload.QuestionType = &typ
	}
	if rec != nil {
		if data, err := json.Marshal(rec); err == nil {
			s := string(data)
			payload.Answers = &s
		}
	}
	return m.queue.Schedule(telemetry.NewPendingEvent(env.newID(), payload))
}

// State returns the current state
func (m *Machine) State() StateKind {
	return m.state
}

// Finished reports whether the terminal state was reached
func (m *Machine) Finished() bool {
	return m.state == StateFinished
}

// CurrentQuestion returns the question being presented, nil before start and once finished
func (m *Machine) CurrentQuestion() *model.Question {
	if m.compiled == nil || m.state == StateStart || m.state == StateFinished {
		return nil
	}
	return m.compiled.Question(m.current)
}

// CurrentRecord returns a copy of the record of the current question
func (m *Machine) CurrentRecord() *model.AnswerRecord {
	q := m.CurrentQuestion()
	if q == nil {
		return nil
	}
	return m.stack.Get(q.ID).Clone()
}

// Pending returns the undelivered telemetry events
func (m *Machine) Pending() []model.PendingEvent {
	return m.queue.Pending()
}

// Snapshot renders the UI-facing view of the machine
func (m *Machine) Snapshot(now time.Time) model.SessionSnapshot {
	if m.compiled == nil {
		return model.SessionSnapshot{SessionID: m.sessionID, State: m.state.Session(), UpdatedAt: now}
	}
	r := m.compiled.Research()
	s := model.SessionSnapshot{
		SessionID:        m.sessionID,
		ResearchID:       r.ID,
		Revision:         r.Revision,
		State:            m.state.Session(),
		Record:           m.CurrentRecord(),
		AnswerStack:      m.stack.Records(),
		Finished:         m.Finished(),
		EventSenderError: m.eventSenderError,
		PendingEvents:    m.queue.Len(),
		UpdatedAt:        now,
	}
	if q := m.CurrentQuestion(); q != nil {
		qc := *q
		s.Question = &qc
	}
	if m.validationError != nil {
		reason := m.validationError.Reason
		s.ValidationError = &reason
	}
	if m.startedAt != nil {
		t := *m.startedAt
		s.StartedAt = &t
	}
	return s
}
