package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/telemetry"
)

// Engine runs one respondent session. It owns the Machine, feeds intents
// through Transition and performs the requested effects.
// At most one telemetry event is in flight at any time.
type Engine struct {
	mu      sync.Mutex
	machine Machine

	sendMu sync.Mutex
	sender telemetry.Sender

	env    Env
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*engineOptions)

type engineOptions struct {
	env       Env
	logger    *zap.Logger
	sessionID string
	appName   string
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.env.Now = now }
}

// WithIDGenerator overrides event and visit id generation
func WithIDGenerator(newID func() string) Option {
	return func(o *engineOptions) { o.env.NewID = newID }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithSessionID sets the session id stamped on telemetry events
func WithSessionID(id string) Option {
	return func(o *engineOptions) { o.sessionID = id }
}

// WithAppName sets the app name stamped on telemetry events
func WithAppName(name string) Option {
	return func(o *engineOptions) { o.appName = name }
}

// New creates an engine in the Start state. Call Start to begin the session.
func New(c *Compiled, sender telemetry.Sender, opts ...Option) *Engine {
	o := engineOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	logger := o.logger.Named("engine").With(zap.String("session_id", o.sessionID))
	if c != nil {
		logger = logger.With(zap.String("research", c.Research().Key()))
	}
	return &Engine{
		machine: NewMachine(c, o.sessionID, o.appName),
		sender:  sender,
		env:     o.env,
		logger:  logger,
	}
}

// SessionID returns the id of the running session
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.sessionID
}

// Start presents the first question and schedules research-load.
// A failed research-load delivery does not block the respondent.
func (e *Engine) Start(ctx context.Context) (model.SessionSnapshot, error) {
	if e.machine.compiled != nil {
		for _, d := range e.machine.compiled.Dangling() {
			e.logger.Warn("prototype area points at a missing screen",
				zap.String("question_id", d.QuestionID),
				zap.String("screen_id", d.ScreenID),
				zap.String("area_id", d.AreaID),
				zap.String("target", d.Target),
			)
		}
	}
	return e.dispatch(ctx, start{})
}

// Dispatch applies a respondent intent and returns the resulting view.
// Rejected intents leave the session unchanged and return an error wrapping ErrIntentRejected.
func (e *Engine) Dispatch(ctx context.Context, in Intent) (model.SessionSnapshot, error) {
	switch in.(type) {
	case start, beginSend, sendDone:
		return e.Snapshot(), rejected("%s is not a respondent intent", in.Kind())
	}
	return e.dispatch(ctx, in)
}

// Snapshot returns the current view
func (e *Engine) Snapshot() model.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Snapshot(e.env.now())
}

// Pending returns the undelivered telemetry events
func (e *Engine) Pending() []model.PendingEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Pending()
}

func (e *Engine) dispatch(ctx context.Context, in Intent) (model.SessionSnapshot, error) {
	effects, err := e.apply(in)
	if err != nil {
		e.logger.Debug("intent rejected", zap.String("intent", in.Kind()), zap.Error(err))
		return e.Snapshot(), err
	}
	e.run(ctx, effects)
	return e.Snapshot(), nil
}

func (e *Engine) apply(in Intent) ([]Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.machine.state
	next, effects, err := Transition(e.machine, in, e.env)
	if err != nil {
		return nil, err
	}
	e.machine = next
	if prev != next.state {
		e.logger.Debug("state changed",
			zap.String("intent", in.Kind()),
			zap.Stringer("from", prev),
			zap.Stringer("to", next.state),
		)
	}
	return effects, nil
}

func (e *Engine) run(ctx context.Context, effects []Effect) {
	for len(effects) > 0 {
		eff := effects[0]
		effects = effects[1:]

		switch eff.Kind {
		case EffectFlush:
			effects = append(effects, e.flush(ctx)...)
		case EffectDanglingEdge:
			e.logger.Warn("click on area with missing target screen",
				zap.String("question_id", eff.Edge.QuestionID),
				zap.String("screen_id", eff.Edge.ScreenID),
				zap.String("area_id", eff.Edge.AreaID),
				zap.String("target", eff.Edge.Target),
			)
		case EffectDeliveryFailed:
			e.logger.Warn("telemetry delivery failed",
				zap.String("event_id", eff.Event.ID),
				zap.String("type", string(eff.Event.Payload.Type)),
				zap.Int("attempts", eff.Event.Attempts),
				zap.Error(eff.Err),
			)
		}
	}
}

// flush sends pending events head first until the queue drains, a send fails
// or the machine stops asking for more. The state lock is released during a send.
func (e *Engine) flush(ctx context.Context) []Effect {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	var rest []Effect
	for {
		effects, err := e.apply(beginSend{})
		if err != nil {
			return rest
		}
		ev, ok := sendEffect(effects)
		if !ok {
			return rest
		}

		sendErr := e.sender.Send(ctx, ev)

		effects, err = e.apply(sendDone{eventID: ev.ID, err: sendErr})
		if err != nil {
			return rest
		}
		more := false
		for _, eff := range effects {
			if eff.Kind == EffectFlush {
				more = true
				continue
			}
			rest = append(rest, eff)
		}
		if !more {
			return rest
		}
	}
}

func sendEffect(effects []Effect) (model.PendingEvent, bool) {
	for _, eff := range effects {
		if eff.Kind == EffectSend {
			return eff.Event, true
		}
	}
	return model.PendingEvent{}, false
}
