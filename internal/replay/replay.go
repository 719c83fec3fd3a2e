// Package replay runs an intent script against a research definition with a
// fixed clock and sequential ids, so the same input always yields the same output.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/engine"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/telemetry"
)

// Script is the list of intents to dispatch after start
type Script struct {
	Steps []model.IntentRequest `json:"steps"`
	// FailSends lists 1-based send attempts that fail
	FailSends []int `json:"failSends,omitempty"`
}

// Rejection records an intent the engine refused
type Rejection struct {
	Step   int    `json:"step"`
	Intent string `json:"intent"`
	Error  string `json:"error"`
}

// Result is the outcome of a replay
type Result struct {
	Final    model.SessionSnapshot  `json:"final"`
	Sent     []model.TelemetryEvent `json:"sent"`
	Attempts int                    `json:"attempts"`
	Rejected []Rejection            `json:"rejected,omitempty"`
}

// Options tune a replay
type Options struct {
	Start     time.Time
	Step      time.Duration
	SessionID string
	AppName   string
	Logger    *zap.Logger
}

func (o *Options) defaults() {
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.Step <= 0 {
		o.Step = time.Second
	}
	if o.SessionID == "" {
		o.SessionID = "replay"
	}
	if o.AppName == "" {
		o.AppName = "replay"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Run replays script against r
func Run(ctx context.Context, r *model.Research, script Script, opts Options) (*Result, error) {
	opts.defaults()

	compiled, err := engine.CompileResearch(r)
	if err != nil {
		return nil, err
	}

	now := opts.Start
	clock := func() time.Time {
		now = now.Add(opts.Step)
		return now
	}
	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("%s-%04d", opts.SessionID, seq)
	}

	fail := make(map[int]bool, len(script.FailSends))
	for _, n := range script.FailSends {
		fail[n] = true
	}

	res := &Result{}
	sender := telemetry.SenderFunc(func(ctx context.Context, ev model.PendingEvent) error {
		res.Attempts++
		if fail[res.Attempts] {
			return fmt.Errorf("injected failure on send %d", res.Attempts)
		}
		res.Sent = append(res.Sent, ev.Payload)
		return nil
	})

	eng := engine.New(compiled, sender,
		engine.WithClock(clock),
		engine.WithIDGenerator(newID),
		engine.WithSessionID(opts.SessionID),
		engine.WithAppName(opts.AppName),
		engine.WithLogger(opts.Logger),
	)
	if _, err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	for i, step := range script.Steps {
		in, err := engine.FromRequest(step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if _, err := eng.Dispatch(ctx, in); err != nil {
			if !errors.Is(err, engine.ErrIntentRejected) {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			res.Rejected = append(res.Rejected, Rejection{Step: i, Intent: in.Kind(), Error: err.Error()})
		}
	}

	res.Final = eng.Snapshot()
	return res, nil
}
