package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

func TestSingleQuestionResearchFinishes(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, singleQ("q1", true, "A", "B"))

	snap := e.Snapshot()
	assert.Equal(t, model.SessionSubmitted, snap.State)
	require.NotNil(t, snap.Question)
	assert.Equal(t, "q1", snap.Question.ID)
	assert.Nil(t, snap.StartedAt)

	snap = dispatch(t, e, SelectAnswer{Answers: []string{"A"}})
	assert.NotNil(t, snap.StartedAt)
	assert.Equal(t, []string{"A"}, snap.Record.Answers)

	snap = dispatch(t, e, Answer{})
	assert.True(t, snap.Finished)
	assert.Equal(t, model.SessionFinished, snap.State)
	assert.Nil(t, snap.Question)
	assert.Nil(t, snap.Record)
	assert.False(t, snap.EventSenderError)
	assert.Zero(t, snap.PendingEvents)
	require.Len(t, snap.AnswerStack, 1)
	assert.Equal(t, []string{"A"}, snap.AnswerStack[0].Answers)

	assert.Equal(t, []model.EventType{
		model.EventResearchLoad,
		model.EventResearchStart,
		model.EventResearchAnswer,
		model.EventResearchFinish,
	}, sender.types())

	answerEv := sender.delivered[2].Payload
	assert.Equal(t, "r1", answerEv.ResearchID)
	assert.Equal(t, 7, answerEv.Revision)
	assert.Equal(t, "s1", answerEv.SessionID)
	assert.Equal(t, "test-app", answerEv.AppName)
	require.NotNil(t, answerEv.QuestionID)
	assert.Equal(t, "q1", *answerEv.QuestionID)
	require.NotNil(t, answerEv.QuestionType)
	assert.Equal(t, "single", *answerEv.QuestionType)
	require.NotNil(t, answerEv.Answers)
	assert.Contains(t, *answerEv.Answers, `"answers":["A"]`)

	finishEv := sender.delivered[3].Payload
	assert.Nil(t, finishEv.QuestionID)
	assert.Nil(t, finishEv.Answers)
}

func TestAdvanceToSecondQuestion(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, singleQ("q1", true, "A", "B"), singleQ("q2", true, "C", "D"))

	dispatch(t, e, SelectAnswer{Answers: []string{"B"}})
	snap := dispatch(t, e, Answer{})

	assert.Equal(t, model.SessionSubmitted, snap.State)
	assert.False(t, snap.Finished)
	require.Len(t, snap.AnswerStack, 2)
	require.NotNil(t, snap.Question)
	assert.Equal(t, "q2", snap.Question.ID)
	assert.Equal(t, "q2", snap.Record.QuestionID)
	assert.Empty(t, snap.Record.Answers)
}

func TestPrototypeClickReachesTarget(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, prototypeQ("p1"))

	snap := e.Snapshot()
	require.Len(t, snap.Record.ScreenVisits, 1)
	assert.Equal(t, "S1", snap.Record.ScreenVisits[0].ScreenID)
	assert.NotNil(t, snap.Record.StartTs)

	snap = dispatch(t, e, Click{X: 10, Y: 10})
	assert.True(t, snap.Record.Completed)
	require.Len(t, snap.Record.ScreenVisits, 2)
	assert.Equal(t, "S1", snap.Record.ScreenVisits[0].ScreenID)
	assert.Equal(t, "S2", snap.Record.ScreenVisits[1].ScreenID)
	assert.NotNil(t, snap.Record.ScreenVisits[0].EndTs)
	require.Len(t, snap.Record.ScreenVisits[0].Clicks, 1)
	assert.Equal(t, "a1", *snap.Record.ScreenVisits[0].Clicks[0].AreaID)

	snap = dispatch(t, e, Answer{})
	assert.Nil(t, snap.ValidationError)
	assert.True(t, snap.Finished)

	rec := snap.AnswerStack[0]
	assert.True(t, rec.Completed)
	assert.False(t, rec.GivenUp)
	assert.NotNil(t, rec.EndTs)
	assert.NotNil(t, rec.ScreenVisits[1].EndTs)
}

func TestPrototypeMisclickDoesNotNavigate(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, prototypeQ("p1"))

	snap := dispatch(t, e, Click{X: 500, Y: 500})
	require.Len(t, snap.Record.ScreenVisits, 1)
	assert.Equal(t, "S1", snap.Record.ScreenVisits[0].ScreenID)
	require.Len(t, snap.Record.ScreenVisits[0].Clicks, 1)
	assert.Nil(t, snap.Record.ScreenVisits[0].Clicks[0].AreaID)
	assert.False(t, snap.Record.Completed)

	snap = dispatch(t, e, Answer{})
	assert.Equal(t, model.SessionSubmitted, snap.State)
	require.NotNil(t, snap.ValidationError)
	assert.Contains(t, *snap.ValidationError, "not completed")
	assert.Len(t, snap.AnswerStack, 1)
	assert.NotContains(t, sender.types(), model.EventResearchAnswer)
}

func TestSendFailureRequiresRetry(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	sender := &fakeSender{fail: func(ev model.PendingEvent, _ int) bool {
		return ev.Payload.Type == model.EventResearchAnswer && down.Load()
	}}
	e := newTestEngine(t, sender, singleQ("q1", true, "A"), singleQ("q2", true, "B"))

	dispatch(t, e, SelectAnswer{Answers: []string{"A"}})
	snap := dispatch(t, e, Answer{})
	assert.Equal(t, model.SessionEventSenderError, snap.State)
	assert.True(t, snap.EventSenderError)
	assert.Equal(t, "q1", snap.Question.ID)
	assert.Len(t, snap.AnswerStack, 1)
	assert.Equal(t, 1, snap.PendingEvents)

	for _, in := range []Intent{SelectAnswer{Answers: []string{"A"}}, Answer{}, Skip{}} {
		_, err := e.Dispatch(context.Background(), in)
		assert.ErrorIs(t, err, ErrDeliveryFailed, in.Kind())
		assert.ErrorIs(t, err, ErrIntentRejected, in.Kind())
	}

	pending := e.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventFailed, pending[0].Status)
	assert.Equal(t, "collector unavailable", pending[0].LastError)
	failedID := pending[0].ID

	down.Store(false)
	snap = dispatch(t, e, RetryEventSending{})
	assert.Equal(t, model.SessionSubmitted, snap.State)
	assert.False(t, snap.EventSenderError)
	assert.Equal(t, "q2", snap.Question.ID)
	assert.Len(t, snap.AnswerStack, 2)

	var answerAttempts []model.PendingEvent
	for _, ev := range sender.attempts {
		if ev.Payload.Type == model.EventResearchAnswer {
			answerAttempts = append(answerAttempts, ev)
		}
	}
	require.Len(t, answerAttempts, 2)
	assert.Equal(t, failedID, answerAttempts[0].ID)
	assert.Equal(t, answerAttempts[0].ID, answerAttempts[1].ID)
	assert.Equal(t, answerAttempts[0].Payload, answerAttempts[1].Payload)
	assert.Equal(t, 2, answerAttempts[1].Attempts)

	_, err := e.Dispatch(context.Background(), RetryEventSending{})
	assert.ErrorIs(t, err, ErrIntentRejected)
}

func TestLastSelectionWins(t *testing.T) {
	e := newTestEngine(t, &fakeSender{}, multipleQ("q1", true, "a", "b", "c"), singleQ("q2", false, "x"))

	dispatch(t, e, SelectAnswer{Answers: []string{"a", "b"}})
	dispatch(t, e, SelectAnswer{Answers: []string{"c"}})
	dispatch(t, e, SelectAnswer{Answers: []string{"b", "a", "b"}})
	snap := dispatch(t, e, Answer{})

	assert.Equal(t, []string{"b", "a"}, snap.AnswerStack[0].Answers)
}

func TestAnswerStackGrowsByOnePerStep(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender,
		singleQ("q1", false, "a"),
		ratingQ("q2", true, 1, 5),
		freeTextQ("q3", false, 20),
		multipleQ("q4", false, "x", "y"),
	)

	steps := [][]Intent{
		{SelectAnswer{Answers: []string{"a"}}, Answer{}},
		{SelectAnswer{Answers: []string{"4"}}, Answer{}},
		{Skip{}},
		{Answer{}},
	}
	for i, step := range steps {
		before := e.Snapshot()
		require.Len(t, before.AnswerStack, i+1)
		var snap model.SessionSnapshot
		for _, in := range step {
			snap = dispatch(t, e, in)
		}
		if i < len(steps)-1 {
			assert.Len(t, snap.AnswerStack, i+2)
		} else {
			assert.Len(t, snap.AnswerStack, i+1)
			assert.True(t, snap.Finished)
		}
		// records already on the stack never change position
		for j := range before.AnswerStack {
			assert.Equal(t, before.AnswerStack[j].QuestionID, snap.AnswerStack[j].QuestionID)
		}
	}
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, stackIDs(e.Snapshot()))
}

func TestFinishedIsTerminal(t *testing.T) {
	e := newTestEngine(t, &fakeSender{}, freeTextQ("q1", false, 0))
	final := dispatch(t, e, Answer{})
	require.True(t, final.Finished)

	intents := []Intent{
		SelectAnswer{Answers: []string{"late"}},
		Answer{},
		Skip{},
		Click{X: 1, Y: 1},
		RetryEventSending{},
	}
	for _, in := range intents {
		snap, err := e.Dispatch(context.Background(), in)
		assert.ErrorIs(t, err, ErrFinished, in.Kind())
		assert.Empty(t, cmp.Diff(final, snap, cmpopts.IgnoreFields(model.SessionSnapshot{}, "UpdatedAt")), in.Kind())
	}
}

func TestFailedFinishCanBeRetried(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	sender := &fakeSender{fail: func(ev model.PendingEvent, _ int) bool {
		return ev.Payload.Type == model.EventResearchFinish && down.Load()
	}}
	e := newTestEngine(t, sender, freeTextQ("q1", false, 0))

	snap := dispatch(t, e, Answer{})
	assert.True(t, snap.Finished)
	assert.True(t, snap.EventSenderError)
	assert.Equal(t, 1, snap.PendingEvents)

	down.Store(false)
	snap = dispatch(t, e, RetryEventSending{})
	assert.True(t, snap.Finished)
	assert.False(t, snap.EventSenderError)
	assert.Zero(t, snap.PendingEvents)

	_, err := e.Dispatch(context.Background(), RetryEventSending{})
	assert.ErrorIs(t, err, ErrFinished)
	assertUniqueKeys(t, sender.keys())
}

func TestLoadFailureDoesNotBlockRespondent(t *testing.T) {
	sender := &fakeSender{fail: func(_ model.PendingEvent, attempt int) bool { return attempt == 1 }}
	e := newTestEngine(t, sender, singleQ("q1", true, "A"))

	snap := e.Snapshot()
	assert.Equal(t, model.SessionSubmitted, snap.State)
	assert.False(t, snap.EventSenderError)
	assert.Equal(t, 1, snap.PendingEvents)

	dispatch(t, e, SelectAnswer{Answers: []string{"A"}})
	snap = dispatch(t, e, Answer{})
	assert.True(t, snap.Finished)
	assert.Equal(t, []model.EventType{
		model.EventResearchLoad,
		model.EventResearchStart,
		model.EventResearchAnswer,
		model.EventResearchFinish,
	}, sender.types())
	assertUniqueKeys(t, sender.keys())
}

func TestStartWithoutResearchIsRejected(t *testing.T) {
	sender := &fakeSender{}
	e := New(nil, sender, WithSessionID("s1"))

	snap, err := e.Start(context.Background())
	require.ErrorIs(t, err, ErrIntentRejected)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, model.SessionStart, snap.State)
	assert.Nil(t, snap.Question)
	assert.Empty(t, sender.types())

	_, err = e.Dispatch(context.Background(), Answer{})
	assert.ErrorIs(t, err, ErrIntentRejected)
}

func TestOptionalRatingOutOfRangeAdvances(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, ratingQ("r1", false, 1, 5), singleQ("q2", false, "A"))

	dispatch(t, e, SelectAnswer{Answers: []string{"9"}})
	snap := dispatch(t, e, Answer{})
	assert.Nil(t, snap.ValidationError)
	require.NotNil(t, snap.Question)
	assert.Equal(t, "q2", snap.Question.ID)

	dispatch(t, e, SelectAnswer{Answers: []string{"unknown"}})
	snap = dispatch(t, e, Answer{})
	assert.True(t, snap.Finished)
}

func TestValidationErrorIsLocal(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, singleQ("q1", true, "A", "B"))

	snap := dispatch(t, e, Answer{})
	require.NotNil(t, snap.ValidationError)
	assert.Equal(t, model.SessionSubmitted, snap.State)
	assert.Equal(t, []model.EventType{model.EventResearchLoad}, sender.types())

	snap = dispatch(t, e, SelectAnswer{Answers: []string{"B"}})
	assert.Nil(t, snap.ValidationError)

	snap = dispatch(t, e, Answer{})
	assert.True(t, snap.Finished)
}

func TestSkip(t *testing.T) {
	t.Run("optional question", func(t *testing.T) {
		e := newTestEngine(t, &fakeSender{}, singleQ("q1", false, "A"), singleQ("q2", true, "B"))
		dispatch(t, e, SelectAnswer{Answers: []string{"A"}})
		snap := dispatch(t, e, Skip{})

		assert.Equal(t, "q2", snap.Question.ID)
		assert.True(t, snap.AnswerStack[0].GivenUp)
		assert.Nil(t, snap.AnswerStack[0].Answers)
	})

	t.Run("required question", func(t *testing.T) {
		e := newTestEngine(t, &fakeSender{}, singleQ("q1", true, "A"))
		before := e.Snapshot()
		snap, err := e.Dispatch(context.Background(), Skip{})

		assert.ErrorIs(t, err, ErrIntentRejected)
		assert.Equal(t, before.State, snap.State)
		assert.False(t, snap.Record.GivenUp)
	})

	t.Run("prototype give up", func(t *testing.T) {
		sender := &fakeSender{}
		e := newTestEngine(t, sender, prototypeQ("p1"))
		dispatch(t, e, Click{X: 500, Y: 500})
		snap := dispatch(t, e, Skip{})

		require.True(t, snap.Finished)
		rec := snap.AnswerStack[0]
		assert.True(t, rec.GivenUp)
		assert.False(t, rec.Completed)
		assert.NotNil(t, rec.EndTs)
		assert.Contains(t, sender.types(), model.EventResearchAnswer)
	})

	t.Run("completed prototype", func(t *testing.T) {
		e := newTestEngine(t, &fakeSender{}, prototypeQ("p1"))
		dispatch(t, e, Click{X: 10, Y: 10})
		_, err := e.Dispatch(context.Background(), Skip{})
		assert.ErrorIs(t, err, ErrIntentRejected)
	})
}

func TestIntentTypeMismatch(t *testing.T) {
	e := newTestEngine(t, &fakeSender{}, singleQ("q1", true, "A"), prototypeQ("p1"))

	_, err := e.Dispatch(context.Background(), Click{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrIntentRejected)

	dispatch(t, e, SelectAnswer{Answers: []string{"A"}})
	dispatch(t, e, Answer{})

	_, err = e.Dispatch(context.Background(), SelectAnswer{Answers: []string{"A"}})
	assert.ErrorIs(t, err, ErrIntentRejected)
}

func TestInternalIntentsAreNotDispatchable(t *testing.T) {
	e := newTestEngine(t, &fakeSender{}, singleQ("q1", true, "A"))
	for _, in := range []Intent{start{}, beginSend{}, sendDone{eventID: "x"}} {
		_, err := e.Dispatch(context.Background(), in)
		assert.ErrorIs(t, err, ErrIntentRejected, in.Kind())
	}
}

func TestPrototypeReplayIsDeterministic(t *testing.T) {
	clicks := []Click{{X: 500, Y: 5}, {X: 101, Y: 10}, {X: 99, Y: 49}}
	run := func() []model.AnswerRecord {
		e := newTestEngine(t, &fakeSender{}, prototypeQ("p1"))
		for _, c := range clicks {
			dispatch(t, e, c)
		}
		// the task is closed once the target screen is reached
		_, err := e.Dispatch(context.Background(), Click{X: 1, Y: 1})
		require.ErrorIs(t, err, ErrIntentRejected)
		return e.Snapshot().AnswerStack
	}

	first, second := run(), run()
	assert.Empty(t, cmp.Diff(first, second))
	require.Len(t, first[0].ScreenVisits, 2)
	assert.Len(t, first[0].ScreenVisits[0].Clicks, 3)
	assert.Empty(t, first[0].ScreenVisits[1].Clicks)
	assert.True(t, first[0].Completed)
}

func TestDanglingEdgeIsLoggedNotFollowed(t *testing.T) {
	q := prototypeQ("p1")
	q.Screens[0].Areas = append(q.Screens[0].Areas, model.Area{
		ID:           "broken",
		Rect:         model.Rect{X: 200, Y: 200, Width: 10, Height: 10},
		GoToScreenID: strptr("removed"),
	})

	core, logs := observer.New(zapcore.WarnLevel)
	env := testEnv()
	e := New(compile(t, q), &fakeSender{}, WithClock(env.Now), WithIDGenerator(env.NewID), WithLogger(zap.New(core)))
	_, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("prototype area points at a missing screen").Len())

	snap := dispatch(t, e, Click{X: 205, Y: 205})
	require.Len(t, snap.Record.ScreenVisits, 1)
	assert.False(t, snap.Record.Completed)
	assert.Equal(t, "broken", *snap.Record.ScreenVisits[0].Clicks[0].AreaID)

	entries := logs.FilterMessage("click on area with missing target screen").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "removed", entries[0].ContextMap()["target"])
}

func TestSingleEventInFlight(t *testing.T) {
	release := make(chan struct{})
	sending := make(chan struct{}, 1)
	var inFlight, maxInFlight atomic.Int32

	sender := &fakeSender{}
	blocking := senderFunc(func(ctx context.Context, ev model.PendingEvent) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		if ev.Payload.Type == model.EventResearchAnswer {
			sending <- struct{}{}
			<-release
		}
		return sender.Send(ctx, ev)
	})

	env := testEnv()
	e := New(compile(t, singleQ("q1", true, "A"), singleQ("q2", true, "B")), blocking,
		WithClock(env.Now), WithIDGenerator(env.NewID))
	_, err := e.Start(context.Background())
	require.NoError(t, err)
	dispatch(t, e, SelectAnswer{Answers: []string{"A"}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := e.Dispatch(context.Background(), Answer{})
		assert.NoError(t, err)
	}()

	select {
	case <-sending:
	case <-time.After(5 * time.Second):
		t.Fatal("answer event was never sent")
	}

	assert.Equal(t, model.SessionSubmitting, e.Snapshot().State)
	for _, in := range []Intent{Answer{}, SelectAnswer{Answers: []string{"A"}}, Skip{}, RetryEventSending{}} {
		_, err := e.Dispatch(context.Background(), in)
		assert.ErrorIs(t, err, ErrBusy, in.Kind())
	}

	close(release)
	wg.Wait()

	snap := e.Snapshot()
	assert.Equal(t, "q2", snap.Question.ID)
	assert.Len(t, snap.AnswerStack, 2)
	assert.EqualValues(t, 1, maxInFlight.Load())
	assertUniqueKeys(t, sender.keys())
}

type senderFunc func(ctx context.Context, ev model.PendingEvent) error

func (f senderFunc) Send(ctx context.Context, ev model.PendingEvent) error { return f(ctx, ev) }

func stackIDs(s model.SessionSnapshot) []string {
	ids := make([]string, 0, len(s.AnswerStack))
	for _, r := range s.AnswerStack {
		ids = append(ids, r.QuestionID)
	}
	return ids
}

func assertUniqueKeys(t *testing.T, keys []string) {
	t.Helper()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		assert.False(t, seen[k], "dedup key %s delivered twice", k)
		seen[k] = true
	}
}
