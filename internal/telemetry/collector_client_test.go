package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

func TestCollectorClientSend(t *testing.T) {
	var got model.TelemetryEvent
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewCollectorClient(srv.URL, time.Second, zap.NewNop())
	ev := event("e1", model.EventResearchAnswer, "q1")
	answers := `{"questionId":"q1","answers":["a"]}`
	ev.Payload.Answers = &answers

	require.NoError(t, c.Send(context.Background(), ev))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "e1", headers.Get("Idempotency-Key"))
	assert.Equal(t, "research-answer:q1", headers.Get("X-Dedup-Key"))
	assert.Equal(t, model.EventResearchAnswer, got.Type)
	require.NotNil(t, got.Answers)
	assert.Equal(t, answers, *got.Answers)
	require.NotNil(t, got.QuestionID)
	assert.Equal(t, "q1", *got.QuestionID)
}

func TestCollectorClientNullFields(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	c := NewCollectorClient(srv.URL, time.Second, zap.NewNop())
	require.NoError(t, c.Send(context.Background(), event("e1", model.EventResearchLoad, "")))

	for _, k := range []string{"questionId", "questionType", "answers"} {
		v, ok := raw[k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
}

func TestCollectorClientNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	c := NewCollectorClient(srv.URL, time.Second, zap.New(core))

	err := c.Send(context.Background(), event("e1", model.EventResearchLoad, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 1, logs.FilterMessage("collector rejected event").Len())
}

func TestCollectorClientTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewCollectorClient(srv.URL, 50*time.Millisecond, zap.NewNop())
	err := c.Send(context.Background(), event("e1", model.EventResearchLoad, ""))
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), event("e1", model.EventResearchStart, "")))
	entries := logs.FilterMessage("telemetry event").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "research-start", entries[0].ContextMap()["type"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Send(ctx, event("e2", model.EventResearchStart, "")))
}

func TestSenderFunc(t *testing.T) {
	var called bool
	var s Sender = SenderFunc(func(ctx context.Context, ev model.PendingEvent) error {
		called = ev.ID == "e1"
		return nil
	})
	require.NoError(t, s.Send(context.Background(), event("e1", model.EventResearchLoad, "")))
	assert.True(t, called)
}
