package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// CollectorClient POSTs telemetry events to the collector endpoint.
// It never retries on its own; retries are driven by the respondent.
type CollectorClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCollectorClient creates a collector client
func NewCollectorClient(url string, timeout time.Duration, logger *zap.Logger) *CollectorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CollectorClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("collector"),
	}
}

// Send implements Sender
func (c *CollectorClient) Send(ctx context.Context, ev model.PendingEvent) error {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.ID)
	req.Header.Set("X-Dedup-Key", ev.DedupKey)

	c.logger.Debug("sending event",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Payload.Type)),
		zap.Int("attempt", ev.Attempts))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("collector request failed", zap.String("event_id", ev.ID), zap.Error(err))
		return fmt.Errorf("collector request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("collector rejected event",
			zap.String("event_id", ev.ID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}
