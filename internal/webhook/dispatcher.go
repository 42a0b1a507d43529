// Package webhook forwards composed lead payloads to the per-funnel CRM
// destination with a hard timeout and single-attempt semantics.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-api/internal/model"
)

// maxResponseBytes caps how much of the destination response is captured
// for diagnostics.
const maxResponseBytes = 16 * 1024

// Endpoints maps each funnel type to its destination URL, with a shared
// fallback for funnels without a dedicated form.
type Endpoints struct {
	ByFunnel map[model.FunnelType]string
	Fallback string
}

// URL returns the destination for a funnel, or the fallback when no
// funnel-specific URL is configured.
func (e Endpoints) URL(funnel model.FunnelType) string {
	if u, ok := e.ByFunnel[funnel]; ok && u != "" {
		return u
	}
	return e.Fallback
}

// Dispatcher issues the outbound webhook call. It never retries: the lead
// is already durable, and resubmission is safe through the upsert
// idempotency key, so at-least-once delivery is the end user's retry.
type Dispatcher struct {
	endpoints Endpoints
	client    *http.Client
	timeout   time.Duration
	limiter   *rate.Limiter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithRateLimit sets a per-second rate limit on outbound calls.
func WithRateLimit(rps float64) Option {
	return func(d *Dispatcher) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithTimeout overrides the per-dispatch hard timeout (default 10s).
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a Dispatcher for the given endpoints.
func NewDispatcher(endpoints Endpoints, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{},
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends the payload to the funnel's destination. The outcome is
// always returned, never an error: a timeout or non-2xx is recorded and
// the caller still reports lead capture as successful.
func (d *Dispatcher) Dispatch(ctx context.Context, funnel model.FunnelType, payload map[string]any) model.DispatchOutcome {
	outcome := model.DispatchOutcome{DispatchedAt: time.Now().UTC()}

	url := d.endpoints.URL(funnel)
	if url == "" {
		outcome.Error = "no webhook url configured for funnel " + string(funnel)
		return outcome
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			outcome.Error = "rate limit wait: " + err.Error()
			return outcome
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		outcome.Error = "marshal payload: " + err.Error()
		return outcome
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		outcome.Error = "build request: " + err.Error()
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			outcome.TimedOut = true
			outcome.Error = "webhook timeout"
		} else {
			outcome.Error = "webhook request: " + err.Error()
		}
		return outcome
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		zap.L().Warn("webhook response read failed",
			zap.String("funnel", string(funnel)),
			zap.Error(readErr),
		)
	}

	outcome.StatusCode = resp.StatusCode
	outcome.ResponseBody = string(respBody)
	outcome.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !outcome.Success {
		outcome.Error = "webhook failed"
	}
	return outcome
}
