package lead

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/resilience"
	"github.com/sells-group/lead-api/internal/store"
)

// Requirement declares which attribution tokens gate CRM forwarding.
// Only the certificate is ever a hard requirement; the consent id is
// best-effort and must not block dispatch.
type Requirement struct {
	Certificate bool
	ConsentID   bool
}

// Poller waits for the compliance certificate that a third-party browser
// script writes into the lead row asynchronously. The cross-actor race is
// the whole reason this type exists: the submission often arrives before
// the certificate has reached durable storage.
type Poller struct {
	store       store.Store
	maxAttempts int
	delay       time.Duration
	clock       clockwork.Clock
}

// NewPoller creates a Poller. maxAttempts and delay fall back to the
// resilience defaults (10 x 500ms) when zero.
func NewPoller(s store.Store, maxAttempts int, delay time.Duration, clock clockwork.Clock) *Poller {
	return &Poller{store: s, maxAttempts: maxAttempts, delay: delay, clock: clock}
}

// Await polls the lead's attribution columns until the certificate appears
// or the configured attempts run out. It returns the freshest tokens seen and
// whether the requirement was satisfied. Exhaustion is not an error; the
// caller degrades to a partial-success outcome.
func (p *Poller) Await(ctx context.Context, leadID string, current model.AttributionTokens, req Requirement) (model.AttributionTokens, bool) {
	if !req.Certificate || current.HasCertificate() {
		return current, true
	}

	cfg := resilience.PollConfig{
		MaxAttempts: p.maxAttempts,
		Delay:       p.delay,
		Clock:       p.clock,
		OnAttempt: func(attempt int) {
			zap.L().Debug("polling lead attribution",
				zap.String("lead_id", leadID),
				zap.Int("attempt", attempt),
			)
		},
	}

	tokens, resolved := resilience.Poll(ctx, cfg, func(ctx context.Context) (model.AttributionTokens, bool, error) {
		t, err := p.store.GetLeadAttribution(ctx, leadID)
		if err != nil {
			return model.AttributionTokens{}, false, err
		}
		return t, t.HasCertificate(), nil
	})

	merged := tokens.Merge(current)
	if !resolved {
		zap.L().Warn("attribution polling exhausted without certificate",
			zap.String("lead_id", leadID),
			zap.Int("attempts", cfg.MaxAttempts),
		)
		return merged, false
	}
	return merged, true
}

// MissingFields lists the required token fields still absent from t,
// using the outbound field names the funnel UI reports to operators.
func (req Requirement) MissingFields(t model.AttributionTokens) []string {
	var missing []string
	if req.Certificate && !t.HasCertificate() {
		missing = append(missing, "trustedFormCertUrl")
	}
	if req.ConsentID && t.JornayaLeadID == "" {
		missing = append(missing, "jornayaLeadId")
	}
	return missing
}
