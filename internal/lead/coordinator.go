// Package lead owns the durable lead row: idempotent upserts keyed by
// (contact, session) and the attribution polling that gates CRM forwarding.
package lead

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/store"
)

// UpsertParams carries everything the coordinator merges into the lead row.
type UpsertParams struct {
	Contact    *model.Contact
	SessionID  string
	Funnel     model.FunnelType
	Verified   bool
	Zip        string
	State      string
	StateName  string
	QuizAnswers       map[string]any
	CalculatedResults map[string]any
	LicensingInfo     map[string]any
	UTMParams         map[string]string
	Tokens            model.AttributionTokens

	// Fallback contact fields from the request, used for the snapshot when
	// the contact re-read races a concurrent write and comes back empty.
	FallbackEmail     string
	FallbackPhone     string
	FallbackFirstName string
	FallbackLastName  string
}

// Coordinator performs the idempotent lead upsert.
type Coordinator struct {
	store store.Store
}

// NewCoordinator creates a Coordinator backed by the given store.
func NewCoordinator(s store.Store) *Coordinator {
	return &Coordinator{store: s}
}

// Upsert creates or merges the lead for (contact, session) and returns the
// persisted row. The returned row, not the request data, is the source of
// truth downstream: the attribution script may already have populated token
// columns through its own write path.
func (c *Coordinator) Upsert(ctx context.Context, p UpsertParams) (*model.Lead, error) {
	referrer, landingPage := c.sessionTrail(ctx, p.SessionID)
	snapshot := c.contactSnapshot(ctx, p)

	lead := &model.Lead{
		ContactID:   p.Contact.ID,
		SessionID:   p.SessionID,
		FunnelType:  p.Funnel,
		Verified:    p.Verified,
		Zip:         p.Zip,
		State:       p.State,
		StateName:   p.StateName,
		Referrer:    referrer,
		LandingPage: landingPage,
		Answers: model.LeadAnswers{
			QuizAnswers:       p.QuizAnswers,
			CalculatedResults: p.CalculatedResults,
			LicensingInfo:     p.LicensingInfo,
			UTMParams:         p.UTMParams,
			Contact:           snapshot,
			Attribution:       p.Tokens,
		},
		Attribution: p.Tokens,
	}

	persisted, err := c.store.UpsertLead(ctx, lead)
	if err != nil {
		return nil, eris.Wrap(err, "lead: upsert")
	}
	return persisted, nil
}

// sessionTrail reads the most recent analytics event for the session.
// Best-effort: enrichment failures must never block lead capture.
func (c *Coordinator) sessionTrail(ctx context.Context, sessionID string) (referrer, landingPage string) {
	ev, err := c.store.LatestSessionEvent(ctx, sessionID)
	if err != nil {
		zap.L().Warn("session trail lookup failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return "", ""
	}
	if ev == nil {
		return "", ""
	}
	return ev.Referrer, ev.LandingPage
}

// contactSnapshot re-reads the contact row for the denormalized copy stored
// on the lead, falling back to request-supplied fields if the re-read fails
// or returns nothing. The snapshot is never left empty when recoverable
// data exists.
func (c *Coordinator) contactSnapshot(ctx context.Context, p UpsertParams) model.ContactSnapshot {
	fallback := model.ContactSnapshot{
		Email:     p.FallbackEmail,
		Phone:     p.FallbackPhone,
		FirstName: p.FallbackFirstName,
		LastName:  p.FallbackLastName,
		Zip:       p.Zip,
	}

	row, err := c.store.GetContactByEmail(ctx, p.Contact.Email)
	if err != nil {
		zap.L().Warn("contact snapshot re-read failed, using request fields",
			zap.String("contact_id", p.Contact.ID),
			zap.Error(err),
		)
		return fallback
	}
	if row == nil {
		return fallback
	}

	snap := model.ContactSnapshot{
		Email:     row.Email,
		Phone:     row.Phone,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Zip:       row.Zip,
	}
	// Gap-fill from the request for anything the row is still missing.
	if snap.Phone == "" {
		snap.Phone = fallback.Phone
	}
	if snap.FirstName == "" {
		snap.FirstName = fallback.FirstName
	}
	if snap.LastName == "" {
		snap.LastName = fallback.LastName
	}
	if snap.Zip == "" {
		snap.Zip = fallback.Zip
	}
	return snap
}
