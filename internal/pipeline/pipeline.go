// Package pipeline wires the submission flow end to end: contact
// resolution, lead upsert, attribution polling, payload composition,
// webhook dispatch, and outcome reporting.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/analytics"
	"github.com/sells-group/lead-api/internal/contact"
	"github.com/sells-group/lead-api/internal/lead"
	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/payload"
	"github.com/sells-group/lead-api/internal/store"
	"github.com/sells-group/lead-api/internal/webhook"
)

// Pipeline runs one lead submission per call. There is no shared mutable
// state between requests; the durable store is the only shared resource,
// and all access goes through upsert-by-unique-key operations.
type Pipeline struct {
	store      store.Store
	contacts   *contact.Resolver
	leads      *lead.Coordinator
	poller     *lead.Poller
	composer   payload.Composer
	dispatcher *webhook.Dispatcher
	analytics  analytics.Fanout
}

// New assembles a Pipeline from its collaborators.
func New(s store.Store, resolver *contact.Resolver, coordinator *lead.Coordinator, poller *lead.Poller, composer payload.Composer, dispatcher *webhook.Dispatcher, fanout analytics.Fanout) *Pipeline {
	return &Pipeline{
		store:      s,
		contacts:   resolver,
		leads:      coordinator,
		poller:     poller,
		composer:   composer,
		dispatcher: dispatcher,
		analytics:  fanout,
	}
}

// Submit processes one submission. The returned error is either a
// *ValidationError or a *PersistenceError; every downstream failure
// (attribution exhaustion, webhook timeout or rejection) degrades to a
// 200 partial-success response because the lead is already durable.
func (p *Pipeline) Submit(ctx context.Context, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	if req.Email == "" {
		return nil, &ValidationError{Msg: "email is required"}
	}
	if req.PhoneNumber == "" {
		return nil, &ValidationError{Msg: "phoneNumber is required"}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	funnel := model.ParseFunnelType(req.FunnelType)

	ct, err := p.contacts.Resolve(ctx, req.Email, req.FirstName, req.LastName, req.PhoneNumber, req.ZipCode)
	if err != nil {
		return nil, &PersistenceError{Code: "CONTACT_RESOLVE", Err: err}
	}

	ld, err := p.leads.Upsert(ctx, lead.UpsertParams{
		Contact:           ct,
		SessionID:         sessionID,
		Funnel:            funnel,
		Verified:          req.IsVerified,
		Zip:               req.ZipCode,
		State:             req.State,
		StateName:         req.StateName,
		QuizAnswers:       req.QuizAnswers,
		CalculatedResults: req.CalculatedResults,
		LicensingInfo:     req.LicensingInfo,
		UTMParams:         req.UTMParams,
		Tokens:            req.Tokens(),
		FallbackEmail:     contact.NormalizeEmail(req.Email),
		FallbackPhone:     contact.NormalizePhone(req.PhoneNumber),
		FallbackFirstName: req.FirstName,
		FallbackLastName:  req.LastName,
	})
	if err != nil {
		return nil, &PersistenceError{Code: "LEAD_UPSERT", Err: err}
	}

	p.analytics.Emit(analytics.Event{
		Type:      "lead_submitted",
		SessionID: sessionID,
		LeadID:    ld.ID,
		Funnel:    funnel,
		Referrer:  ld.Referrer,
	})

	requirement := lead.Requirement{Certificate: funnel.RequiresAttribution()}
	tokens := ld.Attribution.Merge(req.Tokens())
	tokens, resolved := p.poller.Await(ctx, ld.ID, tokens, requirement)
	if !resolved {
		return p.reportSkipped(ctx, ld, requirement.MissingFields(tokens)), nil
	}

	body := p.composer.Compose(ld, tokens, req)
	outcome := p.dispatcher.Dispatch(ctx, funnel, body)
	return p.report(ctx, ld, outcome), nil
}

// reportSkipped records that CRM forwarding was withheld for want of the
// compliance certificate. The lead stays saved; an external reconciliation
// job can find these rows by dispatch_status.
func (p *Pipeline) reportSkipped(ctx context.Context, ld *model.Lead, missing []string) *model.SubmitResponse {
	outcome := model.DispatchOutcome{Skipped: true}
	p.persistOutcome(ctx, ld.ID, outcome)

	return &model.SubmitResponse{
		Success:       true,
		LeadSaved:     true,
		LeadID:        ld.ID,
		ContactID:     ld.ContactID,
		Warning:       "attribution certificate unavailable, CRM dispatch skipped",
		MissingFields: missing,
		Message:       "Lead saved",
	}
}

// report persists the dispatch outcome onto the lead and maps it to the
// API response. Lead capture and CRM forwarding are reported
// independently: the funnel UI advances on LeadSaved alone.
func (p *Pipeline) report(ctx context.Context, ld *model.Lead, outcome model.DispatchOutcome) *model.SubmitResponse {
	p.persistOutcome(ctx, ld.ID, outcome)

	resp := &model.SubmitResponse{
		Success:   true,
		LeadSaved: true,
		LeadID:    ld.ID,
		ContactID: ld.ContactID,
		GHLStatus: outcome.StatusCode,
	}
	switch {
	case outcome.Success:
		resp.Message = "Lead saved and forwarded to CRM"
	case outcome.TimedOut:
		resp.Error = "webhook timeout"
		resp.Message = "Lead saved"
	default:
		resp.Error = "webhook failed"
		resp.Message = "Lead saved"
	}
	return resp
}

// persistOutcome is fire-and-forget relative to the HTTP response: an
// audit-write failure never changes what the caller sees.
func (p *Pipeline) persistOutcome(ctx context.Context, leadID string, outcome model.DispatchOutcome) {
	if outcome.DispatchedAt.IsZero() {
		outcome.DispatchedAt = time.Now().UTC()
	}
	if err := p.store.UpdateLeadDispatch(ctx, leadID, outcome); err != nil {
		zap.L().Warn("failed to persist dispatch outcome",
			zap.String("lead_id", leadID),
			zap.String("status", outcome.Status()),
			zap.Error(err),
		)
	}
}
