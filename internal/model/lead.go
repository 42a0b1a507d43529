package model

import "time"

// AttributionTokens are the compliance artifacts written asynchronously by
// third-party browser scripts. The certificate URL is a hard requirement for
// mortgage funnels; the consent id is best-effort and never blocks dispatch.
type AttributionTokens struct {
	TrustedFormCertURL string `json:"trusted_form_cert_url,omitempty"`
	JornayaLeadID      string `json:"jornaya_lead_id,omitempty"`
}

// HasCertificate reports whether the required certificate is present.
// An empty string is treated the same as absent.
func (t AttributionTokens) HasCertificate() bool {
	return t.TrustedFormCertURL != ""
}

// Merge fills empty fields of t from other, preferring existing values.
func (t AttributionTokens) Merge(other AttributionTokens) AttributionTokens {
	if t.TrustedFormCertURL == "" {
		t.TrustedFormCertURL = other.TrustedFormCertURL
	}
	if t.JornayaLeadID == "" {
		t.JornayaLeadID = other.JornayaLeadID
	}
	return t
}

// DispatchOutcome records the result of a single webhook dispatch attempt.
// It is persisted onto the lead row for auditing, never as its own entity.
type DispatchOutcome struct {
	StatusCode   int       `json:"status_code,omitempty"`
	Success      bool      `json:"success"`
	TimedOut     bool      `json:"timed_out,omitempty"`
	Skipped      bool      `json:"skipped,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	Error        string    `json:"error,omitempty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Status returns the string persisted into leads.dispatch_status.
func (o DispatchOutcome) Status() string {
	switch {
	case o.Skipped:
		return "skipped:attribution"
	case o.TimedOut:
		return "timeout"
	case o.Success:
		return "sent"
	default:
		return "failed"
	}
}

// LeadAnswers is the structured blob stored on the lead row: raw quiz
// answers merged with calculated results, licensing info, UTM parameters,
// the contact snapshot, and attribution tokens.
type LeadAnswers struct {
	QuizAnswers       map[string]any    `json:"quiz_answers,omitempty"`
	CalculatedResults map[string]any    `json:"calculated_results,omitempty"`
	LicensingInfo     map[string]any    `json:"licensing_info,omitempty"`
	UTMParams         map[string]string `json:"utm_params,omitempty"`
	Contact           ContactSnapshot   `json:"contact"`
	Attribution       AttributionTokens `json:"attribution,omitempty"`
}

// Lead is one funnel attempt. At most one row exists per
// (contact_id, session_id) pair; resubmission under the same session merges
// into the same row.
type Lead struct {
	ID          string      `json:"id"`
	ContactID   string      `json:"contact_id"`
	SessionID   string      `json:"session_id"`
	FunnelType  FunnelType  `json:"funnel_type"`
	Verified    bool        `json:"verified"`
	Zip         string      `json:"zip,omitempty"`
	State       string      `json:"state,omitempty"`
	StateName   string      `json:"state_name,omitempty"`
	Referrer    string      `json:"referrer,omitempty"`
	LandingPage string      `json:"landing_page,omitempty"`
	Answers     LeadAnswers `json:"answers"`

	// Attribution fields duplicated at top level for indexability.
	Attribution AttributionTokens `json:"attribution"`

	DispatchStatus  string     `json:"dispatch_status,omitempty"`
	DispatchSuccess bool       `json:"dispatch_success"`
	DispatchError   string     `json:"dispatch_error,omitempty"`
	DispatchedAt    *time.Time `json:"dispatched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionEvent is one entry in the session-scoped event trail. The pipeline
// reads the most recent event for referrer/landing-page enrichment and
// appends a lead_submitted event after a successful upsert.
type SessionEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	EventType   string    `json:"event_type"`
	Referrer    string    `json:"referrer,omitempty"`
	LandingPage string    `json:"landing_page,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
