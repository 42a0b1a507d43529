package model

// SubmitRequest is the inbound body of POST /submit-lead. Email and
// PhoneNumber are required; everything else is best-effort.
type SubmitRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	FunnelType  string `json:"funnelType,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
	State       string `json:"state,omitempty"`
	StateName   string `json:"stateName,omitempty"`
	IsVerified  bool   `json:"isVerified,omitempty"`

	QuizAnswers       map[string]any    `json:"quizAnswers,omitempty"`
	CalculatedResults map[string]any    `json:"calculatedResults,omitempty"`
	LicensingInfo     map[string]any    `json:"licensingInfo,omitempty"`
	UTMParams         map[string]string `json:"utmParams,omitempty"`

	TrustedFormCertURL string `json:"trustedFormCertUrl,omitempty"`
	JornayaLeadID      string `json:"jornayaLeadId,omitempty"`
}

// Tokens collects the attribution tokens supplied synchronously on the request.
func (r *SubmitRequest) Tokens() AttributionTokens {
	return AttributionTokens{
		TrustedFormCertURL: r.TrustedFormCertURL,
		JornayaLeadID:      r.JornayaLeadID,
	}
}

// SubmitResponse is the 200 body of POST /submit-lead. Success refers to
// lead capture, never to CRM forwarding: the funnel UI advances on
// LeadSaved regardless of webhook outcome.
type SubmitResponse struct {
	Success       bool     `json:"success"`
	LeadSaved     bool     `json:"leadSaved"`
	LeadID        string   `json:"leadId,omitempty"`
	ContactID     string   `json:"contactId,omitempty"`
	GHLStatus     int      `json:"ghlStatus,omitempty"`
	Warning       string   `json:"warning,omitempty"`
	Error         string   `json:"error,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// ErrorResponse is the 4xx/5xx body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
