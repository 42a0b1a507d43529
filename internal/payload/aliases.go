package payload

// The destination webhook binds fields by form-control name, and its form
// versions disagree on naming: some expect camelCase, some snake_case.
// Rather than assigning each variant ad hoc, every canonical field that
// needs duplicates is declared here once and expanded by applyAliases.
var destinationAliases = map[string][]string{
	// UTM parameters
	"utmSource":   {"utm_source"},
	"utmMedium":   {"utm_medium"},
	"utmCampaign": {"utm_campaign"},
	"utmTerm":     {"utm_term"},
	"utmContent":  {"utm_content"},

	// Attribution tokens
	"trustedFormCertUrl": {"trusted_form_cert_url", "xxTrustedFormCertUrl"},
	"jornayaLeadId":      {"jornaya_lead_id", "universal_leadid"},

	// Reverse-mortgage buyer fields
	"buyerFirstName": {"buyer_first_name"},
	"buyerLastName":  {"buyer_last_name"},
	"buyerEmail":     {"buyer_email"},
	"buyerPhone":     {"buyer_phone"},
}

// applyAliases copies every canonical key present in p onto its declared
// alias names. Canonical keys always remain in the payload.
func applyAliases(p map[string]any) {
	for canonical, aliases := range destinationAliases {
		v, ok := p[canonical]
		if !ok {
			continue
		}
		for _, alias := range aliases {
			p[alias] = v
		}
	}
}
