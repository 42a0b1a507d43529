// Package payload builds the flat, destination-specific body forwarded to
// the CRM webhook. Composition is pure: no I/O, deterministic for a given
// lead, so this is the unit-test boundary for payload shape.
package payload

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-api/internal/contact"
	"github.com/sells-group/lead-api/internal/model"
)

// DefaultLeadScore is the fixed score the destination expects on every
// website lead; scoring proper happens CRM-side.
const DefaultLeadScore = 5

var titleCaser = cases.Title(language.AmericanEnglish)

// Composer builds outbound payloads. Source is the fixed attribution label
// for this site, injected from config.
type Composer struct {
	Source string
}

// Compose produces the flat key/value payload for one lead. The destination
// form-binds by field name, so the map stays single-level; nested request
// structures are flattened or joined here.
func (c Composer) Compose(lead *model.Lead, tokens model.AttributionTokens, req *model.SubmitRequest) map[string]any {
	snap := lead.Answers.Contact
	quiz := lead.Answers.QuizAnswers
	calc := lead.Answers.CalculatedResults

	firstName := titleCaser.String(strings.ToLower(strings.TrimSpace(snap.FirstName)))
	lastName := titleCaser.String(strings.ToLower(strings.TrimSpace(snap.LastName)))

	p := map[string]any{
		"firstName":  firstName,
		"lastName":   lastName,
		"name":       strings.TrimSpace(firstName + " " + lastName),
		"email":      snap.Email,
		"phone":      contact.FormatUS(snap.Phone),
		"phoneLast4": contact.LastFour(snap.Phone),
		"source":     c.Source,
		"funnelType": string(lead.FunnelType),
		"sessionId":  lead.SessionID,
		"leadScore":  DefaultLeadScore,
	}

	c.addAddress(p, lead, quiz)

	for k, v := range lead.Answers.UTMParams {
		if v == "" {
			continue
		}
		switch k {
		case "utm_source", "utmSource":
			p["utmSource"] = v
		case "utm_medium", "utmMedium":
			p["utmMedium"] = v
		case "utm_campaign", "utmCampaign":
			p["utmCampaign"] = v
		case "utm_term", "utmTerm":
			p["utmTerm"] = v
		case "utm_content", "utmContent":
			p["utmContent"] = v
		}
	}

	if tokens.TrustedFormCertURL != "" {
		p["trustedFormCertUrl"] = tokens.TrustedFormCertURL
	}
	if tokens.JornayaLeadID != "" {
		p["jornayaLeadId"] = tokens.JornayaLeadID
	}

	if lead.Referrer != "" {
		p["referrer"] = lead.Referrer
	}
	if lead.LandingPage != "" {
		p["landingPage"] = lead.LandingPage
	}

	switch lead.FunnelType {
	case model.FunnelReverseMortgage:
		c.addReverseMortgage(p, quiz, calc, snap)
	case model.FunnelFinalExpense:
		c.addFinalExpense(p, quiz, calc)
	default:
		c.addAnnuity(p, quiz, calc)
	}

	applyAliases(p)
	return p
}

// addAddress emits full address components when the quiz collected them,
// otherwise ZIP only.
func (c Composer) addAddress(p map[string]any, lead *model.Lead, quiz map[string]any) {
	street := pick(quiz, "streetAddress", "address")
	city := pick(quiz, "city")
	state := lead.State
	zip := lead.Zip
	if zip == "" {
		zip = lead.Answers.Contact.Zip
	}

	if zip != "" {
		p["zip"] = zip
	}
	if state != "" {
		p["state"] = state
	}
	if lead.StateName != "" {
		p["stateName"] = lead.StateName
	}
	if street != "" && city != "" {
		p["address"] = street
		p["city"] = city
		full := street + ", " + city
		if state != "" {
			full += ", " + state
		}
		if zip != "" {
			full += " " + zip
		}
		p["fullAddress"] = full
	}
}
