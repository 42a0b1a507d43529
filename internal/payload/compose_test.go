package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-api/internal/model"
)

func sampleLead(funnel model.FunnelType, quiz, calc map[string]any) *model.Lead {
	return &model.Lead{
		SessionID:  "sess-1",
		FunnelType: funnel,
		Zip:        "33101",
		State:      "FL",
		StateName:  "Florida",
		Answers: model.LeadAnswers{
			QuizAnswers:       quiz,
			CalculatedResults: calc,
			UTMParams:         map[string]string{"utm_source": "google", "utm_campaign": "retire2026"},
			Contact: model.ContactSnapshot{
				Email:     "jane@example.com",
				Phone:     "+15551234567",
				FirstName: "jane",
				LastName:  "DOE",
				Zip:       "33101",
			},
		},
	}
}

func TestCompose_CommonFields(t *testing.T) {
	c := Composer{Source: "website-quiz"}
	p := c.Compose(sampleLead(model.FunnelAnnuity, nil, nil), model.AttributionTokens{}, nil)

	assert.Equal(t, "Jane", p["firstName"], "names are title-cased")
	assert.Equal(t, "Doe", p["lastName"])
	assert.Equal(t, "Jane Doe", p["name"])
	assert.Equal(t, "jane@example.com", p["email"])
	assert.Equal(t, "(555) 123-4567", p["phone"])
	assert.Equal(t, "4567", p["phoneLast4"])
	assert.Equal(t, "website-quiz", p["source"])
	assert.Equal(t, "annuity", p["funnelType"])
	assert.Equal(t, "sess-1", p["sessionId"])
	assert.Equal(t, DefaultLeadScore, p["leadScore"])
	assert.Equal(t, "33101", p["zip"])
	assert.Equal(t, "FL", p["state"])
	assert.Equal(t, "Florida", p["stateName"])
}

func TestCompose_UTMAliases(t *testing.T) {
	c := Composer{Source: "website-quiz"}
	p := c.Compose(sampleLead(model.FunnelAnnuity, nil, nil), model.AttributionTokens{}, nil)

	assert.Equal(t, "google", p["utmSource"])
	assert.Equal(t, "google", p["utm_source"], "snake_case duplicate kept for older form versions")
	assert.Equal(t, "retire2026", p["utmCampaign"])
	assert.Equal(t, "retire2026", p["utm_campaign"])
	_, ok := p["utmMedium"]
	assert.False(t, ok, "absent UTM parameters stay absent")
}

func TestCompose_AttributionTokenAliases(t *testing.T) {
	c := Composer{Source: "website-quiz"}
	tokens := model.AttributionTokens{
		TrustedFormCertURL: "https://cert.trustedform.com/abc",
		JornayaLeadID:      "lead-xyz",
	}
	p := c.Compose(sampleLead(model.FunnelReverseMortgage, nil, nil), tokens, nil)

	assert.Equal(t, tokens.TrustedFormCertURL, p["trustedFormCertUrl"])
	assert.Equal(t, tokens.TrustedFormCertURL, p["trusted_form_cert_url"])
	assert.Equal(t, tokens.TrustedFormCertURL, p["xxTrustedFormCertUrl"])
	assert.Equal(t, tokens.JornayaLeadID, p["jornayaLeadId"])
	assert.Equal(t, tokens.JornayaLeadID, p["jornaya_lead_id"])
	assert.Equal(t, tokens.JornayaLeadID, p["universal_leadid"])
}

func TestCompose_FullAddressWhenStreetAndCity(t *testing.T) {
	c := Composer{Source: "website-quiz"}
	quiz := map[string]any{"streetAddress": "100 Main St", "city": "Miami"}
	p := c.Compose(sampleLead(model.FunnelAnnuity, quiz, nil), model.AttributionTokens{}, nil)

	assert.Equal(t, "100 Main St", p["address"])
	assert.Equal(t, "Miami", p["city"])
	assert.Equal(t, "100 Main St, Miami, FL 33101", p["fullAddress"])
}

func TestCompose_ReverseMortgage(t *testing.T) {
	c := Composer{Source: "website-quiz"}

	t.Run("qualified when 62 plus", func(t *testing.T) {
		quiz := map[string]any{
			"age62Plus":       true,
			"propertyValue":   "$450,000",
			"mortgageBalance": float64(120000),
			"propertyType":    "single-family",
		}
		calc := map[string]any{"estimatedEquity": float64(330000)}
		p := c.Compose(sampleLead(model.FunnelReverseMortgage, quiz, calc), model.AttributionTokens{}, nil)

		assert.Equal(t, "qualified", p["status"])
		assert.Equal(t, float64(450000), p["propertyValue"], "dollar strings parse as numbers")
		assert.Equal(t, float64(120000), p["mortgageBalance"])
		assert.Equal(t, float64(330000), p["estimatedEquity"])
		assert.Equal(t, "single-family", p["propertyType"])
		assert.Equal(t, "Jane", p["buyerFirstName"])
		assert.Equal(t, "Jane", p["buyer_first_name"])
		assert.Equal(t, "jane@example.com", p["buyerEmail"])
		assert.Equal(t, "(555) 123-4567", p["buyerPhone"])
	})

	t.Run("DQ when under 62", func(t *testing.T) {
		quiz := map[string]any{"age62Plus": false}
		p := c.Compose(sampleLead(model.FunnelReverseMortgage, quiz, nil), model.AttributionTokens{}, nil)
		assert.Equal(t, "DQ", p["status"])
	})

	t.Run("qualified when age answer missing", func(t *testing.T) {
		p := c.Compose(sampleLead(model.FunnelReverseMortgage, map[string]any{}, nil), model.AttributionTokens{}, nil)
		assert.Equal(t, "qualified", p["status"], "absent answer never disqualifies")
	})
}

func TestCompose_FinalExpense(t *testing.T) {
	c := Composer{Source: "website-quiz"}

	t.Run("coverage from quiz answer", func(t *testing.T) {
		quiz := map[string]any{
			"coverageAmount": float64(10000),
			"ageRange":       "65-74",
			"tobaccoUse":     "no",
			"beneficiary":    "spouse",
		}
		p := c.Compose(sampleLead(model.FunnelFinalExpense, quiz, nil), model.AttributionTokens{}, nil)

		assert.Equal(t, float64(10000), p["coverageAmount"])
		assert.Equal(t, "65-74", p["ageRange"])
		assert.Equal(t, "no", p["tobaccoUse"])
		assert.Equal(t, "spouse", p["beneficiary"])
	})

	t.Run("coverage falls back to calculated", func(t *testing.T) {
		calc := map[string]any{"recommendedCoverage": float64(15000)}
		p := c.Compose(sampleLead(model.FunnelFinalExpense, nil, calc), model.AttributionTokens{}, nil)
		assert.Equal(t, float64(15000), p["coverageAmount"])
	})
}

func TestCompose_Annuity(t *testing.T) {
	c := Composer{Source: "website-quiz"}

	t.Run("structured allocation unwraps", func(t *testing.T) {
		quiz := map[string]any{
			"retirementSavings": float64(250000),
			"allocationPercent": map[string]any{"percentage": float64(40), "amount": float64(100000)},
			"currentPlans":      []any{"401k", "IRA"},
			"riskTolerance":     "moderate",
		}
		p := c.Compose(sampleLead(model.FunnelAnnuity, quiz, nil), model.AttributionTokens{}, nil)

		assert.Equal(t, float64(250000), p["retirementSavings"])
		assert.Equal(t, float64(40), p["allocationPercent"])
		assert.Equal(t, float64(100000), p["allocationAmount"])
		assert.Equal(t, "401k, IRA", p["currentPlans"])
		assert.Equal(t, "moderate", p["riskTolerance"])
	})

	t.Run("scalar allocation passes through", func(t *testing.T) {
		quiz := map[string]any{"allocationPercent": float64(25)}
		p := c.Compose(sampleLead(model.FunnelAnnuity, quiz, nil), model.AttributionTokens{}, nil)

		assert.Equal(t, float64(25), p["allocationPercent"])
		_, ok := p["allocationAmount"]
		assert.False(t, ok)
	})

	t.Run("projected income from range parts", func(t *testing.T) {
		calc := map[string]any{
			"projectedIncomeLow":  float64(1200),
			"projectedIncomeHigh": float64(1800),
		}
		p := c.Compose(sampleLead(model.FunnelAnnuity, nil, calc), model.AttributionTokens{}, nil)
		assert.Equal(t, "$1200-$1800", p["projectedIncome"])
	})

	t.Run("unknown funnel uses annuity shape", func(t *testing.T) {
		quiz := map[string]any{"retirementSavings": float64(50000)}
		p := c.Compose(sampleLead(model.FunnelOther, quiz, nil), model.AttributionTokens{}, nil)
		assert.Equal(t, float64(50000), p["retirementSavings"])
	})
}

func TestValueHelpers(t *testing.T) {
	v, ok := num("$1,000")
	require.True(t, ok)
	assert.Equal(t, float64(1000), v)

	_, ok = num("not a number")
	assert.False(t, ok)

	assert.True(t, truthy("Yes"))
	assert.True(t, truthy(float64(1)))
	assert.False(t, truthy("no"))
	assert.False(t, truthy(nil))

	assert.Equal(t, "a, b", joinList([]string{"a", "b"}))
	assert.Equal(t, "", joinList(nil))
	assert.Equal(t, "1000", str(float64(1000)), "whole floats render without decimal")
}
