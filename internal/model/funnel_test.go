package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFunnelType(t *testing.T) {
	tests := []struct {
		in   string
		want FunnelType
	}{
		{"annuity", FunnelAnnuity},
		{"final-expense", FunnelFinalExpense},
		{"reverse-mortgage", FunnelReverseMortgage},
		{"reverse-mortgage-calculator", FunnelReverseMortgage},
		{"", FunnelOther},
		{"something-new", FunnelOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseFunnelType(tt.in), "input %q", tt.in)
	}
}

func TestRequiresAttribution(t *testing.T) {
	assert.True(t, FunnelReverseMortgage.RequiresAttribution())
	assert.False(t, FunnelAnnuity.RequiresAttribution())
	assert.False(t, FunnelFinalExpense.RequiresAttribution())
	assert.False(t, FunnelOther.RequiresAttribution())
}

func TestAttributionTokensMerge(t *testing.T) {
	have := AttributionTokens{TrustedFormCertURL: "https://cert.trustedform.com/abc"}
	incoming := AttributionTokens{TrustedFormCertURL: "https://cert.trustedform.com/other", JornayaLeadID: "jl-1"}

	merged := have.Merge(incoming)
	assert.Equal(t, "https://cert.trustedform.com/abc", merged.TrustedFormCertURL, "existing value wins")
	assert.Equal(t, "jl-1", merged.JornayaLeadID, "empty field filled")
}

func TestDispatchOutcomeStatus(t *testing.T) {
	assert.Equal(t, "sent", DispatchOutcome{Success: true}.Status())
	assert.Equal(t, "timeout", DispatchOutcome{TimedOut: true}.Status())
	assert.Equal(t, "skipped:attribution", DispatchOutcome{Skipped: true}.Status())
	assert.Equal(t, "failed", DispatchOutcome{}.Status())
}
