package model

// FunnelType identifies the product line a lead came through. It determines
// the outbound payload shape, the destination webhook URL, and whether the
// attribution certificate is required before CRM forwarding.
type FunnelType string

const (
	FunnelAnnuity         FunnelType = "annuity"
	FunnelFinalExpense    FunnelType = "final-expense"
	FunnelReverseMortgage FunnelType = "reverse-mortgage"
	FunnelOther           FunnelType = "other"
)

// ParseFunnelType maps an inbound funnel string onto the closed enum.
// Historical funnel pages sent "reverse-mortgage-calculator" for the same
// product line; both collapse onto FunnelReverseMortgage. Unknown or empty
// values fall back to FunnelOther so a misconfigured page still captures
// the lead.
func ParseFunnelType(s string) FunnelType {
	switch s {
	case "annuity", "annuity-calculator":
		return FunnelAnnuity
	case "final-expense":
		return FunnelFinalExpense
	case "reverse-mortgage", "reverse-mortgage-calculator":
		return FunnelReverseMortgage
	default:
		return FunnelOther
	}
}

// RequiresAttribution reports whether CRM forwarding for this funnel is
// contractually blocked on the call-consent certificate. Mortgage-related
// products carry the hard legal requirement; the others forward with
// whatever tokens arrived synchronously.
func (f FunnelType) RequiresAttribution() bool {
	return f == FunnelReverseMortgage
}
