package payload

import (
	"fmt"

	"github.com/sells-group/lead-api/internal/model"
)

// addReverseMortgage emits the buyer-specific fields the reverse-mortgage
// destination form expects. Qualification is a hard age gate: under 62 and
// the record is marked DQ regardless of anything else.
func (c Composer) addReverseMortgage(p map[string]any, quiz, calc map[string]any, snap model.ContactSnapshot) {
	p["buyerFirstName"] = p["firstName"]
	p["buyerLastName"] = p["lastName"]
	p["buyerEmail"] = snap.Email
	p["buyerPhone"] = p["phone"]

	if age62, ok := quiz["age62Plus"]; ok && !truthy(age62) {
		p["status"] = "DQ"
	} else {
		p["status"] = "qualified"
	}

	if v, ok := num(quiz["propertyValue"]); ok {
		p["propertyValue"] = v
	} else if v, ok := num(calc["estimatedPropertyValue"]); ok {
		p["propertyValue"] = v
	}
	if v, ok := num(quiz["mortgageBalance"]); ok {
		p["mortgageBalance"] = v
	}
	if v, ok := num(calc["estimatedEquity"]); ok {
		p["estimatedEquity"] = v
	}
	if s := pick(quiz, "propertyType"); s != "" {
		p["propertyType"] = s
	}
}

// addFinalExpense emits coverage fields. The coverage amount comes from a
// direct quiz selection when present, otherwise from the computed
// allocation in the calculated results.
func (c Composer) addFinalExpense(p map[string]any, quiz, calc map[string]any) {
	if v, ok := num(quiz["coverageAmount"]); ok {
		p["coverageAmount"] = v
	} else if v, ok := num(calc["recommendedCoverage"]); ok {
		p["coverageAmount"] = v
	}

	if s := pick(quiz, "ageRange"); s != "" {
		p["ageRange"] = s
	}
	if s := pick(quiz, "tobaccoUse", "tobacco"); s != "" {
		p["tobaccoUse"] = s
	}
	if s := pick(quiz, "beneficiary", "beneficiaryRelationship"); s != "" {
		p["beneficiary"] = s
	}
}

// addAnnuity emits retirement fields for the annuity funnel, which is also
// the default shape for unrecognized funnels. The allocation answer arrives
// either as a bare percentage or as an {percentage, amount} object from
// newer quiz versions; both unwrap to flat fields.
func (c Composer) addAnnuity(p map[string]any, quiz, calc map[string]any) {
	if v, ok := num(quiz["retirementSavings"]); ok {
		p["retirementSavings"] = v
	}
	if s := pick(quiz, "timeline", "retirementTimeline"); s != "" {
		p["timeline"] = s
	}
	if s := pick(quiz, "riskTolerance"); s != "" {
		p["riskTolerance"] = s
	}

	switch alloc := quiz["allocationPercent"].(type) {
	case map[string]any:
		if v, ok := num(alloc["percentage"]); ok {
			p["allocationPercent"] = v
		}
		if v, ok := num(alloc["amount"]); ok {
			p["allocationAmount"] = v
		}
	default:
		if v, ok := num(alloc); ok {
			p["allocationPercent"] = v
		}
	}

	if joined := joinList(quiz["currentPlans"]); joined != "" {
		p["currentPlans"] = joined
	}

	if s := pick(calc, "projectedIncomeRange"); s != "" {
		p["projectedIncome"] = s
	} else if lo, okLo := num(calc["projectedIncomeLow"]); okLo {
		if hi, okHi := num(calc["projectedIncomeHigh"]); okHi {
			p["projectedIncome"] = fmt.Sprintf("$%.0f-$%.0f", lo, hi)
		}
	}
}
