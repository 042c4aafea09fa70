package settlement

import (
	"net/http"

	"github.com/arnac-io/paygate/pkg/core"
)

type OutcomeKind int

const (
	// OutcomeChallenge asks the client to pay, the invoice is untouched.
	OutcomeChallenge OutcomeKind = iota
	// OutcomePaid means this call moved the invoice to paid.
	OutcomePaid
	// OutcomeAlreadyPaid means the invoice had been paid before, nothing was charged.
	OutcomeAlreadyPaid
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeChallenge:
		return "challenge"
	case OutcomePaid:
		return "paid"
	case OutcomeAlreadyPaid:
		return "already_paid"
	}
	return "unknown"
}

// Outcome is the successful result of a settlement attempt.
type Outcome struct {
	Kind    OutcomeKind
	Invoice core.Invoice
	// SettlementRef and PayerAddress are set for OutcomePaid and OutcomeAlreadyPaid.
	SettlementRef string
	PayerAddress  *string
	// StatusCode, Header and Body are the facilitator's challenge for OutcomeChallenge.
	// For OutcomePaid Header holds the facilitator's response headers.
	StatusCode int
	Header     http.Header
	Body       []byte
}
