package core

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// ResultKind enumerates what a payment facilitator can answer.
type ResultKind int

const (
	// ResultChallenge means no valid credential was supplied yet,
	// the facilitator describes how to pay.
	ResultChallenge ResultKind = iota
	// ResultSettled means the credential was verified and the payment executed.
	ResultSettled
	// ResultRejected means a credential was supplied but it is invalid or insufficient.
	ResultRejected
)

func (k ResultKind) String() string {
	switch k {
	case ResultChallenge:
		return "challenge"
	case ResultSettled:
		return "settled"
	case ResultRejected:
		return "rejected"
	}
	return "unknown"
}

// PaymentRequest is what a facilitator needs to either challenge or settle a payment.
type PaymentRequest struct {
	ResourceURL string
	Method      string
	Description string
	PayTo       string
	Asset       Asset
	// Amount is in the smallest unit of Asset.
	Amount decimal.Decimal
	// Credential is the raw X-PAYMENT header, nil if the client did not send one.
	Credential *string
}

// FacilitatorResult is a facilitator answer.
// StatusCode, Header and Body are passed to the client verbatim for challenges and rejections.
type FacilitatorResult struct {
	Kind       ResultKind
	StatusCode int
	Header     http.Header
	Body       []byte
	// Receipt is a loosely-typed JSON object, set for ResultSettled only.
	Receipt []byte
	// Reason explains a rejection.
	Reason string
}
