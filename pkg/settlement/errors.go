package settlement

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound = errors.New("invoice not found")
	// ErrFacilitatorUnavailable means the payment facilitator is not configured,
	// unreachable or answered unexpectedly. The invoice stays pending.
	ErrFacilitatorUnavailable = errors.New("payment facilitator unavailable")
)

// RejectedError is a refused payment attempt.
// The facilitator's status, headers and body are meant to be passed to the client as is.
type RejectedError struct {
	Reason     string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment rejected: %v", e.Reason)
}

// StoreError is a failure of the invoice store.
type StoreError struct {
	Op        string
	InvoiceID string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("invoice store %v %v: %v", e.Op, e.InvoiceID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
