package core

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// invoiceIDBytes gives a 10 character hex id.
const invoiceIDBytes = 5

// Invoice is a payment request created by a merchant.
// Amount is expressed in the smallest unit of Currency.
type Invoice struct {
	ID           string
	Amount       decimal.Decimal
	Currency     string
	Status       InvoiceStatus
	PayeeAddress string
	// PayerAddress and SettlementRef are nil until the invoice gets paid.
	PayerAddress  *string
	SettlementRef *string
	PaymentURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (i Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// Settlement describes the pending -> paid transition of an invoice.
type Settlement struct {
	Ref          string
	PayerAddress *string
	SettledAt    time.Time
}

// Apply returns a copy of the invoice moved to the paid state.
// A paid invoice is returned unchanged.
func (i Invoice) Apply(s Settlement) Invoice {
	if i.IsPaid() {
		return i
	}
	ref := s.Ref
	i.Status = InvoiceStatusPaid
	i.SettlementRef = &ref
	if s.PayerAddress != nil {
		payer := *s.PayerAddress
		i.PayerAddress = &payer
	}
	i.UpdatedAt = s.SettledAt
	return i
}

func NewInvoiceID() (string, error) {
	b := make([]byte, invoiceIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return NormalizeInvoiceID(hex.EncodeToString(b)), nil
}

// NormalizeInvoiceID brings a user supplied id to the form invoices are stored with.
func NormalizeInvoiceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
