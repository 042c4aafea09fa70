package status

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/arnac-io/paygate/pkg/core"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// View is the client facing status of an invoice.
type View struct {
	InvoiceID     string
	Status        core.InvoiceStatus
	Amount        decimal.Decimal
	Currency      string
	PayeeAddress  string
	PayerAddress  *string
	SettlementRef *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// PaymentConfirmed, PaymentURL and DisplayAmount are set only for paid invoices
	// with a settlement reference.
	PaymentConfirmed bool
	PaymentURL       string
	DisplayAmount    string
}

// Projector turns invoices into status views.
type Projector struct {
	assets core.Assets
}

func NewProjector(assets core.Assets) Projector {
	return Projector{assets: assets}
}

// Project is a pure function of the invoice.
func (p Projector) Project(invoice core.Invoice) View {
	view := View{
		InvoiceID:     invoice.ID,
		Status:        invoice.Status,
		Amount:        invoice.Amount,
		Currency:      invoice.Currency,
		PayeeAddress:  invoice.PayeeAddress,
		PayerAddress:  invoice.PayerAddress,
		SettlementRef: invoice.SettlementRef,
		CreatedAt:     invoice.CreatedAt,
		UpdatedAt:     invoice.UpdatedAt,
	}
	if invoice.IsPaid() && invoice.SettlementRef != nil {
		view.PaymentConfirmed = true
		view.PaymentURL = invoice.PaymentURL
		view.DisplayAmount = p.DisplayAmount(invoice.Amount, invoice.Currency)
	}
	return view
}

// DisplayAmount formats an amount in the smallest unit of currency for humans.
func (p Projector) DisplayAmount(units decimal.Decimal, currency string) string {
	asset, err := p.assets.Get(currency)
	if err != nil {
		return units.String() + " " + currency
	}
	return FormatTokens(units, asset.Decimals, asset.Symbol)
}

func (v View) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("invoiceId")
	e.Str(v.InvoiceID)
	e.FieldStart("status")
	e.Str(string(v.Status))
	e.FieldStart("amount")
	e.Str(v.Amount.String())
	e.FieldStart("currency")
	e.Str(v.Currency)
	e.FieldStart("payeeAddress")
	e.Str(v.PayeeAddress)
	if v.PayerAddress != nil {
		e.FieldStart("payerAddress")
		e.Str(*v.PayerAddress)
	}
	if v.SettlementRef != nil {
		e.FieldStart("settlementRef")
		e.Str(*v.SettlementRef)
	}
	e.FieldStart("createdAt")
	e.Str(FormatTime(v.CreatedAt))
	e.FieldStart("updatedAt")
	e.Str(FormatTime(v.UpdatedAt))
	if v.PaymentConfirmed {
		e.FieldStart("paymentConfirmed")
		e.Bool(true)
		e.FieldStart("paymentUrl")
		e.Str(v.PaymentURL)
		e.FieldStart("displayAmount")
		e.Str(v.DisplayAmount)
	}
	e.ObjEnd()
}

func (v View) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	v.Encode(&e)
	return e.Bytes(), nil
}

// FormatTime renders timestamps the way status views do.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
