package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arnac-io/paygate/internal/g"
	"github.com/arnac-io/paygate/pkg/core"
)

var assets = core.Assets{
	"MNEE": {Symbol: "MNEE", Decimals: 18},
}

func invoice(status core.InvoiceStatus, payer, ref *string) core.Invoice {
	return core.Invoice{
		ID:            "AB12CD34EF",
		Amount:        decimal.RequireFromString("1500000000000000000"),
		Currency:      "MNEE",
		Status:        status,
		PayeeAddress:  "0xM",
		PayerAddress:  payer,
		SettlementRef: ref,
		PaymentURL:    "http://pos.test/pay/AB12CD34EF",
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestProjector_Project(t *testing.T) {
	tests := []struct {
		name    string
		invoice core.Invoice
		want    string
	}{
		{
			name:    "pending",
			invoice: invoice(core.InvoiceStatusPending, nil, nil),
			want:    `{"invoiceId":"AB12CD34EF","status":"pending","amount":"1500000000000000000","currency":"MNEE","payeeAddress":"0xM","createdAt":"2025-03-01T10:00:00.000Z","updatedAt":"2025-03-01T10:05:00.000Z"}`,
		},
		{
			name:    "paid",
			invoice: invoice(core.InvoiceStatusPaid, g.Pointer("0xC"), g.Pointer("Q-1")),
			want:    `{"invoiceId":"AB12CD34EF","status":"paid","amount":"1500000000000000000","currency":"MNEE","payeeAddress":"0xM","payerAddress":"0xC","settlementRef":"Q-1","createdAt":"2025-03-01T10:00:00.000Z","updatedAt":"2025-03-01T10:05:00.000Z","paymentConfirmed":true,"paymentUrl":"http://pos.test/pay/AB12CD34EF","displayAmount":"1.5 MNEE"}`,
		},
		{
			name:    "paid without payer",
			invoice: invoice(core.InvoiceStatusPaid, nil, g.Pointer("payment-confirmed")),
			want:    `{"invoiceId":"AB12CD34EF","status":"paid","amount":"1500000000000000000","currency":"MNEE","payeeAddress":"0xM","settlementRef":"payment-confirmed","createdAt":"2025-03-01T10:00:00.000Z","updatedAt":"2025-03-01T10:05:00.000Z","paymentConfirmed":true,"paymentUrl":"http://pos.test/pay/AB12CD34EF","displayAmount":"1.5 MNEE"}`,
		},
		{
			name:    "paid without reference is not confirmed",
			invoice: invoice(core.InvoiceStatusPaid, g.Pointer("0xC"), nil),
			want:    `{"invoiceId":"AB12CD34EF","status":"paid","amount":"1500000000000000000","currency":"MNEE","payeeAddress":"0xM","payerAddress":"0xC","createdAt":"2025-03-01T10:00:00.000Z","updatedAt":"2025-03-01T10:05:00.000Z"}`,
		},
	}
	p := NewProjector(assets)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := json.Marshal(p.Project(tt.invoice))
			require.Nil(t, err)
			require.Equal(t, tt.want, string(first))

			second, err := json.Marshal(p.Project(tt.invoice))
			require.Nil(t, err)
			require.Equal(t, first, second)
		})
	}
}

func TestProjector_DisplayAmount(t *testing.T) {
	p := NewProjector(assets)
	require.Equal(t, "1 000 000 MNEE", p.DisplayAmount(decimal.RequireFromString("1000000000000000000000000"), "MNEE"))
	require.Equal(t, "42 XYZ", p.DisplayAmount(decimal.NewFromInt(42), "XYZ"))
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		units    string
		decimals int32
		want     string
	}{
		{units: "0", decimals: 18, want: "0 MNEE"},
		{units: "1000000000000000000", decimals: 18, want: "1 MNEE"},
		{units: "1249000000000000000", decimals: 18, want: "1.24 MNEE"},
		{units: "33000944000000000000000", decimals: 18, want: "33 000 MNEE"},
		{units: "143945000000000", decimals: 18, want: "0.000143 MNEE"},
		{units: "-33000000000000000000000", decimals: 18, want: "-33 000 MNEE"},
		{units: "1000000", decimals: 6, want: "1 MNEE"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, FormatTokens(decimal.RequireFromString(tt.units), tt.decimals, "MNEE"))
		})
	}
}
