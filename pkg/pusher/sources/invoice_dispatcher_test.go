package sources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/internal/g"
	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/status"
)

func Test_invoiceDispatcher_SubscribeToInvoice(t *testing.T) {
	tests := []struct {
		name         string
		invoices     []string
		wantInvoices map[string]map[subscriberID]struct{}
	}{
		{
			name:     "one invoice",
			invoices: []string{"AAAAAAAAAA"},
			wantInvoices: map[string]map[subscriberID]struct{}{
				"AAAAAAAAAA": {1: {}},
			},
		},
		{
			name:     "several subscribers",
			invoices: []string{"AAAAAAAAAA", "BBBBBBBBBB", "AAAAAAAAAA"},
			wantInvoices: map[string]map[subscriberID]struct{}{
				"AAAAAAAAAA": {1: {}, 3: {}},
				"BBBBBBBBBB": {2: {}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := NewInvoiceDispatcher(zap.L(), status.NewProjector(nil))
			var cancels []CancelFn
			for _, invoiceID := range tt.invoices {
				cancelFn := disp.SubscribeToInvoice(context.Background(), invoiceID, func(eventData []byte) {})
				require.NotNil(t, cancelFn)
				cancels = append(cancels, cancelFn)
			}
			invoices := map[string]map[subscriberID]struct{}{}
			for invoiceID, subscribers := range disp.invoices {
				invoices[invoiceID] = map[subscriberID]struct{}{}
				for id := range subscribers {
					invoices[invoiceID][id] = struct{}{}
				}
			}
			require.Equal(t, tt.wantInvoices, invoices)

			for _, cancel := range cancels {
				cancel()
			}
			require.Equal(t, 0, len(disp.invoices))
		})
	}
}

func Test_invoiceDispatcher_Run(t *testing.T) {
	disp := NewInvoiceDispatcher(zap.L(), status.NewProjector(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Run(ctx)

	var mu sync.Mutex
	var received []string
	disp.SubscribeToInvoice(ctx, "AAAAAAAAAA", func(eventData []byte) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(eventData))
	})
	disp.SubscribeToInvoice(ctx, "BBBBBBBBBB", func(eventData []byte) {
		t.Errorf("unexpected event for another invoice: %s", eventData)
	})

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	disp.InvoicePaid(core.Invoice{
		ID:            "AAAAAAAAAA",
		Amount:        decimal.NewFromInt(5),
		Currency:      "MNEE",
		Status:        core.InvoiceStatusPaid,
		PayeeAddress:  "0xM",
		SettlementRef: g.Pointer("Q-1"),
		CreatedAt:     created,
		UpdatedAt:     created,
	})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, received[0], `"invoiceId":"AAAAAAAAAA"`)
	require.Contains(t, received[0], `"paymentConfirmed":true`)
}
