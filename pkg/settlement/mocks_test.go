package settlement

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/arnac-io/paygate/pkg/core"
)

type mockFacilitator struct {
	OnProcess func(req core.PaymentRequest) (core.FacilitatorResult, error)

	mu       sync.Mutex
	requests []core.PaymentRequest
	calls    atomic.Int32
}

func (m *mockFacilitator) Process(ctx context.Context, req core.PaymentRequest) (core.FacilitatorResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.OnProcess(req)
}

func settledWith(receipt string) func(req core.PaymentRequest) (core.FacilitatorResult, error) {
	return func(req core.PaymentRequest) (core.FacilitatorResult, error) {
		if req.Credential == nil {
			return challengeResult(), nil
		}
		return core.FacilitatorResult{
			Kind:       core.ResultSettled,
			StatusCode: http.StatusOK,
			Header:     http.Header{"X-Payment-Response": []string{"receipt"}},
			Receipt:    []byte(receipt),
		}, nil
	}
}

func challengeResult() core.FacilitatorResult {
	return core.FacilitatorResult{
		Kind:       core.ResultChallenge,
		StatusCode: http.StatusPaymentRequired,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"x402Version":1,"error":"X-PAYMENT header is required","accepts":[]}`),
	}
}

type mockStore struct {
	invoiceStore
	OnMarkInvoicePaid func(id string, settlement core.Settlement) (core.Invoice, bool, error)
}

func (m *mockStore) MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error) {
	if m.OnMarkInvoicePaid != nil {
		return m.OnMarkInvoicePaid(id, settlement)
	}
	return m.invoiceStore.MarkInvoicePaid(ctx, id, settlement)
}

type mockNotifier struct {
	mu   sync.Mutex
	paid []core.Invoice
}

func (m *mockNotifier) InvoicePaid(invoice core.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid = append(m.paid, invoice)
}
