package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/invoicestore"
	"github.com/arnac-io/paygate/pkg/invoicing"
	"github.com/arnac-io/paygate/pkg/settlement"
	"github.com/arnac-io/paygate/pkg/status"
)

const testBaseURL = "http://pay.example"

var testAssets = core.Assets{
	"MNEE": {
		Symbol:   "MNEE",
		Address:  "0x8ccedbAe4916b79da7F3F612EfB2EB93A2bFD6cF",
		Decimals: 18,
		Network:  "ethereum",
		Domain: core.SignatureDomain{
			Name:    "MNEE",
			Version: "1",
			Scheme:  core.SchemePermit,
		},
	},
}

type mockSettler struct {
	OnSettle func(invoiceID string, credential *string) (settlement.Outcome, error)
}

func (m *mockSettler) Settle(ctx context.Context, invoiceID string, credential *string) (settlement.Outcome, error) {
	return m.OnSettle(invoiceID, credential)
}

type mockFacilitator struct {
	OnProcess func(req core.PaymentRequest) (core.FacilitatorResult, error)
}

func (m *mockFacilitator) Process(ctx context.Context, req core.PaymentRequest) (core.FacilitatorResult, error) {
	return m.OnProcess(req)
}

type testEnv struct {
	store   *invoicestore.MemoryStore
	handler *Handler
}

func newTestEnv(t *testing.T, s settler) *testEnv {
	store := invoicestore.NewMemoryStore()
	if s == nil {
		s = settlement.NewOrchestrator(zap.L(), store, testAssets, testBaseURL)
	}
	h, err := NewHandler(zap.L(),
		WithStorage(store),
		WithInvoiceService(invoicing.NewService(zap.L(), store, testAssets, testBaseURL, "MNEE")),
		WithSettler(s),
		WithProjector(status.NewProjector(testAssets)),
		WithLimits(Limits{ListLimit: 10}))
	require.Nil(t, err)
	return &testEnv{store: store, handler: h}
}

func (env *testEnv) server(t *testing.T, opts ...ServerOption) http.Handler {
	server, err := NewServer(zap.L(), env.handler, ":0", opts...)
	require.Nil(t, err)
	return server.Handler()
}

func (env *testEnv) addInvoice(t *testing.T, id string, payee string, created time.Time) core.Invoice {
	invoice := core.Invoice{
		ID:           id,
		Amount:       decimal.RequireFromString("1000000000000000000"),
		Currency:     "MNEE",
		Status:       core.InvoiceStatusPending,
		PayeeAddress: payee,
		PaymentURL:   testBaseURL + "/pay/" + id,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.Nil(t, env.store.CreateInvoice(context.Background(), invoice))
	return invoice
}
