package api

import (
	"context"

	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/invoicing"
	"github.com/arnac-io/paygate/pkg/settlement"
	"github.com/arnac-io/paygate/pkg/status"
)

type storage interface {
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	// ListInvoicesByPayee returns invoices of a payee, newest first.
	ListInvoicesByPayee(ctx context.Context, payee string, limit int) ([]core.Invoice, error)
}

type invoiceService interface {
	Create(ctx context.Context, req invoicing.CreateRequest) (core.Invoice, error)
}

type settler interface {
	Settle(ctx context.Context, invoiceID string, credential *string) (settlement.Outcome, error)
}

type projector interface {
	Project(invoice core.Invoice) status.View
}
