package invoicestore

import (
	"context"

	"github.com/arnac-io/paygate/pkg/cache"
	"github.com/arnac-io/paygate/pkg/core"
)

// Store keeps invoices.
type Store interface {
	CreateInvoice(ctx context.Context, invoice core.Invoice) error
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error)
	ListInvoicesByPayee(ctx context.Context, payee string, limit int) ([]core.Invoice, error)
}

// Cached serves paid invoices from an LRU cache.
// Only paid invoices are cached, paid is a terminal state.
// Pending invoices are always read from the underlying store.
type Cached struct {
	Store
	paid *cache.Cache[string, core.Invoice]
}

func NewCached(b Store, size int) *Cached {
	return &Cached{
		Store: b,
		paid:  cache.NewLRUCache[string, core.Invoice](size, "paid_invoices"),
	}
}

func (c *Cached) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	if invoice, ok := c.paid.Get(id); ok {
		return invoice, nil
	}
	invoice, err := c.Store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	if invoice.IsPaid() {
		c.paid.Set(id, invoice)
	}
	return invoice, nil
}

func (c *Cached) MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error) {
	invoice, updated, err := c.Store.MarkInvoicePaid(ctx, id, settlement)
	if err == nil && updated {
		c.paid.Set(id, invoice)
	}
	return invoice, updated, err
}
