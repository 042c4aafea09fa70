package invoicestore

import (
	"context"
	"strings"

	"github.com/puzpuzpuz/xsync/v2"
	"golang.org/x/exp/slices"

	"github.com/arnac-io/paygate/pkg/core"
)

// MemoryStore keeps invoices in process memory.
// It is meant for development and tests, everything is lost on restart.
type MemoryStore struct {
	invoices *xsync.MapOf[string, core.Invoice]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: xsync.NewMapOf[core.Invoice]()}
}

func (s *MemoryStore) CreateInvoice(ctx context.Context, invoice core.Invoice) error {
	if _, loaded := s.invoices.LoadOrStore(invoice.ID, invoice); loaded {
		return core.ErrEntityExists
	}
	return nil
}

func (s *MemoryStore) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	invoice, ok := s.invoices.Load(id)
	if !ok {
		return core.Invoice{}, core.ErrEntityNotFound
	}
	return invoice, nil
}

// MarkInvoicePaid moves a pending invoice to the paid state.
// The second return value is false if the invoice does not exist or is not pending,
// in that case nothing is changed.
func (s *MemoryStore) MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error) {
	applied := false
	updated, _ := s.invoices.Compute(id, func(old core.Invoice, loaded bool) (core.Invoice, bool) {
		if !loaded {
			return old, true
		}
		if old.Status != core.InvoiceStatusPending {
			return old, false
		}
		applied = true
		return old.Apply(settlement), false
	})
	if !applied {
		return core.Invoice{}, false, nil
	}
	return updated, true, nil
}

func (s *MemoryStore) ListInvoicesByPayee(ctx context.Context, payee string, limit int) ([]core.Invoice, error) {
	var invoices []core.Invoice
	s.invoices.Range(func(_ string, invoice core.Invoice) bool {
		if strings.EqualFold(invoice.PayeeAddress, payee) {
			invoices = append(invoices, invoice)
		}
		return true
	})
	slices.SortFunc(invoices, func(a, b core.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}
