package sources

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/status"
)

type subscriberID int64

type projector interface {
	Project(invoice core.Invoice) status.View
}

// InvoiceDispatcher implements the fan-out pattern reading paid invoices from a single channel
// and delivering their status to everyone who subscribed to a particular invoice.
type InvoiceDispatcher struct {
	logger    *zap.Logger
	projector projector
	ch        chan core.Invoice

	// mu protects "invoices" and "currentID" fields.
	mu        sync.RWMutex
	invoices  map[string]map[subscriberID]DeliveryFn
	currentID subscriberID
}

var _ InvoiceSource = (*InvoiceDispatcher)(nil)

func NewInvoiceDispatcher(logger *zap.Logger, projector projector) *InvoiceDispatcher {
	return &InvoiceDispatcher{
		logger:    logger,
		projector: projector,
		ch:        make(chan core.Invoice, 100),
		invoices:  map[string]map[subscriberID]DeliveryFn{},
		currentID: 1,
	}
}

// Run runs a dispatching loop until ctx is done.
func (disp *InvoiceDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case invoice := <-disp.ch:
			disp.logger.Debug("handling paid invoice", zap.String("invoice", invoice.ID))
			disp.dispatch(invoice)
		}
	}
}

// InvoicePaid queues a notification about a paid invoice.
// It never blocks: when the queue is full the notification is dropped
// and subscribers have to fall back to polling.
func (disp *InvoiceDispatcher) InvoicePaid(invoice core.Invoice) {
	select {
	case disp.ch <- invoice:
	default:
		disp.logger.Warn("invoice notification dropped", zap.String("invoice", invoice.ID))
	}
}

func (disp *InvoiceDispatcher) dispatch(invoice core.Invoice) {
	eventData, err := disp.projector.Project(invoice).MarshalJSON()
	if err != nil {
		disp.logger.Error("failed to encode invoice status", zap.Error(err))
		return
	}
	disp.mu.RLock()
	defer disp.mu.RUnlock()

	for _, deliveryFn := range disp.invoices[invoice.ID] {
		deliveryFn(eventData)
	}
}

func (disp *InvoiceDispatcher) SubscribeToInvoice(ctx context.Context, invoiceID string, fn DeliveryFn) CancelFn {
	disp.mu.Lock()
	defer disp.mu.Unlock()

	id := disp.currentID
	disp.currentID += 1

	subscribers, ok := disp.invoices[invoiceID]
	if !ok {
		subscribers = map[subscriberID]DeliveryFn{}
		disp.invoices[invoiceID] = subscribers
	}
	subscribers[id] = fn
	return func() { disp.unsubscribe(invoiceID, id) }
}

func (disp *InvoiceDispatcher) unsubscribe(invoiceID string, id subscriberID) {
	disp.mu.Lock()
	defer disp.mu.Unlock()

	subscribers, ok := disp.invoices[invoiceID]
	if !ok {
		return
	}
	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(disp.invoices, invoiceID)
	}
}
