package sse

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/arnac-io/paygate/pkg/core"
	httperrors "github.com/arnac-io/paygate/pkg/pusher/errors"
	"github.com/arnac-io/paygate/pkg/pusher/events"
	"github.com/arnac-io/paygate/pkg/pusher/sources"
	"github.com/arnac-io/paygate/pkg/status"
)

type invoiceReader interface {
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
}

type projector interface {
	Project(invoice core.Invoice) status.View
}

// Handler handles http methods for sse.
type Handler struct {
	source         sources.InvoiceSource
	invoices       invoiceReader
	projector      projector
	pingInterval   time.Duration
	currentEventID int64
}

type handlerFunc func(session *session, request *http.Request) error

func NewHandler(source sources.InvoiceSource, invoices invoiceReader, projector projector) *Handler {
	return &Handler{
		source:         source,
		invoices:       invoices,
		projector:      projector,
		pingInterval:   5 * time.Second,
		currentEventID: time.Now().UnixNano(),
	}
}

// SubscribeToInvoice streams the status of the invoice taken from the "id" route variable.
// The current status goes first. The stream ends once the invoice is paid.
func (h *Handler) SubscribeToInvoice(session *session, request *http.Request) error {
	if h.source == nil {
		return httperrors.BadRequest("invoice source is not configured")
	}
	invoiceID := core.NormalizeInvoiceID(mux.Vars(request)["id"])
	if invoiceID == "" {
		return httperrors.BadRequest("invoice id is required")
	}
	// subscribe before reading so a payment between the two steps is not lost.
	cancelFn := h.source.SubscribeToInvoice(request.Context(), invoiceID, func(data []byte) {
		session.SendEvent(Event{
			Name:    events.InvoicePaidEvent,
			EventID: h.nextID(),
			Data:    data,
			Final:   true,
		})
	})
	invoice, err := h.invoices.GetInvoice(request.Context(), invoiceID)
	if err != nil {
		cancelFn()
		if errors.Is(err, core.ErrEntityNotFound) {
			return httperrors.NotFound("invoice not found")
		}
		return err
	}
	session.SetCancelFn(cancelFn)

	data, err := h.projector.Project(invoice).MarshalJSON()
	if err != nil {
		return err
	}
	event := Event{
		Name:    events.InvoiceStatusEvent,
		EventID: h.nextID(),
		Data:    data,
	}
	if invoice.IsPaid() {
		event.Name = events.InvoicePaidEvent
		event.Final = true
	}
	session.SendEvent(event)
	return nil
}

func (h *Handler) nextID() int64 {
	return atomic.AddInt64(&h.currentEventID, 1)
}
