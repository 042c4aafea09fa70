package sources

import "context"

// DeliveryFn describes a callback that will be triggered once an invoice gets paid.
type DeliveryFn func(eventData []byte)

// CancelFn has to be called to unsubscribe.
type CancelFn func()

// InvoiceSource provides a method to subscribe to notifications about paid invoices.
type InvoiceSource interface {
	SubscribeToInvoice(ctx context.Context, invoiceID string, deliveryFn DeliveryFn) CancelFn
}
