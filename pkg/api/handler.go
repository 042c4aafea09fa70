package api

import (
	"fmt"

	"go.uber.org/zap"
)

type Handler struct {
	logger    *zap.Logger
	storage   storage
	invoices  invoiceService
	settler   settler
	projector projector
	limits    Limits
}

// Options configures the Handler.
type Options struct {
	storage   storage
	invoices  invoiceService
	settler   settler
	projector projector
	limits    Limits
}

type Option func(o *Options)

func WithStorage(s storage) Option {
	return func(o *Options) {
		o.storage = s
	}
}

func WithInvoiceService(s invoiceService) Option {
	return func(o *Options) {
		o.invoices = s
	}
}

func WithSettler(s settler) Option {
	return func(o *Options) {
		o.settler = s
	}
}

func WithProjector(p projector) Option {
	return func(o *Options) {
		o.projector = p
	}
}

func WithLimits(limits Limits) Option {
	return func(o *Options) {
		o.limits = limits
	}
}

func NewHandler(logger *zap.Logger, opts ...Option) (*Handler, error) {
	options := &Options{}
	for _, o := range opts {
		o(options)
	}
	if options.storage == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if options.invoices == nil {
		return nil, fmt.Errorf("invoice service is not configured")
	}
	if options.settler == nil {
		return nil, fmt.Errorf("settler is not configured")
	}
	if options.projector == nil {
		return nil, fmt.Errorf("projector is not configured")
	}
	return &Handler{
		logger:    logger,
		storage:   options.storage,
		invoices:  options.invoices,
		settler:   options.settler,
		projector: options.projector,
		limits:    options.limits,
	}, nil
}
