package settlement

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/cache"
	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/sentry"
)

var outcomeCounterVec = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "settlement_outcomes_total",
		Help: "Settlement attempts by outcome",
	},
	[]string{"outcome"},
)

type invoiceStore interface {
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error)
}

type facilitator interface {
	Process(ctx context.Context, req core.PaymentRequest) (core.FacilitatorResult, error)
}

type notifier interface {
	InvoicePaid(invoice core.Invoice)
}

// Orchestrator settles invoices through a payment facilitator
// and moves them from pending to paid exactly once.
//
// It holds no locks between reading an invoice, calling the facilitator and
// updating the invoice: the store's conditional update is the only arbiter
// between concurrent settlements of the same invoice.
type Orchestrator struct {
	logger      *zap.Logger
	store       invoiceStore
	facilitator facilitator
	assets      core.Assets
	baseURL     string
	extractor   Extractor
	rejections  cache.ICache[RejectedError]
	rejectTTL   time.Duration
	notifier    notifier
	now         func() time.Time
	tracer      trace.Tracer
}

type Options struct {
	facilitator facilitator
	extractor   *Extractor
	rejections  cache.ICache[RejectedError]
	rejectTTL   time.Duration
	notifier    notifier
	now         func() time.Time
}

type Option func(o *Options)

// WithFacilitator sets the payment facilitator.
// Without one every settlement of a pending invoice fails with ErrFacilitatorUnavailable.
func WithFacilitator(f facilitator) Option {
	return func(o *Options) {
		o.facilitator = f
	}
}

func WithExtractor(e Extractor) Option {
	return func(o *Options) {
		o.extractor = &e
	}
}

// WithRejectionCache remembers rejected credentials for ttl,
// so a client replaying the same bad payment doesn't reach the facilitator again.
func WithRejectionCache(c cache.ICache[RejectedError], ttl time.Duration) Option {
	return func(o *Options) {
		o.rejections = c
		o.rejectTTL = ttl
	}
}

// WithNotifier sets a listener for freshly paid invoices.
func WithNotifier(n notifier) Option {
	return func(o *Options) {
		o.notifier = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

func NewOrchestrator(logger *zap.Logger, store invoiceStore, assets core.Assets, baseURL string, opts ...Option) *Orchestrator {
	options := &Options{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(options)
	}
	extractor := NewExtractor(nil, nil)
	if options.extractor != nil {
		extractor = *options.extractor
	}
	return &Orchestrator{
		logger:      logger,
		store:       store,
		facilitator: options.facilitator,
		assets:      assets,
		baseURL:     strings.TrimRight(baseURL, "/"),
		extractor:   extractor,
		rejections:  options.rejections,
		rejectTTL:   options.rejectTTL,
		notifier:    options.notifier,
		now:         options.now,
		tracer:      otel.Tracer("github.com/arnac-io/paygate/pkg/settlement"),
	}
}

// ResourceURL is the URL a payer pays for.
func (o *Orchestrator) ResourceURL(invoiceID string) string {
	return fmt.Sprintf("%v/pay/%v", o.baseURL, invoiceID)
}

// Settle runs one settlement attempt for an invoice.
// credential is the client's X-PAYMENT header, nil when absent.
//
// Errors are ErrNotFound, ErrFacilitatorUnavailable, *RejectedError or *StoreError.
// Outcome.Invoice is set whenever the invoice was read, even if an error is returned.
func (o *Orchestrator) Settle(ctx context.Context, invoiceID string, credential *string) (outcome Outcome, err error) {
	ctx, span := o.tracer.Start(ctx, "settlement.Settle",
		trace.WithAttributes(
			attribute.String("invoice.id", invoiceID),
			attribute.Bool("payment.credential", credential != nil),
		))
	defer func() {
		label := outcome.Kind.String()
		if err != nil {
			label = errorLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		outcomeCounterVec.WithLabelValues(label).Inc()
		span.SetAttributes(attribute.String("settlement.outcome", label))
		span.End()
	}()

	invoice, err := o.store.GetInvoice(ctx, invoiceID)
	if errors.Is(err, core.ErrEntityNotFound) {
		return Outcome{}, ErrNotFound
	}
	if err != nil {
		return Outcome{}, &StoreError{Op: "get", InvoiceID: invoiceID, Err: err}
	}
	if invoice.IsPaid() {
		return alreadyPaid(invoice), nil
	}
	if o.facilitator == nil {
		return Outcome{Invoice: invoice}, ErrFacilitatorUnavailable
	}
	asset, err := o.assets.Get(invoice.Currency)
	if err != nil {
		return Outcome{Invoice: invoice}, fmt.Errorf("invoice %v: %w", invoice.ID, err)
	}

	memoKey := rejectionKey(invoice.ID, credential)
	if rejection, ok := o.rememberedRejection(ctx, memoKey); ok {
		return Outcome{Invoice: invoice}, &rejection
	}

	result, err := o.facilitator.Process(ctx, core.PaymentRequest{
		ResourceURL: o.ResourceURL(invoice.ID),
		Method:      http.MethodGet,
		Description: fmt.Sprintf("Invoice %v", invoice.ID),
		PayTo:       invoice.PayeeAddress,
		Asset:       asset,
		Amount:      invoice.Amount,
		Credential:  credential,
	})
	if err != nil {
		o.logger.Warn("facilitator call failed", zap.String("invoice", invoice.ID), zap.Error(err))
		return Outcome{Invoice: invoice}, fmt.Errorf("%w: %w", ErrFacilitatorUnavailable, err)
	}

	switch result.Kind {
	case core.ResultChallenge:
		return Outcome{
			Kind:       OutcomeChallenge,
			Invoice:    invoice,
			StatusCode: result.StatusCode,
			Header:     result.Header,
			Body:       result.Body,
		}, nil
	case core.ResultRejected:
		rejection := RejectedError{
			Reason:     result.Reason,
			StatusCode: result.StatusCode,
			Header:     result.Header,
			Body:       result.Body,
		}
		o.rememberRejection(ctx, memoKey, rejection)
		o.logger.Info("payment rejected", zap.String("invoice", invoice.ID), zap.String("reason", result.Reason))
		return Outcome{Invoice: invoice}, &rejection
	case core.ResultSettled:
	default:
		return Outcome{Invoice: invoice}, fmt.Errorf("%w: unknown result %v", ErrFacilitatorUnavailable, result.Kind)
	}

	provenance := o.extractor.Extract(credential, result.Receipt)
	if len(provenance.Degraded) > 0 {
		o.logger.Warn("settled payment is missing details",
			zap.String("invoice", invoice.ID),
			zap.Strings("missing", provenance.Degraded),
			zap.ByteString("receipt", result.Receipt))
	}

	updated, ok, err := o.store.MarkInvoicePaid(ctx, invoice.ID, core.Settlement{
		Ref:          provenance.SettlementRef,
		PayerAddress: provenance.PayerAddress,
		SettledAt:    o.now(),
	})
	if err != nil {
		// the money has moved but the invoice still says pending.
		o.logger.Error("failed to record a settled payment",
			zap.String("invoice", invoice.ID),
			zap.String("settlement_ref", provenance.SettlementRef),
			zap.Error(err))
		sentry.Send("settlement.MarkInvoicePaid", sentry.SentryInfoData{
			"invoice":        invoice.ID,
			"settlement_ref": provenance.SettlementRef,
			"error":          err.Error(),
		}, sentry.LevelError)
		return Outcome{Invoice: invoice}, &StoreError{Op: "mark_paid", InvoiceID: invoice.ID, Err: err}
	}
	if !ok {
		// another request settled the invoice in the meantime.
		current, err := o.store.GetInvoice(ctx, invoice.ID)
		if err != nil {
			return Outcome{Invoice: invoice}, &StoreError{Op: "get", InvoiceID: invoice.ID, Err: err}
		}
		if !current.IsPaid() {
			return Outcome{Invoice: current}, &StoreError{Op: "mark_paid", InvoiceID: invoice.ID, Err: errors.New("invoice was not updated")}
		}
		return alreadyPaid(current), nil
	}

	o.logger.Info("invoice paid",
		zap.String("invoice", updated.ID),
		zap.String("settlement_ref", provenance.SettlementRef),
		zap.Stringp("payer", provenance.PayerAddress))
	if o.notifier != nil {
		o.notifier.InvoicePaid(updated)
	}
	return Outcome{
		Kind:          OutcomePaid,
		Invoice:       updated,
		SettlementRef: provenance.SettlementRef,
		PayerAddress:  provenance.PayerAddress,
		Header:        result.Header,
	}, nil
}

func alreadyPaid(invoice core.Invoice) Outcome {
	outcome := Outcome{
		Kind:         OutcomeAlreadyPaid,
		Invoice:      invoice,
		PayerAddress: invoice.PayerAddress,
	}
	if invoice.SettlementRef != nil {
		outcome.SettlementRef = *invoice.SettlementRef
	}
	return outcome
}

func rejectionKey(invoiceID string, credential *string) string {
	if credential == nil {
		return ""
	}
	h := xxhash.New()
	h.WriteString(invoiceID)
	h.WriteString("\x00")
	h.WriteString(*credential)
	return fmt.Sprintf("%x", h.Sum64())
}

func (o *Orchestrator) rememberedRejection(ctx context.Context, key string) (RejectedError, bool) {
	if o.rejections == nil || key == "" {
		return RejectedError{}, false
	}
	rejection, err := o.rejections.Get(ctx, key)
	if err != nil {
		return RejectedError{}, false
	}
	return rejection, true
}

// transientReasons mark rejections that depend on the payer's balance or chain state,
// the same credential may succeed later.
var transientReasons = []string{
	"insufficient",
	"valid_after",
	"transaction_state",
	"settlement failed",
}

func memoizable(reason string) bool {
	reason = strings.ToLower(reason)
	for _, r := range transientReasons {
		if strings.Contains(reason, r) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) rememberRejection(ctx context.Context, key string, rejection RejectedError) {
	if o.rejections == nil || key == "" || o.rejectTTL <= 0 || !memoizable(rejection.Reason) {
		return
	}
	if err := o.rejections.Set(ctx, key, rejection, o.rejectTTL); err != nil {
		o.logger.Warn("failed to remember a rejection", zap.Error(err))
	}
}

func errorLabel(err error) string {
	var rejected *RejectedError
	var storeErr *StoreError
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrFacilitatorUnavailable):
		return "facilitator_unavailable"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &storeErr):
		return "store_error"
	}
	return "error"
}
