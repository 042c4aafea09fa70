package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount, must be greater than 0")
	ErrPayeeRequired   = errors.New("payeeAddress is required")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// idAttempts bounds retries on an id collision.
const idAttempts = 3

type invoiceStore interface {
	CreateInvoice(ctx context.Context, invoice core.Invoice) error
}

// CreateRequest is a merchant's request for a new invoice.
// Amount is in whole currency units, e.g. dollars for a dollar-pegged token.
type CreateRequest struct {
	Amount       decimal.Decimal
	Currency     string
	PayeeAddress string
}

// Service creates invoices.
type Service struct {
	logger          *zap.Logger
	store           invoiceStore
	assets          core.Assets
	baseURL         string
	defaultCurrency string
	now             func() time.Time
	newID           func() (string, error)
}

func NewService(logger *zap.Logger, store invoiceStore, assets core.Assets, baseURL, defaultCurrency string) *Service {
	return &Service{
		logger:          logger,
		store:           store,
		assets:          assets,
		baseURL:         strings.TrimRight(baseURL, "/"),
		defaultCurrency: defaultCurrency,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           core.NewInvoiceID,
	}
}

// PaymentURL is where a customer pays the invoice.
func (s *Service) PaymentURL(id string) string {
	return fmt.Sprintf("%v/pay/%v", s.baseURL, id)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (core.Invoice, error) {
	if !req.Amount.IsPositive() {
		return core.Invoice{}, ErrInvalidAmount
	}
	payee := strings.TrimSpace(req.PayeeAddress)
	if payee == "" {
		return core.Invoice{}, ErrPayeeRequired
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	asset, err := s.assets.Get(currency)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("%w: %v", ErrUnknownCurrency, currency)
	}
	units := asset.ToUnits(req.Amount)
	if !units.IsPositive() {
		return core.Invoice{}, ErrInvalidAmount
	}

	for attempt := 0; attempt < idAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return core.Invoice{}, errors.Wrap(err, "invoice id")
		}
		now := s.now()
		invoice := core.Invoice{
			ID:           id,
			Amount:       units,
			Currency:     asset.Symbol,
			Status:       core.InvoiceStatusPending,
			PayeeAddress: payee,
			PaymentURL:   s.PaymentURL(id),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.store.CreateInvoice(ctx, invoice)
		if errors.Is(err, core.ErrEntityExists) {
			s.logger.Warn("invoice id collision", zap.String("invoice", id))
			continue
		}
		if err != nil {
			return core.Invoice{}, err
		}
		s.logger.Info("invoice created",
			zap.String("invoice", id),
			zap.String("amount", units.String()),
			zap.String("currency", invoice.Currency))
		return invoice, nil
	}
	return core.Invoice{}, fmt.Errorf("failed to allocate an invoice id after %d attempts", idAttempts)
}
