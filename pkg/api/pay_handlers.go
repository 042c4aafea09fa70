package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/mux"

	"github.com/arnac-io/paygate/pkg/api/i18n"
	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/facilitator"
	"github.com/arnac-io/paygate/pkg/settlement"
)

// Pay handles GET /pay/{invoiceId}, the x402 protected resource of an invoice.
// Without X-PAYMENT the client gets the 402 challenge, with it the payment is settled.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) error {
	invoiceID := core.NormalizeInvoiceID(mux.Vars(r)["invoiceId"])
	lang := r.Header.Get("Accept-Language")
	var credential *string
	if value := r.Header.Get(facilitator.PaymentHeader); value != "" {
		credential = &value
	}

	outcome, err := h.settler.Settle(r.Context(), invoiceID, credential)
	if err != nil {
		return h.payError(lang, invoiceID, outcome.Invoice, err)
	}
	switch outcome.Kind {
	case settlement.OutcomeChallenge:
		passthrough(w, outcome.StatusCode, outcome.Header, outcome.Body)
	case settlement.OutcomePaid:
		if receipt := outcome.Header.Get(facilitator.PaymentResponseHeader); receipt != "" {
			w.Header().Set(facilitator.PaymentResponseHeader, receipt)
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("status")
			e.Str(string(core.InvoiceStatusPaid))
			e.FieldStart("message")
			e.Str(translate(lang, "paymentSuccessful", nil))
			e.FieldStart("invoiceId")
			e.Str(outcome.Invoice.ID)
			e.FieldStart("settlementRef")
			e.Str(outcome.SettlementRef)
			if outcome.PayerAddress != nil {
				e.FieldStart("payerAddress")
				e.Str(*outcome.PayerAddress)
			}
			e.FieldStart("amount")
			e.Str(outcome.Invoice.Amount.String())
			e.FieldStart("currency")
			e.Str(outcome.Invoice.Currency)
			e.ObjEnd()
		})
	case settlement.OutcomeAlreadyPaid:
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("status")
			e.Str(string(core.InvoiceStatusPaid))
			e.FieldStart("message")
			e.Str(translate(lang, "invoiceAlreadyPaid", nil))
			e.FieldStart("invoiceId")
			e.Str(outcome.Invoice.ID)
			e.FieldStart("settlementRef")
			e.Str(outcome.SettlementRef)
			e.ObjEnd()
		})
	default:
		return toError(http.StatusInternalServerError, errors.Errorf("unknown outcome %v", outcome.Kind))
	}
	return nil
}

func (h *Handler) payError(lang string, invoiceID string, invoice core.Invoice, err error) error {
	var rejected *settlement.RejectedError
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		return &ErrorStatusCode{
			StatusCode: http.StatusNotFound,
			Err:        err,
			Body: encode(func(e *jx.Encoder) {
				e.ObjStart()
				e.FieldStart("error")
				e.Str(translate(lang, "invoiceNotFound", nil))
				e.FieldStart("invoiceId")
				e.Str(invoiceID)
				e.FieldStart("message")
				e.Str(translate(lang, "invoiceNotFoundDetails", i18n.Template{"InvoiceID": invoiceID}))
				e.ObjEnd()
			}),
		}
	case errors.Is(err, settlement.ErrFacilitatorUnavailable):
		return &ErrorStatusCode{
			StatusCode: http.StatusServiceUnavailable,
			Err:        err,
			Body: encode(func(e *jx.Encoder) {
				e.ObjStart()
				e.FieldStart("error")
				e.Str(translate(lang, "facilitatorUnavailable", nil))
				e.FieldStart("invoiceId")
				e.Str(invoiceID)
				if invoice.ID != "" {
					e.FieldStart("amount")
					e.Str(invoice.Amount.String())
					e.FieldStart("currency")
					e.Str(invoice.Currency)
				}
				e.ObjEnd()
			}),
		}
	case errors.As(err, &rejected):
		return &ErrorStatusCode{
			StatusCode: rejected.StatusCode,
			Header:     rejected.Header,
			Body:       rejected.Body,
			Err:        err,
		}
	}
	currency := invoice.Currency
	if currency == "" {
		currency = "payment"
	}
	return &ErrorStatusCode{
		StatusCode: http.StatusInternalServerError,
		Err:        err,
		Body: encode(func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("error")
			e.Str(translate(lang, "paymentFailed", nil))
			e.FieldStart("details")
			e.Str(err.Error())
			e.FieldStart("invoiceId")
			e.Str(invoiceID)
			e.FieldStart("hint")
			e.Str(translate(lang, "authorizationSchemeHint", i18n.Template{"Currency": currency}))
			e.ObjEnd()
		}),
	}
}

// passthrough writes a facilitator response without touching it.
func passthrough(w http.ResponseWriter, code int, header http.Header, body []byte) {
	for key, values := range header {
		w.Header()[key] = values
	}
	w.WriteHeader(code)
	w.Write(body)
}

func encode(fn func(e *jx.Encoder)) []byte {
	var e jx.Encoder
	fn(&e)
	return e.Bytes()
}
