package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/arnac-io/paygate/pkg/core"
	"github.com/arnac-io/paygate/pkg/invoicing"
	"github.com/arnac-io/paygate/pkg/status"
)

const maxRequestBody = 64 << 10

// CreateInvoice handles POST /invoices.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return toError(http.StatusBadRequest, err)
	}
	req, err := decodeCreateRequest(body)
	if err != nil {
		return toError(http.StatusBadRequest, err)
	}
	invoice, err := h.invoices.Create(r.Context(), req)
	switch {
	case errors.Is(err, invoicing.ErrInvalidAmount),
		errors.Is(err, invoicing.ErrPayeeRequired),
		errors.Is(err, invoicing.ErrUnknownCurrency):
		return toError(http.StatusBadRequest, err)
	case err != nil:
		return toError(http.StatusInternalServerError, errors.Wrap(err, "failed to create invoice"))
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("invoiceId")
		e.Str(invoice.ID)
		e.FieldStart("amount")
		e.Str(invoice.Amount.String())
		e.FieldStart("currency")
		e.Str(invoice.Currency)
		e.FieldStart("status")
		e.Str(string(invoice.Status))
		e.FieldStart("paymentUrl")
		e.Str(invoice.PaymentURL)
		e.FieldStart("createdAt")
		e.Str(status.FormatTime(invoice.CreatedAt))
		e.ObjEnd()
	})
	return nil
}

// decodeCreateRequest accepts "merchantAddress" as an alias of "payeeAddress".
func decodeCreateRequest(body []byte) (invoicing.CreateRequest, error) {
	var req invoicing.CreateRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "amount":
			switch d.Next() {
			case jx.Number:
				num, err := d.Num()
				if err != nil {
					return err
				}
				req.Amount, err = decimal.NewFromString(num.String())
				return err
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				req.Amount, err = decimal.NewFromString(s)
				return err
			default:
				return errors.New("amount must be a number")
			}
		case "currency":
			return decodeOptionalStr(d, &req.Currency)
		case "payeeAddress", "merchantAddress":
			return decodeOptionalStr(d, &req.PayeeAddress)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return invoicing.CreateRequest{}, errors.Wrap(err, "invalid request body")
	}
	return req, nil
}

func decodeOptionalStr(d *jx.Decoder, dest *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dest = s
	return nil
}

// GetInvoiceStatus handles GET /invoices/{id}/status.
func (h *Handler) GetInvoiceStatus(w http.ResponseWriter, r *http.Request) error {
	id := core.NormalizeInvoiceID(mux.Vars(r)["id"])
	invoice, err := h.storage.GetInvoice(r.Context(), id)
	if errors.Is(err, core.ErrEntityNotFound) {
		return toError(http.StatusNotFound, errors.New("invoice not found"))
	}
	if err != nil {
		return toError(http.StatusInternalServerError, errors.Wrap(err, "failed to fetch invoice status"))
	}
	writeJSON(w, http.StatusOK, h.projector.Project(invoice).Encode)
	return nil
}

// GetInvoicesByPayee handles GET /invoices?payee=<address>&limit=<n>.
func (h *Handler) GetInvoicesByPayee(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	payee := strings.TrimSpace(query.Get("payee"))
	if payee == "" {
		return toError(http.StatusBadRequest, errors.New("payee is required"))
	}
	limit := 0
	if s := query.Get("limit"); s != "" {
		value, err := strconv.Atoi(s)
		if err != nil {
			return toError(http.StatusBadRequest, errors.New("failed to parse 'limit' parameter in query"))
		}
		limit = value
	}
	invoices, err := h.storage.ListInvoicesByPayee(r.Context(), payee, h.limits.listLimit(limit))
	if err != nil {
		return toError(http.StatusInternalServerError, errors.Wrap(err, "failed to list invoices"))
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("invoices")
		e.ArrStart()
		for _, invoice := range invoices {
			h.projector.Project(invoice).Encode(e)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
	return nil
}
