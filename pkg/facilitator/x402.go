package facilitator

import (
	"github.com/go-faster/jx"

	"github.com/arnac-io/paygate/pkg/core"
)

const (
	x402Version = 1

	schemeExact = "exact"

	// PaymentHeader carries the client's signed payment.
	PaymentHeader = "X-PAYMENT"
	// PaymentResponseHeader carries the base64 encoded settlement receipt.
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)

// requirements describes what the payer has to sign, it's the element of the "accepts" list.
type requirements struct {
	Network           string
	MaxAmountRequired string
	Resource          string
	Description       string
	MimeType          string
	PayTo             string
	MaxTimeoutSeconds int
	Asset             string
	Domain            core.SignatureDomain
}

func newRequirements(req core.PaymentRequest, maxTimeoutSeconds int) requirements {
	return requirements{
		Network:           req.Asset.Network,
		MaxAmountRequired: req.Amount.StringFixed(0),
		Resource:          req.ResourceURL,
		Description:       req.Description,
		MimeType:          "application/json",
		PayTo:             req.PayTo,
		MaxTimeoutSeconds: maxTimeoutSeconds,
		Asset:             req.Asset.Address,
		Domain:            req.Asset.Domain,
	}
}

func (r requirements) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("scheme")
	e.Str(schemeExact)
	e.FieldStart("network")
	e.Str(r.Network)
	e.FieldStart("maxAmountRequired")
	e.Str(r.MaxAmountRequired)
	e.FieldStart("resource")
	e.Str(r.Resource)
	e.FieldStart("description")
	e.Str(r.Description)
	e.FieldStart("mimeType")
	e.Str(r.MimeType)
	e.FieldStart("payTo")
	e.Str(r.PayTo)
	e.FieldStart("maxTimeoutSeconds")
	e.Int(r.MaxTimeoutSeconds)
	e.FieldStart("asset")
	e.Str(r.Asset)
	e.FieldStart("extra")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(r.Domain.Name)
	e.FieldStart("version")
	e.Str(r.Domain.Version)
	e.FieldStart("primaryType")
	e.Str(string(r.Domain.Scheme))
	e.ObjEnd()
	e.ObjEnd()
}

// paymentRequiredBody is the body of a 402 response.
func paymentRequiredBody(reason string, payer string, reqs requirements) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("x402Version")
	e.Int(x402Version)
	e.FieldStart("error")
	e.Str(reason)
	e.FieldStart("accepts")
	e.ArrStart()
	reqs.Encode(&e)
	e.ArrEnd()
	if payer != "" {
		e.FieldStart("payer")
		e.Str(payer)
	}
	e.ObjEnd()
	return e.Bytes()
}

// facilitatorRequestBody is the body of both /verify and /settle requests.
func facilitatorRequestBody(payload jx.Raw, reqs requirements) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("x402Version")
	e.Int(x402Version)
	e.FieldStart("paymentPayload")
	e.Raw(payload)
	e.FieldStart("paymentRequirements")
	reqs.Encode(&e)
	e.ObjEnd()
	return e.Bytes()
}

type verifyResponse struct {
	IsValid       bool
	InvalidReason string
	Payer         string
}

func (r *verifyResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "isValid":
			v, err := d.Bool()
			r.IsValid = v
			return err
		case "invalidReason":
			return decodeOptStr(d, &r.InvalidReason)
		case "payer":
			return decodeOptStr(d, &r.Payer)
		default:
			return d.Skip()
		}
	})
}

type settleResponse struct {
	Success     *bool
	ErrorReason string
	Transaction string
	Network     string
	Payer       string
}

func (r *settleResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			return decodeOptBool(d, &r.Success)
		case "errorReason":
			return decodeOptStr(d, &r.ErrorReason)
		case "transaction":
			return decodeOptStr(d, &r.Transaction)
		case "network":
			return decodeOptStr(d, &r.Network)
		case "payer":
			return decodeOptStr(d, &r.Payer)
		default:
			return d.Skip()
		}
	})
}

// Failed reports whether a 2xx settle reply still says the payment did not go through.
// Receipts that carry neither success nor an error reason count as settled.
func (r settleResponse) Failed() bool {
	if r.Success != nil {
		return !*r.Success
	}
	return r.ErrorReason != "" && r.Transaction == ""
}

func decodeOptBool(d *jx.Decoder, b **bool) error {
	if d.Next() != jx.Bool {
		return d.Skip()
	}
	v, err := d.Bool()
	*b = &v
	return err
}

func decodeOptStr(d *jx.Decoder, s *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	*s = v
	return err
}
