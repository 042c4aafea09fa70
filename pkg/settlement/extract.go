package settlement

import (
	"strings"

	"github.com/go-faster/jx"

	"github.com/arnac-io/paygate/pkg/core"
)

// ConfirmedRef is stored as a settlement reference when the receipt does not carry one.
const ConfirmedRef = "payment-confirmed"

var (
	DefaultCredentialProbes = []string{
		"payload.from", "payload.signer", "payload.account", "from", "signer", "account",
		// EIP-3009 "exact" payloads
		"payload.authorization.from",
	}
	DefaultReceiptProbes    = []string{"payer", "from", "signer", "account"}
)

// Extractor finds out who paid and under which reference from loosely-typed
// payment payloads. Facilitators disagree on where they put the payer,
// so both the credential and the receipt are probed with ordered lists of dotted paths.
type Extractor struct {
	credentialProbes [][]string
	receiptProbes    [][]string
}

func NewExtractor(credentialProbes, receiptProbes []string) Extractor {
	if len(credentialProbes) == 0 {
		credentialProbes = DefaultCredentialProbes
	}
	if len(receiptProbes) == 0 {
		receiptProbes = DefaultReceiptProbes
	}
	return Extractor{
		credentialProbes: splitPaths(credentialProbes),
		receiptProbes:    splitPaths(receiptProbes),
	}
}

func splitPaths(paths []string) [][]string {
	result := make([][]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		result = append(result, strings.Split(p, "."))
	}
	return result
}

// Provenance is what could be learned about a settled payment.
type Provenance struct {
	SettlementRef string
	PayerAddress  *string
	// Degraded lists the facts that could not be extracted, for logging.
	Degraded []string
}

// Extract never fails: a missing reference falls back to ConfirmedRef,
// a missing payer leaves PayerAddress nil.
func (e Extractor) Extract(credential *string, receipt []byte) Provenance {
	var p Provenance
	if ref := probe(receipt, []string{"transaction"}); ref != "" {
		p.SettlementRef = ref
	} else {
		p.SettlementRef = ConfirmedRef
		p.Degraded = append(p.Degraded, "settlement reference")
	}

	if credential != nil {
		payload, err := core.DecodeCredential(*credential)
		if err != nil {
			p.Degraded = append(p.Degraded, "credential payload")
		} else if payer := firstMatch(payload, e.credentialProbes); payer != "" {
			p.PayerAddress = &payer
			return p
		}
	}
	if payer := firstMatch(receipt, e.receiptProbes); payer != "" {
		p.PayerAddress = &payer
		return p
	}
	p.Degraded = append(p.Degraded, "payer address")
	return p
}

func firstMatch(raw []byte, paths [][]string) string {
	for _, path := range paths {
		if v := probe(raw, path); v != "" {
			return v
		}
	}
	return ""
}

// probe returns a non-empty string found at path, or "".
func probe(raw []byte, path []string) string {
	if len(raw) == 0 {
		return ""
	}
	d := jx.DecodeBytes(raw)
	if len(path) == 0 {
		if d.Next() != jx.String {
			return ""
		}
		v, err := d.Str()
		if err != nil {
			return ""
		}
		return v
	}
	if d.Next() != jx.Object {
		return ""
	}
	var child jx.Raw
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != path[0] {
			return d.Skip()
		}
		v, err := d.Raw()
		child = v
		return err
	})
	if err != nil || child == nil {
		return ""
	}
	return probe(child, path[1:])
}
