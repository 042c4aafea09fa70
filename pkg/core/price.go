package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SignatureScheme is the token authorization scheme a payer signs.
type SignatureScheme string

const (
	// SchemeTransferWithAuthorization is ERC-3009.
	SchemeTransferWithAuthorization SignatureScheme = "TransferWithAuthorization"
	// SchemePermit is ERC-2612.
	SchemePermit SignatureScheme = "Permit"
)

var SignatureSchemes = []SignatureScheme{SchemeTransferWithAuthorization, SchemePermit}

// SignatureDomain holds the EIP-712 domain parameters of a token.
type SignatureDomain struct {
	Name    string          `yaml:"name"`
	Version string          `yaml:"version"`
	Scheme  SignatureScheme `yaml:"scheme"`
}

// Asset is a token invoices can be priced in.
type Asset struct {
	Symbol   string          `yaml:"symbol"`
	Address  string          `yaml:"address"`
	Decimals int32           `yaml:"decimals"`
	Network  string          `yaml:"network"`
	Domain   SignatureDomain `yaml:"domain"`
}

// ToUnits converts an amount of whole tokens to the smallest unit, rounding down.
func (a Asset) ToUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(a.Decimals).Floor()
}

// FromUnits converts an amount in the smallest unit to whole tokens.
func (a Asset) FromUnits(units decimal.Decimal) decimal.Decimal {
	return units.Shift(-a.Decimals)
}

// Assets maps a currency symbol to its asset.
type Assets map[string]Asset

func (a Assets) Get(symbol string) (Asset, error) {
	asset, ok := a[symbol]
	if !ok {
		return Asset{}, fmt.Errorf("unknown currency %q", symbol)
	}
	return asset, nil
}
