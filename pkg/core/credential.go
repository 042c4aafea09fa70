package core

import (
	"encoding/base64"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DecodeCredential decodes an X-PAYMENT header value into its JSON payload.
func DecodeCredential(credential string) (jx.Raw, error) {
	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(credential)
		if err != nil {
			return nil, errors.Wrap(err, "base64")
		}
	}
	d := jx.DecodeBytes(raw)
	if tt := d.Next(); tt != jx.Object {
		return nil, fmt.Errorf("payment payload is %v, not an object", tt)
	}
	payload, err := d.Raw()
	if err != nil {
		return nil, errors.Wrap(err, "json")
	}
	return payload, nil
}
