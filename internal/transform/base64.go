package transform

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidBase64 is returned by Base64.Decode when the input is not valid
// standard Base64.
var ErrInvalidBase64 = errors.New("transform: invalid base64")

// Base64 is the standard padded Base64 alphabet over the UTF-8 bytes of the
// text.
type Base64 struct{}

func (Base64) Method() Method { return MethodBase64 }

func (Base64) Description() string { return "Standard Base64 encoding" }

func (Base64) Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func (Base64) Decode(text string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return string(raw), nil
}
