// Package share turns an envelope into the forms people actually pass around:
// a decoder link and a QR code.
package share

import (
	"errors"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/snehjoshi/encodex/internal/envelope"
)

// QueryParam carries the envelope in share links.
const QueryParam = "decrypt"

// ErrNoMessage is returned by FromURL when the link carries no envelope.
var ErrNoMessage = errors.New("share: link carries no message")

// URL returns base with the envelope attached as ?decrypt=. Existing query
// parameters on base are kept.
func URL(base, env string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("share: base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, env)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FromURL extracts the envelope from a share link.
func FromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("share: parse link: %w", err)
	}
	env := u.Query().Get(QueryParam)
	if env == "" {
		return "", ErrNoMessage
	}
	return env, nil
}

// QRPayload is the text encoded into QR codes.
func QRPayload(env string) string { return envelope.QRPrefix + env }

// QRCode renders the QR payload for env as a size×size PNG at high error
// correction.
func QRCode(env string, size int) ([]byte, error) {
	png, err := qrcode.Encode(QRPayload(env), qrcode.High, size)
	if err != nil {
		return nil, fmt.Errorf("share: qr: %w", err)
	}
	return png, nil
}
