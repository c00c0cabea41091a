// Package envelope packages an encoded payload together with the metadata
// needed to decode it:
//
//	<payload>||<base64(json(metadata))>
//
// The metadata travels inside the same shareable string as the payload so a
// decoder can work without asking the user which method was used.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/snehjoshi/encodex/internal/transform"
)

// Separator splits the payload from the encoded metadata.
const Separator = "||"

// QRPrefix marks strings that were scanned from an encodex QR code.
const QRPrefix = "secretmsg://"

// Metadata is the self-describing header of an envelope. Field names are part
// of the wire format and must not change.
//
// Shift is set only for Caesar; MessageID only when SelfDestruct is true.
// Build values with New so those invariants hold by construction.
type Metadata struct {
	Type              transform.Method `json:"type"`
	PasswordProtected bool             `json:"passwordProtected"`
	SelfDestruct      bool             `json:"selfDestruct"`
	Shift             *int             `json:"shift,omitempty"`
	MessageID         string           `json:"messageId,omitempty"`
	CustomEncryption  bool             `json:"customEncryption,omitempty"`
}

// Option adds a layer to a Metadata built by New.
type Option func(*Metadata)

// WithShift records the Caesar shift. It is ignored for other methods.
func WithShift(shift int) Option {
	return func(m *Metadata) {
		if m.Type == transform.MethodCaesar {
			s := shift
			m.Shift = &s
		}
	}
}

// WithPassword marks the payload as password-masked.
func WithPassword() Option {
	return func(m *Metadata) { m.PasswordProtected = true }
}

// WithSelfDestruct marks the message as single-view under id.
// An empty id leaves the message persistent.
func WithSelfDestruct(id string) Option {
	return func(m *Metadata) {
		if id == "" {
			return
		}
		m.SelfDestruct = true
		m.MessageID = id
	}
}

// WithCustomKey marks the payload as shifted by a custom key.
func WithCustomKey() Option {
	return func(m *Metadata) { m.CustomEncryption = true }
}

// New builds the metadata for a payload encoded with method.
func New(method transform.Method, opts ...Option) Metadata {
	m := Metadata{Type: method}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Validate reports whether m satisfies the field invariants.
func (m Metadata) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("envelope: unknown method %q", m.Type)
	}
	if (m.Type == transform.MethodCaesar) != (m.Shift != nil) {
		return errors.New("envelope: shift must be set exactly when type is caesar")
	}
	if m.SelfDestruct != (m.MessageID != "") {
		return errors.New("envelope: messageId must be set exactly when selfDestruct is true")
	}
	return nil
}

// Equal reports whether m and o describe the same layers.
func (m Metadata) Equal(o Metadata) bool {
	if (m.Shift == nil) != (o.Shift == nil) || m.ShiftValue() != o.ShiftValue() {
		return false
	}
	m.Shift, o.Shift = nil, nil
	return m == o
}

// ShiftValue returns the Caesar shift, or 0 when none is recorded.
func (m Metadata) ShiftValue() int {
	if m.Shift == nil {
		return 0
	}
	return *m.Shift
}

// Wrap appends the encoded metadata to payload.
func Wrap(payload string, md Metadata) (string, error) {
	if err := md.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal metadata: %w", err)
	}
	return payload + Separator + base64.StdEncoding.EncodeToString(raw), nil
}

// Unwrap splits message into payload and metadata at the last separator.
// Encoded metadata never contains '|', so a payload may itself contain "||"
// or end in '|' (substitution output often does) without changing the split.
// When the tail is not a metadata descriptor the whole message is returned as
// the payload with nil metadata. A plain message may legitimately contain the
// separator, so failure here is never an error.
func Unwrap(message string) (string, *Metadata) {
	i := strings.LastIndex(message, Separator)
	if i < 0 {
		return message, nil
	}
	md, err := parse(message[i+len(Separator):])
	if err != nil {
		return message, nil
	}
	return message[:i], md
}

// Peek returns the metadata of message, if any.
func Peek(message string) *Metadata {
	_, md := Unwrap(message)
	return md
}

func parse(encoded string) (*Metadata, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	if !md.Type.Valid() {
		return nil, fmt.Errorf("envelope: unknown method %q", md.Type)
	}
	return &md, nil
}

// HasQRPrefix reports whether s was read from an encodex QR code.
func HasQRPrefix(s string) bool { return strings.HasPrefix(s, QRPrefix) }

// StripQRPrefix removes the QR prefix if present.
func StripQRPrefix(s string) string { return strings.TrimPrefix(s, QRPrefix) }
