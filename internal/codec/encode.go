// Package codec runs the encode and decode pipelines.
//
// Encoding layers are applied in a fixed order and decoding peels them in
// reverse:
//
//	transform → custom key → password → self-destruct registration → envelope
//
// The decoder trusts the envelope's metadata when it is present and falls
// back to the detector when it is not, or when the declared method fails.
package codec

import (
	"context"
	"fmt"

	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/mask"
	"github.com/snehjoshi/encodex/internal/msgid"
	"github.com/snehjoshi/encodex/internal/share"
	"github.com/snehjoshi/encodex/internal/transform"
)

// EncodeRequest describes one message to encode. Zero values select the
// defaults: substitution, shift 3, no key, no password, persistent.
type EncodeRequest struct {
	Text         string           `json:"text"`
	Method       transform.Method `json:"method,omitempty"`
	Shift        int              `json:"shift,omitempty"`
	CustomKey    string           `json:"customKey,omitempty"`
	Password     string           `json:"password,omitempty"`
	SelfDestruct bool             `json:"selfDestruct,omitempty"`
}

// EncodeResult is the finished message in every shareable form.
type EncodeResult struct {
	Envelope  string            `json:"envelope"`
	Metadata  envelope.Metadata `json:"metadata"`
	ShareURL  string            `json:"shareUrl,omitempty"`
	QRPayload string            `json:"qrPayload"`
	MessageID string            `json:"messageId,omitempty"`
}

// Encoder builds envelopes. It is safe for concurrent use.
type Encoder struct {
	ledger  ledger.Ledger
	baseURL string
}

// NewEncoder returns an Encoder that registers self-destructing messages in l
// and builds share links against baseURL. An empty baseURL disables links.
func NewEncoder(l ledger.Ledger, baseURL string) *Encoder {
	return &Encoder{ledger: l, baseURL: baseURL}
}

// Encode runs the encode pipeline.
func (e *Encoder) Encode(ctx context.Context, req EncodeRequest) (EncodeResult, error) {
	if req.Text == "" {
		return EncodeResult{}, ErrEmptyText
	}
	method := transform.MethodSubstitution
	if req.Method != "" {
		m, err := transform.ParseMethod(string(req.Method))
		if err != nil {
			return EncodeResult{}, err
		}
		method = m
	}
	shift, err := resolveShift(method, req.Shift)
	if err != nil {
		return EncodeResult{}, err
	}
	t, err := transform.For(method, shift)
	if err != nil {
		return EncodeResult{}, err
	}

	payload := t.Encode(req.Text)
	opts := []envelope.Option{envelope.WithShift(shift)}

	if req.CustomKey != "" {
		payload = mask.ApplyKey(payload, req.CustomKey)
		opts = append(opts, envelope.WithCustomKey())
	}
	if !mask.Blank(req.Password) {
		payload = mask.Protect(payload, req.Password)
		opts = append(opts, envelope.WithPassword())
	}

	var id msgid.ID
	if req.SelfDestruct {
		if id, err = msgid.New(); err != nil {
			return EncodeResult{}, err
		}
		if err := e.ledger.Register(ctx, id.String()); err != nil {
			return EncodeResult{}, fmt.Errorf("codec: register %s: %w", id, err)
		}
		opts = append(opts, envelope.WithSelfDestruct(id.String()))
	}

	md := envelope.New(method, opts...)
	env, err := envelope.Wrap(payload, md)
	if err != nil {
		return EncodeResult{}, err
	}
	if got, back := envelope.Unwrap(env); back == nil || got != payload || !back.Equal(md) {
		return EncodeResult{}, ErrSeparatorCollision
	}

	res := EncodeResult{
		Envelope:  env,
		Metadata:  md,
		QRPayload: share.QRPayload(env),
	}
	if !id.IsZero() {
		res.MessageID = id.String()
	}
	if e.baseURL != "" {
		if res.ShareURL, err = share.URL(e.baseURL, env); err != nil {
			return EncodeResult{}, err
		}
	}
	return res, nil
}

// resolveShift applies the default shift and range check for Caesar. Other
// methods carry no shift.
func resolveShift(method transform.Method, shift int) (int, error) {
	if method != transform.MethodCaesar {
		return 0, nil
	}
	if shift == 0 {
		return transform.DefaultShift, nil
	}
	if shift < 1 || shift > 25 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidShift, shift)
	}
	return shift, nil
}
