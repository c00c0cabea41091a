package codec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snehjoshi/encodex/internal/charset"
	"github.com/snehjoshi/encodex/internal/detect"
	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/mask"
	"github.com/snehjoshi/encodex/internal/session"
	"github.com/snehjoshi/encodex/internal/transform"
)

// DefaultCountdown is how long a self-destructing message stays on screen.
const DefaultCountdown = 3 * time.Second

// DecodeRequest carries a received message and whatever the user supplied.
// Method and Shift are only consulted when the message has no metadata.
type DecodeRequest struct {
	Text         string           `json:"text"`
	Password     string           `json:"password,omitempty"`
	CustomKey    string           `json:"customKey,omitempty"`
	UseCustomKey bool             `json:"useCustomKey,omitempty"`
	Method       transform.Method `json:"method,omitempty"`
	Shift        int              `json:"shift,omitempty"`
}

// DecodeResult is a successfully decoded message.
type DecodeResult struct {
	Text   string           `json:"text"`
	Method transform.Method `json:"method"`
	Shift  int              `json:"shift,omitempty"`

	// Detected is set when the method came from the detector rather than
	// metadata or the request.
	Detected bool `json:"detected,omitempty"`
	// Recovered is set when the candidate search produced the text.
	Recovered bool `json:"recovered,omitempty"`

	Metadata      *envelope.Metadata `json:"metadata,omitempty"`
	SelfDestruct  bool               `json:"selfDestruct,omitempty"`
	MessageID     string             `json:"messageId,omitempty"`
	DestructAfter time.Duration      `json:"-"`
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithCountdown sets how long self-destructing results stay visible.
func WithCountdown(d time.Duration) DecoderOption {
	return func(dec *Decoder) { dec.countdown = d }
}

// WithStrict refuses every second view of a self-destructing message, not
// only repeat views within the same session.
func WithStrict(strict bool) DecoderOption {
	return func(dec *Decoder) { dec.strict = strict }
}

// Decoder reverses Encoder. It is safe for concurrent use.
type Decoder struct {
	ledger    ledger.Ledger
	countdown time.Duration
	strict    bool
}

// NewDecoder returns a Decoder backed by l.
func NewDecoder(l ledger.Ledger, opts ...DecoderOption) *Decoder {
	d := &Decoder{ledger: l, countdown: DefaultCountdown}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode runs the decode pipeline. sess identifies the viewer for
// self-destruct purposes; nil means a viewer that has displayed nothing.
//
// No partial plaintext is ever returned alongside an error.
func (d *Decoder) Decode(ctx context.Context, req DecodeRequest, sess *session.Session) (DecodeResult, error) {
	if req.Text == "" {
		return DecodeResult{}, ErrEmptyText
	}
	payload, md := envelope.Unwrap(envelope.StripQRPrefix(req.Text))

	selfDestruct := md != nil && md.SelfDestruct && md.MessageID != ""
	if selfDestruct {
		if err := d.checkViewable(ctx, md.MessageID, sess); err != nil {
			return DecodeResult{}, err
		}
	}

	working, err := d.unlock(payload, md, req)
	if err != nil {
		return DecodeResult{}, err
	}

	res, err := d.reverse(working, md, req)
	if err != nil {
		return DecodeResult{}, err
	}
	res.Metadata = md

	if selfDestruct {
		if err := d.consume(ctx, md.MessageID); err != nil {
			return DecodeResult{}, err
		}
		if sess != nil {
			sess.MarkDisplayed(md.MessageID)
		}
		res.SelfDestruct = true
		res.MessageID = md.MessageID
		res.DestructAfter = d.countdown
	}
	return res, nil
}

func (d *Decoder) checkViewable(ctx context.Context, id string, sess *session.Session) error {
	viewed, err := d.ledger.IsViewed(ctx, id)
	if err != nil {
		return fmt.Errorf("codec: ledger lookup %s: %w", id, err)
	}
	if viewed && (d.strict || (sess != nil && sess.Displayed(id))) {
		return ErrAlreadyDestructed
	}
	return nil
}

// consume marks id viewed. An id this ledger never registered (the message
// was encoded elsewhere) is adopted so it cannot be viewed twice from here.
// In strict mode only the call that flips the record may show the message;
// a concurrent decode that lost the race is refused.
func (d *Decoder) consume(ctx context.Context, id string) error {
	mark, err := d.ledger.MarkViewed(ctx, id)
	if err != nil {
		return fmt.Errorf("codec: ledger mark %s: %w", id, err)
	}
	if mark == ledger.MarkMissing {
		if err := d.ledger.Register(ctx, id); err != nil {
			return fmt.Errorf("codec: ledger adopt %s: %w", id, err)
		}
		if mark, err = d.ledger.MarkViewed(ctx, id); err != nil {
			return fmt.Errorf("codec: ledger mark %s: %w", id, err)
		}
	}
	if d.strict && mark != ledger.MarkFlipped {
		return ErrAlreadyDestructed
	}
	return nil
}

// unlock removes the password and custom-key layers.
func (d *Decoder) unlock(payload string, md *envelope.Metadata, req DecodeRequest) (string, error) {
	protected := detect.IsLikelyPasswordProtected(payload)
	if md != nil {
		protected = md.PasswordProtected
	}
	if protected {
		if mask.Blank(req.Password) {
			return "", ErrPasswordRequired
		}
		var err error
		if payload, err = mask.Unprotect(payload, req.Password); err != nil {
			return "", err
		}
	}

	needsKey := md != nil && md.CustomEncryption
	switch {
	case needsKey && req.CustomKey == "":
		return "", ErrCustomKeyRequired
	case needsKey, req.UseCustomKey && req.CustomKey != "":
		payload = mask.RemoveKey(payload, req.CustomKey)
	}
	return payload, nil
}

// reverse applies the base transform, falling back to the candidate search
// when the chosen method cannot decode the text.
func (d *Decoder) reverse(text string, md *envelope.Metadata, req DecodeRequest) (DecodeResult, error) {
	var (
		method   transform.Method
		shift    = req.Shift
		detected bool
		declared bool
	)
	switch {
	case md != nil:
		method = md.Type
		if md.Shift != nil {
			shift, declared = *md.Shift, true
		}
	case req.Method != "":
		m, err := transform.ParseMethod(string(req.Method))
		if err != nil {
			return DecodeResult{}, err
		}
		method = m
	default:
		method, _ = detect.Method(text)
		detected = true
	}
	// A shift the metadata declares is used as is, even 0.
	if method == transform.MethodCaesar && shift == 0 && !declared {
		shift = transform.DefaultShift
	}
	if method != transform.MethodCaesar {
		shift = 0
	}

	t, err := transform.For(method, shift)
	if err != nil {
		return DecodeResult{}, err
	}
	// A guessed method must also produce readable output; a declared one is
	// trusted.
	if out, err := t.Decode(text); err == nil && (!detected || readable(text, out)) {
		return DecodeResult{Text: out, Method: method, Shift: shift, Detected: detected}, nil
	}

	rec, ok := detect.Recover(text)
	if !ok {
		return DecodeResult{}, ErrUndecodable
	}
	slog.Debug("decode recovered by candidate search",
		"declared", method, "method", rec.Method, "shift", rec.Shift)
	return DecodeResult{
		Text:      rec.Text,
		Method:    rec.Method,
		Shift:     rec.Shift,
		Detected:  detected,
		Recovered: true,
	}, nil
}

func readable(in, out string) bool {
	return charset.ReadableWithEmoji(out) || charset.ContainsEmoji(in)
}
