package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/detect"
	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/transform"
	"github.com/snehjoshi/encodex/pkg/client"
)

// encoded and decoded are what the commands print, whichever backend ran.
type encoded struct {
	Envelope  string `json:"envelope"`
	ShareURL  string `json:"shareUrl,omitempty"`
	QRPayload string `json:"qrPayload"`
	MessageID string `json:"messageId,omitempty"`
}

type decoded struct {
	Text          string        `json:"text"`
	Method        string        `json:"method"`
	Shift         int           `json:"shift,omitempty"`
	Detected      bool          `json:"detected,omitempty"`
	Recovered     bool          `json:"recovered,omitempty"`
	SelfDestruct  bool          `json:"selfDestruct,omitempty"`
	DestructAfter time.Duration `json:"-"`
}

type candidate struct {
	Method     string  `json:"method"`
	Shift      int     `json:"shift,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type detection struct {
	Method         string      `json:"method"`
	Reason         string      `json:"reason"`
	PasswordLikely bool        `json:"passwordLikely"`
	Candidates     []candidate `json:"candidates"`
}

type record struct {
	MessageID string    `json:"messageId"`
	Viewed    bool      `json:"viewed"`
	CreatedAt time.Time `json:"createdAt"`
}

// errNotListable is returned by Records when the ledger cannot enumerate.
var errNotListable = errors.New("this ledger cannot list its records; use a local bolt or memory ledger")

// backend runs the operations either in-process or against a server.
type backend interface {
	Encode(ctx context.Context, req codec.EncodeRequest) (encoded, error)
	Decode(ctx context.Context, req codec.DecodeRequest) (decoded, error)
	Detect(ctx context.Context, text string) (detection, error)
	Records(ctx context.Context) ([]record, error)
	Close() error
}

// ─── local ───────────────────────────────────────────────────────────────────

type localBackend struct {
	ledger ledger.Ledger
	enc    *codec.Encoder
	dec    *codec.Decoder
}

// newLocal runs the codec in-process. One CLI invocation has no session to
// remember what it displayed, so every second view is refused.
func newLocal(l ledger.Ledger, baseURL string, countdown time.Duration) *localBackend {
	return &localBackend{
		ledger: l,
		enc:    codec.NewEncoder(l, baseURL),
		dec:    codec.NewDecoder(l, codec.WithCountdown(countdown), codec.WithStrict(true)),
	}
}

func (b *localBackend) Encode(ctx context.Context, req codec.EncodeRequest) (encoded, error) {
	res, err := b.enc.Encode(ctx, req)
	if err != nil {
		return encoded{}, err
	}
	return encoded{Envelope: res.Envelope, ShareURL: res.ShareURL, QRPayload: res.QRPayload, MessageID: res.MessageID}, nil
}

func (b *localBackend) Decode(ctx context.Context, req codec.DecodeRequest) (decoded, error) {
	res, err := b.dec.Decode(ctx, req, nil)
	if err != nil {
		return decoded{}, err
	}
	return decoded{
		Text:          res.Text,
		Method:        string(res.Method),
		Shift:         res.Shift,
		Detected:      res.Detected,
		Recovered:     res.Recovered,
		SelfDestruct:  res.SelfDestruct,
		DestructAfter: res.DestructAfter,
	}, nil
}

func (b *localBackend) Detect(_ context.Context, text string) (detection, error) {
	text = envelope.StripQRPrefix(text)
	method, reason := detect.Method(text)
	payload, md := envelope.Unwrap(text)

	d := detection{Method: string(method), Reason: string(reason)}
	if md != nil {
		d.PasswordLikely = md.PasswordProtected
	} else {
		d.PasswordLikely = detect.IsLikelyPasswordProtected(payload)
	}
	for _, s := range detect.Rank(payload) {
		d.Candidates = append(d.Candidates, candidate{
			Method:     string(s.Method),
			Shift:      s.Shift,
			Text:       s.Text,
			Confidence: s.Confidence,
		})
	}
	return d, nil
}

func (b *localBackend) Records(ctx context.Context) ([]record, error) {
	lister, ok := b.ledger.(ledger.Lister)
	if !ok {
		return nil, errNotListable
	}
	var out []record
	err := lister.ForEach(func(r ledger.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out = append(out, record{MessageID: r.MessageID, Viewed: r.Viewed, CreatedAt: r.CreatedAt})
		return nil
	})
	return out, err
}

func (b *localBackend) Close() error { return b.ledger.Close() }

// ─── remote ──────────────────────────────────────────────────────────────────

type remoteBackend struct {
	c *client.Client
}

func newRemote(serverURL, apiKey string) *remoteBackend {
	var opts []client.ClientOption
	if apiKey != "" {
		opts = append(opts, client.WithAPIKey(apiKey))
	}
	return &remoteBackend{c: client.New(serverURL, opts...)}
}

func (b *remoteBackend) Encode(ctx context.Context, req codec.EncodeRequest) (encoded, error) {
	opts := []client.EncodeOption{client.WithMethod(string(req.Method)), client.WithShift(req.Shift)}
	if req.Password != "" {
		opts = append(opts, client.WithPassword(req.Password))
	}
	if req.CustomKey != "" {
		opts = append(opts, client.WithCustomKey(req.CustomKey))
	}
	if req.SelfDestruct {
		opts = append(opts, client.WithSelfDestruct())
	}
	res, err := b.c.Encode(ctx, req.Text, opts...)
	if err != nil {
		return encoded{}, err
	}
	return encoded{Envelope: res.Envelope, ShareURL: res.ShareURL, QRPayload: res.QRPayload, MessageID: res.MessageID}, nil
}

func (b *remoteBackend) Decode(ctx context.Context, req codec.DecodeRequest) (decoded, error) {
	var opts []client.DecodeOption
	if req.Password != "" {
		opts = append(opts, client.DecodeWithPassword(req.Password))
	}
	if req.CustomKey != "" {
		opts = append(opts, client.DecodeWithCustomKey(req.CustomKey))
	}
	if req.Method != "" || req.Shift != 0 {
		opts = append(opts, client.DecodeAs(string(req.Method), req.Shift))
	}
	res, err := b.c.Decode(ctx, req.Text, opts...)
	if err != nil {
		return decoded{}, err
	}
	return decoded{
		Text:          res.Text,
		Method:        res.Method,
		Shift:         res.Shift,
		Detected:      res.Detected,
		Recovered:     res.Recovered,
		SelfDestruct:  res.SelfDestruct,
		DestructAfter: res.DestructAfter,
	}, nil
}

func (b *remoteBackend) Detect(ctx context.Context, text string) (detection, error) {
	res, err := b.c.Detect(ctx, text)
	if err != nil {
		return detection{}, err
	}
	d := detection{Method: res.Method, Reason: res.Reason, PasswordLikely: res.PasswordLikely}
	for _, c := range res.Candidates {
		d.Candidates = append(d.Candidates, candidate(c))
	}
	return d, nil
}

func (b *remoteBackend) Records(context.Context) ([]record, error) {
	return nil, errNotListable
}

func (b *remoteBackend) Close() error { return nil }

// methodNames lists the registered methods for flag help.
func methodNames() string {
	var names []string
	for _, t := range transform.List() {
		names = append(names, string(t.Method()))
	}
	return strings.Join(names, ", ")
}
