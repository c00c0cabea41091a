package client_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/config"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/metrics"
	"github.com/snehjoshi/encodex/internal/session"
	transphttp "github.com/snehjoshi/encodex/internal/transport/http"
	"github.com/snehjoshi/encodex/pkg/client"
)

// ─── test server helpers ──────────────────────────────────────────────────────

// newTestEnv spins up a real encodex stack behind httptest.Server. mutate may
// adjust the config before the server is built.
func newTestEnv(t *testing.T, mutate func(*config.Config), opts ...client.ClientOption) (*client.Client, string) {
	t.Helper()

	cfg := config.Default()
	cfg.Ledger.Backend = config.LedgerMemory
	cfg.RateLimit.RPS = 0
	if mutate != nil {
		mutate(cfg)
	}

	l := ledger.NewMemory()
	srv := transphttp.New(cfg, transphttp.Deps{
		Encoder:  codec.NewEncoder(l, cfg.Share.BaseURL),
		Decoder:  codec.NewDecoder(l, codec.WithCountdown(cfg.SelfDestruct.Countdown())),
		Sessions: session.NewStore(),
		Metrics:  &metrics.Registry{},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return client.New(ts.URL, opts...), ts.URL
}

// ctx is a convenience context for tests.
func ctx() context.Context { return context.Background() }

// ─── Encode / decode ──────────────────────────────────────────────────────────

func TestEncodeDecode_Default(t *testing.T) {
	c, _ := newTestEnv(t, nil)

	msg, err := c.Encode(ctx(), "Hello")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.Metadata.Type != client.MethodSubstitution {
		t.Errorf("default method: got %s", msg.Metadata.Type)
	}

	out, err := c.Decode(ctx(), msg.Envelope)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Text != "Hello" {
		t.Errorf("want Hello, got %q", out.Text)
	}
}

func TestEncodeDecode_AllOptions(t *testing.T) {
	c, _ := newTestEnv(t, nil)

	msg, err := c.Encode(ctx(), "meet me at noon",
		client.WithMethod(client.MethodCaesar),
		client.WithShift(7),
		client.WithCustomKey("open sesame"),
		client.WithPassword("hunter2"),
	)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	md := msg.Metadata
	if md.Shift == nil || *md.Shift != 7 || !md.PasswordProtected || !md.CustomEncryption {
		t.Fatalf("metadata: %+v", md)
	}

	out, err := c.Decode(ctx(), msg.QRPayload,
		client.DecodeWithPassword("hunter2"),
		client.DecodeWithCustomKey("open sesame"),
	)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Text != "meet me at noon" || out.Shift != 7 {
		t.Errorf("want caesar/7 %q, got %d %q", "meet me at noon", out.Shift, out.Text)
	}
}

func TestDecode_Hint(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	out, err := c.Decode(ctx(), "Rjjy", client.DecodeAs(client.MethodCaesar, 5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Text != "Meet" || out.Detected {
		t.Errorf("want hinted Meet, got %q (detected=%v)", out.Text, out.Detected)
	}
}

// ─── Errors ───────────────────────────────────────────────────────────────────

func TestErrors_Password(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	msg, err := c.Encode(ctx(), "secret", client.WithMethod(client.MethodBase64), client.WithPassword("pw123"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = c.Decode(ctx(), msg.Envelope)
	if !client.IsPasswordRequired(err) {
		t.Fatalf("want password required, got %v", err)
	}
	_, err = c.Decode(ctx(), msg.Envelope, client.DecodeWithPassword("wrong"))
	if !client.IsIncorrectPassword(err) {
		t.Fatalf("want incorrect password, got %v", err)
	}

	var ae *client.APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusForbidden || ae.Kind != "wrong_secret" {
		t.Errorf("APIError: %+v", ae)
	}
}

func TestErrors_CustomKey(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	msg, err := c.Encode(ctx(), "hello", client.WithCustomKey("k"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(ctx(), msg.Envelope); !client.IsCustomKeyRequired(err) {
		t.Fatalf("want custom key required, got %v", err)
	}
}

func TestErrors_Undecodable(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	if _, err := c.Decode(ctx(), "\x01\x02\x03"); !client.IsUndecodable(err) {
		t.Fatalf("want undecodable, got %v", err)
	}
}

func TestErrors_BadRequest(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	_, err := c.Encode(ctx(), "x", client.WithMethod("rot13"))
	var ae *client.APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %v", err)
	}
}

// ─── Self-destruct and sessions ───────────────────────────────────────────────

func TestSelfDestruct_SessionIsSticky(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	msg, err := c.Encode(ctx(), "bye", client.WithSelfDestruct())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.MessageID == "" {
		t.Fatal("self-destructing message needs an id")
	}
	if c.SessionID() != "" {
		t.Fatal("session id is assigned by the first decode")
	}

	out, err := c.Decode(ctx(), msg.Envelope)
	if err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	if !out.SelfDestruct || out.DestructAfter != 3*time.Second || out.MessageID != msg.MessageID {
		t.Errorf("decoded: %+v", out)
	}
	if c.SessionID() == "" {
		t.Fatal("client should adopt the server's session id")
	}

	if _, err := c.Decode(ctx(), msg.Envelope); !client.IsDestructed(err) {
		t.Fatalf("second Decode: want destructed, got %v", err)
	}
}

func TestSelfDestruct_ResumedSession(t *testing.T) {
	c, url := newTestEnv(t, nil)
	msg, err := c.Encode(ctx(), "bye", client.WithSelfDestruct())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(ctx(), msg.Envelope); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	same := client.New(url, client.WithSessionID(c.SessionID()))
	if _, err := same.Decode(ctx(), msg.Envelope); !client.IsDestructed(err) {
		t.Fatalf("resumed session: want destructed, got %v", err)
	}

	other := client.New(url)
	if _, err := other.Decode(ctx(), msg.Envelope); err != nil {
		t.Fatalf("fresh session outside strict mode: %v", err)
	}
}

// ─── Detect / methods / QR / health ───────────────────────────────────────────

func TestDetect(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	d, err := c.Detect(ctx(), "Rjjy rj fy stts")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Method != client.MethodCaesar || len(d.Candidates) == 0 {
		t.Fatalf("detection: %+v", d)
	}
	if top := d.Candidates[0]; top.Shift != 5 || top.Text != "Meet me at noon" {
		t.Errorf("top candidate: %+v", top)
	}
}

func TestMethods(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	ms, err := c.Methods(ctx())
	if err != nil {
		t.Fatalf("Methods: %v", err)
	}
	if len(ms) != 4 {
		t.Errorf("want 4 methods, got %d", len(ms))
	}
}

func TestQRCode(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	msg, err := c.Encode(ctx(), "Hello")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	png, err := c.QRCode(ctx(), msg.Envelope, 128)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("not a PNG")
	}
	if _, err := c.QRCode(ctx(), msg.Envelope, 1); err == nil {
		t.Error("tiny size should be rejected")
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestEnv(t, nil)
	h, err := c.Health(ctx())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "ok" || h.Ledger != "memory" {
		t.Errorf("health: %+v", h)
	}
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestAPIKey(t *testing.T) {
	enableAuth := func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKey = "k3y"
	}

	anon, url := newTestEnv(t, enableAuth)
	_, err := anon.Encode(ctx(), "x")
	var ae *client.APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without key: want 401, got %v", err)
	}

	authed := client.New(url, client.WithAPIKey("k3y"))
	if _, err := authed.Encode(ctx(), "x"); err != nil {
		t.Fatalf("with key: %v", err)
	}
}
