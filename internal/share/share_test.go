package share_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/share"
)

const sample = "#3110||eyJ0eXBlIjoic2ltcGxlIn0="

func TestURL_RoundTrip(t *testing.T) {
	link, err := share.URL("https://encodex.example/", sample)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.HasPrefix(link, "https://encodex.example/?decrypt=") {
		t.Errorf("unexpected link %q", link)
	}
	if strings.Contains(link, "||") || strings.Contains(link, "#") {
		t.Errorf("envelope not escaped: %q", link)
	}
	got, err := share.FromURL(link)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if got != sample {
		t.Errorf("want %q, got %q", sample, got)
	}
}

func TestURL_KeepsExistingQuery(t *testing.T) {
	link, err := share.URL("https://encodex.example/decode?lang=en", "abc")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(link, "lang=en") || !strings.Contains(link, "decrypt=abc") {
		t.Errorf("unexpected link %q", link)
	}
}

func TestFromURL_NoMessage(t *testing.T) {
	if _, err := share.FromURL("https://encodex.example/"); !errors.Is(err, share.ErrNoMessage) {
		t.Fatalf("want ErrNoMessage, got %v", err)
	}
}

func TestQRPayload(t *testing.T) {
	p := share.QRPayload(sample)
	if !envelope.HasQRPrefix(p) {
		t.Fatalf("missing prefix: %q", p)
	}
	if envelope.StripQRPrefix(p) != sample {
		t.Fatalf("strip: got %q", envelope.StripQRPrefix(p))
	}
}

func TestQRCode_PNG(t *testing.T) {
	png, err := share.QRCode(sample, 256)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("output is not a PNG")
	}
}
