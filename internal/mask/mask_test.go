package mask_test

import (
	"errors"
	"testing"

	"github.com/snehjoshi/encodex/internal/mask"
)

func TestProtect_BlankPasswordIsNoop(t *testing.T) {
	for _, pw := range []string{"", "   ", "\t\n"} {
		if got := mask.Protect("hello", pw); got != "hello" {
			t.Errorf("Protect with %q: got %q", pw, got)
		}
		got, err := mask.Unprotect("hello", pw)
		if err != nil || got != "hello" {
			t.Errorf("Unprotect with %q: got %q, %v", pw, got, err)
		}
	}
}

func TestProtect_KnownVector(t *testing.T) {
	// "secret" XOR "pw123" = 03 12 52 40 56 04
	if got := mask.Protect("secret", "pw123"); got != "AxJSQFYE" {
		t.Errorf("Protect: want AxJSQFYE, got %q", got)
	}
}

func TestProtectUnprotect_RoundTrip(t *testing.T) {
	cases := []struct{ text, pw string }{
		{"secret", "pw123"},
		{"c2VjcmV0", "pw123"},
		{"meet me at noon", "k"},
		{"😀😁 hi", "pw"},
		{"$33~`/0|_|~47~q¡", "hunter2"},
		{"\U0001F44D\uFE0F ok", "pw"},
		{"a", "a much longer password than the text"},
	}
	for _, c := range cases {
		cipher := mask.Protect(c.text, c.pw)
		if cipher == c.text {
			t.Errorf("Protect(%q) left text unchanged", c.text)
		}
		got, err := mask.Unprotect(cipher, c.pw)
		if err != nil {
			t.Fatalf("Unprotect(%q): %v", c.text, err)
		}
		if got != c.text {
			t.Errorf("round trip: want %q, got %q", c.text, got)
		}
	}
}

func TestUnprotect_WrongPasswordFailsWithoutLeak(t *testing.T) {
	cipher := mask.Protect("c2VjcmV0", "pw123")
	got, err := mask.Unprotect(cipher, "wrong")
	if !errors.Is(err, mask.ErrIncorrectPassword) {
		t.Fatalf("want ErrIncorrectPassword, got %v (%q)", err, got)
	}
	if got != "" {
		t.Errorf("failed unprotect leaked %q", got)
	}
}

func TestUnprotect_NotBase64(t *testing.T) {
	if _, err := mask.Unprotect("%%%", "pw"); !errors.Is(err, mask.ErrIncorrectPassword) {
		t.Fatalf("want ErrIncorrectPassword, got %v", err)
	}
}

func TestKeyShift(t *testing.T) {
	cases := map[string]int{
		"":    0,
		"a":   97 % 26,
		"key": (107 + 101 + 121) % 26,
		"😀":   (0xD83D + 0xDE00) % 26,
	}
	for in, want := range cases {
		if got := mask.KeyShift(in); got != want {
			t.Errorf("KeyShift(%q): want %d, got %d", in, want, got)
		}
	}
}

func TestApplyRemoveKey(t *testing.T) {
	text := "Rjjy rj at 9"
	for _, key := range []string{"", "k", "open sesame", "🔑"} {
		if got := mask.RemoveKey(mask.ApplyKey(text, key), key); got != text {
			t.Errorf("key %q: round trip got %q", key, got)
		}
	}
}
