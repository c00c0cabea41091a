package charset_test

import (
	"testing"

	"github.com/snehjoshi/encodex/internal/charset"
)

func TestReadable(t *testing.T) {
	cases := map[string]bool{
		"hello world":    true,
		"tabs\tand\nnl":  true,
		"Hi! #1 ~ok~":    true,
		"":               false,
		"café":      false,
		"\x01\x02":       false,
		"smile 😀":        false,
		string([]byte{0xff, 0xfe}): false,
	}
	for in, want := range cases {
		if got := charset.Readable(in); got != want {
			t.Errorf("Readable(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestReadableWithEmoji(t *testing.T) {
	cases := map[string]bool{
		"plain":       true,
		"smile 😀":     true,
		"✊➖⭕❓":        true,
		"":            false,
		"café 😀": false,
		"\x7f":        false,
	}
	for in, want := range cases {
		if got := charset.ReadableWithEmoji(in); got != want {
			t.Errorf("ReadableWithEmoji(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestContainsEmoji(t *testing.T) {
	cases := map[string]bool{
		"😀😁":          true,
		"abc ✊":       true,
		"digits 0123": false,
		"#3110":       false,
		"|°4$$ •¸¿¡ø": false,
		"":            false,
	}
	for in, want := range cases {
		if got := charset.ContainsEmoji(in); got != want {
			t.Errorf("ContainsEmoji(%q): want %v, got %v", in, want, got)
		}
	}
}
