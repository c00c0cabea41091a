package transform

import "strings"

// DefaultShift is the shift used when a Caesar encode is requested without one.
const DefaultShift = 3

// Caesar rotates ASCII letters by Shift positions within their own case.
// Every other rune is left unchanged.
type Caesar struct {
	Shift int
}

func (Caesar) Method() Method { return MethodCaesar }

func (Caesar) Description() string {
	return "Rotate ASCII letters by a fixed shift"
}

func (c Caesar) Encode(text string) string { return CaesarEncode(text, c.Shift) }

func (c Caesar) Decode(text string) (string, error) { return CaesarDecode(text, c.Shift), nil }

// NormalizeShift folds any integer into [0,25].
func NormalizeShift(shift int) int {
	s := shift % 26
	if s < 0 {
		s += 26
	}
	return s
}

// CaesarEncode rotates every ASCII letter of text forward by shift.
func CaesarEncode(text string, shift int) string {
	s := rune(NormalizeShift(shift))
	if s == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			r = (r-'A'+s)%26 + 'A'
		case r >= 'a' && r <= 'z':
			r = (r-'a'+s)%26 + 'a'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CaesarDecode reverses CaesarEncode for the same shift.
func CaesarDecode(text string, shift int) string {
	return CaesarEncode(text, (26-NormalizeShift(shift))%26)
}
