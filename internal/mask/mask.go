// Package mask implements the two secret-dependent layers of an encoded
// message: a password XOR stream and a custom-key Caesar shift.
//
// Neither layer is encryption. The XOR stream hides the payload from a casual
// reader and makes a wrong password detectable, nothing more.
package mask

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"unicode/utf16"

	"github.com/snehjoshi/encodex/internal/charset"
	"github.com/snehjoshi/encodex/internal/transform"
)

// ErrIncorrectPassword is returned when a masked payload does not unmask to
// readable text. No part of the attempted output is ever returned with it.
var ErrIncorrectPassword = errors.New("mask: incorrect password")

// Blank reports whether a secret is empty or whitespace only. Blank secrets
// disable their layer.
func Blank(secret string) bool { return strings.TrimSpace(secret) == "" }

// Protect XORs every UTF-16 code unit of text with the password's code unit at
// the same index (cycling the password) and Base64-encodes the result.
//
// When every masked unit fits in a byte the stream carries one byte per unit;
// otherwise it carries big-endian 16-bit units.
func Protect(text, password string) string {
	if Blank(password) {
		return text
	}
	units := xor(utf16.Encode([]rune(text)), utf16.Encode([]rune(password)))

	narrow := true
	for _, u := range units {
		if u > 0xFF {
			narrow = false
			break
		}
	}

	var buf []byte
	if narrow {
		buf = make([]byte, len(units))
		for i, u := range units {
			buf[i] = byte(u)
		}
	} else {
		buf = make([]byte, 2*len(units))
		for i, u := range units {
			binary.BigEndian.PutUint16(buf[2*i:], u)
		}
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Unprotect reverses Protect. A blank password returns cipher unchanged.
func Unprotect(cipher, password string) (string, error) {
	if Blank(password) {
		return cipher, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cipher)
	if err != nil {
		return "", ErrIncorrectPassword
	}
	if len(raw) == 0 {
		return "", nil
	}
	key := utf16.Encode([]rune(password))

	narrow := make([]uint16, len(raw))
	for i, b := range raw {
		narrow[i] = uint16(b)
	}
	if s := string(utf16.Decode(xor(narrow, key))); plausible(s) {
		return s, nil
	}

	if len(raw)%2 == 0 {
		wide := make([]uint16, len(raw)/2)
		for i := range wide {
			wide[i] = binary.BigEndian.Uint16(raw[2*i:])
		}
		if s := string(utf16.Decode(xor(wide, key))); plausible(s) {
			return s, nil
		}
	}
	return "", ErrIncorrectPassword
}

// plausible reports whether s could be an encoded payload: readable text,
// emoji, or substitution glyphs.
func plausible(s string) bool {
	if charset.ReadableWithEmoji(s) {
		return true
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if !transform.IsGlyph(r) && !charset.ReadableWithEmoji(string(r)) {
			return false
		}
	}
	return true
}

func xor(units, key []uint16) []uint16 {
	out := make([]uint16, len(units))
	for i, u := range units {
		out[i] = u ^ key[i%len(key)]
	}
	return out
}

// KeyShift derives the extra Caesar shift for a custom key: the sum of the
// key's UTF-16 code units modulo 26.
func KeyShift(key string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(key)) {
		sum += int(u)
	}
	return sum % 26
}

// ApplyKey shifts text forward by the key's derived shift. A blank key is a
// no-op.
func ApplyKey(text, key string) string {
	if key == "" {
		return text
	}
	return transform.CaesarEncode(text, KeyShift(key))
}

// RemoveKey reverses ApplyKey.
func RemoveKey(text, key string) string {
	if key == "" {
		return text
	}
	return transform.CaesarDecode(text, KeyShift(key))
}
