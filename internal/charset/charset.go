// Package charset classifies runes and strings for the decoder heuristics:
// whether text looks like something a person typed, and whether it carries
// emoji.
package charset

import "unicode"

// IsPrintableASCII reports whether r is in [0x20, 0x7E].
func IsPrintableASCII(r rune) bool { return r >= 0x20 && r <= 0x7E }

// IsEmoji reports whether r is a pictographic emoji glyph. ASCII keycap bases
// (digits, '#', '*') are excluded even though Unicode marks them Emoji.
func IsEmoji(r rune) bool { return unicode.Is(pictographic, r) }

// IsEmojiPresentation reports whether r renders as emoji by default.
func IsEmojiPresentation(r rune) bool { return unicode.Is(emojiPresentation, r) }

// Readable reports whether s is non-empty and made only of printable ASCII
// and whitespace.
func Readable(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsPrintableASCII(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// ReadableWithEmoji is Readable that also admits emoji-presentation glyphs
// and the joiners that build emoji sequences.
func ReadableWithEmoji(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsPrintableASCII(r) && !unicode.IsSpace(r) && !IsEmojiPresentation(r) && !isEmojiJoiner(r) {
			return false
		}
	}
	return true
}

// isEmojiJoiner matches U+200D ZERO WIDTH JOINER and U+FE0F VARIATION
// SELECTOR-16.
func isEmojiJoiner(r rune) bool { return r == 0x200D || r == 0xFE0F }

// ContainsEmoji reports whether any rune of s is an emoji glyph.
func ContainsEmoji(s string) bool {
	for _, r := range s {
		if IsEmoji(r) {
			return true
		}
	}
	return false
}

// emojiPresentation approximates the Unicode Emoji_Presentation property.
var emojiPresentation = &unicode.RangeTable{
	R16: []unicode.Range16{
		{0x231A, 0x231B, 1}, {0x23E9, 0x23EC, 1}, {0x23F0, 0x23F0, 1},
		{0x23F3, 0x23F3, 1}, {0x25FD, 0x25FE, 1}, {0x2614, 0x2615, 1},
		{0x2648, 0x2653, 1}, {0x267F, 0x267F, 1}, {0x2693, 0x2693, 1},
		{0x26A1, 0x26A1, 1}, {0x26AA, 0x26AB, 1}, {0x26BD, 0x26BE, 1},
		{0x26C4, 0x26C5, 1}, {0x26CE, 0x26CE, 1}, {0x26D4, 0x26D4, 1},
		{0x26EA, 0x26EA, 1}, {0x26F2, 0x26F3, 1}, {0x26F5, 0x26F5, 1},
		{0x26FA, 0x26FA, 1}, {0x26FD, 0x26FD, 1}, {0x2705, 0x2705, 1},
		{0x270A, 0x270B, 1}, {0x2728, 0x2728, 1}, {0x274C, 0x274C, 1},
		{0x274E, 0x274E, 1}, {0x2753, 0x2755, 1}, {0x2757, 0x2757, 1},
		{0x2795, 0x2797, 1}, {0x27B0, 0x27B0, 1}, {0x27BF, 0x27BF, 1},
		{0x2B1B, 0x2B1C, 1}, {0x2B50, 0x2B50, 1}, {0x2B55, 0x2B55, 1},
	},
	R32: []unicode.Range32{
		{0x1F004, 0x1F004, 1}, {0x1F0CF, 0x1F0CF, 1}, {0x1F18E, 0x1F18E, 1},
		{0x1F191, 0x1F19A, 1}, {0x1F1E6, 0x1F1FF, 1}, {0x1F201, 0x1F201, 1},
		{0x1F21A, 0x1F21A, 1}, {0x1F22F, 0x1F22F, 1}, {0x1F232, 0x1F236, 1},
		{0x1F238, 0x1F23A, 1}, {0x1F250, 0x1F251, 1}, {0x1F300, 0x1F320, 1},
		{0x1F32D, 0x1F335, 1}, {0x1F337, 0x1F37C, 1}, {0x1F37E, 0x1F393, 1},
		{0x1F3A0, 0x1F3CA, 1}, {0x1F3CF, 0x1F3D3, 1}, {0x1F3E0, 0x1F3F0, 1},
		{0x1F3F4, 0x1F3F4, 1}, {0x1F3F8, 0x1F43E, 1}, {0x1F440, 0x1F440, 1},
		{0x1F442, 0x1F4FC, 1}, {0x1F4FF, 0x1F53D, 1}, {0x1F54B, 0x1F54E, 1},
		{0x1F550, 0x1F567, 1}, {0x1F57A, 0x1F57A, 1}, {0x1F595, 0x1F596, 1},
		{0x1F5A4, 0x1F5A4, 1}, {0x1F5FB, 0x1F64F, 1}, {0x1F680, 0x1F6C5, 1},
		{0x1F6CC, 0x1F6CC, 1}, {0x1F6D0, 0x1F6D2, 1}, {0x1F6D5, 0x1F6D7, 1},
		{0x1F6DC, 0x1F6DF, 1}, {0x1F6EB, 0x1F6EC, 1}, {0x1F6F4, 0x1F6FC, 1},
		{0x1F7E0, 0x1F7EB, 1}, {0x1F7F0, 0x1F7F0, 1}, {0x1F90C, 0x1F93A, 1},
		{0x1F93C, 0x1F945, 1}, {0x1F947, 0x1F9FF, 1}, {0x1FA70, 0x1FA7C, 1},
		{0x1FA80, 0x1FA89, 1}, {0x1FA8F, 0x1FAC6, 1}, {0x1FACE, 0x1FADC, 1},
		{0x1FADF, 0x1FAE9, 1}, {0x1FAF0, 0x1FAF8, 1},
	},
}

// pictographic covers the emoji blocks plus the text-default symbols that
// render as emoji when followed by U+FE0F.
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{0x00A9, 0x00A9, 1}, {0x00AE, 0x00AE, 1}, {0x203C, 0x203C, 1},
		{0x2049, 0x2049, 1}, {0x2122, 0x2122, 1}, {0x2139, 0x2139, 1},
		{0x2194, 0x2199, 1}, {0x21A9, 0x21AA, 1}, {0x231A, 0x231B, 1},
		{0x2328, 0x2328, 1}, {0x23CF, 0x23CF, 1}, {0x23E9, 0x23F3, 1},
		{0x23F8, 0x23FA, 1}, {0x24C2, 0x24C2, 1}, {0x25AA, 0x25AB, 1},
		{0x25B6, 0x25B6, 1}, {0x25C0, 0x25C0, 1}, {0x25FB, 0x25FE, 1},
		{0x2600, 0x27BF, 1}, {0x2934, 0x2935, 1}, {0x2B05, 0x2B07, 1},
		{0x2B1B, 0x2B1C, 1}, {0x2B50, 0x2B50, 1}, {0x2B55, 0x2B55, 1},
		{0x3030, 0x3030, 1}, {0x303D, 0x303D, 1}, {0x3297, 0x3297, 1},
		{0x3299, 0x3299, 1},
	},
	R32: []unicode.Range32{
		{0x1F000, 0x1FAFF, 1},
	},
	LatinOffset: 2,
}
