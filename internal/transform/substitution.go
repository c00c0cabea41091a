package transform

import (
	"strings"
	"unicode/utf8"
)

// substitutionTable maps a lowercase rune to its symbol sequence.
// The table is fixed: decode relies on no symbol being a strict prefix of a
// longer one except where longest-match already resolves it.
var substitutionTable = map[rune]string{
	'a': "4", 'b': "8", 'c': "(", 'd': "|)", 'e': "3", 'f': "|=", 'g': "6",
	'h': "#", 'i': "!", 'j': "_|", 'k': "|<", 'l': "1", 'm': "|v|", 'n': `|\|`,
	'o': "0", 'p': "|°", 'q': "9", 'r': "|2", 's': "$", 't': "7", 'u': "|_|",
	'v': `\/`, 'w': `\/\/`, 'x': "><", 'y': "`/", 'z': "2",
	' ': "~",
	'0': "ø", '1': "i", '2': "z", '3': "e", '4': "a",
	'5': "s", '6': "g", '7': "t", '8': "b", '9': "q",
	'.': "•", ',': "¸", '?': "¿", '!': "¡",
}

var (
	substitutionReverse = make(map[string]rune, len(substitutionTable))
	// substitutionMaxLen is the rune length of the longest symbol.
	substitutionMaxLen int
	// symbolRunes holds every non-letter rune used by the letter and space
	// symbols; the detector scores text against it.
	symbolRunes = make(map[rune]bool)
	// glyphRunes holds every rune of every symbol.
	glyphRunes = make(map[rune]bool)
)

func init() {
	for plain, sym := range substitutionTable {
		substitutionReverse[sym] = plain
		for _, r := range sym {
			glyphRunes[r] = true
		}
		if n := utf8.RuneCountInString(sym); n > substitutionMaxLen {
			substitutionMaxLen = n
		}
		if (plain >= 'a' && plain <= 'z') || plain == ' ' {
			for _, r := range sym {
				if !isASCIILetter(r) {
					symbolRunes[r] = true
				}
			}
		}
	}
}

// Substitution swaps letters, digits, space and four punctuation marks for
// short symbol sequences. Case is not preserved.
type Substitution struct{}

func (Substitution) Method() Method { return MethodSubstitution }

func (Substitution) Description() string {
	return "Replace characters with look-alike symbol sequences"
}

func (Substitution) Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range strings.ToLower(text) {
		if sym, ok := substitutionTable[r]; ok {
			b.WriteString(sym)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Decode tokenizes greedily: at each position the longest known symbol wins,
// and a rune that starts no symbol passes through unchanged.
func (Substitution) Decode(code string) (string, error) {
	runes := []rune(code)
	var b strings.Builder
	b.Grow(len(code))

	for i := 0; i < len(runes); {
		matched := false
		for n := min(substitutionMaxLen, len(runes)-i); n >= 1; n-- {
			if plain, ok := substitutionReverse[string(runes[i:i+n])]; ok {
				b.WriteRune(plain)
				i += n
				matched = true
				break
			}
		}
		if !matched {
			b.WriteRune(runes[i])
			i++
		}
	}
	return b.String(), nil
}

// IsSymbolRune reports whether r appears in a letter or space symbol of the
// substitution table (ASCII letters excluded).
func IsSymbolRune(r rune) bool { return symbolRunes[r] }

// IsGlyph reports whether r appears anywhere in the substitution table's
// output alphabet.
func IsGlyph(r rune) bool { return glyphRunes[r] }

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
