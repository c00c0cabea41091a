package transform

import (
	"strings"

	"github.com/rivo/uniseg"
)

// variationSelector16 requests emoji presentation; pasted emoji often carry it.
const variationSelector16 = "\uFE0F"

var emojiTable = map[rune]string{
	'a': "😀", 'b': "😁", 'c': "😂", 'd': "🤣", 'e': "😃", 'f': "😄", 'g': "😅",
	'h': "😆", 'i': "😉", 'j': "😊", 'k': "😋", 'l': "😎", 'm': "😍", 'n': "😘",
	'o': "🥰", 'p': "😗", 'q': "😙", 'r': "😚", 's': "🙂", 't': "🤗", 'u': "🤩",
	'v': "🤔", 'w': "🤨", 'x': "😐", 'y': "😑", 'z': "😶",
	'0': "👌", '1': "👍", '2': "👎", '3': "👊", '4': "✊",
	'5': "🤛", '6': "🤜", '7': "👏", '8': "🙌", '9': "👐",
	' ': "➖", '.': "⭕", ',': "❓", '?': "❔", '!': "❕",
}

var emojiReverse = make(map[string]rune, len(emojiTable))

func init() {
	for plain, glyph := range emojiTable {
		emojiReverse[glyph] = plain
	}
}

// Emoji swaps letters, digits, space and punctuation for single emoji
// glyphs. Case is not preserved.
type Emoji struct{}

func (Emoji) Method() Method { return MethodEmoji }

func (Emoji) Description() string { return "Replace characters with emoji" }

func (Emoji) Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 4)
	for _, r := range strings.ToLower(text) {
		if glyph, ok := emojiTable[r]; ok {
			b.WriteString(glyph)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Decode walks the input by extended grapheme cluster so multi-code-point
// emoji are matched as one token.
func (Emoji) Decode(code string) (string, error) {
	var b strings.Builder
	b.Grow(len(code))

	g := uniseg.NewGraphemes(code)
	for g.Next() {
		cluster := g.Str()
		if plain, ok := emojiReverse[cluster]; ok {
			b.WriteRune(plain)
			continue
		}
		if plain, ok := emojiReverse[strings.TrimSuffix(cluster, variationSelector16)]; ok {
			b.WriteRune(plain)
			continue
		}
		b.WriteString(cluster)
	}
	return b.String(), nil
}
