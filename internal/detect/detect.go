// Package detect guesses how a piece of text was encoded when the envelope
// does not say, and searches the method space for a readable decoding when
// the declared method fails.
//
// Everything here is a heuristic. A short Caesar-shifted string is readable
// under every shift, so the search can and will accept the wrong candidate on
// such input.
package detect

import (
	"encoding/base64"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/snehjoshi/encodex/internal/charset"
	"github.com/snehjoshi/encodex/internal/envelope"
	"github.com/snehjoshi/encodex/internal/transform"
)

// Reason explains which rule produced a Method guess.
type Reason string

const (
	ReasonMetadata     Reason = "metadata declares the method"
	ReasonEmoji        Reason = "text contains emoji glyphs"
	ReasonBase64       Reason = "text is valid Base64 of printable text"
	ReasonSubstitution Reason = "more than a third of the text is substitution symbols"
	ReasonFallback     Reason = "no stronger signal; any text can be Caesar-shifted"
)

// passwordSampleLen and passwordThreshold tune IsLikelyPasswordProtected.
const (
	passwordSampleLen = 20
	passwordThreshold = 8
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// IsLikelyPasswordProtected reports whether text looks like a masked payload:
// it Base64-decodes and more than 8 of the first 20 decoded bytes fall outside
// printable ASCII.
func IsLikelyPasswordProtected(text string) bool {
	raw, ok := decodeBase64(text)
	if !ok {
		return false
	}
	n := min(len(raw), passwordSampleLen)
	outside := 0
	for _, b := range raw[:n] {
		if b < 32 || b > 126 {
			outside++
		}
	}
	return outside > passwordThreshold
}

// Method returns the most likely transform for text. The rules are checked in
// a fixed order: metadata, emoji, Base64, substitution, then Caesar as the
// catch-all. Emoji is checked before Base64 because emoji text can satisfy
// the later checks by accident.
func Method(text string) (transform.Method, Reason) {
	if md := envelope.Peek(text); md != nil {
		return md.Type, ReasonMetadata
	}
	if charset.ContainsEmoji(text) {
		return transform.MethodEmoji, ReasonEmoji
	}
	if looksLikeBase64(text) {
		return transform.MethodBase64, ReasonBase64
	}
	if substitutionShare(text) > 1.0/3.0 {
		return transform.MethodSubstitution, ReasonSubstitution
	}
	return transform.MethodCaesar, ReasonFallback
}

func looksLikeBase64(text string) bool {
	if !base64Pattern.MatchString(text) || len(text)%4 != 0 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return false
	}
	return charset.Readable(string(raw))
}

func substitutionShare(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	hits := 0
	for _, r := range text {
		if transform.IsSymbolRune(r) {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

// decodeBase64 accepts padded or unpadded standard Base64.
func decodeBase64(text string) ([]byte, bool) {
	if raw, err := base64.StdEncoding.DecodeString(text); err == nil {
		return raw, true
	}
	if raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "=")); err == nil {
		return raw, true
	}
	return nil, false
}

// ─── Recovery search ─────────────────────────────────────────────────────────

// Candidate is one point of the recovery search space.
type Candidate struct {
	Method transform.Method `json:"method"`
	Shift  int              `json:"shift,omitempty"`
}

// Transform returns the transform the candidate decodes with.
func (c Candidate) Transform() transform.Transform {
	t, err := transform.For(c.Method, c.Shift)
	if err != nil {
		// Candidates are only built from the four known methods.
		panic(err)
	}
	return t
}

// Candidates returns the 28 recovery candidates in search order: Emoji,
// Base64, Substitution, then Caesar with shifts 1 through 25.
func Candidates() []Candidate {
	out := []Candidate{
		{Method: transform.MethodEmoji},
		{Method: transform.MethodBase64},
		{Method: transform.MethodSubstitution},
	}
	for s := 1; s <= 25; s++ {
		out = append(out, Candidate{Method: transform.MethodCaesar, Shift: s})
	}
	return out
}

// Recovery is a successful search result.
type Recovery struct {
	Candidate
	Text string `json:"text"`
}

// Recover tries every candidate in order and returns the first whose output
// is readable ASCII. When the input itself contains emoji, the first
// candidate that decodes at all is accepted.
func Recover(text string) (Recovery, bool) {
	selfValidating := charset.ContainsEmoji(text)
	for _, c := range Candidates() {
		out, err := c.Transform().Decode(text)
		if err != nil {
			continue
		}
		if selfValidating || charset.Readable(out) {
			return Recovery{Candidate: c, Text: out}, true
		}
	}
	return Recovery{}, false
}

// ─── Scored search ───────────────────────────────────────────────────────────

// Scored is a candidate decoding with a confidence in [0,1].
type Scored struct {
	Recovery
	Confidence float64 `json:"confidence"`
}

// englishFreq is the relative frequency (percent) of each letter a..z in
// English prose.
var englishFreq = [26]float64{
	8.2, 1.5, 2.8, 4.3, 12.7, 2.2, 2.0, 6.1, 7.0, 0.15, 0.77, 4.0, 2.4,
	6.7, 7.5, 1.9, 0.095, 6.0, 6.3, 9.1, 2.8, 0.98, 2.4, 0.15, 2.0, 0.074,
}

// Rank decodes text with every candidate and orders the readable results by
// how much they look like English prose. Candidates that fail to decode or
// produce unreadable output are dropped. Ties keep search order.
func Rank(text string) []Scored {
	var out []Scored
	for _, c := range Candidates() {
		dec, err := c.Transform().Decode(text)
		if err != nil || !charset.ReadableWithEmoji(dec) {
			continue
		}
		out = append(out, Scored{
			Recovery:   Recovery{Candidate: c, Text: dec},
			Confidence: confidence(dec),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// confidence is the share of letters and spaces in s, damped by the
// chi-squared distance of its letter distribution from English.
func confidence(s string) float64 {
	var counts [26]int
	var total, spaces, letters int
	for _, r := range s {
		total++
		switch {
		case r == ' ':
			spaces++
		case r >= 'a' && r <= 'z':
			counts[r-'a']++
			letters++
		case r >= 'A' && r <= 'Z':
			counts[r-'A']++
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	n := float64(letters)
	chi := 0.0
	for i, f := range englishFreq {
		want := f / 100 * n
		d := float64(counts[i]) - want
		chi += d * d / want
	}
	share := float64(letters+spaces) / float64(total)
	return share / (1 + chi/n)
}
