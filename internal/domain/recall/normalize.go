package recall

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// quoteFolds maps typographic quote and apostrophe variants onto ASCII.
var quoteFolds = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"ʼ", "'",
	"´", "'",
	"`", "'",
	"«", `"`,
	"»", `"`,
	"“", `"`,
	"”", `"`,
	"„", `"`,
)

// Normalize reduces text to the form recalls are compared in: NFC composed,
// lowercased, quote glyphs folded, punctuation removed, whitespace collapsed
// and trimmed. Apostrophes inside a word are kept so that elisions such as
// "j'ose" survive as one token.
func Normalize(text string) string {
	s := norm.NFC.String(text)
	s = cases.Lower(language.Und).String(s)
	s = quoteFolds.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '\'':
			if i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]) {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens splits normalized text into words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
