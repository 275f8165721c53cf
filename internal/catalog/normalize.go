package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleKeyTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// TitleKey folds a title into a comparison key: lowercased, diacritics
// stripped, punctuation dropped and whitespace collapsed. "Amélie!" and
// "amelie" produce the same key, which keeps title sorting and the
// no-imdb-code dedup fallback stable across providers.
func TitleKey(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	if folded, _, err := transform.String(titleKeyTransformer, title); err == nil {
		title = folded
	}

	var b strings.Builder
	b.Grow(len(title))
	lastSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == ':' || r == '.':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
