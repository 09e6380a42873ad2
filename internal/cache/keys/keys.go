// Package keys builds the cache keys of sample items.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Prefix is shared by every sample cache key.
const Prefix = "stacmosaic:sample:"

// ProcessKey is the single key used when one sample serves every collection.
const ProcessKey = Prefix + "process"

const maxCollectionTextLen = 80

// SampleKey identifies the sample item of one collection in one catalog. The readable
// part is the sanitized collection id, uniqueness comes from the hash suffix.
func SampleKey(catalog, collection string) string {
	cat := normalizeCatalog(catalog)
	coll := strings.TrimSpace(collection)

	safe := sanitizeForKey(coll)
	if len(safe) > maxCollectionTextLen {
		safe = safe[:maxCollectionTextLen]
	}
	sum := xxhash.Sum64String(cat + "\x00" + coll)
	return fmt.Sprintf("%s%s:h=%016x", Prefix, safe, sum)
}

// normalizeCatalog drops surrounding whitespace and trailing slashes.
func normalizeCatalog(s string) string {
	return strings.TrimRight(collapseASCIIWhitespace(s), "/")
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII and ':') becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
