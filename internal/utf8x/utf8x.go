// Package utf8x splits byte strings into the single-character tokens the
// language models are defined over. A token is exactly one Unicode scalar
// value; combining marks stay separate tokens. There is no grapheme
// clustering here on purpose: the models predict scalars, not clusters.
package utf8x

import (
	"unicode/utf8"

	"github.com/RajanChettri/mozolm/internal/lmerror"
)

// DecodeString splits s into an ordered slice of single-character strings.
// Malformed or truncated multi-byte sequences fail the whole call: a
// partially decoded context would corrupt model history.
func DecodeString(s string) ([]string, error) {
	chars := make([]string, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return nil, lmerror.Errorf(lmerror.KindEncoding,
				"malformed UTF-8 at byte offset %d", i)
		}
		chars = append(chars, s[i:i+size])
		i += size
	}
	return chars, nil
}

// Valid reports whether s decodes cleanly.
func Valid(s string) bool {
	return utf8.ValidString(s)
}
