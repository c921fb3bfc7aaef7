package lexical

import (
	"strings"

	"ragqa/internal/textnorm"
)

// suffixes are stripped longest first, in normalized form (taa marbuta already folded to haa).
var suffixes = []string{"هما", "ات", "ون", "ين", "ان", "يه", "ها", "هم", "هن", "نا", "ه"}

// minStemLength is the length a stem must exceed for a suffix to be stripped.
const minStemLength = 4

// Stem strips one known suffix from a normalized token when the remainder stays
// longer than minStemLength characters. It is a recall heuristic, not a morphological analyser.
func Stem(token string) string {
	for _, suf := range suffixes {
		if !strings.HasSuffix(token, suf) {
			continue
		}
		stem := strings.TrimSuffix(token, suf)
		if textnorm.Length(stem) > minStemLength {
			return stem
		}
	}
	return token
}
