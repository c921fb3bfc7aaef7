// Package textnorm canonicalizes Arabic text for matching.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var letterFolder = strings.NewReplacer(
	"إ", "ا",
	"أ", "ا",
	"آ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// listMarkerRe matches a numbered ("1-", "12)") or lettered ("أ-", "ب)") item prefix.
var listMarkerRe = regexp.MustCompile(`^(?:[0-9٠-٩]+[-)]|[أ-ي][-)])`)

// Normalize folds alef variants to bare alef, taa marbuta to haa and alef maqsura
// to yaa, strips harakat (U+064B..U+0652) and trims surrounding whitespace.
// It is total and idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = letterFolder.Replace(text)
	text = strings.Map(func(r rune) rune {
		if r >= '\u064B' && r <= '\u0652' {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// IsListItem reports whether raw (non-normalized) text starts with a list marker.
func IsListItem(raw string) bool {
	return listMarkerRe.MatchString(strings.TrimSpace(raw))
}

// Length returns the length of s in characters.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
