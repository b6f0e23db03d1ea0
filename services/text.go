package services

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleLength = 80
	maxChatLength  = 500
)

// cleanText trims s, folds it to NFC and cuts it to at most max runes.
func cleanText(s string, max int) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
