// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package fuzzy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords never count toward token overlap on their own.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "or": {},
	"in": {}, "on": {}, "to": {}, "for": {},
}

// Normalize folds a game name into its comparison form: accents removed,
// Unicode case-folded, apostrophes deleted, every other run of punctuation,
// symbols, underscores or whitespace collapsed to a single space.
//
// Casers and transformers are stateful, so a fresh chain is built per call.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Tokens splits a normalized string into its words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// tokenSet returns the unique non-stop-word tokens.
func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
