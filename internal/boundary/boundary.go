// Package boundary classifies word-boundary characters. It is the single
// source of truth for "is this a word boundary" — the automaton, the
// exclusion builder, and the resolver all share this classifier so that
// every boundary decision in a scan agrees.
package boundary

import "unicode"

// IsBoundary reports whether r separates words. Whitespace, punctuation,
// symbols, and pictographic/emoji code points are boundaries; letters,
// digits, and combining marks are not. Operates on whole code points only.
func IsBoundary(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return true
	}
	return isPictographic(r)
}

// IsWordRune is the complement of IsBoundary for valid runes.
func IsWordRune(r rune) bool {
	return !IsBoundary(r)
}

// isPictographic covers emoji and pictographic ranges that Go's unicode
// tables classify inconsistently (some are So, some unassigned-in-table).
func isPictographic(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // mahjong..symbols-extended, emoji planes
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r == 0x200D: // zero-width joiner
		return true
	}
	return false
}
