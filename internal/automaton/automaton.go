// Package automaton implements the prefix-tree term matcher: an immutable
// trie over glossary term names, scanned in a single left-to-right pass
// over a text buffer, emitting every completed term match ending at each
// position.
//
// Nodes live in an arena addressed by integer index, so a built Automaton
// holds no reference cycles and is safely shared by concurrent scans. All
// per-scan state lives in a plain cursor list recomputed each step.
package automaton

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/boundary"
	"github.com/starford/ansuz/internal/glossary"
)

// Candidate is a raw match emitted by Scan: the byte span [Start,End) of
// matchedText within the scanned buffer, the terms completing there, and
// the boundary flags at both ends. Candidates carry no policy decisions
// beyond emission gating; the resolver applies everything else.
type Candidate struct {
	Start            int
	End              int
	Text             string
	Terms            []glossary.Term
	StartsAtBoundary bool
	EndsAtBoundary   bool
}

// node is one trie node. children maps the edge rune to the child's arena
// index. terms holds indices of the terms whose (possibly folded) name
// ends at this node.
type node struct {
	children map[rune]int32
	terms    []int32
}

// Automaton is an immutable trie snapshot built from one term set.
type Automaton struct {
	nodes []node
	terms []glossary.Term
}

// Build constructs the trie. Case-insensitive terms are inserted under
// case-folded runes; case-sensitive terms under their literal runes, so
// both coexist in one tree. Empty or whitespace-only names are skipped.
func Build(terms []glossary.Term) *Automaton {
	a := &Automaton{
		nodes: make([]node, 1, 1+len(terms)*8),
		terms: terms,
	}
	a.nodes[0] = node{children: make(map[rune]int32)}

	for i, t := range terms {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		a.insert(t.Name, t.CaseSensitive, int32(i))
	}
	return a
}

// Empty reports whether the automaton holds no terms.
func (a *Automaton) Empty() bool {
	return a == nil || len(a.nodes) <= 1
}

// TermCount returns the number of terms the automaton was built from.
func (a *Automaton) TermCount() int {
	if a == nil {
		return 0
	}
	return len(a.terms)
}

func (a *Automaton) insert(name string, caseSensitive bool, idx int32) {
	cur := int32(0)
	for _, r := range name {
		key := r
		if !caseSensitive {
			key = unicode.ToLower(r)
		}
		next, ok := a.nodes[cur].children[key]
		if !ok {
			a.nodes = append(a.nodes, node{children: make(map[rune]int32)})
			next = int32(len(a.nodes) - 1)
			a.nodes[cur].children[key] = next
		}
		cur = next
	}
	a.nodes[cur].terms = append(a.nodes[cur].terms, idx)
}

// cursor is one live trie path during a scan: the node reached, the byte
// offset the path started at, whether that start sat on a word boundary,
// and whether every edge taken so far matched the literal input rune.
// Case-sensitive terms only complete on literal paths. The cursor list is
// recomputed every character.
type cursor struct {
	node       int32
	start      int
	atBoundary bool
	literal    bool
}

// Scan walks text once, by code point, and returns every candidate match
// allowed by the policy's emission gating. A synthetic word boundary is
// assumed before the first and after the last character. Offsets are byte
// offsets into text. Returns nil for an empty automaton or empty text.
func (a *Automaton) Scan(text string, policy glossary.Policy) []Candidate {
	if a.Empty() || text == "" {
		return nil
	}

	var out []Candidate
	active := make([]cursor, 0, 16)
	next := make([]cursor, 0, 16)
	prevBoundary := true // virtual boundary before offset 0

	for i, r := range text {
		folded := unicode.ToLower(r)
		next = next[:0]

		// Advance every live path; paths with no matching edge drop out.
		// A path may split when the literal and folded edges both exist.
		for _, c := range active {
			n := a.nodes[c.node]
			if child, ok := n.children[r]; ok {
				next = append(next, cursor{child, c.start, c.atBoundary, c.literal})
			}
			if folded != r {
				if child, ok := n.children[folded]; ok {
					next = append(next, cursor{child, c.start, c.atBoundary, false})
				}
			}
		}

		// Start a new path here when allowed: always at a boundary, and
		// mid-word when partial-word matching is on.
		if prevBoundary || policy.MatchAnyPart || policy.MatchBeginning {
			root := a.nodes[0]
			if child, ok := root.children[r]; ok {
				next = append(next, cursor{child, i, prevBoundary, true})
			}
			if folded != r {
				if child, ok := root.children[folded]; ok {
					next = append(next, cursor{child, i, prevBoundary, false})
				}
			}
		}

		active, next = next, active

		// Emit completed terms ending at this rune.
		end := i + utf8.RuneLen(r)
		endBoundary := boundaryAt(text, end)
		for _, c := range active {
			termIdxs := a.nodes[c.node].terms
			if len(termIdxs) == 0 {
				continue
			}
			cand := Candidate{
				Start:            c.start,
				End:              end,
				Text:             text[c.start:end],
				StartsAtBoundary: c.atBoundary,
				EndsAtBoundary:   endBoundary,
			}
			for _, ti := range termIdxs {
				t := a.terms[ti]
				if t.CaseSensitive && !c.literal {
					continue // path took a folded edge; sensitive terms need literal input
				}
				if emitAllowed(t, c.atBoundary, endBoundary, policy) {
					cand.Terms = append(cand.Terms, t)
				}
			}
			if len(cand.Terms) > 0 {
				out = append(out, cand)
			}
		}

		prevBoundary = boundary.IsBoundary(r)
	}

	return out
}

// emitAllowed applies the emission gating contract: exact-match-only terms
// need true boundaries at both ends; otherwise match-any-part emits
// everywhere, and the begin/end flags relax one side each. The suffix
// suppression flag re-tightens the end requirement for mid-word starts.
func emitAllowed(t glossary.Term, startBoundary, endBoundary bool, p glossary.Policy) bool {
	if t.ExactMatchOnly {
		return startBoundary && endBoundary
	}
	if p.MatchAnyPart {
		return true
	}
	if !startBoundary && !p.MatchBeginning {
		return false
	}
	if !endBoundary && !p.MatchEnd {
		return false
	}
	if p.SuppressSuffixForSubwords && !startBoundary && !endBoundary {
		return false
	}
	return true
}

// boundaryAt reports whether the position at byte offset off is a word
// boundary: true at end-of-text (synthetic trailing boundary), otherwise
// classified from the whole code point starting there.
func boundaryAt(text string, off int) bool {
	if off >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[off:])
	return boundary.IsBoundary(r)
}
