// Package resolver reduces the automaton's raw candidates to the final,
// non-overlapping, policy-compliant match list. Resolve is a pure function:
// the same (text, candidates, policy) always yields the same ordered output,
// and malformed inputs degrade to an empty list, never an error.
package resolver

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/automaton"
	"github.com/starford/ansuz/internal/boundary"
	"github.com/starford/ansuz/internal/exclusion"
	"github.com/starford/ansuz/internal/glossary"
)

// VirtualMatch is one resolved span that should be annotated as a
// reference. Targets lists every owning note the span resolves to, in
// stable order. IsPartialWordMatch is set when either end of the span
// falls inside a word.
type VirtualMatch struct {
	From               int      `json:"from"`
	To                 int      `json:"to"`
	OriginText         string   `json:"originText"`
	Targets            []string `json:"targets"`
	IsAlias            bool     `json:"isAlias"`
	IsPartialWordMatch bool     `json:"isPartialWordMatch"`
}

// Input carries everything one resolution pass needs. Zones may be nil.
// AlreadyLinked holds note paths explicitly linked elsewhere in the same
// buffer; SelfPath is the note being scanned (never linked to itself).
type Input struct {
	Text          string
	Candidates    []automaton.Candidate
	Zones         *exclusion.Zones
	Policy        glossary.Policy
	SelfPath      string
	AlreadyLinked map[string]struct{}
}

// Resolve runs the full filtering pipeline: clamp and drop degenerate
// spans, drop excluded and self-only candidates, merge identical spans,
// sort (from asc, longer first), apply already-linked and link-once
// policies, greedy non-overlap selection, then antialias suppression over
// the overlap survivors.
func Resolve(in Input) []VirtualMatch {
	if len(in.Candidates) == 0 || in.Text == "" {
		return nil
	}

	cands := sanitize(in)
	if len(cands) == 0 {
		return nil
	}
	cands = mergeSpans(cands)

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Start != cands[j].Start {
			return cands[i].Start < cands[j].Start
		}
		return cands[i].End-cands[i].Start > cands[j].End-cands[j].Start
	})

	if in.Policy.ExcludeAlreadyLinked && len(in.AlreadyLinked) > 0 {
		cands = dropAlreadyLinked(cands, in.AlreadyLinked)
	}

	// Greedy non-overlap selection over the sorted candidates; link-once
	// consumes owners here, ahead of suppression.
	survivors := cands[:0:0]
	lastTo := 0
	linkedOnce := make(map[string]struct{})
	for _, c := range cands {
		if in.Policy.LinkOnce && allSeen(c.Terms, linkedOnce) {
			continue
		}
		if c.Start < lastTo {
			continue // overlaps the previously accepted span
		}
		survivors = append(survivors, c)
		lastTo = c.End
		if in.Policy.LinkOnce {
			for _, t := range c.Terms {
				linkedOnce[t.Owner] = struct{}{}
			}
		}
	}

	// Antialias suppression runs after overlap selection: a suppressed span
	// stays consumed and never resurrects a shorter overlapping candidate.
	var out []VirtualMatch
	for _, c := range survivors {
		if in.Policy.AntialiasesEnabled {
			c.Terms = dropAntialiased(c, in)
			if len(c.Terms) == 0 {
				continue
			}
		}
		out = append(out, toMatch(c))
	}
	return out
}

// sanitize clamps spans to the buffer, drops empty spans, candidates
// inside exclusion zones, and terms owned by the scanned note itself.
func sanitize(in Input) []automaton.Candidate {
	out := make([]automaton.Candidate, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		if c.Start < 0 {
			c.Start = 0
		}
		if c.End > len(in.Text) {
			c.End = len(in.Text)
		}
		if c.End <= c.Start {
			continue
		}
		if in.Zones.Intersects(c.Start, c.End) {
			continue
		}
		if in.SelfPath != "" {
			kept := c.Terms[:0:0]
			for _, t := range c.Terms {
				if t.Owner != in.SelfPath {
					kept = append(kept, t)
				}
			}
			c.Terms = kept
		}
		if len(c.Terms) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// mergeSpans unions the term sets of candidates covering the identical
// span (the literal and folded trie paths can both complete there).
func mergeSpans(cands []automaton.Candidate) []automaton.Candidate {
	type key struct{ s, e int }
	slots := make(map[key]int, len(cands))
	out := cands[:0:0]
	for _, c := range cands {
		k := key{c.Start, c.End}
		if i, ok := slots[k]; ok {
			out[i].Terms = append(out[i].Terms, c.Terms...)
			out[i].StartsAtBoundary = out[i].StartsAtBoundary || c.StartsAtBoundary
			out[i].EndsAtBoundary = out[i].EndsAtBoundary || c.EndsAtBoundary
			continue
		}
		slots[k] = len(out)
		out = append(out, c)
	}
	return out
}

// dropAlreadyLinked removes candidates whose every target is already
// explicitly linked in the buffer.
func dropAlreadyLinked(cands []automaton.Candidate, linked map[string]struct{}) []automaton.Candidate {
	out := cands[:0]
	for _, c := range cands {
		all := true
		for _, t := range c.Terms {
			if _, ok := linked[t.Owner]; !ok {
				all = false
				break
			}
		}
		if !all {
			out = append(out, c)
		}
	}
	return out
}

// allSeen reports whether every term's owner already received a match.
func allSeen(terms []glossary.Term, seen map[string]struct{}) bool {
	for _, t := range terms {
		if _, ok := seen[t.Owner]; !ok {
			return false
		}
	}
	return true
}

// dropAntialiased removes terms whose antialias strings appear in the
// candidate's context window (the containing line or the whole buffer).
func dropAntialiased(c automaton.Candidate, in Input) []glossary.Term {
	context := contextWindow(in.Text, c.Start, c.End, in.Policy.ContextWindow)
	folded := strings.ToLower(context)

	kept := c.Terms[:0:0]
	for _, t := range c.Terms {
		suppressed := false
		for _, anti := range t.Antialiases {
			anti = strings.ToLower(strings.TrimSpace(anti))
			if anti == "" {
				continue
			}
			if containsWord(folded, anti) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, t)
		}
	}
	return kept
}

// contextWindow returns the text surrounding [from,to): the containing
// line(s) by default, or the whole buffer.
func contextWindow(text string, from, to int, window string) string {
	if window == glossary.ContextBuffer {
		return text
	}
	start := strings.LastIndexByte(text[:from], '\n') + 1
	end := to
	if i := strings.IndexByte(text[to:], '\n'); i >= 0 {
		end = to + i
	} else {
		end = len(text)
	}
	return text[start:end]
}

// containsWord reports whether word occurs in folded text flanked by word
// boundaries on both sides.
func containsWord(text, word string) bool {
	for off := 0; ; {
		i := strings.Index(text[off:], word)
		if i < 0 {
			return false
		}
		at := off + i
		if boundaryBefore(text, at) && boundaryAfter(text, at+len(word)) {
			return true
		}
		off = at + 1
	}
}

func boundaryBefore(text string, off int) bool {
	if off == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:off])
	return boundary.IsBoundary(r)
}

func boundaryAfter(text string, off int) bool {
	if off >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[off:])
	return boundary.IsBoundary(r)
}

// toMatch builds the final match. The match counts as an alias reference
// only when every contributing term is an alias.
func toMatch(c automaton.Candidate) VirtualMatch {
	targets := make([]string, 0, len(c.Terms))
	seen := make(map[string]struct{}, len(c.Terms))
	alias := true
	for _, t := range c.Terms {
		if !t.IsAlias {
			alias = false
		}
		if _, ok := seen[t.Owner]; ok {
			continue
		}
		seen[t.Owner] = struct{}{}
		targets = append(targets, t.Owner)
	}
	return VirtualMatch{
		From:               c.Start,
		To:                 c.End,
		OriginText:         c.Text,
		Targets:            targets,
		IsAlias:            alias,
		IsPartialWordMatch: !(c.StartsAtBoundary && c.EndsAtBoundary),
	}
}
