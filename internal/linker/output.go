package linker

import (
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/resolver"
)

// Position is a location within a text buffer, 0-based line and column
// plus the flat byte offset.
type Position struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
}

// LinkRecord is the link-cache output shape: one synthetic link entry
// compatible with a resolved-link/backlink index.
type LinkRecord struct {
	Link         string `json:"link"`
	OriginalText string `json:"originalText"`
	DisplayText  string `json:"displayText"`
	Position     struct {
		Start Position `json:"start"`
		End   Position `json:"end"`
	} `json:"position"`
}

// Annotate splices wikilink markup around every match and returns the
// rewritten text (the span-annotation output shape). Each span becomes
// [[target|origin]]; multi-target matches link to the first target.
// Matches must be the sorted, non-overlapping output of a Scan over text.
func Annotate(text string, matches []resolver.VirtualMatch) string {
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(matches)*8)
	prev := 0
	for _, m := range matches {
		if m.From < prev || m.To > len(text) || len(m.Targets) == 0 {
			continue // defensive clamp; resolver guarantees this never fires
		}
		b.WriteString(text[prev:m.From])
		b.WriteString("[[")
		b.WriteString(m.Targets[0])
		b.WriteString("|")
		b.WriteString(text[m.From:m.To])
		b.WriteString("]]")
		prev = m.To
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Records converts matches into link-cache records, one per (match,
// target) pair, with flat offsets expanded to line/column positions.
func Records(text string, matches []resolver.VirtualMatch) []LinkRecord {
	if len(matches) == 0 {
		return nil
	}
	starts := lineStarts(text)
	out := make([]LinkRecord, 0, len(matches))
	for _, m := range matches {
		for _, target := range m.Targets {
			r := LinkRecord{
				Link:         target,
				OriginalText: m.OriginText,
				DisplayText:  m.OriginText,
			}
			r.Position.Start = locate(starts, m.From)
			r.Position.End = locate(starts, m.To)
			out = append(out, r)
		}
	}
	return out
}

// lineStarts returns the byte offset of every line start, offset 0 first.
func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// locate converts a flat byte offset to a Position using the line-start
// table. Offsets beyond the buffer clamp to the last line.
func locate(starts []int, off int) Position {
	line := sort.Search(len(starts), func(i int) bool {
		return starts[i] > off
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{
		Line:   line,
		Col:    off - starts[line],
		Offset: off,
	}
}
