// Package exclusion computes the byte ranges of a Markdown buffer inside
// which virtual matches must be suppressed: frontmatter, fenced and inline
// code, existing wikilinks and markdown links, bare URLs, and (optionally)
// header lines. Zones are built once per scan and queried by the resolver;
// the automaton stays exclusion-agnostic.
package exclusion

import (
	"regexp"
	"sort"
	"strings"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[.*?\]\]`)
	mdLinkRe   = regexp.MustCompile(`!?\[[^\]\n]*\]\([^)\n]*\)`)
	urlRe      = regexp.MustCompile(`https?://[^\s\)\]>"']+`)
	inlineRe   = regexp.MustCompile("`[^`\n]*`")
)

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Zones is a sorted, disjoint set of excluded ranges over one text buffer.
type Zones struct {
	ranges []Range
}

// Compute builds the exclusion set for text. When includeHeaders is false,
// header lines are excluded too (matches inside headers are suppressed).
func Compute(text string, includeHeaders bool) *Zones {
	var rs []Range

	rs = append(rs, frontmatterRange(text)...)
	rs = append(rs, fencedRanges(text)...)
	rs = append(rs, regexRanges(text, inlineRe)...)
	rs = append(rs, regexRanges(text, wikilinkRe)...)
	rs = append(rs, regexRanges(text, mdLinkRe)...)
	rs = append(rs, regexRanges(text, urlRe)...)
	if !includeHeaders {
		rs = append(rs, headerRanges(text)...)
	}

	return &Zones{ranges: normalize(rs)}
}

// Intersects reports whether [start,end) overlaps any excluded range.
func (z *Zones) Intersects(start, end int) bool {
	if z == nil || len(z.ranges) == 0 || end <= start {
		return false
	}
	// First range whose End is beyond start.
	i := sort.Search(len(z.ranges), func(i int) bool {
		return z.ranges[i].End > start
	})
	return i < len(z.ranges) && z.ranges[i].Start < end
}

// Len returns the number of disjoint excluded ranges.
func (z *Zones) Len() int {
	if z == nil {
		return 0
	}
	return len(z.ranges)
}

func regexRanges(text string, re *regexp.Regexp) []Range {
	locs := re.FindAllStringIndex(text, -1)
	out := make([]Range, 0, len(locs))
	for _, l := range locs {
		out = append(out, Range{l[0], l[1]})
	}
	return out
}

// frontmatterRange covers the leading YAML block between --- delimiters.
func frontmatterRange(text string) []Range {
	const delim = "---"
	if !strings.HasPrefix(text, delim) {
		return nil
	}
	rest := text[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil
	}
	end := len(delim) + idx + 1 + len(delim)
	// Extend through the rest of the closing delimiter line.
	if nl := strings.IndexByte(text[end:], '\n'); nl >= 0 {
		end += nl + 1
	} else {
		end = len(text)
	}
	return []Range{{0, end}}
}

// fencedRanges covers ``` blocks, line-based. An unclosed fence runs to
// end of text.
func fencedRanges(text string) []Range {
	var out []Range
	openAt := -1
	off := 0
	for off <= len(text) {
		lineEnd := strings.IndexByte(text[off:], '\n')
		var next int
		var line string
		if lineEnd < 0 {
			line = text[off:]
			next = len(text) + 1
		} else {
			line = text[off : off+lineEnd]
			next = off + lineEnd + 1
		}
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if openAt < 0 {
				openAt = off
			} else {
				out = append(out, Range{openAt, min(next, len(text))})
				openAt = -1
			}
		}
		off = next
	}
	if openAt >= 0 {
		out = append(out, Range{openAt, len(text)})
	}
	return out
}

// headerRanges covers every ATX header line (#... followed by a space).
func headerRanges(text string) []Range {
	var out []Range
	off := 0
	for off < len(text) {
		lineEnd := strings.IndexByte(text[off:], '\n')
		end := len(text)
		if lineEnd >= 0 {
			end = off + lineEnd
		}
		line := text[off:end]
		trimmed := strings.TrimLeft(line, "#")
		if len(trimmed) < len(line) && len(line)-len(trimmed) <= 6 && strings.HasPrefix(trimmed, " ") {
			out = append(out, Range{off, end})
		}
		if lineEnd < 0 {
			break
		}
		off = end + 1
	}
	return out
}

// normalize sorts ranges and merges overlapping or adjacent ones.
func normalize(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return rs[i].End > rs[j].End
	})
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
