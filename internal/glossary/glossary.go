// Package glossary builds the term index: one Term per (note, name-variant)
// pair, with per-term matching policy resolved at build time. The index is
// rebuilt wholesale whenever the vault changes; building is idempotent and
// side-effect free.
package glossary

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Term is one matchable name variant (title or alias) owned by a note.
// CaseSensitive is fully resolved at build time; the tri-state override
// and the capitalization heuristic never re-run during scans.
type Term struct {
	Name           string
	Owner          string // vault-relative path of the owning note
	IsAlias        bool
	CaseSensitive  bool
	ExactMatchOnly bool
	Antialiases    []string
}

// Policy holds the global matching flags supplied to every scan.
type Policy struct {
	MatchAnyPart              bool
	MatchBeginning            bool
	MatchEnd                  bool
	SuppressSuffixForSubwords bool
	LinkOnce                  bool
	ExcludeAlreadyLinked      bool
	AntialiasesEnabled        bool
	IncludeHeaders            bool
	CaseSensitiveDefault      bool
	CapitalizationThreshold   float64
	// ContextWindow selects the antialias context: "line" or "buffer".
	ContextWindow string
}

// Context window values for Policy.ContextWindow.
const (
	ContextLine   = "line"
	ContextBuffer = "buffer"
)

// Rules restricts which notes contribute terms. Directory patterns are
// regular expressions matched against the vault-relative path; an invalid
// pattern is treated as non-matching, never as an error.
type Rules struct {
	IncludeDirs []string
	ExcludeDirs []string
	IncludeTags []string
	ExcludeTags []string
}

// Build reads every note in the vault and emits the term index. Notes
// rejected by rules contribute nothing; unreadable or unparseable notes
// are skipped with a warning.
func Build(store storage.Provider, rules Rules, policy Policy, logger *slog.Logger) ([]Term, error) {
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}

	includeRe := compilePatterns(rules.IncludeDirs, logger)
	excludeRe := compilePatterns(rules.ExcludeDirs, logger)
	includeDeclared := hasPatterns(rules.IncludeDirs)

	var terms []Term
	for _, m := range metas {
		if !pathEligible(m.Path, includeRe, excludeRe, includeDeclared) {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("glossary: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(m.Path, data)
		if err != nil {
			logger.Warn("glossary: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if !tagsEligible(res.Tags, rules.IncludeTags, rules.ExcludeTags) {
			continue
		}
		terms = append(terms, noteTerms(m.Path, res, policy)...)
	}

	// Deterministic order keeps rebuilds comparable and scan output stable.
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Name != terms[j].Name {
			return terms[i].Name < terms[j].Name
		}
		return terms[i].Owner < terms[j].Owner
	})
	return dedupe(terms), nil
}

// noteTerms emits the title term plus one term per alias, all carrying the
// note's resolved policy.
func noteTerms(path string, res *parser.Result, policy Policy) []Term {
	var out []Term
	add := func(name string, isAlias bool) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		out = append(out, Term{
			Name:           name,
			Owner:          path,
			IsAlias:        isAlias,
			CaseSensitive:  ResolveCase(name, res.CaseSensitive, policy.CapitalizationThreshold, policy.CaseSensitiveDefault),
			ExactMatchOnly: res.ExactMatchOnly,
			Antialiases:    res.Antialiases,
		})
	}
	add(res.Title, false)
	for _, a := range res.Aliases {
		add(a, true)
	}
	return out
}

// ResolveCase resolves case sensitivity for a term name, in priority order:
// explicit per-note override, capitalization-ratio heuristic, global default.
// Pure; evaluated once per term at build time.
func ResolveCase(name string, override *bool, threshold float64, def bool) bool {
	if override != nil {
		return *override
	}
	if threshold > 0 && CapitalRatio(name) > threshold {
		return true
	}
	return def
}

// CapitalRatio returns the proportion of upper-case letters among the
// letters of s. A name with no letters has ratio 0.
func CapitalRatio(s string) float64 {
	letters, caps := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			caps++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(caps) / float64(letters)
}

func compilePatterns(patterns []string, logger *slog.Logger) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			// Invalid pattern is non-matching, not fatal.
			logger.Warn("glossary: invalid pattern skipped", slog.String("pattern", p), slog.String("error", err.Error()))
			continue
		}
		out = append(out, re)
	}
	return out
}

// hasPatterns reports whether the list declares any non-blank pattern.
func hasPatterns(patterns []string) bool {
	for _, p := range patterns {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// pathEligible applies the directory rules. The gate is the declared
// include list, not the compiled one: an include list whose every pattern
// failed to compile matches nothing, it never widens to "include all".
func pathEligible(path string, include, exclude []*regexp.Regexp, includeDeclared bool) bool {
	for _, re := range exclude {
		if re.MatchString(path) {
			return false
		}
	}
	if !includeDeclared {
		return true
	}
	for _, re := range include {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func tagsEligible(tags, includeTags, excludeTags []string) bool {
	has := func(want string) bool {
		for _, t := range tags {
			if t == want {
				return true
			}
		}
		return false
	}
	for _, t := range excludeTags {
		if has(t) {
			return false
		}
	}
	if len(includeTags) == 0 {
		return true
	}
	for _, t := range includeTags {
		if has(t) {
			return true
		}
	}
	return false
}

// dedupe removes exact (Name, Owner, IsAlias) duplicates from a sorted slice.
func dedupe(terms []Term) []Term {
	out := terms[:0]
	for _, t := range terms {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Name == t.Name && last.Owner == t.Owner && last.IsAlias == t.IsAlias {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
