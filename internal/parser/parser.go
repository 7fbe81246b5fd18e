// Package parser extracts frontmatter, wikilinks, tags, aliases, and
// per-note linker policy from Markdown content.
package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Frontmatter property and tag names understood by the linker.
const (
	PropAliases       = "aliases"
	PropCaseSensitive = "linker-case-sensitive"
	PropExactMatch    = "linker-exact-match"
	PropAntialiases   = "linker-antialiases"

	TagCaseSensitive   = "linker-case-sensitive"
	TagCaseInsensitive = "linker-case-insensitive"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
	Aliases     []string

	// Per-note linker policy. CaseSensitive is tri-state: nil means
	// "no override, use the automatic heuristic / global default".
	CaseSensitive  *bool
	ExactMatchOnly bool
	Antialiases    []string
}

// Parse extracts frontmatter, body, wikilinks, tags, and linker policy
// from raw Markdown bytes. path is used for the title fallback (filename
// stem) and may be empty.
func Parse(path string, data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body, path),
		Aliases:     stringList(fm, PropAliases),
		Antialiases: stringList(fm, PropAntialiases),
	}
	r.CaseSensitive = caseOverride(fm, r.Tags)
	r.ExactMatchOnly = boolProp(fm, PropExactMatch)
	return r, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — return body only, no error.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractLinks returns deduplicated wikilink targets, normalising display aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		raw := m[1]
		// [[Target|Display]] → Target.
		target := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			target = raw[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, s := range stringList(fm, "tags") {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	matches := tagRe.FindAllStringSubmatch(body, -1)
	for _, m := range matches {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise the filename stem.
func deriveTitle(fm map[string]interface{}, body, path string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	if path != "" {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}

// caseOverride resolves the per-note case-sensitivity override from the
// frontmatter property or the override tags. Returns nil when no explicit
// override is declared.
func caseOverride(fm map[string]interface{}, tags []string) *bool {
	if fm != nil {
		if raw, ok := fm[PropCaseSensitive]; ok {
			if b, ok := raw.(bool); ok {
				return &b
			}
		}
	}
	for _, t := range tags {
		switch t {
		case TagCaseSensitive:
			v := true
			return &v
		case TagCaseInsensitive:
			v := false
			return &v
		}
	}
	return nil
}

// boolProp reads a boolean frontmatter property; absent or non-bool is false.
func boolProp(fm map[string]interface{}, key string) bool {
	if fm == nil {
		return false
	}
	b, _ := fm[key].(bool)
	return b
}

// stringList reads a frontmatter property as a list of non-empty strings.
// A bare string value is treated as a one-element list.
func stringList(fm map[string]interface{}, key string) []string {
	if fm == nil {
		return nil
	}
	var out []string
	switch v := fm[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		s := strings.TrimSpace(v)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
