package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/glossary"
)

func term(name, owner string, opts ...func(*glossary.Term)) glossary.Term {
	t := glossary.Term{Name: name, Owner: owner}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func caseSensitive(t *glossary.Term)  { t.CaseSensitive = true }
func exactOnly(t *glossary.Term)      { t.ExactMatchOnly = true }
func asAlias(t *glossary.Term)        { t.IsAlias = true }

func spans(cands []Candidate) [][2]int {
	out := make([][2]int, len(cands))
	for i, c := range cands {
		out[i] = [2]int{c.Start, c.End}
	}
	return out
}

func TestScan_WholeWordMatch(t *testing.T) {
	a := Build([]glossary.Term{term("Cat", "cat.md")})
	got := a.Scan("The cat sat.", glossary.Policy{})

	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Start)
	assert.Equal(t, 7, got[0].End)
	assert.Equal(t, "cat", got[0].Text)
	assert.True(t, got[0].StartsAtBoundary)
	assert.True(t, got[0].EndsAtBoundary)
	assert.Equal(t, "cat.md", got[0].Terms[0].Owner)
}

func TestScan_NoPartialWithoutFlags(t *testing.T) {
	a := Build([]glossary.Term{term("Cat", "cat.md")})
	// "Cats" ends mid-word, "concatenate" contains cat mid-word.
	got := a.Scan("Cats concatenate.", glossary.Policy{})
	assert.Empty(t, got)
}

func TestScan_PartialWordEnd(t *testing.T) {
	// "Cat" within "Cats": boundary start, mid-word end, allowed when the
	// end requirement is relaxed.
	a := Build([]glossary.Term{term("Cat", "cat.md")})
	got := a.Scan("The Cats sat.", glossary.Policy{MatchEnd: true})

	require.Len(t, got, 1)
	assert.Equal(t, "Cat", got[0].Text)
	assert.Equal(t, [2]int{4, 7}, spans(got)[0])
	assert.True(t, got[0].StartsAtBoundary)
	assert.False(t, got[0].EndsAtBoundary)
}

func TestScan_PartialWordStart(t *testing.T) {
	// "cat" within "bobcat": mid-word start, boundary end, allowed when
	// the start requirement is relaxed.
	a := Build([]glossary.Term{term("cat", "cat.md")})
	got := a.Scan("a bobcat here", glossary.Policy{MatchBeginning: true})

	require.Len(t, got, 1)
	assert.Equal(t, [2]int{5, 8}, spans(got)[0])
	assert.False(t, got[0].StartsAtBoundary)
	assert.True(t, got[0].EndsAtBoundary)
}

func TestScan_MatchAnyPart(t *testing.T) {
	a := Build([]glossary.Term{term("cat", "cat.md")})
	got := a.Scan("concatenate", glossary.Policy{MatchAnyPart: true})

	require.Len(t, got, 1)
	assert.Equal(t, [2]int{3, 6}, spans(got)[0])
	assert.False(t, got[0].StartsAtBoundary)
	assert.False(t, got[0].EndsAtBoundary)
}

func TestScan_SuffixSuppression(t *testing.T) {
	a := Build([]glossary.Term{term("cat", "cat.md")})
	policy := glossary.Policy{MatchBeginning: true, MatchEnd: true, SuppressSuffixForSubwords: true}
	// Mid-word start and mid-word end: suppressed.
	got := a.Scan("concatenate", policy)
	assert.Empty(t, got)

	// Mid-word start but true end boundary: kept.
	got = a.Scan("bobcat sat", policy)
	require.Len(t, got, 1)
	assert.Equal(t, "cat", got[0].Text)
}

func TestScan_CaseInsensitiveFolding(t *testing.T) {
	a := Build([]glossary.Term{term("Insulin", "insulin.md")})
	got := a.Scan("INSULIN and insulin and InSuLiN.", glossary.Policy{})
	assert.Len(t, got, 3)
}

func TestScan_CaseSensitiveTerm(t *testing.T) {
	a := Build([]glossary.Term{term("USA", "usa.md", caseSensitive)})

	got := a.Scan("The USA won.", glossary.Policy{})
	require.Len(t, got, 1)
	assert.Equal(t, "USA", got[0].Text)

	got = a.Scan("The usa won.", glossary.Policy{})
	assert.Empty(t, got)
}

func TestScan_CaseSensitiveNeedsLiteralPath(t *testing.T) {
	// A sensitive term's trie edges must not be reachable through folding:
	// "Cat" is inserted literally, so uppercase input has no path to it.
	a := Build([]glossary.Term{term("Cat", "cat.md", caseSensitive)})

	assert.Empty(t, a.Scan("CAT sat", glossary.Policy{}))
	assert.Empty(t, a.Scan("CAt sat", glossary.Policy{}))

	got := a.Scan("Cat sat", glossary.Policy{})
	require.Len(t, got, 1)
	assert.Equal(t, "Cat", got[0].Text)
}

func TestScan_SensitiveAndInsensitiveCoexist(t *testing.T) {
	a := Build([]glossary.Term{
		term("USA", "usa.md", caseSensitive),
		term("usa", "other.md"),
	})
	got := a.Scan("USA", glossary.Policy{})

	// Literal path hits the sensitive term, folded path the insensitive one.
	owners := map[string]bool{}
	for _, c := range got {
		for _, tm := range c.Terms {
			owners[tm.Owner] = true
		}
	}
	assert.True(t, owners["usa.md"])
	assert.True(t, owners["other.md"])
}

func TestScan_ExactMatchOnlyOverridesPartial(t *testing.T) {
	a := Build([]glossary.Term{term("cat", "cat.md", exactOnly)})
	got := a.Scan("concatenate cats cat", glossary.Policy{MatchAnyPart: true})

	// Only the final whole-word occurrence survives gating.
	require.Len(t, got, 1)
	assert.Equal(t, [2]int{17, 20}, spans(got)[0])
	assert.True(t, got[0].StartsAtBoundary)
	assert.True(t, got[0].EndsAtBoundary)
}

func TestScan_MultiWordTerm(t *testing.T) {
	a := Build([]glossary.Term{
		term("New York", "ny.md"),
		term("York", "york.md"),
	})
	got := a.Scan("I love New York a lot.", glossary.Policy{})

	require.Len(t, got, 2)
	assert.Equal(t, [2]int{7, 15}, spans(got)[0]) // New York
	assert.Equal(t, [2]int{11, 15}, spans(got)[1]) // York
}

func TestScan_EndOfTextBoundary(t *testing.T) {
	a := Build([]glossary.Term{term("cat", "cat.md")})
	got := a.Scan("the cat", glossary.Policy{})

	require.Len(t, got, 1)
	assert.True(t, got[0].EndsAtBoundary, "end of text is a synthetic boundary")
}

func TestScan_UnicodeTerms(t *testing.T) {
	a := Build([]glossary.Term{term("Müller", "m.md")})
	got := a.Scan("Frau müller kam. 🎉 Müller!", glossary.Policy{})
	assert.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, len("müller"), c.End-c.Start)
	}
}

func TestScan_EmptyInputs(t *testing.T) {
	a := Build(nil)
	assert.Nil(t, a.Scan("some text", glossary.Policy{}))
	assert.True(t, a.Empty())

	a = Build([]glossary.Term{term("cat", "cat.md"), term("  ", "blank.md")})
	assert.Nil(t, a.Scan("", glossary.Policy{}))
	assert.Equal(t, 2, a.TermCount())
}

func TestScan_AliasFlagCarried(t *testing.T) {
	a := Build([]glossary.Term{term("kitty", "cat.md", asAlias)})
	got := a.Scan("hello kitty", glossary.Policy{})
	require.Len(t, got, 1)
	assert.True(t, got[0].Terms[0].IsAlias)
}

func TestScan_LinearOverLongText(t *testing.T) {
	a := Build([]glossary.Term{term("needle", "n.md")})
	text := ""
	for range 200 {
		text += "hay hay hay needle "
	}
	got := a.Scan(text, glossary.Policy{})
	assert.Len(t, got, 200)
}
