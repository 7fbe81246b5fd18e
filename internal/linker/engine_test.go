package linker

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/glossary"
	"github.com/starford/ansuz/internal/resolver"
)

func testEngine(t *testing.T, policy glossary.Policy, terms ...glossary.Term) *Engine {
	t.Helper()
	e := NewEngine(policy, 16, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if len(terms) > 0 {
		e.Rebuild(terms)
	}
	return e
}

func TestEngine_EmptySnapshotScansToNothing(t *testing.T) {
	e := testEngine(t, glossary.Policy{})
	assert.Nil(t, e.Scan("anything at all", "", nil))
	assert.Equal(t, uint64(0), e.Version())
}

func TestEngine_RebuildBumpsVersion(t *testing.T) {
	e := testEngine(t, glossary.Policy{})
	e.Rebuild([]glossary.Term{{Name: "cat", Owner: "cat.md"}})
	assert.Equal(t, uint64(1), e.Version())
	assert.Equal(t, 1, e.Snapshot().TermCount())

	e.Rebuild(nil)
	assert.Equal(t, uint64(2), e.Version())
}

func TestEngine_OldSnapshotStaysValid(t *testing.T) {
	e := testEngine(t, glossary.Policy{}, glossary.Term{Name: "cat", Owner: "cat.md"})
	old := e.Snapshot()

	e.Rebuild([]glossary.Term{{Name: "dog", Owner: "dog.md"}})

	got := old.Scan("the cat barked", "", nil)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"cat.md"}, got[0].Targets)

	got = e.Scan("the cat barked", "", nil)
	assert.Empty(t, got, "current snapshot no longer knows cat")
}

func TestEngine_ScanCached(t *testing.T) {
	e := testEngine(t, glossary.Policy{}, glossary.Term{Name: "cat", Owner: "cat.md"})

	first := e.ScanCached("k1", "a cat", "", nil)
	second := e.ScanCached("k1", "a cat", "", nil)
	require.Len(t, first, 1)
	assert.Equal(t, first, second)

	// Rebuild invalidates cached results via the version prefix.
	e.Rebuild(nil)
	third := e.ScanCached("k1", "a cat", "", nil)
	assert.Empty(t, third)
}

func TestSnapshot_ScanPipeline(t *testing.T) {
	e := testEngine(t, glossary.Policy{},
		glossary.Term{Name: "New York", Owner: "ny.md"},
		glossary.Term{Name: "York", Owner: "york.md"})

	got := e.Scan("---\ntitle: t\n---\nMoving to New York. `York` is short.", "", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "New York", got[0].OriginText)
}

func TestAnnotate(t *testing.T) {
	text := "the cat sat"
	matches := []resolver.VirtualMatch{
		{From: 4, To: 7, OriginText: "cat", Targets: []string{"cat.md"}},
	}
	assert.Equal(t, "the [[cat.md|cat]] sat", Annotate(text, matches))
}

func TestAnnotate_NoMatches(t *testing.T) {
	assert.Equal(t, "unchanged", Annotate("unchanged", nil))
}

func TestAnnotate_MultipleSpans(t *testing.T) {
	text := "cat and dog"
	matches := []resolver.VirtualMatch{
		{From: 0, To: 3, OriginText: "cat", Targets: []string{"cat.md"}},
		{From: 8, To: 11, OriginText: "dog", Targets: []string{"dog.md"}},
	}
	assert.Equal(t, "[[cat.md|cat]] and [[dog.md|dog]]", Annotate(text, matches))
}

func TestRecords_Positions(t *testing.T) {
	text := "first line\nsecond cat line\n"
	matches := []resolver.VirtualMatch{
		{From: 18, To: 21, OriginText: "cat", Targets: []string{"cat.md"}},
	}
	recs := Records(text, matches)

	require.Len(t, recs, 1)
	assert.Equal(t, "cat.md", recs[0].Link)
	assert.Equal(t, "cat", recs[0].OriginalText)
	assert.Equal(t, Position{Line: 1, Col: 7, Offset: 18}, recs[0].Position.Start)
	assert.Equal(t, Position{Line: 1, Col: 10, Offset: 21}, recs[0].Position.End)
}

func TestRecords_OnePerTarget(t *testing.T) {
	matches := []resolver.VirtualMatch{
		{From: 0, To: 3, OriginText: "cat", Targets: []string{"a.md", "b.md"}},
	}
	recs := Records("cat", matches)
	require.Len(t, recs, 2)
	assert.Equal(t, "a.md", recs[0].Link)
	assert.Equal(t, "b.md", recs[1].Link)
}

func TestLocate_Clamps(t *testing.T) {
	starts := lineStarts("ab\ncd")
	p := locate(starts, 99)
	assert.Equal(t, 1, p.Line)
	assert.Equal(t, 99, p.Offset)
}
