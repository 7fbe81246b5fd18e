// Package linker ties the term index, automaton, exclusion zones, and
// resolver into one scan pipeline behind a versioned immutable snapshot.
// Consumers (the HTTP API, the MCP server, and the bulk bridge) share one
// Engine; rebuilds swap the snapshot atomically so scans already in flight
// keep the snapshot they started with.
package linker

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/ansuz/internal/automaton"
	"github.com/starford/ansuz/internal/exclusion"
	"github.com/starford/ansuz/internal/glossary"
	"github.com/starford/ansuz/internal/resolver"
)

// Snapshot is one immutable build of the term index and its automaton.
// Safe for concurrent scans; never mutated after Rebuild publishes it.
type Snapshot struct {
	Version uint64
	Terms   []glossary.Term
	Policy  glossary.Policy

	automaton *automaton.Automaton
}

// Scan recognizes every policy-compliant term occurrence in text.
// selfPath is the note being scanned (never linked to itself); linked
// holds the note paths already explicitly linked in this buffer.
// An empty snapshot yields an empty result, never an error.
func (s *Snapshot) Scan(text, selfPath string, linked map[string]struct{}) []resolver.VirtualMatch {
	if s == nil || s.automaton.Empty() || text == "" {
		return nil
	}
	return resolver.Resolve(resolver.Input{
		Text:          text,
		Candidates:    s.automaton.Scan(text, s.Policy),
		Zones:         exclusion.Compute(text, s.Policy.IncludeHeaders),
		Policy:        s.Policy,
		SelfPath:      selfPath,
		AlreadyLinked: linked,
	})
}

// TermCount returns the number of terms in the snapshot.
func (s *Snapshot) TermCount() int {
	if s == nil {
		return 0
	}
	return len(s.Terms)
}

// Engine holds the current snapshot and a scan cache for the live
// decorate path. The zero Engine is not usable; call NewEngine.
type Engine struct {
	snap    atomic.Pointer[Snapshot]
	version atomic.Uint64
	cache   *lru.Cache[string, []resolver.VirtualMatch]
	logger  *slog.Logger
}

// NewEngine creates an engine with an empty snapshot. cacheSize bounds the
// decorate-path scan cache; values < 2 fall back to a small default.
func NewEngine(policy glossary.Policy, cacheSize int, logger *slog.Logger) *Engine {
	if cacheSize < 2 {
		cacheSize = 128
	}
	cache, _ := lru.New[string, []resolver.VirtualMatch](cacheSize)
	e := &Engine{cache: cache, logger: logger}
	e.snap.Store(&Snapshot{Policy: policy, automaton: automaton.Build(nil)})
	return e
}

// Snapshot returns the current published snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Version returns the version of the current snapshot.
func (e *Engine) Version() uint64 {
	return e.Snapshot().Version
}

// Rebuild builds a new automaton from terms and publishes it atomically,
// keeping the policy of the current snapshot. The previous snapshot stays
// valid for scans already holding it. The scan cache is purged.
func (e *Engine) Rebuild(terms []glossary.Term) *Snapshot {
	cur := e.Snapshot()
	next := &Snapshot{
		Version:   e.version.Add(1),
		Terms:     terms,
		Policy:    cur.Policy,
		automaton: automaton.Build(terms),
	}
	e.snap.Store(next)
	e.cache.Purge()
	e.logger.Info("linker: snapshot rebuilt",
		slog.Uint64("version", next.Version),
		slog.Int("terms", len(terms)))
	return next
}

// Scan runs one pass against the current snapshot.
func (e *Engine) Scan(text, selfPath string, linked map[string]struct{}) []resolver.VirtualMatch {
	return e.Snapshot().Scan(text, selfPath, linked)
}

// ScanCached serves the live decorate path: results are cached per
// (snapshot version, content checksum, self path), so repeated scans of an
// unchanged buffer cost one cache lookup. The linked set must be derived
// from the text itself for the key to be sound — callers pass the real
// wikilink targets extracted from the same buffer.
func (e *Engine) ScanCached(key, text, selfPath string, linked map[string]struct{}) []resolver.VirtualMatch {
	snap := e.Snapshot()
	if key == "" {
		return snap.Scan(text, selfPath, linked)
	}
	// The version prefix keeps a scan racing a rebuild from poisoning the
	// fresh cache with results from the superseded snapshot.
	key = strconv.FormatUint(snap.Version, 10) + ":" + key
	if hit, ok := e.cache.Get(key); ok {
		return hit
	}
	out := snap.Scan(text, selfPath, linked)
	e.cache.Add(key, out)
	return out
}
