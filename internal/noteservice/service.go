// Package noteservice implements the application service behind the HTTP
// API and the MCP server: vault CRUD plus the live linker operations
// (decorate, glossary, virtual backlinks).
package noteservice

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/linker"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/resolver"
	"github.com/starford/ansuz/internal/storage"
)

// Note is the full read model for a single note.
type Note struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Links     []string  `json:"links"`
	UpdatedAt time.Time `json:"updated_at"`

	// Linker enrichment: matches against the current snapshot, the
	// content with virtual links spliced in, and merged backlinks.
	VirtualMatches []resolver.VirtualMatch `json:"virtual_matches"`
	Annotated      string                  `json:"annotated"`
	Backlinks      []index.Backlink        `json:"backlinks"`
}

// Decoration is the result of scanning an arbitrary buffer.
type Decoration struct {
	Matches   []resolver.VirtualMatch `json:"matches"`
	Annotated string                  `json:"annotated"`
	Records   []linker.LinkRecord     `json:"records"`
}

// GlossaryTerm is the read model for one term of the active snapshot.
type GlossaryTerm struct {
	Name           string `json:"name"`
	Owner          string `json:"owner"`
	IsAlias        bool   `json:"is_alias"`
	CaseSensitive  bool   `json:"case_sensitive"`
	ExactMatchOnly bool   `json:"exact_match_only"`
}

// Glossary is the term index of the active snapshot.
type Glossary struct {
	Version uint64         `json:"version"`
	Terms   []GlossaryTerm `json:"terms"`
}

// Service coordinates storage, the SQLite index, and the linker engine.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	engine *linker.Engine
	logger *slog.Logger
}

// New creates the note service.
func New(store storage.Provider, db index.NoteIndex, engine *linker.Engine, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, engine: engine, logger: logger}
}

// ListNotes returns a page of indexed notes plus the total count.
func (s *Service) ListNotes(limit, offset int, tag, sort string) ([]index.NoteRow, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(rows), total, nil
}

// GetNote reads a note from disk and enriches it with linker output:
// virtual matches against the current snapshot, the annotated content,
// and merged real+virtual backlinks.
func (s *Service) GetNote(path string) (*Note, error) {
	path = normalizePath(path)
	data, err := s.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}

	res, err := parser.Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("noteservice: parse %s: %w", path, err)
	}

	text := string(data)
	matches := s.scanCached(text, path, res.Links)

	backlinks, err := s.db.Backlinks(path)
	if err != nil {
		s.logger.Warn("noteservice: backlinks failed", slog.String("path", path), slog.String("error", err.Error()))
		backlinks = nil
	}

	return &Note{
		Path:           path,
		Title:          res.Title,
		Content:        text,
		Tags:           nonNilSlice(res.Tags),
		Links:          nonNilSlice(res.Links),
		UpdatedAt:      time.Now(),
		VirtualMatches: nonNilSlice(matches),
		Annotated:      linker.Annotate(text, matches),
		Backlinks:      nonNilSlice(backlinks),
	}, nil
}

// CreateNote writes a new note. Fails with ErrAlreadyExists when the path
// is already present on disk.
func (s *Service) CreateNote(path string, content []byte) error {
	path = normalizePath(path)
	if _, err := s.store.Read(path); err == nil {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, path)
	}
	return s.writeAndIndex(path, content)
}

// UpdateNote overwrites an existing note. expectedChecksum, when non-empty,
// must match the indexed checksum or the update fails with ErrConflict.
func (s *Service) UpdateNote(path string, content []byte, expectedChecksum string) error {
	path = normalizePath(path)
	if _, err := s.store.Read(path); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	if expectedChecksum != "" {
		current, _ := s.db.GetChecksum(path)
		if current != "" && current != expectedChecksum {
			return fmt.Errorf("%w: %s changed since read", apperr.ErrConflict, path)
		}
	}
	return s.writeAndIndex(path, content)
}

// DeleteNote removes a note from disk and the index.
func (s *Service) DeleteNote(path string) error {
	path = normalizePath(path)
	if err := s.store.Delete(path); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	if err := s.db.DeleteNote(path); err != nil {
		s.logger.Warn("noteservice: index delete failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return nil
}

// Decorate scans an arbitrary text buffer against the current snapshot.
// selfPath may be empty (scanning text not belonging to any note).
func (s *Service) Decorate(text, selfPath string) *Decoration {
	selfPath = normalizePath(selfPath)

	res, err := parser.Parse(selfPath, []byte(text))
	var links []string
	if err == nil {
		links = res.Links
	}

	matches := s.scanCached(text, selfPath, links)
	return &Decoration{
		Matches:   nonNilSlice(matches),
		Annotated: linker.Annotate(text, matches),
		Records:   nonNilSlice(linker.Records(text, matches)),
	}
}

// Search runs a full-text (or LIKE fallback) query over the index.
func (s *Service) Search(query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Graph returns every note plus real and virtual edges.
func (s *Service) Graph() ([]index.GraphNode, []index.GraphLink, error) {
	nodes, links, err := s.db.Graph()
	if err != nil {
		return nil, nil, err
	}
	return nonNilSlice(nodes), nonNilSlice(links), nil
}

// Backlinks returns merged real and virtual backlinks for a note.
func (s *Service) Backlinks(path string) ([]index.Backlink, error) {
	out, err := s.db.Backlinks(normalizePath(path))
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// Glossary returns the term index of the active snapshot.
func (s *Service) Glossary() *Glossary {
	snap := s.engine.Snapshot()
	terms := make([]GlossaryTerm, 0, len(snap.Terms))
	for _, t := range snap.Terms {
		terms = append(terms, GlossaryTerm{
			Name:           t.Name,
			Owner:          t.Owner,
			IsAlias:        t.IsAlias,
			CaseSensitive:  t.CaseSensitive,
			ExactMatchOnly: t.ExactMatchOnly,
		})
	}
	return &Glossary{Version: snap.Version, Terms: terms}
}

// scanCached runs a cache-keyed scan. The key covers content and self path;
// the engine prepends the snapshot version.
func (s *Service) scanCached(text, selfPath string, links []string) []resolver.VirtualMatch {
	linked := make(map[string]struct{}, len(links))
	for _, l := range links {
		linked[l] = struct{}{}
	}
	key := checksum.SumString(selfPath + "\x00" + text)
	return s.engine.ScanCached(key, text, selfPath, linked)
}

// writeAndIndex persists content and synchronously updates the index so
// reads right after a write see fresh data.
func (s *Service) writeAndIndex(path string, content []byte) error {
	if err := s.store.Write(path, content); err != nil {
		return err
	}
	res, err := parser.Parse(path, content)
	if err != nil {
		return fmt.Errorf("noteservice: parse %s: %w", path, err)
	}
	row := index.NoteRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(content),
		Tags:      res.Tags,
		UpdatedAt: time.Now(),
	}
	return s.db.UpsertNote(row, res.Body, res.Links)
}

// normalizePath strips leading slashes and ensures the .md extension so
// "foo", "/foo" and "foo.md" all address the same note.
func normalizePath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return path
	}
	if !strings.HasSuffix(path, ".md") {
		path += ".md"
	}
	return path
}

// nonNilSlice turns a nil slice into an empty one so JSON encodes [] not null.
func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
