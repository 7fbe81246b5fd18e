package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM virtual_links`).Scan(&count); err != nil {
		t.Fatalf("virtual_links table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "hello.md",
		Title:     "Hello World",
		Checksum:  "abc123",
		Tags:      []string{"go", "test"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "This is a hello world note.", []string{"other.md"}); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestReplaceVirtualLinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "body", nil)

	rows := []VirtualLinkRow{
		{Source: "a.md", Target: "b.md", OriginText: "beta", StartLine: 0, StartCol: 4, StartOffset: 4, EndLine: 0, EndCol: 8, EndOffset: 8},
		{Source: "a.md", Target: "c.md", OriginText: "gamma", StartLine: 2, StartCol: 0, StartOffset: 20, EndLine: 2, EndCol: 5, EndOffset: 25},
	}
	if err := db.ReplaceVirtualLinks("a.md", rows); err != nil {
		t.Fatalf("ReplaceVirtualLinks: %v", err)
	}

	got, err := db.VirtualLinks("a.md")
	if err != nil {
		t.Fatalf("VirtualLinks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 virtual links, got %d", len(got))
	}
	if got[0].Target != "b.md" || got[0].StartOffset != 4 {
		t.Errorf("first row = %+v", got[0])
	}

	// Replacing wholesale drops old rows.
	if err := db.ReplaceVirtualLinks("a.md", rows[:1]); err != nil {
		t.Fatalf("ReplaceVirtualLinks (second): %v", err)
	}
	got, _ = db.VirtualLinks("a.md")
	if len(got) != 1 {
		t.Fatalf("expected 1 virtual link after replace, got %d", len(got))
	}

	// Empty slice clears everything.
	if err := db.ReplaceVirtualLinks("a.md", nil); err != nil {
		t.Fatalf("ReplaceVirtualLinks (clear): %v", err)
	}
	got, _ = db.VirtualLinks("a.md")
	if len(got) != 0 {
		t.Fatalf("expected 0 virtual links after clear, got %d", len(got))
	}
}

func TestBacklinksMergesRealAndVirtual(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"b.md"})
	_ = db.UpsertNote(NoteRow{Path: "c.md", Checksum: "2", Tags: []string{}, UpdatedAt: time.Now()}, "body", nil)
	_ = db.ReplaceVirtualLinks("c.md", []VirtualLinkRow{
		{Source: "c.md", Target: "b.md", OriginText: "bee"},
	})

	bl, err := db.Backlinks("b.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d: %+v", len(bl), bl)
	}
	if bl[0].Source != "a.md" || bl[0].Virtual {
		t.Errorf("first backlink should be real a.md, got %+v", bl[0])
	}
	if bl[1].Source != "c.md" || !bl[1].Virtual || bl[1].OriginText != "bee" {
		t.Errorf("second backlink should be virtual c.md via bee, got %+v", bl[1])
	}
}

func TestBacklinksDeduplicatesVirtualSpans(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "c.md", Checksum: "2", Tags: []string{}, UpdatedAt: time.Now()}, "body", nil)
	// Same source+origin at two offsets collapses to one backlink row.
	_ = db.ReplaceVirtualLinks("c.md", []VirtualLinkRow{
		{Source: "c.md", Target: "b.md", OriginText: "bee", StartOffset: 0, EndOffset: 3},
		{Source: "c.md", Target: "b.md", OriginText: "bee", StartOffset: 10, EndOffset: 13},
	})

	bl, err := db.Backlinks("b.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 {
		t.Fatalf("expected 1 deduplicated backlink, got %d: %+v", len(bl), bl)
	}
}

func TestGraphIncludesVirtualEdges(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Title: "A", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"b.md"})
	_ = db.UpsertNote(NoteRow{Path: "b.md", Title: "B", Checksum: "2", Tags: []string{}, UpdatedAt: time.Now()}, "body", nil)
	_ = db.ReplaceVirtualLinks("b.md", []VirtualLinkRow{
		{Source: "b.md", Target: "a.md", OriginText: "ay"},
	})

	nodes, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}

	var inline, virtual int
	for _, l := range links {
		switch l.Type {
		case "inline":
			inline++
		case "virtual":
			virtual++
		default:
			t.Errorf("unexpected link type %q", l.Type)
		}
	}
	if inline != 1 || virtual != 1 {
		t.Errorf("expected 1 inline + 1 virtual edge, got %d inline, %d virtual", inline, virtual)
	}
}

func TestDeleteNoteClearsVirtualLinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"target.md"})
	_ = db.ReplaceVirtualLinks("del.md", []VirtualLinkRow{
		{Source: "del.md", Target: "target.md", OriginText: "t"},
	})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("checksum after delete = %q, want empty", cs)
	}
	vl, _ := db.VirtualLinks("del.md")
	if len(vl) != 0 {
		t.Errorf("expected no virtual links after delete, got %d", len(vl))
	}
}

func TestSyncReconcilesVault(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("# Alpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	cs, _ := db.GetChecksum("a.md")
	if cs == "" {
		t.Error("a.md not indexed after sync")
	}

	// Removing the file and re-syncing drops the stale entry.
	if err := os.Remove(filepath.Join(dir, "a.md")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync (second): %v", err)
	}
	cs, _ = db.GetChecksum("a.md")
	if cs != "" {
		t.Errorf("stale entry survived sync: checksum %q", cs)
	}
}

func TestListNotesTagFilter(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Title: "A", Checksum: "1", Tags: []string{"keep"}, UpdatedAt: time.Now()}, "body", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Title: "B", Checksum: "2", Tags: []string{"drop"}, UpdatedAt: time.Now()}, "body", nil)

	rows, total, err := db.ListNotes(10, 0, "keep", "path")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].Path != "a.md" {
		t.Errorf("tag filter: total=%d rows=%+v", total, rows)
	}
}

func TestSearchFindsBodyText(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Title: "Alpha", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "the quick brown fox", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Title: "Beta", Checksum: "2", Tags: []string{}, UpdatedAt: time.Now()}, "lazy dog", nil)

	results, err := db.Search("quick", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "a.md" {
		t.Errorf("search results = %+v", results)
	}
}
