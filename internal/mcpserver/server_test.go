package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/glossary"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/linker"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/storage"
)

func testServer(t *testing.T) (*Server, *noteservice.Service, *linker.Engine) {
	t.Helper()

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "ansuz-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := linker.NewEngine(glossary.Policy{}, 16, logger)
	svc := noteservice.New(store, db, engine, logger)
	return New(svc), svc, engine
}

func toolReq(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestScanText(t *testing.T) {
	srv, _, engine := testServer(t)
	engine.Rebuild([]glossary.Term{{Name: "Beta", Owner: "beta.md"}})

	res, err := srv.scanText(context.Background(), toolReq("scan_text",
		map[string]interface{}{"text": "Beta shows up."}))
	if err != nil {
		t.Fatalf("scanText: %v", err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, "beta.md") || !strings.Contains(out, "[[beta.md|Beta]]") {
		t.Errorf("scan output = %s", out)
	}
}

func TestScanTextRequiresText(t *testing.T) {
	srv, _, _ := testServer(t)
	res, err := srv.scanText(context.Background(), toolReq("scan_text", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("scanText: %v", err)
	}
	if !res.IsError {
		t.Error("missing text argument should produce a tool error")
	}
}

func TestReadNoteAnnotated(t *testing.T) {
	srv, svc, engine := testServer(t)
	if err := svc.CreateNote("beta.md", []byte("# Beta")); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreateNote("alpha.md", []byte("Beta was here")); err != nil {
		t.Fatal(err)
	}
	engine.Rebuild([]glossary.Term{{Name: "Beta", Owner: "beta.md"}})

	res, err := srv.readNote(context.Background(), toolReq("read_note",
		map[string]interface{}{"path": "alpha.md"}))
	if err != nil {
		t.Fatalf("readNote: %v", err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, "[[beta.md|Beta]]") {
		t.Errorf("annotated output = %s", out)
	}
	if !strings.Contains(out, "virtual matches:") {
		t.Errorf("missing match listing in %s", out)
	}
}

func TestVirtualBacklinks(t *testing.T) {
	srv, svc, engine := testServer(t)
	_ = svc.CreateNote("beta.md", []byte("# Beta"))
	_ = svc.CreateNote("alpha.md", []byte("[[beta.md]] inline link"))
	engine.Rebuild([]glossary.Term{{Name: "Beta", Owner: "beta.md"}})

	res, err := srv.virtualBacklinks(context.Background(), toolReq("virtual_backlinks",
		map[string]interface{}{"path": "beta.md"}))
	if err != nil {
		t.Fatalf("virtualBacklinks: %v", err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, "alpha.md") {
		t.Errorf("backlinks output = %s", out)
	}
}

func TestListGlossary(t *testing.T) {
	srv, _, engine := testServer(t)
	engine.Rebuild([]glossary.Term{
		{Name: "Beta", Owner: "beta.md"},
		{Name: "B", Owner: "beta.md", IsAlias: true},
	})

	res, err := srv.listGlossary(context.Background(), toolReq("list_glossary", nil))
	if err != nil {
		t.Fatalf("listGlossary: %v", err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, `"Beta"`) || !strings.Contains(out, `"is_alias": true`) {
		t.Errorf("glossary output = %s", out)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv, _, _ := testServer(t)
	res, err := srv.getNoteContract(context.Background(), toolReq("get_note_contract", nil))
	if err != nil {
		t.Fatalf("getNoteContract: %v", err)
	}
	out := resultText(t, res)
	if !strings.Contains(out, "linker-exact-match") {
		t.Errorf("contract missing property docs: %s", out)
	}
}
