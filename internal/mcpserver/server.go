// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the linker tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/noteservice"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_text",
		mcp.WithDescription("Scan arbitrary Markdown text for glossary terms (note titles and "+
			"aliases) and return the virtual link matches plus the text with wikilinks spliced in."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Markdown text to scan")),
		mcp.WithString("path", mcp.Description("Optional vault-relative path of the note the text belongs to "+
			"(its own terms are never matched)")),
	), s.scanText)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a Markdown note, annotated: glossary term occurrences are "+
			"rewritten as [[wikilinks]] and virtual matches are listed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("virtual_backlinks",
		mcp.WithDescription("Find all notes that reference the specified note, including virtual "+
			"references (unlinked mentions recognized by the glossary scanner)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.virtualBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_glossary",
		mcp.WithDescription("List the terms of the active glossary snapshot: every note title and "+
			"alias the scanner currently recognizes."),
	), s.listGlossary)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical note format contract, including the frontmatter "+
			"properties the glossary scanner honors. Call this before creating or updating notes."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format and linker frontmatter properties."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scanText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := ""
	if p, err := req.RequireString("path"); err == nil {
		path = p
	}

	dec := s.svc.Decorate(text, path)
	out, _ := json.MarshalIndent(dec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}

	var b strings.Builder
	b.WriteString(note.Annotated)
	if len(note.VirtualMatches) > 0 {
		b.WriteString("\n\n---\nvirtual matches:\n")
		for _, m := range note.VirtualMatches {
			fmt.Fprintf(&b, "- %q [%d:%d] -> %s\n", m.OriginText, m.From, m.To, strings.Join(m.Targets, ", "))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) virtualBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}

	var lines []string
	for _, b := range bl {
		if b.Virtual {
			lines = append(lines, fmt.Sprintf("%s (virtual, via %q)", b.Source, b.OriginText))
		} else {
			lines = append(lines, b.Source)
		}
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listGlossary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g := s.svc.Glossary()
	out, _ := json.MarshalIndent(g, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
