// Package api exposes the HTTP surface: vault CRUD, the live decorate
// endpoint, search, graph, glossary, rebuild, and the SSE event stream.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/noteservice"
)

// RebuildFunc triggers a glossary rebuild plus a bulk re-scan. Wired by
// the entry point; runs asynchronously.
type RebuildFunc func(ctx context.Context)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	svc     *noteservice.Service
	rebuild RebuildFunc
	logger  *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(svc *noteservice.Service, rebuild RebuildFunc, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, rebuild: rebuild, logger: logger}
}

// listNotes handles GET /api/notes.
func (h *Handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListNotes(limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		h.internalError(w, "list notes", err)
		return
	}

	notes := make([]noteSummary, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, toNoteSummary(row))
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	writeJSON(w, http.StatusOK, listNotesResponse{Notes: notes, Total: total, Limit: limit, Offset: offset})
}

// getNote handles GET /api/notes/*.
func (h *Handlers) getNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(chi.URLParam(r, "*"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// createNote handles POST /api/notes/*.
func (h *Handlers) createNote(w http.ResponseWriter, r *http.Request) {
	var req writeNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := chi.URLParam(r, "*")
	if err := h.svc.CreateNote(path, []byte(req.Content)); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// updateNote handles PUT /api/notes/*.
func (h *Handlers) updateNote(w http.ResponseWriter, r *http.Request) {
	var req writeNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := chi.URLParam(r, "*")
	if err := h.svc.UpdateNote(path, []byte(req.Content), req.Checksum); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// deleteNote handles DELETE /api/notes/*.
func (h *Handlers) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(chi.URLParam(r, "*")); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decorate handles POST /api/decorate: scan an arbitrary buffer against
// the current snapshot and return matches plus annotated text.
func (h *Handlers) decorate(w http.ResponseWriter, r *http.Request) {
	var req decorateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Decorate(req.Text, req.Path))
}

// search handles POST /api/search.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	results, err := h.svc.Search(req.Query, req.Limit)
	if err != nil {
		h.internalError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// graph handles GET /api/graph.
func (h *Handlers) graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph()
	if err != nil {
		h.internalError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{Nodes: nodes, Links: links})
}

// glossary handles GET /api/glossary.
func (h *Handlers) glossary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Glossary())
}

// backlinks handles GET /api/backlinks/*.
func (h *Handlers) backlinks(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Backlinks(chi.URLParam(r, "*"))
	if err != nil {
		h.internalError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": out})
}

// triggerRebuild handles POST /api/rebuild: kicks off an asynchronous
// glossary rebuild plus bulk re-scan and returns immediately.
func (h *Handlers) triggerRebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuild == nil {
		writeError(w, http.StatusServiceUnavailable, "rebuild not available")
		return
	}
	go h.rebuild(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, rebuildResponse{Status: "rebuild started"})
}

func (h *Handlers) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.internalError(w, "request", err)
	}
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("api: "+op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}
