package api

import (
	"time"

	"github.com/starford/ansuz/internal/index"
)

type noteSummary struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listNotesResponse struct {
	Notes  []noteSummary `json:"notes"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type writeNoteRequest struct {
	Content  string `json:"content"`
	Checksum string `json:"checksum,omitempty"` // optimistic-concurrency guard on update
}

type decorateRequest struct {
	Text string `json:"text"`
	Path string `json:"path,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type searchResponse struct {
	Results []index.SearchResult `json:"results"`
}

type graphResponse struct {
	Nodes []index.GraphNode `json:"nodes"`
	Links []index.GraphLink `json:"links"`
}

type rebuildResponse struct {
	Status string `json:"status"`
}

func toNoteSummary(r index.NoteRow) noteSummary {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteSummary{
		Path:      r.Path,
		Title:     r.Title,
		Checksum:  r.Checksum,
		Tags:      tags,
		UpdatedAt: r.UpdatedAt,
	}
}
