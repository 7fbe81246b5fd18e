// Package bridge runs the background bulk scan: it walks the whole vault,
// scans every note against the current linker snapshot, and injects the
// resulting virtual links into the SQLite backlink index. The pass is
// chunked so it yields between chunks, observes cancellation, and abandons
// itself cleanly when the snapshot it started with is superseded.
package bridge

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/linker"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Progress reports bulk-scan advancement after each chunk.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// ProgressFunc receives chunk-level progress; may be nil.
type ProgressFunc func(Progress)

// Bridge wires the linker engine to the index for bulk re-scans.
type Bridge struct {
	engine *linker.Engine
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger

	chunkSize int
	workers   int
	onChunk   ProgressFunc
}

// New creates a bridge. chunkSize documents are scanned between
// cooperative checkpoints; workers bounds per-chunk parallelism.
func New(engine *linker.Engine, store storage.Provider, db index.NoteIndex, logger *slog.Logger, chunkSize, workers int, onChunk ProgressFunc) *Bridge {
	if chunkSize <= 0 {
		chunkSize = 32
	}
	if workers <= 0 {
		workers = 4
	}
	return &Bridge{
		engine:    engine,
		store:     store,
		db:        db,
		logger:    logger,
		chunkSize: chunkSize,
		workers:   workers,
		onChunk:   onChunk,
	}
}

// Run performs one full corpus pass against the snapshot current at entry.
// Between chunks it checks ctx and the engine version: a rebuild mid-pass
// abandons the remainder (the rebuild's own pass supersedes it). Documents
// within a chunk are scanned in parallel; all scans share the one
// immutable snapshot. Per-document failures are logged, never fatal.
func (b *Bridge) Run(ctx context.Context) error {
	snap := b.engine.Snapshot()
	if snap.TermCount() == 0 {
		b.logger.Info("bridge: empty glossary, nothing to scan")
		return nil
	}

	metas, err := b.store.List("")
	if err != nil {
		return err
	}
	total := len(metas)
	b.logger.Info("bridge: bulk scan started",
		slog.Uint64("snapshot", snap.Version),
		slog.Int("documents", total))

	done := 0
	for start := 0; start < total; start += b.chunkSize {
		if err := ctx.Err(); err != nil {
			b.logger.Info("bridge: cancelled", slog.Int("done", done))
			return err
		}
		if b.engine.Version() != snap.Version {
			b.logger.Info("bridge: snapshot superseded, abandoning pass",
				slog.Uint64("started_with", snap.Version),
				slog.Uint64("current", b.engine.Version()))
			return nil
		}

		end := min(start+b.chunkSize, total)
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for _, m := range metas[start:end] {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				b.scanOne(snap, m.Path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		done = end
		if b.onChunk != nil {
			b.onChunk(Progress{Done: done, Total: total})
		}
	}

	b.logger.Info("bridge: bulk scan finished",
		slog.Uint64("snapshot", snap.Version),
		slog.Int("documents", done))
	return nil
}

// scanOne scans a single note and replaces its virtual link rows.
func (b *Bridge) scanOne(snap *linker.Snapshot, path string) {
	data, err := b.store.Read(path)
	if err != nil {
		b.logger.Warn("bridge: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	text := string(data)

	res, err := parser.Parse(path, data)
	if err != nil {
		b.logger.Warn("bridge: parse failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	linked := make(map[string]struct{}, len(res.Links))
	for _, l := range res.Links {
		linked[l] = struct{}{}
	}

	matches := snap.Scan(text, path, linked)
	recs := linker.Records(text, matches)
	rows := make([]index.VirtualLinkRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, index.VirtualLinkRow{
			Source:      path,
			Target:      r.Link,
			OriginText:  r.OriginalText,
			StartLine:   r.Position.Start.Line,
			StartCol:    r.Position.Start.Col,
			StartOffset: r.Position.Start.Offset,
			EndLine:     r.Position.End.Line,
			EndCol:      r.Position.End.Col,
			EndOffset:   r.Position.End.Offset,
		})
	}
	if err := b.db.ReplaceVirtualLinks(path, rows); err != nil {
		b.logger.Warn("bridge: store failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
