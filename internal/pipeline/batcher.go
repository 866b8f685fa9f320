// Package pipeline wires Reader -> Normalizer -> Validator -> Batcher ->
// Loader per requested source, synchronously and in order: batch N is fully
// committed (or rolled back) before batch N+1 begins, and peak memory is
// bounded by the batch size regardless of export size.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/kholm/healthpipe/internal/record"
	"github.com/kholm/healthpipe/internal/store"
)

// Loader persists one single-kind batch. Implemented by *store.Loader and by
// the in-memory store used in tests.
type Loader interface {
	LoadBatch(ctx context.Context, recs []record.Record) (store.BatchResult, error)
}

// Batcher groups validated records of the same kind into sequentially
// numbered batches of at most size records and flushes them to the loader.
// Batch boundaries are purely a resource-management device; they never
// change which records end up persisted.
type Batcher struct {
	size   int
	loader Loader
	log    *slog.Logger

	buf    map[record.Kind][]record.Record
	seq    map[record.Kind]int
	totals store.BatchResult
}

func NewBatcher(size int, loader Loader, log *slog.Logger) *Batcher {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		size:   size,
		loader: loader,
		log:    log,
		buf:    make(map[record.Kind][]record.Record),
		seq:    make(map[record.Kind]int),
	}
}

// Add buffers one validated record, flushing its kind's batch when the size
// threshold is reached.
func (b *Batcher) Add(ctx context.Context, rec record.Record) error {
	kind := rec.Kind()
	b.buf[kind] = append(b.buf[kind], rec)
	if len(b.buf[kind]) >= b.size {
		return b.flushKind(ctx, kind)
	}
	return nil
}

// Flush commits any remaining partial batches at end-of-stream. Each kind
// keeps its own batch sequence, so flush order across kinds is unspecified.
func (b *Batcher) Flush(ctx context.Context) error {
	for kind, recs := range b.buf {
		if len(recs) == 0 {
			continue
		}
		if err := b.flushKind(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// Totals returns the accumulated loader accounting across all flushed
// batches.
func (b *Batcher) Totals() store.BatchResult { return b.totals }

func (b *Batcher) flushKind(ctx context.Context, kind record.Kind) error {
	recs := b.buf[kind]
	b.buf[kind] = b.buf[kind][:0]
	b.seq[kind]++

	res, err := b.loader.LoadBatch(ctx, recs)
	if err != nil {
		return err
	}
	b.log.Debug("batch committed",
		"kind", kind.String(),
		"batch", b.seq[kind],
		"records", res.Attempted,
		"inserted", res.Inserted,
	)
	b.totals.Attempted += res.Attempted
	b.totals.Inserted += res.Inserted
	b.totals.Duplicates += res.Duplicates
	b.totals.Failed += res.Failed
	return nil
}
