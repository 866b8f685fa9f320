package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kholm/healthpipe/internal/record"
)

// BatchResult accounts for one batch the loader attempted.
type BatchResult struct {
	Attempted  int
	Inserted   int
	Duplicates int // natural key already present; expected, not an error
	Failed     int // rejected by the store for some other reason
}

// Loader persists batches of canonical records using each kind's natural key
// for conflict resolution: an existing key is silently skipped, never
// updated, never duplicated, never an error. One Loader owns one connection
// handle for the duration of one source's ingestion.
type Loader struct {
	db  DB
	log *slog.Logger
}

func NewLoader(db DB, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{db: db, log: log}
}

// LoadBatch persists one single-kind batch inside one transaction.
//
// The happy path inserts every record with ON CONFLICT DO NOTHING and tells
// inserts from duplicate skips by rows affected. If any insert errors, the
// whole transaction is rolled back and the batch is retried once at record
// granularity with savepoints, so only the offending records are dropped
// (logged as insert failures) and the rest commit.
func (l *Loader) LoadBatch(ctx context.Context, recs []record.Record) (BatchResult, error) {
	if len(recs) == 0 {
		return BatchResult{}, nil
	}

	spec, err := specFor(recs[0].Kind())
	if err != nil {
		return BatchResult{}, err
	}

	res, err := l.loadAtomic(ctx, spec, recs)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		// Cancellation is honored at batch boundaries: the failed batch was
		// rolled back in full and must not be retried piecemeal.
		return BatchResult{}, ctx.Err()
	}

	l.log.Warn("batch insert failed, retrying record-by-record",
		"table", spec.table,
		"records", len(recs),
		"error", err,
	)
	return l.loadPerRecord(ctx, spec, recs)
}

// loadAtomic inserts the batch as one all-or-nothing transaction.
func (l *Loader) loadAtomic(ctx context.Context, spec tableSpec, recs []record.Record) (BatchResult, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	res := BatchResult{Attempted: len(recs)}
	for _, rec := range recs {
		tag, err := tx.Exec(ctx, spec.insertSQL, spec.args(rec)...)
		if err != nil {
			return BatchResult{}, fmt.Errorf("insert into %s: %w", spec.table, err)
		}
		if tag.RowsAffected() > 0 {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return BatchResult{}, fmt.Errorf("commit %s batch: %w", spec.table, err)
	}
	return res, nil
}

// loadPerRecord retries the batch with a savepoint around every insert,
// isolating the records the store rejects.
func (l *Loader) loadPerRecord(ctx context.Context, spec tableSpec, recs []record.Record) (BatchResult, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("begin retry: %w", err)
	}
	defer tx.Rollback(ctx)

	res := BatchResult{Attempted: len(recs)}
	for i, rec := range recs {
		sp := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
			return BatchResult{}, fmt.Errorf("savepoint: %w", err)
		}

		tag, err := tx.Exec(ctx, spec.insertSQL, spec.args(rec)...)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return BatchResult{}, fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			res.Failed++
			l.log.Warn("insert failure",
				"table", spec.table,
				"natural_key", rec.NaturalKey(),
				"error", err,
			)
			continue
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return BatchResult{}, fmt.Errorf("release savepoint: %w", err)
		}

		if tag.RowsAffected() > 0 {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return BatchResult{}, fmt.Errorf("commit %s retry batch: %w", spec.table, err)
	}
	return res, nil
}
