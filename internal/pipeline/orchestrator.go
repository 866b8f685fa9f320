package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/kholm/healthpipe/internal/logging"
	"github.com/kholm/healthpipe/internal/normalize"
	"github.com/kholm/healthpipe/internal/record"
	"github.com/kholm/healthpipe/internal/source"
	"github.com/kholm/healthpipe/internal/validate"
)

// Options configures one orchestrator. Zero Start/End mean an unbounded
// window; End is an inclusive calendar date, so anything before midnight of
// the following day passes.
type Options struct {
	BatchSize     int
	ProgressEvery int
	Start         time.Time
	End           time.Time
}

// Outcome is the aggregated result of ingesting one source.
type Outcome struct {
	Source    string
	Succeeded bool
	Err       error // fatal error when Succeeded is false

	Read       int // raw records the reader yielded
	Filtered   int // dropped by the date window before batching
	Attempted  int
	Inserted   int
	Duplicates int
	Failed     int // insert failures isolated by the loader retry

	Rejected map[record.RejectReason]int
}

// TotalRejected sums the classified rejections.
func (o Outcome) TotalRejected() int {
	n := 0
	for _, c := range o.Rejected {
		n += c
	}
	return n
}

// Orchestrator runs the full pipeline for each requested source. A fatal
// error in one source never blocks the others; the summary reports partial
// success.
type Orchestrator struct {
	norm   *normalize.Normalizer
	loader Loader
	opts   Options
	log    *slog.Logger
}

func NewOrchestrator(norm *normalize.Normalizer, loader Loader, opts Options, log *slog.Logger) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	if opts.ProgressEvery < 1 {
		opts.ProgressEvery = 10000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{norm: norm, loader: loader, opts: opts, log: log}
}

// Run ingests every reader in order and returns the per-source outcomes.
func (o *Orchestrator) Run(ctx context.Context, readers []source.Reader) Summary {
	outcomes := make([]Outcome, 0, len(readers))
	for _, r := range readers {
		out := o.runSource(ctx, r)
		outcomes = append(outcomes, out)
		if ctx.Err() != nil {
			break
		}
	}
	return Summary{Outcomes: outcomes}
}

func (o *Orchestrator) runSource(ctx context.Context, r source.Reader) Outcome {
	out := Outcome{
		Source:   r.Source(),
		Rejected: make(map[record.RejectReason]int),
	}
	log := logging.WithSource(o.log, r.Source())
	log.Info("ingestion started", "batch_size", o.opts.BatchSize)

	var endExclusive time.Time
	if !o.opts.End.IsZero() {
		endExclusive = o.opts.End.AddDate(0, 0, 1)
	}
	windowLoc := time.UTC
	switch {
	case !o.opts.Start.IsZero():
		windowLoc = o.opts.Start.Location()
	case !o.opts.End.IsZero():
		windowLoc = o.opts.End.Location()
	}

	batcher := NewBatcher(o.opts.BatchSize, o.loader, log)

	err := r.Each(ctx, func(raw source.Raw) error {
		out.Read++
		if out.Read%o.opts.ProgressEvery == 0 {
			log.Info("progress", "records_read", out.Read, "inserted", batcher.Totals().Inserted)
		}

		res := o.norm.Normalize(raw)
		if !res.Ok() {
			out.Rejected[res.Reject.Reason]++
			log.Debug("record rejected", "line", raw.Line, "reason", res.Reject.Reason.String(), "detail", res.Reject.Detail)
			return nil
		}

		if rej := validate.Check(res.Record); rej != nil {
			out.Rejected[rej.Reason]++
			log.Debug("record rejected", "line", raw.Line, "reason", rej.Reason.String(), "detail", rej.Detail)
			return nil
		}

		// Inclusive date window, applied before batching. Food log entries
		// carry a calendar date pinned to midnight UTC; rebuild that day in
		// the window's zone so both bounds compare as dates, not instants.
		t := res.Record.EffectiveTime()
		if res.Record.Kind() == record.KindFood {
			y, m, d := t.Date()
			t = time.Date(y, m, d, 0, 0, 0, 0, windowLoc)
		}
		if !o.opts.Start.IsZero() && t.Before(o.opts.Start) {
			out.Filtered++
			return nil
		}
		if !endExclusive.IsZero() && !t.Before(endExclusive) {
			out.Filtered++
			return nil
		}

		return batcher.Add(ctx, res.Record)
	})
	if err == nil {
		err = batcher.Flush(ctx)
	}

	totals := batcher.Totals()
	out.Attempted = totals.Attempted
	out.Inserted = totals.Inserted
	out.Duplicates = totals.Duplicates
	out.Failed = totals.Failed

	if err != nil {
		out.Err = err
		log.Error("ingestion failed", "error", err,
			"records_read", out.Read, "inserted", out.Inserted)
		return out
	}

	out.Succeeded = true
	log.Info("ingestion complete",
		"records_read", out.Read,
		"attempted", out.Attempted,
		"inserted", out.Inserted,
		"duplicates_skipped", out.Duplicates,
		"rejected", out.TotalRejected(),
		"insert_failures", out.Failed,
		"filtered", out.Filtered,
	)
	return out
}
