package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kholm/healthpipe/internal/normalize"
	"github.com/kholm/healthpipe/internal/record"
	"github.com/kholm/healthpipe/internal/source"
	"github.com/kholm/healthpipe/internal/store"
)

// memLoader persists natural keys in memory, mirroring the conflict-skip
// semantics of the real loader.
type memLoader struct {
	keys    map[string]bool
	batches int
	failOn  string // natural-key substring that simulates an insert failure
}

func newMemLoader() *memLoader {
	return &memLoader{keys: make(map[string]bool)}
}

func (m *memLoader) LoadBatch(ctx context.Context, recs []record.Record) (store.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return store.BatchResult{}, err
	}
	m.batches++
	res := store.BatchResult{Attempted: len(recs)}
	for _, rec := range recs {
		key := rec.NaturalKey()
		switch {
		case m.failOn != "" && strings.Contains(key, m.failOn):
			res.Failed++
		case m.keys[key]:
			res.Duplicates++
		default:
			m.keys[key] = true
			res.Inserted++
		}
	}
	return res, nil
}

// sliceReader replays a fixed raw sequence; failErr aborts after the rows.
type sliceReader struct {
	name    string
	raws    []source.Raw
	failErr error
}

func (r *sliceReader) Source() string { return r.name }

func (r *sliceReader) Each(ctx context.Context, fn func(source.Raw) error) error {
	for _, raw := range r.raws {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return r.failErr
}

func glucoseRaw(date, clock, value string) source.Raw {
	return source.Raw{Kind: record.KindGlucose, Attrs: map[string]string{
		"date": date, "time": clock, "glucose_value": value,
	}}
}

func foodRaw(date, item string) source.Raw {
	return source.Raw{Kind: record.KindFood, Attrs: map[string]string{
		"date": date, "name": item,
	}}
}

func newTestOrchestrator(t *testing.T, loader Loader, opts Options) *Orchestrator {
	t.Helper()
	norm, err := normalize.New(time.UTC)
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	return NewOrchestrator(norm, loader, opts, nil)
}

func TestRun_EndToEnd(t *testing.T) {
	loader := newMemLoader()
	orch := newTestOrchestrator(t, loader, Options{BatchSize: 2})

	reader := &sliceReader{name: source.Glucose, raws: []source.Raw{
		glucoseRaw("2024-01-15", "07:02", "96"),
		glucoseRaw("2024-01-15", "12:10", "110"),
		glucoseRaw("2024-01-15", "18:40", "102"),
		glucoseRaw("2024-01-15", "18:40", "102"),  // duplicate natural key
		glucoseRaw("2024-01-16", "07:00", "high"), // non-numeric value
		glucoseRaw("2024-01-16", "07:05", "5000"), // out of range
	}}

	sum := orch.Run(context.Background(), []source.Reader{reader})
	if len(sum.Outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(sum.Outcomes))
	}
	o := sum.Outcomes[0]

	if !o.Succeeded {
		t.Fatalf("source failed: %v", o.Err)
	}
	if o.Read != 6 {
		t.Errorf("Read = %d, want 6", o.Read)
	}
	if o.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", o.Inserted)
	}
	if o.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", o.Duplicates)
	}
	if o.Rejected[record.ReasonMissingField] != 1 {
		t.Errorf("MissingField rejections = %d, want 1", o.Rejected[record.ReasonMissingField])
	}
	if o.Rejected[record.ReasonOutOfRange] != 1 {
		t.Errorf("OutOfRange rejections = %d, want 1", o.Rejected[record.ReasonOutOfRange])
	}
	if sum.Verdict() != "success" {
		t.Errorf("Verdict = %q, want success", sum.Verdict())
	}
}

func TestRun_Idempotent(t *testing.T) {
	loader := newMemLoader()
	raws := []source.Raw{
		glucoseRaw("2024-01-15", "07:02", "96"),
		glucoseRaw("2024-01-15", "12:10", "110"),
	}

	orch := newTestOrchestrator(t, loader, Options{})
	first := orch.Run(context.Background(), []source.Reader{&sliceReader{name: source.Glucose, raws: raws}})
	second := orch.Run(context.Background(), []source.Reader{&sliceReader{name: source.Glucose, raws: raws}})

	if got := first.Outcomes[0].Inserted; got != 2 {
		t.Errorf("first run inserted %d, want 2", got)
	}
	if got := second.Outcomes[0].Inserted; got != 0 {
		t.Errorf("second run inserted %d, want 0", got)
	}
	if got := second.Outcomes[0].Duplicates; got != 2 {
		t.Errorf("second run duplicates = %d, want 2", got)
	}
	if len(loader.keys) != 2 {
		t.Errorf("store holds %d keys, want 2", len(loader.keys))
	}
}

func TestRun_BatchSizeInvariance(t *testing.T) {
	raws := make([]source.Raw, 0, 25)
	for day := 1; day <= 25; day++ {
		raws = append(raws, glucoseRaw(time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), "07:00", "96"))
	}

	run := func(batchSize int) *memLoader {
		loader := newMemLoader()
		orch := newTestOrchestrator(t, loader, Options{BatchSize: batchSize})
		sum := orch.Run(context.Background(), []source.Reader{&sliceReader{name: source.Glucose, raws: raws}})
		if !sum.Outcomes[0].Succeeded {
			t.Fatalf("batch size %d: %v", batchSize, sum.Outcomes[0].Err)
		}
		return loader
	}

	small := run(1)
	large := run(10000)

	if len(small.keys) != len(large.keys) {
		t.Fatalf("persisted sets differ: %d vs %d keys", len(small.keys), len(large.keys))
	}
	for k := range small.keys {
		if !large.keys[k] {
			t.Errorf("key %q missing from large-batch run", k)
		}
	}
	if small.batches <= large.batches {
		t.Errorf("batch counts: size 1 made %d batches, size 10000 made %d", small.batches, large.batches)
	}
}

func TestRun_DateWindow(t *testing.T) {
	loader := newMemLoader()
	orch := newTestOrchestrator(t, loader, Options{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	})

	reader := &sliceReader{name: source.Glucose, raws: []source.Raw{
		glucoseRaw("2024-01-09", "23:59", "90"), // before window
		glucoseRaw("2024-01-10", "00:00", "91"), // first instant inside
		glucoseRaw("2024-01-15", "12:00", "92"), // inside
		glucoseRaw("2024-01-31", "23:59", "93"), // last day is inclusive
		glucoseRaw("2024-02-01", "00:00", "94"), // outside
	}}

	sum := orch.Run(context.Background(), []source.Reader{reader})
	o := sum.Outcomes[0]

	if o.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", o.Inserted)
	}
	if o.Filtered != 2 {
		t.Errorf("Filtered = %d, want 2", o.Filtered)
	}
}

func TestRun_DateWindowFoodNonUTC(t *testing.T) {
	// Food log dates are pinned to midnight UTC while the window bounds carry
	// the configured zone; the filter must compare calendar days, not
	// instants, or a west-of-UTC zone shifts both bounds by a day.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	loader := newMemLoader()
	orch := newTestOrchestrator(t, loader, Options{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, loc),
	})

	reader := &sliceReader{name: source.LoseIt, raws: []source.Raw{
		foodRaw("2023-12-31", "Toast"),   // before window
		foodRaw("2024-01-01", "Eggs"),    // first day is inclusive
		foodRaw("2024-01-15", "Oatmeal"), // inside
		foodRaw("2024-01-31", "Soup"),    // last day is inclusive
		foodRaw("2024-02-01", "Salad"),   // past the end date
	}}

	sum := orch.Run(context.Background(), []source.Reader{reader})
	o := sum.Outcomes[0]

	if o.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", o.Inserted)
	}
	if o.Filtered != 2 {
		t.Errorf("Filtered = %d, want 2", o.Filtered)
	}
}

func TestRun_SourceIsolation(t *testing.T) {
	loader := newMemLoader()
	orch := newTestOrchestrator(t, loader, Options{})

	bad := &sliceReader{name: source.Scale, failErr: source.ErrUnavailable}
	good := &sliceReader{name: source.Glucose, raws: []source.Raw{
		glucoseRaw("2024-01-15", "07:02", "96"),
	}}

	sum := orch.Run(context.Background(), []source.Reader{bad, good})
	if len(sum.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(sum.Outcomes))
	}
	if sum.Outcomes[0].Succeeded {
		t.Error("failing source reported success")
	}
	if !errors.Is(sum.Outcomes[0].Err, source.ErrUnavailable) {
		t.Errorf("Err = %v, want ErrUnavailable", sum.Outcomes[0].Err)
	}
	if !sum.Outcomes[1].Succeeded || sum.Outcomes[1].Inserted != 1 {
		t.Errorf("healthy source should be unaffected: %+v", sum.Outcomes[1])
	}
	if sum.Verdict() != "partial" {
		t.Errorf("Verdict = %q, want partial", sum.Verdict())
	}
	if !sum.AnyFailed() {
		t.Error("AnyFailed should be true")
	}
}

func TestRun_Cancellation(t *testing.T) {
	loader := newMemLoader()
	orch := newTestOrchestrator(t, loader, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := orch.Run(ctx, []source.Reader{
		&sliceReader{name: source.Glucose, raws: []source.Raw{glucoseRaw("2024-01-15", "07:02", "96")}},
		&sliceReader{name: source.Scale},
	})

	// The first source observes the cancelled context and fails; the loop
	// then stops instead of starting the second source.
	if len(sum.Outcomes) != 1 {
		t.Fatalf("got %d outcomes after cancellation, want 1", len(sum.Outcomes))
	}
	if sum.Outcomes[0].Succeeded {
		t.Error("cancelled source reported success")
	}
}

func TestBatcher_KindSeparation(t *testing.T) {
	loader := newMemLoader()
	b := NewBatcher(10, loader, nil)
	ctx := context.Background()

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if err := b.Add(ctx, record.GlucoseReading{ReadingTime: day, Value: 96, Source: "m"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(ctx, record.FoodLogEntry{LogDate: day, FoodItem: "Oatmeal"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if loader.batches != 2 {
		t.Errorf("batches = %d, want 2 (one per kind)", loader.batches)
	}
	if got := b.Totals().Inserted; got != 2 {
		t.Errorf("Totals().Inserted = %d, want 2", got)
	}
}

func TestSummaryRender(t *testing.T) {
	sum := Summary{Outcomes: []Outcome{
		{
			Source: source.Glucose, Succeeded: true,
			Read: 10, Attempted: 8, Inserted: 7, Duplicates: 1,
			Rejected: map[record.RejectReason]int{record.ReasonOutOfRange: 2},
		},
		{Source: source.Scale, Err: source.ErrUnavailable, Rejected: map[record.RejectReason]int{}},
	}}

	out := sum.Render()
	for _, want := range []string{"glucose", "succeeded", "scale", "FAILED", "OutOfRange=2", "overall: partial"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}
