package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kholm/healthpipe/internal/normalize"
	"github.com/kholm/healthpipe/internal/pipeline"
	"github.com/kholm/healthpipe/internal/source"
	"github.com/kholm/healthpipe/internal/store"
)

// allSources is the ingest order when no --source flag is given.
var allSources = []string{source.AppleHealth, source.LoseIt, source.Scale, source.Glucose}

type ingestOptions struct {
	sources []string
	file    string
	start   time.Time
	end     time.Time
}

func newIngestCmd(a *app) *cobra.Command {
	var opts ingestOptions
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Read configured exports and load them into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, a, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.sources, "source", nil,
		"sources to ingest: apple-health, loseit, scale, glucose, or all (default all)")
	cmd.Flags().StringVar(&opts.file, "file", "",
		"override the configured input path (requires exactly one --source)")
	cmd.Flags().StringVar(&startStr, "start", "", "only load records on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "only load records on or before this date (YYYY-MM-DD)")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		loc, err := a.cfg.Ingest.Location()
		if err != nil {
			return err
		}
		if startStr != "" {
			t, err := time.ParseInLocation("2006-01-02", startStr, loc)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			opts.start = t
		}
		if endStr != "" {
			t, err := time.ParseInLocation("2006-01-02", endStr, loc)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			opts.end = t
		}
		if !opts.start.IsZero() && !opts.end.IsZero() && opts.end.Before(opts.start) {
			return fmt.Errorf("--end (%s) is before --start (%s)", endStr, startStr)
		}
		if len(opts.sources) == 1 && opts.sources[0] == "all" {
			opts.sources = nil
		}
		if opts.file != "" && len(opts.sources) != 1 {
			return errors.New("--file requires exactly one --source")
		}
		for _, s := range opts.sources {
			if !knownSource(s) {
				return fmt.Errorf("unknown source %q (valid: apple-health, loseit, scale, glucose, all)", s)
			}
		}
		return nil
	}

	return cmd
}

func knownSource(name string) bool {
	for _, s := range allSources {
		if s == name {
			return true
		}
	}
	return false
}

func runIngest(cmd *cobra.Command, a *app, opts ingestOptions) error {
	ctx := cmd.Context()

	readers, err := buildReaders(a, opts)
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		return errors.New("no sources to ingest: configure at least one input path")
	}

	loc, err := a.cfg.Ingest.Location()
	if err != nil {
		return err
	}
	norm, err := normalize.New(loc)
	if err != nil {
		return err
	}

	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Missing natural-key constraints would silently break idempotence,
	// so refuse to ingest until the schema is in place.
	if err := store.VerifyNaturalKeys(ctx, pool); err != nil {
		return err
	}

	names := make([]string, len(readers))
	for i, r := range readers {
		names[i] = r.Source()
	}
	a.log.Info("ingest started",
		"sources", names,
		"batch_size", a.cfg.Ingest.BatchSize,
	)

	orch := pipeline.NewOrchestrator(norm, store.NewLoader(pool, a.log), pipeline.Options{
		BatchSize:     a.cfg.Ingest.BatchSize,
		ProgressEvery: a.cfg.Ingest.ProgressEvery,
		Start:         opts.start,
		End:           opts.end,
	}, a.log)

	summary := orch.Run(ctx, readers)
	fmt.Fprint(cmd.OutOrStdout(), summary.Render())

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ingest interrupted: %w", err)
	}
	if summary.AnyFailed() {
		return errors.New("one or more sources failed")
	}
	return nil
}

// buildReaders resolves the selected sources to their input paths. An
// explicit --source with no path is an error; when ingesting everything,
// unconfigured sources are skipped with a log line.
func buildReaders(a *app, opts ingestOptions) ([]source.Reader, error) {
	selected := opts.sources
	explicit := len(selected) > 0
	if !explicit {
		selected = allSources
	}

	var readers []source.Reader
	for _, name := range selected {
		path := a.cfg.Sources.Path(name)
		if opts.file != "" {
			path = opts.file
		}
		if path == "" {
			if explicit {
				return nil, fmt.Errorf("no input path configured for source %q", name)
			}
			a.log.Info("skipping unconfigured source", "source", name)
			continue
		}
		readers = append(readers, newReader(name, path))
	}
	return readers, nil
}

func newReader(name, path string) source.Reader {
	switch name {
	case source.AppleHealth:
		return source.NewAppleReader(path)
	case source.LoseIt:
		return source.NewLoseItReader(path)
	case source.Scale:
		return source.NewScaleReader(path)
	case source.Glucose:
		return source.NewGlucoseReader(path)
	}
	panic("unreachable: unknown source " + name)
}
