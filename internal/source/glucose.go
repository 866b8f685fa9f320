package source

import (
	"context"
	"fmt"
	"os"

	"github.com/kholm/healthpipe/internal/record"
)

// GlucoseReader streams a glucose-meter CSV export.
type GlucoseReader struct {
	CSVPath string
}

func NewGlucoseReader(csvPath string) *GlucoseReader {
	return &GlucoseReader{CSVPath: csvPath}
}

func (r *GlucoseReader) Source() string { return Glucose }

func (r *GlucoseReader) Each(ctx context.Context, fn func(Raw) error) error {
	f, err := os.Open(r.CSVPath)
	if err != nil {
		return unavailable(Glucose, fmt.Errorf("open %s: %w", r.CSVPath, err))
	}
	defer f.Close()

	return eachCSVRow(ctx, Glucose, f, record.KindGlucose, fn)
}
