package source

import (
	"context"
	"fmt"
	"os"

	"github.com/kholm/healthpipe/internal/record"
)

// ScaleReader streams a smart-scale CSV export.
type ScaleReader struct {
	CSVPath string
}

func NewScaleReader(csvPath string) *ScaleReader {
	return &ScaleReader{CSVPath: csvPath}
}

func (r *ScaleReader) Source() string { return Scale }

func (r *ScaleReader) Each(ctx context.Context, fn func(Raw) error) error {
	f, err := os.Open(r.CSVPath)
	if err != nil {
		return unavailable(Scale, fmt.Errorf("open %s: %w", r.CSVPath, err))
	}
	defer f.Close()

	return eachCSVRow(ctx, Scale, f, record.KindBody, fn)
}
