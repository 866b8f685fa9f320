package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/kholm/healthpipe/internal/record"
)

// eachCSVRow streams the rows of one CSV document, tagging every row with
// kind. The first non-empty row is the header; its names are canonicalized
// with CanonHeader before keying the attribute maps. Row-level parse errors
// become Raw records with an Err marker; an unreadable header is fatal.
func eachCSVRow(ctx context.Context, source string, rd io.Reader, kind record.Kind, fn func(Raw) error) error {
	cr := csv.NewReader(skipBOM(rd))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := readHeader(cr)
	if err != nil {
		return unavailable(source, fmt.Errorf("read header: %w", err))
	}

	line := 1 // header consumed
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if err := fn(Raw{Kind: kind, Err: err.Error(), Line: line}); err != nil {
					return err
				}
				continue
			}
			return unavailable(source, fmt.Errorf("read row %d: %w", line, err))
		}

		if emptyRow(row) {
			continue
		}
		if err := fn(Raw{Kind: kind, Attrs: rowAttrs(header, row), Line: line}); err != nil {
			return err
		}
	}
}

func readHeader(cr *csv.Reader) ([]string, error) {
	for {
		row, err := cr.Read()
		if err != nil {
			return nil, err
		}
		if emptyRow(row) {
			continue
		}
		header := make([]string, len(row))
		for i, h := range row {
			header[i] = CanonHeader(h)
		}
		return header, nil
	}
}
