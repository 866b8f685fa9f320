// Package source turns one export artifact into a lazy, finite, restartable
// sequence of raw attribute maps, each tagged with a canonical record kind.
//
// Readers never validate or convert units. A malformed container (unreadable
// archive, unparsable root document) fails the whole source with an error
// wrapping [ErrUnavailable]; a malformed individual row is surfaced as a raw
// record with a non-empty Err marker so downstream stages count it as
// rejected instead of aborting the run.
package source

import (
	"context"
	"errors"
	"strings"

	"github.com/kholm/healthpipe/internal/record"
)

// Source names, used for CLI toggles, configuration, and summaries.
const (
	AppleHealth = "apple-health"
	LoseIt      = "loseit"
	Scale       = "scale"
	Glucose     = "glucose"
)

// ErrUnavailable marks a fatal per-source failure: the artifact cannot be
// opened or its top-level structure cannot be parsed. The orchestrator
// aborts that source and continues with the others.
var ErrUnavailable = errors.New("source unavailable")

// Raw is one loosely-typed element as decoded from a source artifact.
type Raw struct {
	Kind  record.Kind
	Attrs map[string]string

	// Err is non-empty when the element itself could not be decoded.
	// Such records carry no usable Attrs and are counted as ParseFailure.
	Err string

	// Line is the 1-based position within the source, for diagnostics.
	Line int
}

// Reader yields the raw records of one source artifact in order.
// Each call to Each restarts from the beginning of the artifact.
type Reader interface {
	// Source returns the reader's source name.
	Source() string

	// Each invokes fn for every raw record until the sequence is exhausted,
	// fn returns an error, or ctx is cancelled. The returned error is either
	// fatal for the source (wrapping ErrUnavailable), the error fn returned,
	// or nil.
	Each(ctx context.Context, fn func(Raw) error) error
}

func unavailable(source string, err error) error {
	return &unavailableError{source: source, err: err}
}

type unavailableError struct {
	source string
	err    error
}

func (e *unavailableError) Error() string {
	return e.source + ": " + e.err.Error()
}

func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *unavailableError) Unwrap() error { return e.err }

// CanonHeader canonicalizes a CSV header name: lower-cased, trimmed,
// spaces and slashes become underscores, parentheses are stripped, and a
// percent sign becomes the word "percent". "Blood Glucose (mg/dL)" maps to
// "blood_glucose_mg_dl".
func CanonHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range h {
		switch r {
		case ' ', '/', '-':
			b.WriteByte('_')
		case '(', ')':
			// dropped
		case '%':
			b.WriteString("percent")
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// CleanCell strips whitespace, surrounding quotes, and invalid UTF-8 from a
// raw CSV cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.ToValidUTF8(s, "�")
}

// rowAttrs builds an attribute map from a CSV data row using the
// canonicalized header. Cells beyond the header width are dropped; missing
// trailing cells are simply absent from the map.
func rowAttrs(header []string, row []string) map[string]string {
	attrs := make(map[string]string, len(header))
	for i, name := range header {
		if i >= len(row) {
			break
		}
		if name == "" {
			continue
		}
		attrs[name] = CleanCell(row[i])
	}
	return attrs
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
