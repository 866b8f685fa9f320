package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kholm/healthpipe/internal/record"
)

// Type-identifier prefixes splitting <Record> elements into quantity and
// category samples. Records with any other prefix are ignored.
const (
	quantityTypePrefix = "HKQuantityTypeIdentifier"
	categoryTypePrefix = "HKCategoryTypeIdentifier"
)

// AppleReader streams an Apple-Health-style export: a ZIP whose export.xml
// member holds a flat sequence of <Record> and <Workout> elements. Large
// exports run to millions of elements, so the document is token-streamed
// rather than loaded whole.
type AppleReader struct {
	ZipPath string
}

func NewAppleReader(zipPath string) *AppleReader {
	return &AppleReader{ZipPath: zipPath}
}

func (r *AppleReader) Source() string { return AppleHealth }

func (r *AppleReader) Each(ctx context.Context, fn func(Raw) error) error {
	member, closeArchive, err := openArchiveMember(r.ZipPath, "export.xml")
	if err != nil {
		return unavailable(AppleHealth, err)
	}
	defer closeArchive()

	dec := xml.NewDecoder(member)
	line := 0
	depth := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// A token-level error corrupts the rest of the stream; the
			// document as a whole is unparsable.
			return unavailable(AppleHealth, fmt.Errorf("parse export.xml: %w", err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// Only direct children of the root are records; Record elements
			// nest MetadataEntry children we must not mistake for samples.
			if depth != 2 {
				continue
			}

			raw, ok := classifyElement(t)
			if ok {
				raw.Line = line + 1
				line++
				if err := fn(raw); err != nil {
					return err
				}
			}
			if err := dec.Skip(); err != nil && !errors.Is(err, io.EOF) {
				return unavailable(AppleHealth, fmt.Errorf("parse export.xml: %w", err))
			}
			depth--

		case xml.EndElement:
			depth--
		}
	}
}

// classifyElement maps one top-level element to a tagged raw record.
// Unrecognized elements (ActivitySummary, ClinicalRecord, ...) return false.
func classifyElement(el xml.StartElement) (Raw, bool) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}

	switch el.Name.Local {
	case "Record":
		typ := attrs["type"]
		switch {
		case strings.HasPrefix(typ, quantityTypePrefix):
			return Raw{Kind: record.KindQuantity, Attrs: attrs}, true
		case strings.HasPrefix(typ, categoryTypePrefix):
			return Raw{Kind: record.KindCategory, Attrs: attrs}, true
		}
	case "Workout":
		return Raw{Kind: record.KindWorkout, Attrs: attrs}, true
	}
	return Raw{}, false
}
