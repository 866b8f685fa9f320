// Package normalize maps each source's raw field names and units onto the
// canonical schema for its record kind: declarative rename tables with
// first-match-wins fallback chains, timestamp parsing, numeric coercion, and
// fixed-factor unit conversion.
package normalize

import (
	"fmt"
	"strings"
)

// FieldMap binds one canonical field to the raw header spellings it may
// appear under, in fallback order. The first spelling present with a
// non-empty value wins.
type FieldMap struct {
	Canonical string
	From      []string
	Required  bool
}

// Mapping is the full rename table for one source.
type Mapping struct {
	Source string
	Fields []FieldMap
}

// Validate catches mapping-table mistakes at startup: empty fallback chains,
// duplicate canonical names, duplicate spellings within one chain. A broken
// table is a configuration error, not a silent nil at row time.
func (m Mapping) Validate() error {
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Canonical == "" {
			return fmt.Errorf("%s mapping: canonical field name is empty", m.Source)
		}
		if seen[f.Canonical] {
			return fmt.Errorf("%s mapping: duplicate canonical field %q", m.Source, f.Canonical)
		}
		seen[f.Canonical] = true

		if len(f.From) == 0 {
			return fmt.Errorf("%s mapping: field %q has no source spellings", m.Source, f.Canonical)
		}
		inChain := make(map[string]bool, len(f.From))
		for _, s := range f.From {
			if s == "" {
				return fmt.Errorf("%s mapping: field %q has an empty source spelling", m.Source, f.Canonical)
			}
			if s != strings.ToLower(s) {
				return fmt.Errorf("%s mapping: field %q spelling %q is not canonicalized", m.Source, f.Canonical, s)
			}
			if inChain[s] {
				return fmt.Errorf("%s mapping: field %q repeats spelling %q", m.Source, f.Canonical, s)
			}
			inChain[s] = true
		}
	}
	return nil
}

// Missing returns the canonical names of required fields that have no value
// in attrs, in declaration order. An empty result means every required field
// resolved.
func (m Mapping) Missing(attrs map[string]string) []string {
	var missing []string
	for _, f := range m.Fields {
		if !f.Required {
			continue
		}
		if _, ok := m.Lookup(attrs, f.Canonical); !ok {
			missing = append(missing, f.Canonical)
		}
	}
	return missing
}

// Lookup resolves the canonical field against a raw attribute map.
// Returns "" and false when no spelling in the chain has a non-empty value.
func (m Mapping) Lookup(attrs map[string]string, canonical string) (string, bool) {
	for _, f := range m.Fields {
		if f.Canonical != canonical {
			continue
		}
		for _, name := range f.From {
			if v, ok := attrs[name]; ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
	return "", false
}
