package record

import "fmt"

// RejectReason classifies why a record was dropped before persistence.
type RejectReason int

const (
	// ReasonParseFailure covers raw elements the reader could not decode.
	ReasonParseFailure RejectReason = iota

	// ReasonMissingField covers absent required identifying fields.
	ReasonMissingField

	// ReasonInvalidTimestamp covers unparsable date/time input.
	ReasonInvalidTimestamp

	// ReasonOrderingViolation covers start_time > end_time.
	ReasonOrderingViolation

	// ReasonOutOfRange covers values outside their declared sane range.
	ReasonOutOfRange
)

func (r RejectReason) String() string {
	switch r {
	case ReasonParseFailure:
		return "ParseFailure"
	case ReasonMissingField:
		return "MissingField"
	case ReasonInvalidTimestamp:
		return "InvalidTimestamp"
	case ReasonOrderingViolation:
		return "OrderingViolation"
	case ReasonOutOfRange:
		return "OutOfRange"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Rejection describes one dropped record. Raw carries the original attribute
// map for diagnostics; it is never persisted.
type Rejection struct {
	Reason RejectReason
	Field  string
	Detail string
	Raw    map[string]string
}

func (r Rejection) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s: %s", r.Reason, r.Field, r.Detail)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Result is the per-record outcome of the normalize/validate stages.
// Exactly one of Record and Reject is set.
type Result struct {
	Record Record
	Reject *Rejection
}

// Accepted wraps a canonical record.
func Accepted(rec Record) Result { return Result{Record: rec} }

// Rejected wraps a classified rejection.
func Rejected(reason RejectReason, field, detail string, raw map[string]string) Result {
	return Result{Reject: &Rejection{Reason: reason, Field: field, Detail: detail, Raw: raw}}
}

// Ok reports whether the record survived the stage.
func (r Result) Ok() bool { return r.Reject == nil }
