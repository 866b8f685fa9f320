package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kholm/healthpipe/internal/record"
)

// Summary aggregates the outcomes of one ingestion run.
type Summary struct {
	Outcomes []Outcome
}

// Verdict is "success", "partial", or "failure".
func (s Summary) Verdict() string {
	failed := 0
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			failed++
		}
	}
	switch {
	case failed == 0:
		return "success"
	case failed == len(s.Outcomes):
		return "failure"
	default:
		return "partial"
	}
}

// AnyFailed reports whether any requested source failed outright, which maps
// to a non-zero process exit status.
func (s Summary) AnyFailed() bool {
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			return true
		}
	}
	return false
}

// Render returns the human-readable per-source report.
func (s Summary) Render() string {
	var b strings.Builder
	b.WriteString("Ingestion summary\n")
	b.WriteString("=================\n")

	for _, o := range s.Outcomes {
		status := "succeeded"
		if !o.Succeeded {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "\n%-14s %s\n", o.Source, status)
		if o.Err != nil {
			fmt.Fprintf(&b, "  error:              %v\n", o.Err)
		}
		fmt.Fprintf(&b, "  records read:       %d\n", o.Read)
		fmt.Fprintf(&b, "  attempted:          %d\n", o.Attempted)
		fmt.Fprintf(&b, "  inserted:           %d\n", o.Inserted)
		fmt.Fprintf(&b, "  duplicates skipped: %d\n", o.Duplicates)
		fmt.Fprintf(&b, "  rejected:           %d%s\n", o.TotalRejected(), rejectedBreakdown(o.Rejected))
		fmt.Fprintf(&b, "  insert failures:    %d\n", o.Failed)
		if o.Filtered > 0 {
			fmt.Fprintf(&b, "  outside date range: %d\n", o.Filtered)
		}
	}

	fmt.Fprintf(&b, "\noverall: %s\n", s.Verdict())
	return b.String()
}

func rejectedBreakdown(rejected map[record.RejectReason]int) string {
	if len(rejected) == 0 {
		return ""
	}
	parts := make([]string, 0, len(rejected))
	for reason, n := range rejected {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}
