package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Classification buckets one attempted operation.
type Classification string

const (
	ClassPassed            Classification = "passed"
	ClassExpectedFailure   Classification = "expected_failure"
	ClassUnexpectedFailure Classification = "unexpected_failure"
)

// Outcome is one record in the run's append-only log. Immutable once
// appended; the orchestrator is the only writer.
type Outcome struct {
	Operation string         `json:"operation"`
	Flow      string         `json:"flow,omitempty"`
	Class     Classification `json:"classification"`
	Detail    string         `json:"detail,omitempty"`
	Attempts  int            `json:"attempts"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
	At        time.Time      `json:"at"`
}

// Report is the run artifact of record.
type Report struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Total              int       `json:"total"`
	Passed             int       `json:"passed"`
	ExpectedFailures   int       `json:"expected_failures"`
	UnexpectedFailures int       `json:"unexpected_failures"`
	Outcomes           []Outcome `json:"outcomes"`
}

// Unexpected returns every unexpected failure, in attempt order.
func (r Report) Unexpected() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Class == ClassUnexpectedFailure {
			out = append(out, o)
		}
	}
	return out
}

// WriteJSON serializes the report for downstream consumers.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Summary is the one-line human rendering of the counts.
func (r Report) Summary() string {
	return fmt.Sprintf("attempted=%d passed=%d expected_failed=%d unexpected_failed=%d",
		r.Total, r.Passed, r.ExpectedFailures, r.UnexpectedFailures)
}

const maxDetailLen = 200

// truncateDetail keeps error text reproducible but bounded.
func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
