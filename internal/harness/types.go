package harness

import (
	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/table"
)

// StepTrace records how one batch was applied.
type StepTrace struct {
	Index          int    `json:"index"`
	SubscriptionID string `json:"subscription"`
	BatchID        string `json:"batch"`
	Applied        int    `json:"applied"`
	Failed         int    `json:"failed"`
	Snapshot       bool   `json:"snapshot"`
	Shutdown       bool   `json:"shutdown"`
	Error          string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per applied batch, in order.
	Steps []StepTrace `json:"steps"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Digest is the canonical digest of the final table.
	Digest string `json:"digest"`

	// Reports are the diagnostics raised during the run.
	Reports []diag.Report `json:"-"`

	// Table is the final table.
	Table *table.Table `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
