package model

import "time"

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusWarning  RunStatus = "complete_with_warnings"
	RunStatusHalted   RunStatus = "halted"
)

// RunContext carries the run-scoped identity shared by every stage of one
// run. It is injected explicitly so runs stay reproducible in tests.
type RunContext struct {
	RunID       string    `json:"run_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// StageReport summarizes one pipeline stage of a run.
type StageReport struct {
	Stage       string        `json:"stage"`
	RowsWritten int64         `json:"rows_written"`
	RowsDropped int64         `json:"rows_dropped"`
	Anomalies   int64         `json:"anomalies"`
	Checks      []CheckResult `json:"checks,omitempty"`
}

// CheckResult is one quality-gate assertion outcome, consumable by an
// external run controller.
type CheckResult struct {
	Assertion   string `json:"assertion"`
	Relation    string `json:"relation"`
	Failures    int64  `json:"failures"`
	ShouldWarn  bool   `json:"should_warn"`
	ShouldError bool   `json:"should_error"`
}

// Failed reports whether this check should halt the run.
func (c CheckResult) Failed() bool { return c.ShouldError && c.Failures > 0 }

// Warned reports whether this check produced a non-halting warning.
func (c CheckResult) Warned() bool { return c.ShouldWarn && c.Failures > 0 }

// RunReport is the structured outcome of one pipeline run, distinguishing
// "completed with warnings" from "halted with errors" and attributing a halt
// to the stage and assertion that caused it.
type RunReport struct {
	RunID       string        `json:"run_id"`
	Status      RunStatus     `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Stages      []StageReport `json:"stages"`
	HaltedStage string        `json:"halted_stage,omitempty"`
	HaltedCheck string        `json:"halted_check,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Warnings returns every non-halting warning across all stages.
func (r *RunReport) Warnings() []CheckResult {
	var out []CheckResult
	for _, s := range r.Stages {
		for _, c := range s.Checks {
			if c.Warned() {
				out = append(out, c)
			}
		}
	}
	return out
}
