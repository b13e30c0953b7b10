// Package report turns a finished run into an immutable ExecutionReport and
// delivers it: evidence file, chat notification.
package report

import (
	"time"

	"github.com/Nehilsa2/console_keepalive/auth"
)

// Status is the overall verdict of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StepSummary is one step of the run as reported.
type StepSummary struct {
	Step    string        `json:"step"`
	Status  string        `json:"status"`
	Detail  string        `json:"detail"`
	Elapsed time.Duration `json:"elapsed"`
}

// ExecutionReport is a value snapshot of a finished run. Slices are only
// reachable through copying accessors.
type ExecutionReport struct {
	RunID        string
	RunLabel     string
	Status       Status
	StartedAt    time.Time
	Duration     time.Duration
	FinalURL     string
	PageTitle    string
	ErrorMessage string
	Flags        auth.Flags

	evidence []string
	steps    []StepSummary
}

// Build assembles the report. session may be nil when the run failed
// before one existed. runErr takes precedence over the session's error.
func Build(session *auth.Session, runID, label string, startedAt, endedAt time.Time, runErr error) ExecutionReport {
	rep := ExecutionReport{
		RunID:     runID,
		RunLabel:  label,
		Status:    StatusFailed,
		StartedAt: startedAt,
		Duration:  endedAt.Sub(startedAt),
	}

	err := runErr
	if session != nil {
		rep.FinalURL = session.CurrentURL
		rep.PageTitle = session.PageTitle
		rep.Flags = session.Flags()

		for _, rec := range session.Steps() {
			rep.steps = append(rep.steps, StepSummary{
				Step:    string(rec.Step),
				Status:  rec.Outcome.Status.String(),
				Detail:  rec.Outcome.String(),
				Elapsed: rec.Elapsed,
			})
		}

		if err == nil {
			err = session.Err()
		}
		if res, ok := session.Result(); ok {
			rep.evidence = res.Labels()
			if err == nil && res.Success {
				rep.Status = StatusSuccess
			}
		}
	}

	if err != nil {
		rep.ErrorMessage = err.Error()
	} else if rep.Status == StatusFailed {
		rep.ErrorMessage = auth.ErrLoginNotVerified.Error()
	}
	return rep
}

func (r ExecutionReport) Success() bool {
	return r.Status == StatusSuccess
}

// EvidenceLabels returns a copy of the success evidence.
func (r ExecutionReport) EvidenceLabels() []string {
	return append([]string(nil), r.evidence...)
}

// Steps returns a copy of the step summaries.
func (r ExecutionReport) Steps() []StepSummary {
	return append([]StepSummary(nil), r.steps...)
}

// ExitCode maps the verdict to a process exit status.
func (r ExecutionReport) ExitCode() int {
	if r.Success() {
		return 0
	}
	return 1
}
