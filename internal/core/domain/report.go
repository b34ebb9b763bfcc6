package domain

import (
	"fmt"
	"time"
)

// Outcome is the final result of one target in a run.
type Outcome struct {
	Target   string
	Kind     TargetKind
	State    TargetState
	Key      string
	Locator  string
	Attempts int
	Duration time.Duration
	Reason   string
	Err      error
}

// BuildReport summarizes a run.
type BuildReport struct {
	RunID      string
	Success    bool
	Aborted    bool
	Outcomes   []Outcome
	Violations []Violation
	Duration   time.Duration
}

// Outcome returns the outcome for a target name.
func (r *BuildReport) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Target == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Count returns how many outcomes ended in state s.
func (r *BuildReport) Count(s TargetState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// TestOutcome is the result of one test target.
type TestOutcome struct {
	Target   string
	Passed   bool
	Cached   bool
	Attempts int
	Duration time.Duration
	Reason   string
}

// TestReport aggregates test outcomes.
type TestReport struct {
	Build    *BuildReport
	Outcomes []TestOutcome
}

// Passed reports whether every test passed.
func (r *TestReport) Passed() bool {
	for _, o := range r.Outcomes {
		if !o.Passed {
			return false
		}
	}
	return true
}

// PlanStep is one target that would execute.
type PlanStep struct {
	Target string
	Kind   TargetKind
	Key    string
	Env    string
}

// LayerPlan describes one environment layer and whether it can be skipped.
type LayerPlan struct {
	Env         string
	Step        string
	Fingerprint string
	Prebuilt    bool
}

// Plan lists the work a build would perform, in execution order.
type Plan struct {
	Steps  []PlanStep
	Cached []string
	Layers []LayerPlan
}

// Severity decides whether a violation aborts the run.
type Severity string

const (
	SeverityFatal Severity = "fatal"
	SeverityWarn  Severity = "warn"
)

// Violation is one policy failure for one target.
type Violation struct {
	Policy   string
	Target   string
	Reason   string
	Severity Severity
}

func (v Violation) String() string {
	return fmt.Sprintf("- Target %s violates %s policy: %s", v.Target, v.Policy, v.Reason)
}
