package domain

import "strings"

// TargetState is the per-run lifecycle state of a target.
type TargetState string

const (
	// StatePending means the target waits for its dependencies.
	StatePending TargetState = "pending"
	// StateReady means every dependency succeeded and the target waits for a worker.
	StateReady TargetState = "ready"
	// StateRunning means a worker is processing the target.
	StateRunning TargetState = "running"
	// StateBuilt means the build step ran and succeeded.
	StateBuilt TargetState = "built"
	// StateCached means a valid cache entry was found and no step ran.
	StateCached TargetState = "cached"
	// StateFailed means the build step, test or environment setup failed.
	StateFailed TargetState = "failed"
	// StateSkipped means the target never ran because an ancestor failed or the run was aborted.
	StateSkipped TargetState = "skipped"
)

// IsTerminal reports whether no further transition is possible.
func (s TargetState) IsTerminal() bool {
	switch s {
	case StateBuilt, StateCached, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether dependents may proceed.
func (s TargetState) IsSuccess() bool {
	return s == StateBuilt || s == StateCached
}

// ParseTargetState converts a string to a TargetState, defaulting to pending.
func ParseTargetState(s string) TargetState {
	switch st := TargetState(strings.ToLower(s)); st {
	case StatePending, StateReady, StateRunning, StateBuilt, StateCached, StateFailed, StateSkipped:
		return st
	default:
		return StatePending
	}
}

// LogLevel mirrors the slog levels.
type LogLevel int

const (
	LogLevelDebug LogLevel = -4
	LogLevelInfo  LogLevel = 0
	LogLevelWarn  LogLevel = 4
	LogLevelError LogLevel = 8
)

// String returns the upper-case level label.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
