package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrDuplicateTarget is returned when two declarations share a qualified name.
	ErrDuplicateTarget = zerr.New("duplicate target")

	// ErrUnresolvedDependency is returned when a target references a name that was never declared.
	ErrUnresolvedDependency = zerr.New("unresolved dependency")

	// ErrCycleDetected is returned when the declarations contain a dependency cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrMalformedDeclaration is returned when a declaration is structurally invalid.
	ErrMalformedDeclaration = zerr.New("malformed declaration")

	// ErrTargetNotFound is returned when a requested target is not part of the graph.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrEnvironmentNotFound is returned when a build environment name does not resolve.
	ErrEnvironmentNotFound = zerr.New("environment not found")

	// ErrEnvironmentFailed is returned for every target built inside an environment whose setup failed.
	ErrEnvironmentFailed = zerr.New("environment setup failed")

	// ErrBuildDisallowed is returned when an environment has no remote image and local builds are disabled.
	ErrBuildDisallowed = zerr.New("environment is not cached remotely and building is disallowed")

	// ErrUnknownStrategy is returned when an environment names a cache strategy that does not exist.
	ErrUnknownStrategy = zerr.New("unknown cache strategy")

	// ErrNoTargetsSpecified is returned when a command needs at least one target.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrBuildExecutionFailed is returned when at least one target in the requested closure failed or was skipped.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrTestsFailed is returned when at least one test target did not pass.
	ErrTestsFailed = zerr.New("tests failed")

	// ErrPolicyViolation is returned when a policy configured as fatal was violated.
	ErrPolicyViolation = zerr.New("fatal policy violation")

	// ErrRunAborted is returned when a run stopped dispatching before every target finished.
	ErrRunAborted = zerr.New("run aborted")

	// ErrConfigNotFound is returned when no declaration file is found up the directory tree.
	ErrConfigNotFound = zerr.New("no ybt.yaml, ybt.yml or ybt.hcl found")

	// ErrCacheCorrupted is returned when a cache entry fails its integrity check.
	ErrCacheCorrupted = zerr.New("cache entry corrupted")

	// ErrOutputMissing is returned when a target did not produce a declared output.
	ErrOutputMissing = zerr.New("declared output missing")

	// ErrOutputOutsideRoot is returned when a declared output resolves outside the workspace root.
	ErrOutputOutsideRoot = zerr.New("output path outside workspace root")

	// ErrCacheNotOpen is returned when a cache is used before it was opened.
	ErrCacheNotOpen = zerr.New("cache not open")
)

// DuplicateTargetError reports two declarations with the same qualified name.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("%s: %q is declared more than once", ErrDuplicateTarget, e.Name)
}

func (e *DuplicateTargetError) Unwrap() error { return ErrDuplicateTarget }

// UnresolvedDependencyError reports a reference to an undeclared target.
type UnresolvedDependencyError struct {
	Target      string
	Dependency  string
	Suggestions []string
}

func (e *UnresolvedDependencyError) Error() string {
	var b strings.Builder
	if e.Target == "" {
		fmt.Fprintf(&b, "%s: %q", ErrUnresolvedDependency, e.Dependency)
	} else {
		fmt.Fprintf(&b, "%s: %q required by %q", ErrUnresolvedDependency, e.Dependency, e.Target)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (possible misspelling of: %s)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// CycleError reports a dependency cycle. Path starts and ends with the same name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// MalformedDeclarationError reports a declaration that cannot be turned into a target.
type MalformedDeclarationError struct {
	Target string
	Reason string
}

func (e *MalformedDeclarationError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedDeclaration, e.Reason)
	}
	return fmt.Sprintf("%s: %q: %s", ErrMalformedDeclaration, e.Target, e.Reason)
}

func (e *MalformedDeclarationError) Unwrap() error { return ErrMalformedDeclaration }

// EnvironmentError reports a build environment that could not be materialized.
type EnvironmentError struct {
	Env string
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrEnvironmentFailed, e.Env, e.Err)
}

func (e *EnvironmentError) Unwrap() []error { return []error{ErrEnvironmentFailed, e.Err} }
