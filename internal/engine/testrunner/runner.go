// Package testrunner executes test targets with a bounded retry budget.
package testrunner

import (
	"context"
	"io"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// Result is the outcome of one test target.
type Result struct {
	Passed   bool
	Attempts int
	Err      error
}

// Runner runs test commands through an executor.
type Runner struct {
	executor ports.Executor
	logger   ports.Logger
	metrics  ports.Metrics
}

// New creates a new Runner.
func New(executor ports.Executor, logger ports.Logger, metrics ports.Metrics) *Runner {
	return &Runner{executor: executor, logger: logger, metrics: metrics}
}

// Run executes spec up to attempts times and stops at the first success.
// Each attempt is a fresh execution. An attempts value below 1 means one attempt.
func (r *Runner) Run(
	ctx context.Context,
	t *domain.Target,
	env *domain.ResolvedEnvironment,
	spec domain.CommandSpec,
	attempts int,
	out io.Writer,
) Result {
	attempts = max(attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := r.executor.Execute(ctx, env, spec, out)
		r.metrics.TestAttempt(err == nil)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("test passed after retry", "target", t.Name.String(), "attempt", attempt)
			}
			return Result{Passed: true, Attempts: attempt}
		}

		lastErr = err
		r.logger.Warn("test attempt failed",
			"target", t.Name.String(),
			"attempt", attempt,
			"attempts", attempts,
			"error", err,
		)
		if ctx.Err() != nil {
			return Result{Attempts: attempt, Err: zerr.With(zerr.Wrap(err, "test interrupted"), "attempts", attempt)}
		}
	}

	return Result{
		Attempts: attempts,
		Err:      zerr.With(zerr.Wrap(lastErr, "test failed"), "attempts", attempts),
	}
}
