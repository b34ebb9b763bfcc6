// Package app implements the application layer for ybt.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/engine/cachekey"
	"go.trai.ch/ybt/internal/engine/environment"
	"go.trai.ch/ybt/internal/engine/policy"
	"go.trai.ch/ybt/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	loader    ports.DeclarationLoader
	scheduler *scheduler.Scheduler
	envs      *environment.Factory
	keys      *cachekey.Engine
	artifacts ports.ArtifactCache
	layers    ports.LayerCache
	tracer    ports.Tracer
	logger    ports.Logger
	metrics   ports.Metrics

	out   io.Writer
	runID func() string
}

// New creates a new App instance.
func New(
	loader ports.DeclarationLoader,
	sched *scheduler.Scheduler,
	envs *environment.Factory,
	keys *cachekey.Engine,
	artifacts ports.ArtifactCache,
	layers ports.LayerCache,
	tracer ports.Tracer,
	log ports.Logger,
	metrics ports.Metrics,
) *App {
	return &App{
		loader:    loader,
		scheduler: sched,
		envs:      envs,
		keys:      keys,
		artifacts: artifacts,
		layers:    layers,
		tracer:    tracer,
		logger:    log,
		metrics:   metrics,
		out:       os.Stdout,
		runID:     uuid.NewString,
	}
}

// WithOutput sets where summaries, plans and trees are printed.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// Options are the per-invocation overrides of workspace settings.
// Zero values keep the workspace setting.
type Options struct {
	// Dir is where declaration discovery starts. Defaults to the working directory.
	Dir             string
	Jobs            int
	NoCache         bool
	TestAttempts    int
	DefaultStrategy string
	PolicySeverity  domain.Severity
}

// session is a loaded workspace with its caches opened.
type session struct {
	ws    *domain.Workspace
	graph *domain.Graph
	envs  *environment.Manager
	cfg   domain.RunConfig
}

func (a *App) open(ctx context.Context, opts Options) (*session, func(), error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	ws, err := a.loader.Load(ctx, dir)
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to load declarations")
	}

	graph, err := domain.BuildGraph(ws.Declarations)
	if err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateEnvironments(ws.Environments, graph); err != nil {
		return nil, nil, err
	}

	cfg := runConfig(ws, opts)
	cfg.RunID = a.runID()

	mgr, err := a.envs.New(ws.Environments, cfg.DefaultStrategy)
	if err != nil {
		return nil, nil, err
	}

	cacheDir := domain.CachePath(ws.Root, ws.Settings)
	if err := a.artifacts.Open(cacheDir); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to open artifact cache"), "path", cacheDir)
	}
	if err := a.layers.Open(cacheDir); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to open layer cache"), "path", cacheDir)
	}
	closeFn := func() {
		if err := a.layers.Close(); err != nil {
			a.logger.Warn("failed to close layer cache", "error", err)
		}
	}

	a.logger.Debug("workspace loaded",
		"file", ws.File,
		"targets", graph.Len(),
		"environments", len(ws.Environments),
		"run_id", cfg.RunID,
	)
	return &session{ws: ws, graph: graph, envs: mgr, cfg: cfg}, closeFn, nil
}

func runConfig(ws *domain.Workspace, opts Options) domain.RunConfig {
	cfg := domain.RunConfig{
		Root:            ws.Root,
		Jobs:            ws.Settings.Jobs,
		NoCache:         opts.NoCache,
		TestAttempts:    ws.Settings.TestAttempts,
		PolicySeverity:  ws.Settings.PolicySeverity,
		DefaultStrategy: ws.Settings.DefaultStrategy,
		Revision:        ws.Revision,
	}
	if opts.Jobs > 0 {
		cfg.Jobs = opts.Jobs
	}
	if opts.TestAttempts > 0 {
		cfg.TestAttempts = opts.TestAttempts
	}
	if opts.DefaultStrategy != "" {
		cfg.DefaultStrategy = opts.DefaultStrategy
	}
	if opts.PolicySeverity != "" {
		cfg.PolicySeverity = opts.PolicySeverity
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = domain.StrategyNone
	}
	return cfg
}

// Build builds roots and their dependencies. Test targets only run when named
// or needed by another target. The report is returned even on failure.
func (a *App) Build(ctx context.Context, roots []string, opts Options) (*domain.BuildReport, error) {
	if len(roots) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	s, closeFn, err := a.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return a.run(ctx, s, roots)
}

// Test runs every test target in the closure of roots, or every test target
// when roots is empty.
func (a *App) Test(ctx context.Context, roots []string, opts Options) (*domain.TestReport, error) {
	s, closeFn, err := a.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if len(roots) == 0 {
		for t := range s.graph.Targets() {
			if t.Kind == domain.KindTest {
				roots = append(roots, t.Name.String())
			}
		}
		if len(roots) == 0 {
			a.logger.Info("no test targets declared")
			return &domain.TestReport{Build: &domain.BuildReport{RunID: s.cfg.RunID, Success: true}}, nil
		}
	}
	s.cfg.IncludeTests = true

	report, err := a.run(ctx, s, roots)
	if report == nil {
		return nil, err
	}

	tr := &domain.TestReport{Build: report}
	for _, o := range report.Outcomes {
		if o.Kind != domain.KindTest {
			continue
		}
		tr.Outcomes = append(tr.Outcomes, domain.TestOutcome{
			Target:   o.Target,
			Passed:   o.State.IsSuccess(),
			Cached:   o.State == domain.StateCached,
			Attempts: o.Attempts,
			Duration: o.Duration,
			Reason:   o.Reason,
		})
	}
	renderTests(a.out, tr)

	if err == nil && !tr.Passed() {
		err = domain.ErrTestsFailed
	}
	return tr, err
}

func (a *App) run(ctx context.Context, s *session, roots []string) (*domain.BuildReport, error) {
	ctx, span := a.tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttribute("ybt.run_id", s.cfg.RunID)
	span.SetAttribute("ybt.roots", roots)

	closure, err := s.graph.ExecutionSet(roots, s.cfg.IncludeTests)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	violations, err := a.checkPolicies(ctx, s, closure)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	renderViolations(a.out, violations)
	if policy.Fatal(violations) {
		err := zerr.With(zerr.Wrap(domain.ErrPolicyViolation, "refusing to build"), "violations", len(violations))
		span.RecordError(err)
		return &domain.BuildReport{RunID: s.cfg.RunID, Aborted: true, Violations: violations}, err
	}

	report, err := a.scheduler.Run(ctx, s.graph, s.envs, roots, s.cfg)
	if report != nil {
		report.Violations = violations
		renderSummary(a.out, report)
	}
	if flushErr := a.metrics.Flush(); flushErr != nil {
		a.logger.Warn("failed to write metrics", "error", flushErr)
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrRunAborted) {
			return report, err
		}
		return report, errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return report, nil
}

func (a *App) checkPolicies(ctx context.Context, s *session, closure []*domain.Target) ([]domain.Violation, error) {
	if len(s.ws.Policies) == 0 {
		return nil, nil
	}
	bound, err := policy.Bind(ctx, s.ws.Policies, s.cfg.PolicySeverity)
	if err != nil {
		return nil, err
	}
	return policy.Evaluate(ctx, bound, s.graph, closure)
}

// Plan reports what a build of roots would execute without running anything.
func (a *App) Plan(ctx context.Context, roots []string, opts Options) (*domain.Plan, error) {
	if len(roots) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	s, closeFn, err := a.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	closure, err := s.graph.ExecutionSet(roots, false)
	if err != nil {
		return nil, err
	}
	ordered := s.graph.TopologicalOrder(closure)

	keys, err := a.keys.Annotate(s.graph, ordered, s.cfg.Root, s.envs)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to compute cache keys")
	}

	plan := &domain.Plan{}
	var envNames []string
	for _, t := range ordered {
		key := keys[t.Name]
		if !s.cfg.NoCache {
			entry, err := a.artifacts.Get(ctx, key)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, "cache lookup failed"), "target", t.Name.String())
			}
			if entry != nil {
				plan.Cached = append(plan.Cached, t.Name.String())
				continue
			}
		}
		plan.Steps = append(plan.Steps, domain.PlanStep{
			Target: t.Name.String(),
			Kind:   t.Kind,
			Key:    key,
			Env:    t.Env.String(),
		})
		if !t.Env.IsZero() && !slices.Contains(envNames, t.Env.String()) {
			envNames = append(envNames, t.Env.String())
		}
	}

	plan.Layers, err = s.envs.Plan(ctx, envNames)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to plan environments")
	}

	renderPlan(a.out, plan)
	return plan, nil
}

// Tree prints the dependency tree of root to w.
func (a *App) Tree(ctx context.Context, root string, w io.Writer, opts Options) error {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	ws, err := a.loader.Load(ctx, dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load declarations")
	}
	graph, err := domain.BuildGraph(ws.Declarations)
	if err != nil {
		return err
	}
	if root == "" || root == domain.AllTargets {
		renderTree(w, graph, topLevel(graph))
		return nil
	}
	targets, err := graph.ResolveRoots([]string{root})
	if err != nil {
		return err
	}
	renderTree(w, graph, targets)
	return nil
}

// Dot writes the dependency graph of roots to w in Graphviz format. Targets
// with a valid cache entry are filled grey. With withEnvs set, every build
// environment becomes a node that its targets point at.
func (a *App) Dot(ctx context.Context, roots []string, w io.Writer, withEnvs bool, opts Options) error {
	if len(roots) == 0 {
		roots = []string{domain.AllTargets}
	}

	s, closeFn, err := a.open(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	closure, err := s.graph.TransitiveClosure(roots)
	if err != nil {
		return err
	}

	cached := make(map[domain.Name]bool, len(closure))
	if !s.cfg.NoCache {
		keys, err := a.keys.Annotate(s.graph, s.graph.TopologicalOrder(closure), s.cfg.Root, s.envs)
		if err != nil {
			return zerr.Wrap(err, "failed to compute cache keys")
		}
		for _, t := range closure {
			entry, err := a.artifacts.Get(ctx, keys[t.Name])
			if err != nil {
				return zerr.With(zerr.Wrap(err, "cache lookup failed"), "target", t.Name.String())
			}
			cached[t.Name] = entry != nil
		}
	}

	renderDot(w, s.graph, closure, cached, withEnvs)
	return nil
}

// topLevel returns the targets nothing depends on, in declaration order.
func topLevel(g *domain.Graph) []*domain.Target {
	var out []*domain.Target
	for t := range g.Targets() {
		if len(g.Dependents(t)) == 0 {
			out = append(out, t)
		}
	}
	return out
}
