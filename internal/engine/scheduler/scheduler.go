// Package scheduler implements the target execution scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/distribution/reference"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/engine/cachekey"
	"go.trai.ch/ybt/internal/engine/testrunner"
	"go.trai.ch/zerr"
)

const (
	imageRepository = "ybt"
	imageKeyLen     = 12
	reasonAborted   = "aborted"
)

// Scheduler manages the execution of targets in the dependency graph.
type Scheduler struct {
	executor ports.Executor
	engine   ports.ContainerEngine
	cache    ports.ArtifactCache
	keys     *cachekey.Engine
	tests    *testrunner.Runner
	tracer   ports.Tracer
	logger   ports.Logger
	metrics  ports.Metrics
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	executor ports.Executor,
	engine ports.ContainerEngine,
	cache ports.ArtifactCache,
	keys *cachekey.Engine,
	tests *testrunner.Runner,
	tracer ports.Tracer,
	logger ports.Logger,
	metrics ports.Metrics,
) *Scheduler {
	return &Scheduler{
		executor: executor,
		engine:   engine,
		cache:    cache,
		keys:     keys,
		tests:    tests,
		tracer:   tracer,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run builds the execution set of roots. The returned report is complete even
// when an error is returned. Build failures are joined into the error and a
// canceled context yields domain.ErrRunAborted.
func (s *Scheduler) Run(
	ctx context.Context,
	graph *domain.Graph,
	envs ports.EnvironmentProvider,
	roots []string,
	cfg domain.RunConfig,
) (*domain.BuildReport, error) {
	start := time.Now()
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.NumCPU()
	}

	closure, err := graph.ExecutionSet(roots, cfg.IncludeTests)
	if err != nil {
		return nil, err
	}
	ordered := graph.TopologicalOrder(closure)

	planned := make([]string, len(ordered))
	for i, t := range ordered {
		planned[i] = t.Name.String()
	}
	s.tracer.EmitPlan(ctx, planned)
	s.metrics.RunPlanned(len(ordered))

	state := s.newRunState(ctx, graph, envs, ordered, cfg)
	state.runExecutionLoop()

	report := state.report()
	report.Duration = time.Since(start)

	if report.Aborted {
		return report, errors.Join(domain.ErrRunAborted, ctx.Err(), state.errs)
	}
	return report, state.errs
}

// envResult memoizes one environment for the duration of a run.
type envResult struct {
	once sync.Once
	env  *domain.ResolvedEnvironment
	err  error
}

type result struct {
	target   *domain.Target
	state    domain.TargetState
	key      string
	locator  string
	attempts int
	reason   string
	err      error
	elapsed  time.Duration
}

type schedulerRunState struct {
	s        *Scheduler
	graph    *domain.Graph
	envs     ports.EnvironmentProvider
	cfg      domain.RunConfig
	ctx      context.Context
	workCtx  context.Context
	ordered  []*domain.Target
	member   map[int]bool
	inDegree map[int]int
	ready    []*domain.Target
	active   int

	resultsCh chan result
	keys      map[domain.Name]string
	outcomes  map[domain.Name]*domain.Outcome
	errs      error

	envMu    sync.Mutex
	envCache map[string]*envResult
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	graph *domain.Graph,
	envs ports.EnvironmentProvider,
	ordered []*domain.Target,
	cfg domain.RunConfig,
) *schedulerRunState {
	state := &schedulerRunState{
		s:         s,
		graph:     graph,
		envs:      envs,
		cfg:       cfg,
		ctx:       ctx,
		workCtx:   context.WithoutCancel(ctx),
		ordered:   ordered,
		member:    make(map[int]bool, len(ordered)),
		inDegree:  make(map[int]int, len(ordered)),
		resultsCh: make(chan result, cfg.Jobs),
		keys:      make(map[domain.Name]string, len(ordered)),
		outcomes:  make(map[domain.Name]*domain.Outcome, len(ordered)),
		envCache:  make(map[string]*envResult),
	}

	for _, t := range ordered {
		state.member[t.Index()] = true
	}
	for _, t := range ordered {
		// The execution set is closed under dependencies, so every
		// dependency counts towards the in-degree.
		state.inDegree[t.Index()] = len(graph.Dependencies(t))
		state.outcomes[t.Name] = &domain.Outcome{
			Target: t.Name.String(),
			Kind:   t.Kind,
			State:  domain.StatePending,
		}
	}
	for _, t := range ordered {
		if state.inDegree[t.Index()] == 0 {
			state.markReady(t)
		}
	}
	return state
}

// environment materializes the named environment at most once per run. It is
// only called after a cache miss, so fully cached runs never set up an
// environment. A failure is memoized and fails every target that uses it.
func (state *schedulerRunState) environment(ctx context.Context, t *domain.Target) (*domain.ResolvedEnvironment, error) {
	name := t.Env.String()

	state.envMu.Lock()
	er, ok := state.envCache[name]
	if !ok {
		er = &envResult{}
		state.envCache[name] = er
	}
	state.envMu.Unlock()

	er.once.Do(func() {
		if state.envs == nil {
			er.err = zerr.With(zerr.Wrap(domain.ErrEnvironmentNotFound, name), "target", t.Name.String())
			return
		}
		er.env, er.err = state.envs.Ensure(ctx, name)
		if er.err != nil {
			state.s.logger.Warn("environment unavailable", "env", name, "error", er.err)
		}
	})
	return er.env, er.err
}

func (state *schedulerRunState) runExecutionLoop() {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}
		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			for state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}

	if state.ctx.Err() != nil {
		for _, t := range state.ordered {
			if o := state.outcomes[t.Name]; !o.State.IsTerminal() {
				state.finish(t, domain.StateSkipped, reasonAborted, 0)
			}
		}
	}
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *schedulerRunState) markReady(t *domain.Target) {
	i, _ := slices.BinarySearchFunc(state.ready, t.Index(), func(r *domain.Target, idx int) int {
		return r.Index() - idx
	})
	state.ready = slices.Insert(state.ready, i, t)
	state.outcomes[t.Name].State = domain.StateReady
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.cfg.Jobs && state.ctx.Err() == nil {
		t := state.ready[0]
		state.ready = state.ready[1:]

		depKeys, err := cachekey.DependencyKeys(state.graph, t, state.keys)
		state.active++
		state.outcomes[t.Name].State = domain.StateRunning

		if err != nil {
			go func() { state.resultsCh <- result{target: t, state: domain.StateFailed, err: err} }()
			continue
		}
		go state.executeTarget(t, depKeys)
	}
}

func (state *schedulerRunState) executeTarget(t *domain.Target, depKeys []string) {
	// The span ends before the result is sent so that the loop never
	// finishes ahead of the span being recorded.
	res := func() result {
		started := time.Now()
		ctx, span := state.s.tracer.Start(state.workCtx, t.Name.String())
		defer span.End()

		res := state.buildTarget(ctx, t, depKeys, span)
		res.target = t
		res.elapsed = time.Since(started)
		if res.err != nil {
			span.RecordError(res.err)
		}
		if res.key != "" {
			span.SetAttribute("ybt.key", res.key)
		}
		if res.state == domain.StateCached {
			span.SetAttribute(ports.AttrCached, true)
		}
		return res
	}()

	state.resultsCh <- res
}

func (state *schedulerRunState) buildTarget(
	ctx context.Context,
	t *domain.Target,
	depKeys []string,
	span ports.Span,
) result {
	root := state.cfg.Root

	envFP, err := cachekey.EnvFingerprint(t, state.envs)
	if err != nil {
		return result{state: domain.StateFailed, err: err}
	}
	key, err := state.s.keys.Key(t, root, envFP, depKeys)
	if err != nil {
		return result{state: domain.StateFailed, err: err}
	}

	if !state.cfg.NoCache {
		if entry := state.s.lookup(ctx, t, key, root); entry != nil {
			return result{state: domain.StateCached, key: key, locator: describe(entry.Locator)}
		}
	}

	var env *domain.ResolvedEnvironment
	if !t.Env.IsZero() {
		env, err = state.environment(ctx, t)
		if err != nil {
			return result{
				state:  domain.StateFailed,
				key:    key,
				reason: "environment " + t.Env.String() + " failed",
				err:    err,
			}
		}
	}

	unlock := state.s.cache.Lock(key)
	defer unlock()

	if !state.cfg.NoCache {
		if entry := state.s.lookup(ctx, t, key, root); entry != nil {
			return result{state: domain.StateCached, key: key, locator: describe(entry.Locator)}
		}
	}

	res := state.s.execute(ctx, t, key, env, root, state.cfg, span)
	res.key = key
	return res
}

// lookup returns a verified and restored cache entry, or nil on a miss.
func (s *Scheduler) lookup(ctx context.Context, t *domain.Target, key, root string) *domain.CacheEntry {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache lookup failed", "target", t.Name.String(), "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	switch entry.Locator.Kind {
	case domain.LocatorImage:
		exists, err := s.engine.ImageExists(ctx, entry.Locator.Image)
		if err != nil || !exists {
			s.invalidate(ctx, t, key)
			return nil
		}
	case domain.LocatorFiles:
		if err := s.cache.Restore(ctx, entry, root); err != nil {
			s.logger.Warn("cache restore failed", "target", t.Name.String(), "error", err)
			s.invalidate(ctx, t, key)
			return nil
		}
	}
	return entry
}

func (s *Scheduler) invalidate(ctx context.Context, t *domain.Target, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", "target", t.Name.String(), "error", err)
	}
}

func (s *Scheduler) execute(
	ctx context.Context,
	t *domain.Target,
	key string,
	env *domain.ResolvedEnvironment,
	root string,
	cfg domain.RunConfig,
	span ports.Span,
) result {
	spec := t.CommandFor(root)
	attempts := 0

	if t.Kind != domain.KindImage {
		if err := cleanOutputs(root, t.Outputs); err != nil {
			return result{state: domain.StateFailed, reason: "invalid output", err: err}
		}
	}

	switch t.Kind {
	case domain.KindTest:
		tr := s.tests.Run(ctx, t, env, spec, cfg.AttemptsFor(t), span)
		if !tr.Passed {
			return result{state: domain.StateFailed, attempts: tr.Attempts, reason: "test failed", err: tr.Err}
		}
		attempts = tr.Attempts
	case domain.KindImage:
		ref, err := s.buildImage(ctx, t, key, env, span)
		if err != nil {
			return result{state: domain.StateFailed, err: err}
		}
		entry, err := s.cache.PutImage(ctx, key, t.Name.String(), ref)
		if err != nil {
			s.logger.Warn("cache write failed", "target", t.Name.String(), "error", err)
			return result{state: domain.StateBuilt, locator: ref}
		}
		return result{state: domain.StateBuilt, locator: describe(entry.Locator)}
	default:
		if len(spec.Args) > 0 {
			if err := s.executor.Execute(ctx, env, spec, span); err != nil {
				return result{state: domain.StateFailed, err: err}
			}
		}
	}

	entry, err := s.cache.Put(ctx, key, t.Name.String(), root, t.Outputs)
	if errors.Is(err, domain.ErrOutputMissing) {
		return result{state: domain.StateFailed, attempts: attempts, reason: "declared output missing", err: err}
	}
	if err != nil {
		s.logger.Warn("cache write failed", "target", t.Name.String(), "error", err)
		return result{state: domain.StateBuilt, attempts: attempts}
	}
	return result{state: domain.StateBuilt, attempts: attempts, locator: describe(entry.Locator)}
}

// cleanOutputs removes the declared outputs of a target so that a command
// which stops producing one cannot leave a stale file behind.
func cleanOutputs(root string, outputs []string) error {
	if len(outputs) == 0 {
		return nil
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve workspace root"), "root", root)
	}
	for _, out := range outputs {
		outAbs, err := filepath.Abs(filepath.Join(rootAbs, out))
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve output path"), "output", out)
		}
		rel, err := filepath.Rel(rootAbs, outAbs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return zerr.With(zerr.Wrap(domain.ErrOutputOutsideRoot, "refusing to clean output"), "output", out)
		}
		if err := os.RemoveAll(outAbs); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to clean output"), "output", out)
		}
	}
	return nil
}

// buildImage builds an image target on top of its environment image, or the
// base image named by its "base" param, and tags it ybt/<name>:<key12>.
func (s *Scheduler) buildImage(
	ctx context.Context,
	t *domain.Target,
	key string,
	env *domain.ResolvedEnvironment,
	span ports.Span,
) (string, error) {
	parent := t.Params["base"]
	if env != nil {
		parent = env.ImageRef
	}
	if parent == "" {
		return "", &domain.MalformedDeclarationError{
			Target: t.Name.String(),
			Reason: "image target needs an environment or a base param",
		}
	}

	ref, err := ImageRef(t.Name.String(), key)
	if err != nil {
		return "", err
	}
	step := domain.SetupStep{Name: t.Name.String(), Run: t.Command, Env: t.CommandFor("").Env}
	if err := s.engine.BuildLayer(ctx, parent, step, ref, span); err != nil {
		return "", zerr.With(zerr.Wrap(err, "image build failed"), "image", ref)
	}
	return ref, nil
}

// ImageRef returns the local tag of an image target.
func ImageRef(target, key string) (string, error) {
	hex := key
	if i := strings.IndexByte(hex, ':'); i >= 0 {
		hex = hex[i+1:]
	}
	if len(hex) > imageKeyLen {
		hex = hex[:imageKeyLen]
	}

	named, err := reference.ParseNormalizedNamed(imageRepository + "/" + imageName(target))
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "invalid image name"), "target", target)
	}
	tagged, err := reference.WithTag(named, hex)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "invalid image tag"), "target", target)
	}
	return reference.FamiliarString(tagged), nil
}

// imageName maps a qualified target name onto the repository name grammar.
func imageName(target string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(target) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('-')
			lastSep = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if name == "" {
		return "target"
	}
	return name
}

func describe(l domain.Locator) string {
	switch l.Kind {
	case domain.LocatorImage:
		return l.Image
	case domain.LocatorFiles:
		if len(l.Files) == 1 {
			return "1 file"
		}
		return fmt.Sprintf("%d files", len(l.Files))
	default:
		return ""
	}
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	t := res.target

	o := state.outcomes[t.Name]
	o.Key = res.key
	o.Locator = res.locator
	o.Attempts = res.attempts
	o.Err = res.err

	if res.err != nil || res.state == domain.StateFailed {
		if res.err == nil {
			res.err = zerr.New(res.reason)
		}
		enhancedErr := zerr.With(zerr.Wrap(res.err, domain.ErrBuildExecutionFailed.Error()), "target", t.Name.String())
		state.errs = errors.Join(state.errs, enhancedErr)
		state.finish(t, domain.StateFailed, res.reason, res.elapsed)
		state.skipDependents(t)
		return
	}

	state.keys[t.Name] = res.key
	state.finish(t, res.state, "", res.elapsed)

	for _, dep := range state.graph.Dependents(t) {
		if !state.member[dep.Index()] {
			continue
		}
		state.inDegree[dep.Index()]--
		if state.inDegree[dep.Index()] == 0 && state.outcomes[dep.Name].State == domain.StatePending {
			state.markReady(dep)
		}
	}
}

// skipDependents marks every pending transitive dependent of failed as skipped.
func (state *schedulerRunState) skipDependents(failed *domain.Target) {
	reason := "dependency " + failed.Name.String() + " failed"
	queue := []*domain.Target{failed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range state.graph.Dependents(cur) {
			if !state.member[dep.Index()] || state.outcomes[dep.Name].State.IsTerminal() {
				continue
			}
			state.finish(dep, domain.StateSkipped, reason, 0)
			queue = append(queue, dep)
		}
	}
}

func (state *schedulerRunState) finish(t *domain.Target, s domain.TargetState, reason string, elapsed time.Duration) {
	o := state.outcomes[t.Name]
	o.State = s
	o.Reason = reason
	o.Duration = elapsed
	state.s.metrics.TargetFinished(t.Kind, s, elapsed)

	switch s {
	case domain.StateFailed:
		state.s.logger.Warn("target failed", "target", t.Name.String(), "reason", reason)
	case domain.StateSkipped:
		state.s.logger.Debug("target skipped", "target", t.Name.String(), "reason", reason)
	default:
		state.s.logger.Debug("target finished", "target", t.Name.String(), "state", string(s))
	}
}

func (state *schedulerRunState) report() *domain.BuildReport {
	r := &domain.BuildReport{
		RunID:    state.cfg.RunID,
		Success:  true,
		Aborted:  state.ctx.Err() != nil,
		Outcomes: make([]domain.Outcome, 0, len(state.ordered)),
	}
	for _, t := range state.ordered {
		o := *state.outcomes[t.Name]
		if !o.State.IsSuccess() {
			r.Success = false
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	return r
}
