// Package environment materializes layered build environments.
//
// An environment is a base image followed by ordered setup steps. Each step
// produces one layer whose fingerprint chains the parent fingerprint with the
// step, so two environments that share a prefix of steps share those layers
// and materialize them once.
package environment

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moby/locker"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const layerRepository = "ybt/layer"

// Factory creates one Manager per run.
type Factory struct {
	engine  ports.ContainerEngine
	layers  ports.LayerCache
	logger  ports.Logger
	tracer  ports.Tracer
	metrics ports.Metrics
}

// NewFactory creates a new Factory.
func NewFactory(
	engine ports.ContainerEngine,
	layers ports.LayerCache,
	logger ports.Logger,
	tracer ports.Tracer,
	metrics ports.Metrics,
) *Factory {
	return &Factory{engine: engine, layers: layers, logger: logger, tracer: tracer, metrics: metrics}
}

// New validates envs and returns a Manager for one run. defaultStrategy
// applies to environments that do not name a strategy.
func (f *Factory) New(envs []domain.Environment, defaultStrategy string) (*Manager, error) {
	if err := domain.ValidateEnvironments(envs, nil); err != nil {
		return nil, err
	}
	m := &Manager{
		engine:     f.engine,
		layers:     f.layers,
		logger:     f.logger,
		tracer:     f.tracer,
		metrics:    f.metrics,
		strategies: NewRegistry(f.engine),
		envs:       make(map[string]*domain.Environment, len(envs)),
		chains:     make(map[string][]domain.Layer, len(envs)),
		locks:      locker.New(),
		resolved:   make(map[string]*domain.ResolvedEnvironment),
		failed:     make(map[string]error),
		done:       make(map[string]string),
		broken:     make(map[string]error),
		now:        time.Now,
	}
	for i := range envs {
		e := envs[i]
		if e.Cache.Strategy == "" {
			e.Cache.Strategy = defaultStrategy
		}
		if _, err := m.strategies.Get(e.Cache.Strategy); err != nil {
			return nil, zerr.With(err, "env", e.Name)
		}
		m.envs[e.Name] = &e
	}
	return m, nil
}

// Manager owns environment materialization for one run.
type Manager struct {
	engine     ports.ContainerEngine
	layers     ports.LayerCache
	logger     ports.Logger
	tracer     ports.Tracer
	metrics    ports.Metrics
	strategies *Registry

	envs  map[string]*domain.Environment
	locks *locker.Locker
	group singleflight.Group
	now   func() time.Time

	mu       sync.Mutex
	chains   map[string][]domain.Layer
	resolved map[string]*domain.ResolvedEnvironment
	failed   map[string]error
	done     map[string]string // fingerprint -> image ref materialized in this run
	broken   map[string]error  // fingerprint -> setup failure

	prebuilt atomic.Int64
}

var _ ports.EnvironmentProvider = (*Manager)(nil)

// Fingerprint returns the fingerprint of the last layer of name.
func (m *Manager) Fingerprint(name string) (string, error) {
	layers, err := m.Layers(name)
	if err != nil {
		return "", err
	}
	return layers[len(layers)-1].Fingerprint, nil
}

// Layers returns the flattened layer chain of name: the base layer, every
// ancestor step in order, then the environment's own steps.
func (m *Manager) Layers(name string) ([]domain.Layer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain(name, 0)
}

func (m *Manager) chain(name string, depth int) ([]domain.Layer, error) {
	if layers, ok := m.chains[name]; ok {
		return layers, nil
	}
	env, ok := m.envs[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrEnvironmentNotFound, name), "env", name)
	}
	if depth > len(m.envs) {
		return nil, &domain.CycleError{Path: []string{name, name}}
	}

	var layers []domain.Layer
	if env.From != "" {
		parent, err := m.chain(env.From, depth+1)
		if err != nil {
			return nil, err
		}
		layers = append(layers, parent...)
	} else {
		layers = append(layers, domain.Layer{
			Fingerprint: BaseFingerprint(env.Image),
			BaseImage:   env.Image,
			ImageRef:    env.Image,
		})
	}

	for i := range env.Steps {
		step := env.Steps[i]
		parent := layers[len(layers)-1].Fingerprint
		layers = append(layers, domain.Layer{
			Fingerprint: StepFingerprint(parent, step),
			Parent:      parent,
			Step:        &step,
		})
	}
	m.chains[name] = layers
	return layers, nil
}

// BaseFingerprint returns the fingerprint of a base image layer.
func BaseFingerprint(image string) string {
	return digest.FromString("base" + image).String()
}

// StepFingerprint chains a parent fingerprint with the canonical encoding of step.
func StepFingerprint(parent string, step domain.SetupStep) string {
	// encoding/json sorts map keys, so the encoding is canonical.
	enc, _ := json.Marshal(step)
	return digest.FromBytes(append([]byte(parent), enc...)).String()
}

// PrebuiltCount returns how many setup layers were skipped in this run.
func (m *Manager) PrebuiltCount() int {
	return int(m.prebuilt.Load())
}

// Ensure materializes name and returns its image. Results, including
// failures, are memoized for the lifetime of the Manager.
func (m *Manager) Ensure(ctx context.Context, name string) (*domain.ResolvedEnvironment, error) {
	if r, ok, err := m.memo(name); ok {
		return r, err
	}

	v, err, _ := m.group.Do(name, func() (any, error) {
		if r, ok, err := m.memo(name); ok {
			return r, err
		}
		r, err := m.ensure(ctx, name)

		m.mu.Lock()
		if err != nil {
			m.failed[name] = err
		} else {
			m.resolved[name] = r
		}
		m.mu.Unlock()
		return r, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ResolvedEnvironment), nil
}

func (m *Manager) memo(name string) (*domain.ResolvedEnvironment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failed[name]; ok {
		return nil, true, err
	}
	if r, ok := m.resolved[name]; ok {
		return r, true, nil
	}
	return nil, false, nil
}

func (m *Manager) ensure(ctx context.Context, name string) (*domain.ResolvedEnvironment, error) {
	layers, err := m.Layers(name)
	if err != nil {
		return nil, err
	}
	env := m.envs[name]
	final := layers[len(layers)-1]

	ctx, span := m.tracer.Start(ctx, "env:"+name)
	defer span.End()
	span.SetAttribute("fingerprint", final.Fingerprint)

	resolved := func(ref string) *domain.ResolvedEnvironment {
		return &domain.ResolvedEnvironment{Name: name, Fingerprint: final.Fingerprint, ImageRef: ref}
	}

	if ref, ok := m.lookupPrebuilt(ctx, final); ok {
		if !final.IsBase() {
			m.skipped(final)
		}
		return resolved(ref), nil
	}

	strategy, err := m.strategies.Get(env.Cache.Strategy)
	if err != nil {
		return nil, err
	}
	var remote Remote
	if strategy.Name() != domain.StrategyNone {
		remote, err = strategy.Lookup(ctx, env, final.Fingerprint)
		if err != nil {
			span.RecordError(err)
			return nil, m.fail(name, err)
		}
		if ref, ok, err := m.useRemote(ctx, env, final, remote); err != nil || ok {
			if err != nil {
				span.RecordError(err)
				return nil, m.fail(name, err)
			}
			return resolved(ref), nil
		}
	}

	ref, err := m.materialize(ctx, name, layers, span)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if remote.Ref != "" && env.Cache.PushAfterBuild {
		if err := strategy.Publish(ctx, env, final.Fingerprint, ref); err != nil {
			span.RecordError(err)
			return nil, m.fail(name, err)
		}
		m.logger.Info("environment pushed", "env", name, "image", remote.Ref)
	}
	return resolved(ref), nil
}

// useRemote applies the cache policy flags to a remote lookup. It reports
// whether the remote satisfied the environment.
func (m *Manager) useRemote(
	ctx context.Context,
	env *domain.Environment,
	final domain.Layer,
	remote Remote,
) (string, bool, error) {
	policy := env.Cache
	if remote.Exists {
		switch {
		case policy.PullIfCached:
			if err := m.engine.Pull(ctx, remote.Ref); err != nil {
				return "", false, zerr.With(zerr.Wrap(err, "failed to pull cached environment"), "image", remote.Ref)
			}
			local := LayerRef(final.Fingerprint)
			if err := m.engine.Tag(ctx, remote.Ref, local); err != nil {
				return "", false, zerr.With(zerr.Wrap(err, "failed to tag cached environment"), "image", local)
			}
			final.ImageRef = local
			final.CreatedAt = m.now()
			if err := m.layers.Put(ctx, final); err != nil {
				m.logger.Warn("failed to record environment layer", "fingerprint", final.Fingerprint, "error", err)
			}
			m.record(final, local)
			m.metrics.LayerResolved(domain.LayerPulled)
			m.logger.Info("environment pulled", "env", env.Name, "image", remote.Ref)
			return local, true, nil
		case policy.SkipBuildIfCached:
			m.logger.Info("environment available remotely", "env", env.Name, "image", remote.Ref)
			return remote.Ref, true, nil
		}
		return "", false, nil
	}

	if policy.PullIfNotCached && remote.Latest != "" {
		if err := m.engine.Pull(ctx, remote.Latest); err != nil {
			m.logger.Warn("failed to warm build cache", "env", env.Name, "image", remote.Latest, "error", err)
		}
	}
	if !policy.AllowBuildIfNotCached {
		return "", false, zerr.With(zerr.Wrap(domain.ErrBuildDisallowed, "environment not in remote cache"), "image", remote.Ref)
	}
	return "", false, nil
}

// materialize walks the chain, skipping pre-built layers and building the rest.
func (m *Manager) materialize(ctx context.Context, name string, layers []domain.Layer, out ports.Span) (string, error) {
	var parentRef string
	for _, layer := range layers {
		ref, err := m.materializeLayer(ctx, name, layer, parentRef, out)
		if err != nil {
			return "", err
		}
		parentRef = ref
	}
	return parentRef, nil
}

func (m *Manager) materializeLayer(
	ctx context.Context,
	name string,
	layer domain.Layer,
	parentRef string,
	out ports.Span,
) (string, error) {
	m.locks.Lock(layer.Fingerprint)
	defer func() { _ = m.locks.Unlock(layer.Fingerprint) }()

	m.mu.Lock()
	err, broken := m.broken[layer.Fingerprint]
	m.mu.Unlock()
	if broken {
		return "", m.fail(name, err)
	}

	if layer.IsBase() {
		return m.ensureBase(ctx, name, layer)
	}

	if ref, ok := m.lookupPrebuilt(ctx, layer); ok {
		m.skipped(layer)
		return ref, nil
	}

	tag := LayerRef(layer.Fingerprint)
	m.logger.Info("building environment layer", "env", name, "step", layer.Step.Name)
	if err := m.engine.BuildLayer(ctx, parentRef, *layer.Step, tag, out); err != nil {
		err = zerr.With(zerr.With(zerr.Wrap(err, "setup step failed"),
			"step", layer.Step.Name),
			"fingerprint", layer.Fingerprint)
		m.mu.Lock()
		m.broken[layer.Fingerprint] = err
		m.mu.Unlock()
		m.metrics.LayerResolved(domain.LayerFailed)
		return "", m.fail(name, err)
	}

	layer.ImageRef = tag
	layer.CreatedAt = m.now()
	if err := m.layers.Put(ctx, layer); err != nil {
		m.logger.Warn("failed to record environment layer", "fingerprint", layer.Fingerprint, "error", err)
	}
	m.record(layer, tag)
	m.metrics.LayerResolved(domain.LayerBuilt)
	return tag, nil
}

func (m *Manager) ensureBase(ctx context.Context, name string, layer domain.Layer) (string, error) {
	m.mu.Lock()
	_, seen := m.done[layer.Fingerprint]
	m.mu.Unlock()
	if seen {
		return layer.BaseImage, nil
	}

	exists, err := m.engine.ImageExists(ctx, layer.BaseImage)
	if err != nil {
		return "", m.fail(name, zerr.With(zerr.Wrap(err, "failed to inspect base image"), "image", layer.BaseImage))
	}
	if !exists {
		if err := m.engine.Pull(ctx, layer.BaseImage); err != nil {
			err = zerr.With(zerr.Wrap(err, "failed to pull base image"), "image", layer.BaseImage)
			m.mu.Lock()
			m.broken[layer.Fingerprint] = err
			m.mu.Unlock()
			m.metrics.LayerResolved(domain.LayerFailed)
			return "", m.fail(name, err)
		}
		m.metrics.LayerResolved(domain.LayerPulled)
	}
	m.record(layer, layer.BaseImage)
	return layer.BaseImage, nil
}

// lookupPrebuilt reports whether layer was materialized earlier in this run
// or is recorded in the layer cache with its image still present.
func (m *Manager) lookupPrebuilt(ctx context.Context, layer domain.Layer) (string, bool) {
	m.mu.Lock()
	ref, ok := m.done[layer.Fingerprint]
	m.mu.Unlock()
	if ok {
		return ref, true
	}
	if layer.IsBase() {
		return "", false
	}

	cached, err := m.layers.Get(ctx, layer.Fingerprint)
	if err != nil {
		m.logger.Warn("failed to read layer cache", "fingerprint", layer.Fingerprint, "error", err)
		return "", false
	}
	if cached == nil || cached.ImageRef == "" {
		return "", false
	}
	exists, err := m.engine.ImageExists(ctx, cached.ImageRef)
	if err != nil || !exists {
		if delErr := m.layers.Delete(ctx, layer.Fingerprint); delErr != nil {
			m.logger.Warn("failed to drop stale layer", "fingerprint", layer.Fingerprint, "error", delErr)
		}
		return "", false
	}
	m.record(layer, cached.ImageRef)
	return cached.ImageRef, true
}

func (m *Manager) record(layer domain.Layer, ref string) {
	m.mu.Lock()
	m.done[layer.Fingerprint] = ref
	m.mu.Unlock()
}

func (m *Manager) skipped(layer domain.Layer) {
	m.prebuilt.Add(1)
	m.metrics.LayerResolved(domain.LayerPrebuilt)
	m.logger.Debug("environment layer pre-built", "fingerprint", layer.Fingerprint)
}

func (m *Manager) fail(name string, err error) error {
	return &domain.EnvironmentError{Env: name, Err: err}
}

// Plan reports every layer of the named environments and whether it would be
// skipped, either because the layer cache holds it or because an earlier
// environment in names already produces it.
func (m *Manager) Plan(ctx context.Context, names []string) ([]domain.LayerPlan, error) {
	seen := make(map[string]bool)
	var plan []domain.LayerPlan
	for _, name := range names {
		layers, err := m.Layers(name)
		if err != nil {
			return nil, err
		}
		for _, layer := range layers {
			if layer.IsBase() {
				continue
			}
			prebuilt := seen[layer.Fingerprint]
			if !prebuilt {
				cached, err := m.layers.Get(ctx, layer.Fingerprint)
				if err != nil {
					return nil, zerr.With(err, "fingerprint", layer.Fingerprint)
				}
				prebuilt = cached != nil
			}
			seen[layer.Fingerprint] = true
			plan = append(plan, domain.LayerPlan{
				Env:         name,
				Step:        layer.Step.Name,
				Fingerprint: layer.Fingerprint,
				Prebuilt:    prebuilt,
			})
		}
	}
	return plan, nil
}

// LayerRef is the local image tag of a materialized layer.
func LayerRef(fingerprint string) string {
	return layerRepository + ":" + fingerprintTag(fingerprint)
}
