package scheduler_test

import (
	"context"
	"sync"
	"testing"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/core/ports/mocks"
	"go.trai.ch/ybt/internal/engine/cachekey"
	"go.trai.ch/ybt/internal/engine/scheduler"
	"go.trai.ch/ybt/internal/engine/testrunner"
	"go.uber.org/mock/gomock"
)

// memCache is an in-memory artifact cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	locks   map[string]*sync.Mutex
}

var _ ports.ArtifactCache = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*domain.CacheEntry), locks: make(map[string]*sync.Mutex)}
}

func (c *memCache) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Put(_ context.Context, key, target, _ string, outputs []string) (*domain.CacheEntry, error) {
	files := make([]domain.CachedFile, len(outputs))
	for i, o := range outputs {
		files[i] = domain.CachedFile{Path: o, Digest: "sha256:" + o}
	}
	return c.store(&domain.CacheEntry{
		Key: key, Target: target,
		Locator: domain.Locator{Kind: domain.LocatorFiles, Files: files},
	}), nil
}

func (c *memCache) PutImage(_ context.Context, key, target, ref string) (*domain.CacheEntry, error) {
	return c.store(&domain.CacheEntry{
		Key: key, Target: target,
		Locator: domain.Locator{Kind: domain.LocatorImage, Image: ref},
	}), nil
}

func (c *memCache) store(e *domain.CacheEntry) *domain.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key] = e
	return e
}

func (c *memCache) Open(string) error { return nil }

func (c *memCache) Restore(context.Context, *domain.CacheEntry, string) error { return nil }

func (c *memCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) Lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

type harness struct {
	exec   *mocks.MockExecutor
	engine *mocks.MockContainerEngine
	envs   *mocks.MockEnvironmentProvider
	cache  *memCache
	s      *scheduler.Scheduler

	mu      sync.Mutex
	digests map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	h := &harness{
		exec:    mocks.NewMockExecutor(ctrl),
		engine:  mocks.NewMockContainerEngine(ctrl),
		envs:    mocks.NewMockEnvironmentProvider(ctrl),
		cache:   newMemCache(),
		digests: make(map[string]string),
	}

	resolver := mocks.NewMockInputResolver(ctrl)
	hasher := mocks.NewMockHasher(ctrl)
	tracer := mocks.NewMockTracer(ctrl)
	span := mocks.NewMockSpan(ctrl)
	logger := mocks.NewMockLogger(ctrl)
	metrics := mocks.NewMockMetrics(ctrl)

	resolver.EXPECT().ResolveInputs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(patterns []string, _ string) ([]string, error) { return patterns, nil }).AnyTimes()
	hasher.EXPECT().HashSources(gomock.Any(), gomock.Any()).
		DoAndReturn(func(paths []string, _ string) ([]domain.SourceDigest, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			out := make([]domain.SourceDigest, len(paths))
			for i, p := range paths {
				out[i] = domain.SourceDigest{Path: p, Digest: h.digests[p]}
			}
			return out, nil
		}).AnyTimes()

	tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any()).AnyTimes()
	tracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		}).AnyTimes()
	span.EXPECT().End().AnyTimes()
	span.EXPECT().RecordError(gomock.Any()).AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	span.EXPECT().Write(gomock.Any()).AnyTimes()
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().RunPlanned(gomock.Any()).AnyTimes()
	metrics.EXPECT().TargetFinished(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().TestAttempt(gomock.Any()).AnyTimes()

	h.s = scheduler.NewScheduler(
		h.exec,
		h.engine,
		h.cache,
		cachekey.New(resolver, hasher),
		testrunner.New(h.exec, logger, metrics),
		tracer,
		logger,
		metrics,
	)
	return h
}

func (h *harness) setDigest(path, digest string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digests[path] = digest
}

func step(name string, deps ...string) domain.Declaration {
	return domain.Declaration{
		Name:    name,
		Kind:    domain.KindLibrary,
		Sources: []string{name + ".c"},
		Command: []string{"cc", name + ".c"},
		Outputs: []string{name + ".o"},
		Deps:    deps,
	}
}

func mustGraph(t *testing.T, decls ...domain.Declaration) *domain.Graph {
	t.Helper()
	g, err := domain.BuildGraph(decls)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	return g
}

func states(r *domain.BuildReport) map[string]domain.TargetState {
	out := make(map[string]domain.TargetState, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Target] = o.State
	}
	return out
}
