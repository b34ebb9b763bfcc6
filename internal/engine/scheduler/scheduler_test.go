package scheduler_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// gatedExecutor blocks every target until its gate is released.
type gatedExecutor struct {
	mu      sync.Mutex
	started []string
	gates   map[string]chan error
}

func newGatedExecutor(names ...string) *gatedExecutor {
	g := &gatedExecutor{gates: make(map[string]chan error, len(names))}
	for _, n := range names {
		g.gates[n] = make(chan error, 1)
	}
	return g
}

func (g *gatedExecutor) execute(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
	g.mu.Lock()
	g.started = append(g.started, spec.Name)
	gate := g.gates[spec.Name]
	g.mu.Unlock()
	return <-gate
}

func (g *gatedExecutor) Started() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.started)
}

func (g *gatedExecutor) release(name string, err error) {
	g.gates[name] <- err
}

type runResult struct {
	report *domain.BuildReport
	err    error
}

func TestScheduler_Run_Diamond(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)

		// Graph: d -> b, d -> c, b -> a, c -> a
		g := mustGraph(t, step("d", "b", "c"), step("b", "a"), step("c", "a"), step("a"))
		gated := newGatedExecutor("a", "b", "c", "d")
		h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(gated.execute).Times(4)

		done := make(chan runResult)
		go func() {
			r, err := h.s.Run(context.Background(), g, h.envs, []string{"d"}, domain.RunConfig{Root: "/ws", Jobs: 2})
			done <- runResult{r, err}
		}()

		synctest.Wait()
		assert.Equal(t, []string{"a"}, gated.Started(), "a runs alone before its dependents")

		gated.release("a", nil)
		synctest.Wait()
		assert.ElementsMatch(t, []string{"a", "b", "c"}, gated.Started())

		gated.release("b", nil)
		synctest.Wait()
		assert.NotContains(t, gated.Started(), "d", "d waits for c")

		gated.release("c", nil)
		synctest.Wait()
		gated.release("d", nil)

		res := <-done
		require.NoError(t, res.err)
		assert.True(t, res.report.Success)
		assert.Equal(t, "d", gated.Started()[3])
		assert.Equal(t, 4, res.report.Count(domain.StateBuilt))
	})
}

func TestScheduler_Run_FailureSkipsDependents(t *testing.T) {
	h := newHarness(t)

	g := mustGraph(t, step("a"), step("b", "a"), step("c", "b"), step("x"))
	boom := errors.New("exit status 1")
	var ran []string
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			ran = append(ran, spec.Name)
			if spec.Name == "a" {
				return boom
			}
			return nil
		}).Times(2)

	report, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), domain.ErrBuildExecutionFailed.Error())

	assert.Equal(t, []string{"a", "x"}, ran)
	assert.False(t, report.Success)
	assert.Equal(t, map[string]domain.TargetState{
		"a": domain.StateFailed,
		"b": domain.StateSkipped,
		"c": domain.StateSkipped,
		"x": domain.StateBuilt,
	}, states(report))

	c, _ := report.Outcome("c")
	assert.Equal(t, "dependency a failed", c.Reason)
}

func TestScheduler_Run_ServesUnchangedWorkFromCache(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, step("leaf"), step("mid", "leaf"), step("top", "mid"), step("sibling"))
	for _, n := range []string{"leaf", "mid", "top", "sibling"} {
		h.setDigest(n+".c", "sha256:"+n)
	}
	cfg := domain.RunConfig{Root: "/ws", Jobs: 2}

	var mu sync.Mutex
	var ran []string
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, spec.Name)
			return nil
		}).AnyTimes()

	first, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Count(domain.StateBuilt))
	assert.Len(t, ran, 4)

	second, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Count(domain.StateCached))
	assert.Len(t, ran, 4, "nothing executes on an unchanged second run")

	ran = nil
	h.setDigest("leaf.c", "sha256:edited")
	third, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"leaf", "mid", "top"}, ran)
	assert.Equal(t, map[string]domain.TargetState{
		"leaf": domain.StateBuilt, "mid": domain.StateBuilt, "top": domain.StateBuilt, "sibling": domain.StateCached,
	}, states(third))

	ran = nil
	cfg.NoCache = true
	_, err = h.s.Run(t.Context(), g, h.envs, []string{"sibling"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"sibling"}, ran)
}

func TestScheduler_Run_Cancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		g := mustGraph(t, step("a"), step("b"), step("c", "a"))
		gated := newGatedExecutor("a", "b", "c")

		h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, env *domain.ResolvedEnvironment, spec domain.CommandSpec, w io.Writer) error {
				err := gated.execute(ctx, env, spec, w)
				assert.NoError(t, ctx.Err(), "running steps continue after cancellation")
				return err
			}).Times(1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan runResult)
		go func() {
			r, err := h.s.Run(ctx, g, h.envs, []string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
			done <- runResult{r, err}
		}()

		synctest.Wait()
		require.Equal(t, []string{"a"}, gated.Started())

		cancel()
		synctest.Wait()
		gated.release("a", nil)

		res := <-done
		assert.ErrorIs(t, res.err, domain.ErrRunAborted)
		assert.ErrorIs(t, res.err, context.Canceled)
		assert.True(t, res.report.Aborted)
		assert.False(t, res.report.Success)
		assert.Equal(t, map[string]domain.TargetState{
			"a": domain.StateBuilt,
			"b": domain.StateSkipped,
			"c": domain.StateSkipped,
		}, states(res.report))

		b, _ := res.report.Outcome("b")
		assert.Equal(t, "aborted", b.Reason)
	})
}

func TestScheduler_Run_DeclarationOrderBreaksTies(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, step("z"), step("y"), step("x"), step("w", "x"))

	var ran []string
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			ran = append(ran, spec.Name)
			return nil
		}).Times(4)

	report, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x", "w"}, ran)

	got := make([]string, len(report.Outcomes))
	for i, o := range report.Outcomes {
		got[i] = o.Target
	}
	assert.Equal(t, []string{"z", "y", "x", "w"}, got)
}

func TestScheduler_Run_EnvironmentFailure(t *testing.T) {
	h := newHarness(t)
	withEnv := step("compiled")
	withEnv.Env = "gcc"
	g := mustGraph(t, withEnv, step("app", "compiled"), step("docs"))

	envErr := &domain.EnvironmentError{Env: "gcc", Err: errors.New("apk: not found")}
	h.envs.EXPECT().Ensure(gomock.Any(), "gcc").Return(nil, envErr).Times(1)
	h.envs.EXPECT().Fingerprint("gcc").Return("sha256:gcc", nil).AnyTimes()
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Nil(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			assert.Equal(t, "docs", spec.Name)
			return nil
		}).Times(1)

	report, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 4})
	assert.ErrorIs(t, err, domain.ErrEnvironmentFailed)
	assert.Equal(t, map[string]domain.TargetState{
		"compiled": domain.StateFailed,
		"app":      domain.StateSkipped,
		"docs":     domain.StateBuilt,
	}, states(report))

	compiled, _ := report.Outcome("compiled")
	assert.Equal(t, "environment gcc failed", compiled.Reason)
}

func TestScheduler_Run_UsesResolvedEnvironment(t *testing.T) {
	h := newHarness(t)
	withEnv := step("compiled")
	withEnv.Env = "gcc"
	g := mustGraph(t, withEnv)

	env := &domain.ResolvedEnvironment{Name: "gcc", Fingerprint: "sha256:gcc", ImageRef: "ybt/layer:abc"}
	h.envs.EXPECT().Ensure(gomock.Any(), "gcc").Return(env, nil)
	h.envs.EXPECT().Fingerprint("gcc").Return("sha256:gcc", nil).AnyTimes()
	h.exec.EXPECT().Execute(gomock.Any(), env, gomock.Any(), gomock.Any()).Return(nil)

	report, err := h.s.Run(t.Context(), g, h.envs, []string{"compiled"}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestScheduler_Run_TestRetries(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t,
		step("lib"),
		domain.Declaration{Name: "lib_test", Kind: domain.KindTest, Command: []string{"./lib_test"}, Deps: []string{"lib"}},
	)

	calls := 0
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			if spec.Name != "lib_test" {
				return nil
			}
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		}).Times(4)

	cfg := domain.RunConfig{Root: "/ws", Jobs: 1, TestAttempts: 3}
	report, err := h.s.Run(t.Context(), g, h.envs, []string{"lib_test"}, cfg)
	require.NoError(t, err)

	o, ok := report.Outcome("lib_test")
	require.True(t, ok)
	assert.Equal(t, domain.StateBuilt, o.State)
	assert.Equal(t, 3, o.Attempts)
}

func TestScheduler_Run_ExcludesTestsUnlessNamed(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t,
		step("lib"),
		domain.Declaration{Name: "lib_test", Kind: domain.KindTest, Command: []string{"./lib_test"}, Deps: []string{"lib"}},
	)
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	report, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.NoError(t, err)
	_, ok := report.Outcome("lib_test")
	assert.False(t, ok)
}

func TestScheduler_Run_ImageTarget(t *testing.T) {
	h := newHarness(t)
	g := mustGraph(t, domain.Declaration{
		Name:    "//services/api:image",
		Kind:    domain.KindImage,
		Params:  map[string]string{"base": "alpine:3.20"},
		Command: []string{"apk", "add", "curl"},
	})

	var built string
	h.engine.EXPECT().BuildLayer(gomock.Any(), "alpine:3.20", gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, s domain.SetupStep, tag string, _ io.Writer) error {
			assert.Equal(t, []string{"apk", "add", "curl"}, s.Run)
			built = tag
			return nil
		}).Times(1)

	cfg := domain.RunConfig{Root: "/ws", Jobs: 1}
	first, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	o, _ := first.Outcome("//services/api:image")
	assert.Equal(t, built, o.Locator)

	want, err := scheduler.ImageRef("//services/api:image", o.Key)
	require.NoError(t, err)
	assert.Equal(t, want, built)

	h.engine.EXPECT().ImageExists(gomock.Any(), built).Return(true, nil)
	second, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count(domain.StateCached))
}

func TestImageRef(t *testing.T) {
	key := "sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	tests := []struct {
		target string
		want   string
	}{
		{"hello", "ybt/hello:0123456789ab"},
		{"//lib/hello:hello", "ybt/lib-hello-hello:0123456789ab"},
		{"Web_Server", "ybt/web-server:0123456789ab"},
		{"::", "ybt/target:0123456789ab"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := scheduler.ImageRef(tt.target, key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_Run_EnsuresEnvironmentOnlyOnCacheMiss(t *testing.T) {
	h := newHarness(t)
	a := step("a")
	a.Env = "gcc"
	b := step("b", "a")
	b.Env = "gcc"
	g := mustGraph(t, a, b)
	h.setDigest("a.c", "sha256:a")
	h.setDigest("b.c", "sha256:b")
	cfg := domain.RunConfig{Root: "/ws", Jobs: 2}

	env := &domain.ResolvedEnvironment{Name: "gcc", Fingerprint: "sha256:gcc", ImageRef: "ybt/layer:abc"}
	h.envs.EXPECT().Fingerprint("gcc").Return("sha256:gcc", nil).AnyTimes()
	h.envs.EXPECT().Ensure(gomock.Any(), "gcc").Return(env, nil).Times(1)
	h.exec.EXPECT().Execute(gomock.Any(), env, gomock.Any(), gomock.Any()).Return(nil).Times(2)

	first, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count(domain.StateBuilt))

	second, err := h.s.Run(t.Context(), g, h.envs, []string{domain.AllTargets}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Count(domain.StateCached))
}

func TestScheduler_Run_IndependentRuns(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("exit status 1")
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.ResolvedEnvironment, spec domain.CommandSpec, _ io.Writer) error {
			if spec.Name == "a" {
				return boom
			}
			return nil
		}).Times(2)

	first, err := h.s.Run(t.Context(), mustGraph(t, step("a"), step("b", "a")), h.envs,
		[]string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, map[string]domain.TargetState{"a": domain.StateFailed, "b": domain.StateSkipped}, states(first))

	second, err := h.s.Run(t.Context(), mustGraph(t, step("c")), h.envs,
		[]string{domain.AllTargets}, domain.RunConfig{Root: "/ws", Jobs: 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.TargetState{"c": domain.StateBuilt}, states(second))
}

func TestScheduler_Run_CleansOutputsBeforeExecuting(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	stale := filepath.Join(root, "gen.o")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	g := mustGraph(t, step("gen"))
	h.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *domain.ResolvedEnvironment, domain.CommandSpec, io.Writer) error {
			assert.NoFileExists(t, stale, "declared outputs are removed before the command runs")
			return nil
		})

	report, err := h.s.Run(t.Context(), g, h.envs, []string{"gen"}, domain.RunConfig{Root: root, Jobs: 1})
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestScheduler_Run_RejectsOutputOutsideRoot(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "parent", output: "../escape.o"},
		{name: "nested parent", output: "sub/../../escape.o"},
		{name: "root itself", output: "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			parent := t.TempDir()
			root := filepath.Join(parent, "ws")
			require.NoError(t, os.Mkdir(root, 0o755))
			outside := filepath.Join(parent, "escape.o")
			require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

			decl := step("gen")
			decl.Outputs = []string{tt.output}
			g := mustGraph(t, decl)

			report, err := h.s.Run(t.Context(), g, h.envs, []string{"gen"}, domain.RunConfig{Root: root, Jobs: 1})
			require.ErrorIs(t, err, domain.ErrOutputOutsideRoot)
			assert.Equal(t, map[string]domain.TargetState{"gen": domain.StateFailed}, states(report))
			assert.FileExists(t, outside)
			assert.DirExists(t, root)
		})
	}
}
