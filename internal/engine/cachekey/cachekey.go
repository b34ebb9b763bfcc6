// Package cachekey derives content-addressed cache keys for targets.
package cachekey

import (
	"encoding/binary"
	"hash"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// ComputeKey returns the sha256 cache key of a target. The digest covers, in
// order: kind, sources (path and content digest, sorted by path), params
// (sorted by key), command, outputs (sorted), the environment fingerprint,
// and dependency keys in declaration order.
func ComputeKey(t *domain.Target, sources []domain.SourceDigest, envFingerprint string, depKeys []string) string {
	d := digest.Canonical.Digester()
	w := fieldWriter{h: d.Hash()}

	w.section("kind", 1)
	w.field(string(t.Kind))

	srcs := slices.Clone(sources)
	slices.SortFunc(srcs, func(a, b domain.SourceDigest) int {
		return strings.Compare(a.Path, b.Path)
	})
	w.section("sources", len(srcs))
	for _, s := range srcs {
		w.field(s.Path)
		w.field(s.Digest)
	}

	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	w.section("params", len(keys))
	for _, k := range keys {
		w.field(k)
		w.field(t.Params[k])
	}

	w.section("command", len(t.Command))
	for _, arg := range t.Command {
		w.field(arg)
	}

	outputs := slices.Clone(t.Outputs)
	slices.Sort(outputs)
	w.section("outputs", len(outputs))
	for _, o := range outputs {
		w.field(o)
	}

	w.section("env", 1)
	w.field(envFingerprint)

	w.section("deps", len(depKeys))
	for _, k := range depKeys {
		w.field(k)
	}

	return d.Digest().String()
}

// fieldWriter writes length-prefixed fields so that no two distinct inputs
// share an encoding.
type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) section(name string, n int) {
	w.field(name)
	_ = binary.Write(w.h, binary.LittleEndian, uint64(n))
}

func (w fieldWriter) field(s string) {
	_ = binary.Write(w.h, binary.LittleEndian, uint64(len(s)))
	_, _ = w.h.Write([]byte(s))
}

// Engine resolves and hashes declared sources before computing keys.
type Engine struct {
	resolver ports.InputResolver
	hasher   ports.Hasher
}

// New creates a new Engine.
func New(resolver ports.InputResolver, hasher ports.Hasher) *Engine {
	return &Engine{resolver: resolver, hasher: hasher}
}

// Key computes the cache key of t once all its dependency keys are known.
func (e *Engine) Key(t *domain.Target, root, envFingerprint string, depKeys []string) (string, error) {
	sources, err := e.Sources(t, root)
	if err != nil {
		return "", err
	}
	return ComputeKey(t, sources, envFingerprint, depKeys), nil
}

// Sources resolves and hashes the declared sources of t.
func (e *Engine) Sources(t *domain.Target, root string) ([]domain.SourceDigest, error) {
	if len(t.Sources) == 0 {
		return nil, nil
	}
	paths, err := e.resolver.ResolveInputs(t.Sources, root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve sources"), "target", t.Name.String())
	}
	digests, err := e.hasher.HashSources(paths, root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to hash sources"), "target", t.Name.String())
	}
	return digests, nil
}

// Annotate computes keys for ordered targets bottom-up. ordered must list
// every dependency before its dependents, as Graph.TopologicalOrder does.
func (e *Engine) Annotate(
	g *domain.Graph,
	ordered []*domain.Target,
	root string,
	envs ports.EnvironmentProvider,
) (map[domain.Name]string, error) {
	keys := make(map[domain.Name]string, len(ordered))
	for _, t := range ordered {
		envFP, err := EnvFingerprint(t, envs)
		if err != nil {
			return nil, err
		}
		deps, err := DependencyKeys(g, t, keys)
		if err != nil {
			return nil, err
		}
		key, err := e.Key(t, root, envFP, deps)
		if err != nil {
			return nil, err
		}
		keys[t.Name] = key
	}
	return keys, nil
}

// DependencyKeys returns the keys of t's direct dependencies in declaration order.
func DependencyKeys(g *domain.Graph, t *domain.Target, keys map[domain.Name]string) ([]string, error) {
	deps := g.Dependencies(t)
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		k, ok := keys[d.Name]
		if !ok {
			return nil, zerr.With(zerr.With(
				zerr.New("dependency key not yet computed"),
				"target", t.Name.String()),
				"dependency", d.Name.String())
		}
		out = append(out, k)
	}
	return out, nil
}

// EnvFingerprint returns the fingerprint of t's environment, or "" when t runs on the host.
func EnvFingerprint(t *domain.Target, envs ports.EnvironmentProvider) (string, error) {
	if t.Env.IsZero() || envs == nil {
		return "", nil
	}
	fp, err := envs.Fingerprint(t.Env.String())
	if err != nil {
		return "", zerr.With(err, "target", t.Name.String())
	}
	return fp, nil
}
