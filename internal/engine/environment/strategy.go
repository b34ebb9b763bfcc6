package environment

import (
	"context"
	"strings"

	"github.com/distribution/reference"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

const fingerprintTagLen = 32

// Remote is the result of a strategy lookup.
type Remote struct {
	// Ref is the remote image reference for the environment fingerprint.
	Ref string
	// Latest is a best-effort reference used to warm the engine's build cache.
	Latest string
	Exists bool
}

// CacheStrategy decides where a finished environment image lives remotely.
type CacheStrategy interface {
	Name() string
	Lookup(ctx context.Context, env *domain.Environment, fingerprint string) (Remote, error)
	Publish(ctx context.Context, env *domain.Environment, fingerprint, localRef string) error
}

// Registry is the closed set of known strategies.
type Registry struct {
	strategies map[string]CacheStrategy
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry(engine ports.ContainerEngine) *Registry {
	return &Registry{strategies: map[string]CacheStrategy{
		domain.StrategyNone:        noneStrategy{},
		domain.StrategyRemoteByTag: &remoteByTag{engine: engine},
	}}
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (CacheStrategy, error) {
	if name == "" {
		name = domain.StrategyNone
	}
	s, ok := r.strategies[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownStrategy, name), "strategy", name)
	}
	return s, nil
}

type noneStrategy struct{}

func (noneStrategy) Name() string { return domain.StrategyNone }

func (noneStrategy) Lookup(context.Context, *domain.Environment, string) (Remote, error) {
	return Remote{}, nil
}

func (noneStrategy) Publish(context.Context, *domain.Environment, string, string) error {
	return nil
}

type remoteByTag struct {
	engine ports.ContainerEngine
}

func (*remoteByTag) Name() string { return domain.StrategyRemoteByTag }

func (s *remoteByTag) Lookup(ctx context.Context, env *domain.Environment, fingerprint string) (Remote, error) {
	ref, err := RemoteRef(env.Cache, fingerprint)
	if err != nil {
		return Remote{}, zerr.With(err, "env", env.Name)
	}
	latest, err := RemoteRef(domain.CachePolicy{Remote: env.Cache.Remote, Tag: "latest"}, fingerprint)
	if err != nil {
		return Remote{}, zerr.With(err, "env", env.Name)
	}
	exists, err := s.engine.RemoteExists(ctx, ref)
	if err != nil {
		return Remote{}, zerr.With(zerr.Wrap(err, "remote lookup failed"), "image", ref)
	}
	return Remote{Ref: ref, Latest: latest, Exists: exists}, nil
}

func (s *remoteByTag) Publish(ctx context.Context, env *domain.Environment, fingerprint, localRef string) error {
	ref, err := RemoteRef(env.Cache, fingerprint)
	if err != nil {
		return zerr.With(err, "env", env.Name)
	}
	if err := s.engine.Tag(ctx, localRef, ref); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to tag image"), "image", ref)
	}
	if err := s.engine.Push(ctx, ref); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to push image"), "image", ref)
	}
	return nil
}

// RemoteRef returns <remote>:<tag>, using the fingerprint hex as the tag when
// the policy sets none.
func RemoteRef(policy domain.CachePolicy, fingerprint string) (string, error) {
	if policy.Remote == "" {
		return "", zerr.New("remote-by-tag requires a remote image name")
	}
	named, err := reference.ParseNormalizedNamed(policy.Remote)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "invalid remote image name"), "remote", policy.Remote)
	}
	tag := policy.Tag
	if tag == "" {
		tag = fingerprintTag(fingerprint)
	}
	tagged, err := reference.WithTag(reference.TrimNamed(named), tag)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "invalid image tag"), "tag", tag)
	}
	return reference.FamiliarString(tagged), nil
}

func fingerprintTag(fingerprint string) string {
	hex := fingerprint
	if i := strings.IndexByte(hex, ':'); i >= 0 {
		hex = hex[i+1:]
	}
	if len(hex) > fingerprintTagLen {
		hex = hex[:fingerprintTagLen]
	}
	return hex
}
