package domain

import (
	"errors"
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// Names of the built-in remote cache strategies.
const (
	StrategyNone        = "none"
	StrategyRemoteByTag = "remote-by-tag"
)

// SetupStep is one ordered command applied on top of an environment's base.
type SetupStep struct {
	Name string            `json:"name"`
	Run  []string          `json:"run"`
	Env  map[string]string `json:"env,omitempty"`
}

// CachePolicy controls how an environment interacts with a remote image cache.
type CachePolicy struct {
	Strategy              string
	Remote                string
	Tag                   string
	PullIfCached          bool
	PullIfNotCached       bool
	AllowBuildIfNotCached bool
	SkipBuildIfCached     bool
	PushAfterBuild        bool
}

// Environment is a declared, layered build environment.
// Exactly one of Image and From is set.
type Environment struct {
	Name  string
	Image string
	From  string
	Steps []SetupStep
	Cache CachePolicy
}

// Layer is one materialization unit of an environment chain.
// Layer 0 of every chain is the external base image and has no Step.
type Layer struct {
	Fingerprint string     `json:"fingerprint"`
	Parent      string     `json:"parent,omitempty"`
	Step        *SetupStep `json:"step,omitempty"`
	BaseImage   string     `json:"base_image,omitempty"`
	ImageRef    string     `json:"image_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitzero"`
}

// IsBase reports whether the layer is the external base of a chain.
func (l Layer) IsBase() bool {
	return l.Step == nil
}

// ResolvedEnvironment is a ready-to-use environment image.
type ResolvedEnvironment struct {
	Name        string
	Fingerprint string
	ImageRef    string
}

// ValidateEnvironments checks environment chains and target references.
func ValidateEnvironments(envs []Environment, g *Graph) error {
	byName := make(map[string]*Environment, len(envs))
	names := make([]string, 0, len(envs))
	var errs []error

	for i := range envs {
		e := &envs[i]
		switch {
		case e.Name == "":
			errs = append(errs, &MalformedDeclarationError{Reason: "environment name is empty"})
			continue
		case (e.Image == "") == (e.From == ""):
			errs = append(errs, &MalformedDeclarationError{
				Target: e.Name,
				Reason: "environment needs exactly one of image or from",
			})
		}
		if _, dup := byName[e.Name]; dup {
			errs = append(errs, &DuplicateTargetError{Name: e.Name})
			continue
		}
		byName[e.Name] = e
		names = append(names, e.Name)
	}

	for _, name := range names {
		e := byName[name]
		if e.From != "" {
			if _, ok := byName[e.From]; !ok {
				errs = append(errs, zerr.With(zerr.Wrap(ErrEnvironmentNotFound, e.From), "env", name))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := envCycle(byName, names); err != nil {
		return err
	}

	if g == nil {
		return nil
	}
	for t := range g.Targets() {
		if t.Env.IsZero() {
			continue
		}
		if _, ok := byName[t.Env.String()]; !ok {
			errs = append(errs, zerr.With(
				zerr.Wrap(ErrEnvironmentNotFound, t.Env.String()),
				"target", t.Name.String(),
			))
		}
	}
	return errors.Join(errs...)
}

func envCycle(byName map[string]*Environment, names []string) error {
	done := make(map[string]bool, len(names))
	for _, start := range names {
		var path []string
		for cur := start; cur != "" && !done[cur]; cur = byName[cur].From {
			if i := slices.Index(path, cur); i >= 0 {
				return &CycleError{Path: append(path[i:], cur)}
			}
			path = append(path, cur)
		}
		for _, p := range path {
			done[p] = true
		}
	}
	return nil
}

// LayerResult records how a layer was satisfied.
type LayerResult string

const (
	LayerBuilt    LayerResult = "built"
	LayerPrebuilt LayerResult = "prebuilt"
	LayerPulled   LayerResult = "pulled"
	LayerFailed   LayerResult = "failed"
)
