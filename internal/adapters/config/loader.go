// Package config provides the declaration loader for ybt.
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// RevisionVariable is the placeholder declarations use for the source revision.
const RevisionVariable = "revision"

// Loader implements ports.DeclarationLoader for YAML and HCL files.
type Loader struct {
	logger    ports.Logger
	revisions ports.RevisionProvider
	validate  *validator.Validate
}

var _ ports.DeclarationLoader = (*Loader)(nil)

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger, revisions ports.RevisionProvider) *Loader {
	return &Loader{logger: logger, revisions: revisions, validate: newValidator()}
}

// DefaultSettings are used for every setting the declaration file leaves unset.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Jobs:            runtime.NumCPU(),
		TestAttempts:    1,
		CacheDir:        domain.DefaultCachePath(),
		DefaultStrategy: domain.StrategyNone,
		PolicySeverity:  domain.SeverityFatal,
	}
}

// Load discovers the declaration file at or above cwd and decodes it.
func (l *Loader) Load(ctx context.Context, cwd string) (*domain.Workspace, error) {
	path, err := findDeclarationFile(cwd)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(path)
	l.logger.Debug("loading declarations", "path", path)

	revision, err := l.revisions.Revision(ctx, root)
	if err != nil {
		l.logger.Warn("revision unavailable", "error", err)
		revision = ""
	}

	//nolint:gosec // path is discovered from the working directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read declaration file"), "path", path)
	}

	file, err := decode(path, data, revision)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if err := l.check(file); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	ws, err := toWorkspace(file, root)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	ws.File = path
	ws.Revision = revision
	return ws, nil
}

// findDeclarationFile walks up from cwd and returns the first declaration file.
func findDeclarationFile(cwd string) (string, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve working directory")
	}

	for {
		for _, name := range domain.DeclarationFiles {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "declaration lookup failed"), "cwd", cwd)
		}
		dir = parent
	}
}

func toWorkspace(file *File, root string) (*domain.Workspace, error) {
	ws := &domain.Workspace{Root: root}

	settings, err := mergeSettings(file.Settings)
	if err != nil {
		return nil, err
	}
	ws.Settings = settings

	for i := range file.Targets {
		ws.Declarations = append(ws.Declarations, toDeclaration(&file.Targets[i]))
	}
	for i := range file.Environments {
		ws.Environments = append(ws.Environments, toEnvironment(&file.Environments[i]))
	}

	var errs []error
	for i := range file.Policies {
		p, err := toPolicy(&file.Policies[i], root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ws.Policies = append(ws.Policies, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ws, nil
}

// mergeSettings fills every unset field of the declared settings from DefaultSettings.
func mergeSettings(dto *SettingsDTO) (domain.Settings, error) {
	var s domain.Settings
	if dto != nil {
		s = domain.Settings{
			Jobs:            dto.Jobs,
			TestAttempts:    dto.TestAttempts,
			CacheDir:        dto.CacheDir,
			DefaultStrategy: dto.DefaultStrategy,
			PolicySeverity:  domain.Severity(dto.PolicySeverity),
		}
	}
	if err := mergo.Merge(&s, DefaultSettings()); err != nil {
		return domain.Settings{}, zerr.Wrap(err, "failed to apply default settings")
	}
	return s, nil
}

func toDeclaration(dto *TargetDTO) domain.Declaration {
	return domain.Declaration{
		Name:     dto.Name,
		Kind:     domain.TargetKind(dto.Kind),
		Sources:  dto.Sources,
		Params:   dto.Params,
		Deps:     dto.Deps,
		Members:  dto.Members,
		Env:      dto.Env,
		Command:  dto.Command,
		Outputs:  dto.Outputs,
		Licenses: dto.Licenses,
		Policies: dto.Policies,
		Attempts: dto.Attempts,
	}
}

func toEnvironment(dto *EnvironmentDTO) domain.Environment {
	env := domain.Environment{
		Name:  dto.Name,
		Image: dto.Image,
		From:  dto.From,
		Cache: domain.CachePolicy{AllowBuildIfNotCached: true},
	}
	for _, s := range dto.Steps {
		env.Steps = append(env.Steps, domain.SetupStep{Name: s.Name, Run: s.Run, Env: s.Env})
	}
	if c := dto.Cache; c != nil {
		env.Cache = domain.CachePolicy{
			Strategy:              c.Strategy,
			Remote:                c.Remote,
			Tag:                   c.Tag,
			PullIfCached:          c.PullIfCached,
			PullIfNotCached:       c.PullIfNotCached,
			AllowBuildIfNotCached: c.AllowBuildIfNotCached == nil || *c.AllowBuildIfNotCached,
			SkipBuildIfCached:     c.SkipBuildIfCached,
			PushAfterBuild:        c.PushAfterBuild,
		}
	}
	return env
}

// toPolicy reads the module file of a rego policy relative to root.
func toPolicy(dto *PolicyDTO, root string) (domain.PolicySpec, error) {
	spec := domain.PolicySpec{
		Name:     dto.Name,
		Type:     dto.Type,
		Allowed:  dto.Allowed,
		Module:   dto.Module,
		Source:   dto.Source,
		Scope:    dto.Scope,
		Severity: domain.Severity(dto.Severity),
	}
	if spec.Type != domain.PolicyRego {
		return spec, nil
	}

	switch {
	case spec.Source != "" && spec.Module != "":
		return spec, &domain.MalformedDeclarationError{Target: spec.Name, Reason: "rego policy needs module or source, not both"}
	case spec.Source != "":
		spec.Module = spec.Name + ".rego"
	case spec.Module != "":
		path := spec.Module
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		//nolint:gosec // module paths are declared by the workspace
		data, err := os.ReadFile(path)
		if err != nil {
			return spec, zerr.With(zerr.Wrap(err, "failed to read rego module"), "policy", spec.Name)
		}
		spec.Source = string(data)
	default:
		return spec, &domain.MalformedDeclarationError{Target: spec.Name, Reason: "rego policy needs module or source"}
	}
	return spec, nil
}
