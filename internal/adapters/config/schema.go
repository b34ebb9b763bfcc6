package config

// File is the structure shared by ybt.yaml and ybt.hcl.
type File struct {
	Settings     *SettingsDTO     `yaml:"settings" hcl:"settings,block"`
	Environments []EnvironmentDTO `yaml:"environments" hcl:"environment,block" validate:"dive"`
	Targets      []TargetDTO      `yaml:"targets" hcl:"target,block" validate:"dive"`
	Policies     []PolicyDTO      `yaml:"policies" hcl:"policy,block" validate:"dive"`
}

// SettingsDTO holds workspace defaults. Zero fields fall back to DefaultSettings.
type SettingsDTO struct {
	Jobs            int    `yaml:"jobs" hcl:"jobs,optional" validate:"min=0"`
	TestAttempts    int    `yaml:"test_attempts" hcl:"test_attempts,optional" validate:"min=0"`
	CacheDir        string `yaml:"cache_dir" hcl:"cache_dir,optional"`
	DefaultStrategy string `yaml:"default_strategy" hcl:"default_strategy,optional" validate:"omitempty,oneof=none remote-by-tag"`
	PolicySeverity  string `yaml:"policy_severity" hcl:"policy_severity,optional" validate:"omitempty,oneof=fatal warn"`
}

// EnvironmentDTO declares a layered build environment.
type EnvironmentDTO struct {
	Name  string    `yaml:"name" hcl:"name,label" validate:"required"`
	Image string    `yaml:"image" hcl:"image,optional" validate:"required_without=From,excluded_with=From"`
	From  string    `yaml:"from" hcl:"from,optional"`
	Steps []StepDTO `yaml:"steps" hcl:"step,block" validate:"dive"`
	Cache *CacheDTO `yaml:"cache" hcl:"cache,block"`
}

// StepDTO is one setup command of an environment.
type StepDTO struct {
	Name string            `yaml:"name" hcl:"name,label" validate:"required"`
	Run  []string          `yaml:"run" hcl:"run" validate:"min=1"`
	Env  map[string]string `yaml:"env" hcl:"env,optional"`
}

// CacheDTO configures the remote image cache of an environment.
type CacheDTO struct {
	Strategy              string `yaml:"strategy" hcl:"strategy,optional" validate:"omitempty,oneof=none remote-by-tag"`
	Remote                string `yaml:"remote" hcl:"remote,optional" validate:"required_if=Strategy remote-by-tag"`
	Tag                   string `yaml:"tag" hcl:"tag,optional"`
	PullIfCached          bool   `yaml:"pull_if_cached" hcl:"pull_if_cached,optional"`
	PullIfNotCached       bool   `yaml:"pull_if_not_cached" hcl:"pull_if_not_cached,optional"`
	AllowBuildIfNotCached *bool  `yaml:"allow_build_if_not_cached" hcl:"allow_build_if_not_cached,optional"`
	SkipBuildIfCached     bool   `yaml:"skip_build_if_cached" hcl:"skip_build_if_cached,optional"`
	PushAfterBuild        bool   `yaml:"push_after_build" hcl:"push_after_build,optional"`
}

// TargetDTO represents a target definition in the configuration.
type TargetDTO struct {
	Name     string            `yaml:"name" hcl:"name,label" validate:"required"`
	Kind     string            `yaml:"kind" hcl:"kind" validate:"required,oneof=library program image proto installer test alias thirdparty"` //nolint:lll // single oneof list
	Sources  []string          `yaml:"sources" hcl:"sources,optional"`
	Params   map[string]string `yaml:"params" hcl:"params,optional"`
	Deps     []string          `yaml:"deps" hcl:"deps,optional"`
	Members  []string          `yaml:"members" hcl:"members,optional"`
	Env      string            `yaml:"env" hcl:"env,optional"`
	Command  []string          `yaml:"cmd" hcl:"cmd,optional"`
	Outputs  []string          `yaml:"outputs" hcl:"outputs,optional"`
	Licenses []string          `yaml:"licenses" hcl:"licenses,optional"`
	Policies []string          `yaml:"policies" hcl:"policies,optional"`
	Attempts int               `yaml:"attempts" hcl:"attempts,optional" validate:"min=0"`
}

// PolicyDTO declares one policy instance.
type PolicyDTO struct {
	Name     string   `yaml:"name" hcl:"name,label" validate:"required"`
	Type     string   `yaml:"type" hcl:"type" validate:"required,oneof=standard-licenses license-whitelist rego"`
	Allowed  []string `yaml:"allowed" hcl:"allowed,optional" validate:"required_if=Type license-whitelist"`
	Module   string   `yaml:"module" hcl:"module,optional"`
	Source   string   `yaml:"source" hcl:"source,optional"`
	Scope    string   `yaml:"scope" hcl:"scope,optional" validate:"omitempty,oneof=all opt-in"`
	Severity string   `yaml:"severity" hcl:"severity,optional" validate:"omitempty,oneof=fatal warn"`
}
