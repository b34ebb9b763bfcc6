package domain

// Policy types understood by the policy engine.
const (
	PolicyStandardLicenses = "standard-licenses"
	PolicyLicenseWhitelist = "license-whitelist"
	PolicyRego             = "rego"
)

// Policy scopes.
const (
	ScopeAll   = "all"
	ScopeOptIn = "opt-in"
)

// PolicySpec declares one policy instance.
type PolicySpec struct {
	Name     string
	Type     string
	Allowed  []string
	Module   string
	Source   string
	Scope    string
	Severity Severity
}

// Settings are workspace-level defaults read from the declaration file.
type Settings struct {
	Jobs            int      `yaml:"jobs"`
	TestAttempts    int      `yaml:"test_attempts"`
	CacheDir        string   `yaml:"cache_dir"`
	DefaultStrategy string   `yaml:"default_strategy"`
	PolicySeverity  Severity `yaml:"policy_severity"`
}

// Workspace is everything loaded from a declaration file.
type Workspace struct {
	Root         string
	File         string
	Revision     string
	Settings     Settings
	Declarations []Declaration
	Environments []Environment
	Policies     []PolicySpec
}

// RunConfig is the immutable configuration of one run. It is passed by value.
type RunConfig struct {
	RunID           string
	Root            string
	Jobs            int
	NoCache         bool
	TestAttempts    int
	PolicySeverity  Severity
	DefaultStrategy string
	Revision        string
	IncludeTests    bool
}

// AttemptsFor returns the retry budget for a test target.
func (c RunConfig) AttemptsFor(t *Target) int {
	if t.Attempts > 0 {
		return t.Attempts
	}
	if c.TestAttempts > 0 {
		return c.TestAttempts
	}
	return 1
}
