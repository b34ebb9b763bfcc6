package domain

// TargetKind is the closed set of buildable unit types.
type TargetKind string

const (
	KindLibrary    TargetKind = "library"
	KindProgram    TargetKind = "program"
	KindImage      TargetKind = "image"
	KindProto      TargetKind = "proto"
	KindInstaller  TargetKind = "installer"
	KindTest       TargetKind = "test"
	KindAlias      TargetKind = "alias"
	KindThirdParty TargetKind = "thirdparty"
)

// Kinds lists every valid TargetKind in a stable order.
var Kinds = []TargetKind{
	KindLibrary, KindProgram, KindImage, KindProto,
	KindInstaller, KindTest, KindAlias, KindThirdParty,
}

// IsValid reports whether k is one of the known kinds.
func (k TargetKind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Declaration is a static target record as produced by the definition layer.
type Declaration struct {
	Name     string
	Kind     TargetKind
	Sources  []string
	Params   map[string]string
	Deps     []string
	Members  []string
	Env      string
	Command  []string
	Outputs  []string
	Licenses []string
	Policies []string
	Attempts int
}

// Target is a resolved, immutable build unit inside a Graph.
// Deps holds alias-expanded, deduplicated dependency names in declaration order.
type Target struct {
	Name     Name
	Kind     TargetKind
	Sources  []string
	Params   map[string]string
	Deps     []Name
	Env      Name
	Command  []string
	Outputs  []string
	Licenses []string
	Policies []string
	Attempts int

	index int
}

// Index returns the declaration position of the target.
func (t *Target) Index() int {
	return t.index
}

// HasPolicy reports whether the target opted into the named policy.
func (t *Target) HasPolicy(name string) bool {
	for _, p := range t.Policies {
		if p == name {
			return true
		}
	}
	return false
}

// CommandSpec describes one process invocation.
type CommandSpec struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Outputs []string
}

// CommandFor builds the command spec for the target's build or test step.
func (t *Target) CommandFor(root string) CommandSpec {
	spec := CommandSpec{
		Name:    t.Name.String(),
		Dir:     root,
		Outputs: t.Outputs,
		Env:     make(map[string]string, len(t.Params)),
	}
	if len(t.Command) > 0 {
		spec.Args = append([]string(nil), t.Command...)
	}
	for k, v := range t.Params {
		spec.Env["YBT_PARAM_"+envKey(k)] = v
	}
	return spec
}

func envKey(k string) string {
	b := []byte(k)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
