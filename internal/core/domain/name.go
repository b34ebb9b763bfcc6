package domain

import "unique"

// Name is an interned identifier for targets and environments.
// Interning keeps map keys cheap to compare across large graphs.
type Name struct {
	h unique.Handle[string]
}

// NewName interns s.
func NewName(s string) Name {
	return Name{h: unique.Make(s)}
}

// String returns the underlying string, or "" for the zero Name.
func (n Name) String() string {
	var zero unique.Handle[string]
	if n.h == zero {
		return ""
	}
	return n.h.Value()
}

// IsZero reports whether n was never set.
func (n Name) IsZero() bool {
	var zero unique.Handle[string]
	return n.h == zero
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(text []byte) error {
	n.h = unique.Make(string(text))
	return nil
}

// Names converts a slice of strings to interned names.
func Names(ss ...string) []Name {
	out := make([]Name, len(ss))
	for i, s := range ss {
		out[i] = NewName(s)
	}
	return out
}
