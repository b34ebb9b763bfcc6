// Package style provides shared styling primitives: brand colors, icons and
// the lipgloss styles used for target states.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/ybt/internal/core/domain"
)

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)

// Bold is used for headings.
var Bold = lipgloss.NewStyle().Bold(true)

// Dim is used for secondary text such as durations and keys.
var Dim = lipgloss.NewStyle().Foreground(Slate)

// State returns the icon and style of a target state.
func State(s domain.TargetState) (string, lipgloss.Style) {
	switch s {
	case domain.StateBuilt:
		return Check, lipgloss.NewStyle().Foreground(Green)
	case domain.StateCached:
		return Tilde, lipgloss.NewStyle().Foreground(Iris)
	case domain.StateFailed:
		return Cross, lipgloss.NewStyle().Foreground(Red)
	case domain.StateSkipped:
		return Circle, lipgloss.NewStyle().Foreground(Yellow)
	default:
		return Dot, Dim
	}
}
