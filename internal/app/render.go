package app

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/ui/style"
)

func duration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return units.HumanDuration(d)
}

func nameWidth(names []string) int {
	width := 0
	for _, n := range names {
		width = max(width, lipgloss.Width(n))
	}
	return width
}

func renderViolations(w io.Writer, violations []domain.Violation) {
	if len(violations) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, style.Bold.Render("Policy violations:"))
	for _, v := range violations {
		line := v.String()
		if v.Severity == domain.SeverityWarn {
			line += style.Dim.Render(" (warning)")
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_, _ = fmt.Fprintln(w)
}

func renderSummary(w io.Writer, r *domain.BuildReport) {
	names := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		names[i] = o.Target
	}
	width := nameWidth(names)

	for _, o := range r.Outcomes {
		icon, st := style.State(o.State)
		detail := o.Reason
		if detail == "" {
			detail = duration(o.Duration)
		}
		if o.Attempts > 1 {
			detail = strings.TrimSpace(fmt.Sprintf("%s (%d attempts)", detail, o.Attempts))
		}
		line := fmt.Sprintf("%s %-*s %s %s",
			st.Render(icon), width, o.Target, st.Render(fmt.Sprintf("%-7s", o.State)), style.Dim.Render(detail))
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
	}

	counts := make([]string, 0, 4)
	for _, s := range []domain.TargetState{domain.StateBuilt, domain.StateCached, domain.StateFailed, domain.StateSkipped} {
		if n := r.Count(s); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, s))
		}
	}
	summary := fmt.Sprintf("%d targets", len(r.Outcomes))
	if len(counts) > 0 {
		summary += ": " + strings.Join(counts, ", ")
	}
	if d := duration(r.Duration); d != "" {
		summary += " in " + d
	}
	if r.Aborted {
		summary += " (aborted)"
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, style.Bold.Render(summary))
}

func renderTests(w io.Writer, r *domain.TestReport) {
	if len(r.Outcomes) == 0 {
		return
	}
	passed := 0
	for _, o := range r.Outcomes {
		if o.Passed {
			passed++
		}
	}
	_, _ = fmt.Fprintln(w, style.Bold.Render(fmt.Sprintf("%d/%d tests passed", passed, len(r.Outcomes))))
}

func renderPlan(w io.Writer, p *domain.Plan) {
	if len(p.Layers) > 0 {
		_, _ = fmt.Fprintln(w, style.Bold.Render("Environment layers:"))
		for _, l := range p.Layers {
			mark := "build"
			if l.Prebuilt {
				mark = "prebuilt"
			}
			_, _ = fmt.Fprintf(w, "  %s/%s %s %s\n", l.Env, l.Step, style.Dim.Render(short(l.Fingerprint)), mark)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w, style.Bold.Render(fmt.Sprintf("Would build %d targets:", len(p.Steps))))
	for i, s := range p.Steps {
		env := ""
		if s.Env != "" {
			env = " in " + s.Env
		}
		_, _ = fmt.Fprintf(w, "  %d. %s (%s)%s %s\n", i+1, s.Target, s.Kind, env, style.Dim.Render(short(s.Key)))
	}
	if len(p.Cached) > 0 {
		_, _ = fmt.Fprintf(w, "%s %s\n", style.Dim.Render("Cached:"), strings.Join(p.Cached, ", "))
	}
}

// short trims a digest to its algorithm-free 12 character prefix.
func short(d string) string {
	if _, hex, ok := strings.Cut(d, ":"); ok {
		d = hex
	}
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func renderTree(w io.Writer, g *domain.Graph, roots []*domain.Target) {
	expanded := make(map[domain.Name]bool)
	var walk func(t *domain.Target, prefix string)
	walk = func(t *domain.Target, prefix string) {
		deps := g.Dependencies(t)
		for i, d := range deps {
			branch, indent := "├── ", "│   "
			if i == len(deps)-1 {
				branch, indent = "└── ", "    "
			}
			if expanded[d.Name] && len(g.Dependencies(d)) > 0 {
				_, _ = fmt.Fprintf(w, "%s%s%s (*)\n", prefix, branch, d.Name)
				continue
			}
			expanded[d.Name] = true
			_, _ = fmt.Fprintf(w, "%s%s%s\n", prefix, branch, d.Name)
			walk(d, prefix+indent)
		}
	}

	for _, r := range roots {
		if expanded[r.Name] && len(g.Dependencies(r)) > 0 {
			_, _ = fmt.Fprintf(w, "%s (*)\n", r.Name)
			continue
		}
		expanded[r.Name] = true
		_, _ = fmt.Fprintln(w, r.Name)
		walk(r, "")
	}
}

var dotColors = map[domain.TargetKind]string{
	domain.KindLibrary:    "blue",
	domain.KindProgram:    "red",
	domain.KindImage:      "purple",
	domain.KindProto:      "green",
	domain.KindInstaller:  "brown",
	domain.KindTest:       "pink",
	domain.KindThirdParty: "brown4",
}

// renderDot writes targets as a strict digraph. Edges point from a target to
// each of its dependencies inside targets.
func renderDot(w io.Writer, g *domain.Graph, targets []*domain.Target, cached map[domain.Name]bool, withEnvs bool) {
	member := make(map[domain.Name]bool, len(targets))
	for _, t := range targets {
		member[t.Name] = true
	}

	_, _ = fmt.Fprintln(w, "strict digraph ybt {")
	var envs []string
	for _, t := range targets {
		color, ok := dotColors[t.Kind]
		if !ok {
			color = "black"
		}
		attrs := fmt.Sprintf("color=%q", color)
		if cached[t.Name] {
			attrs += `,fillcolor="grey",style=filled`
		}
		_, _ = fmt.Fprintf(w, "  %q [%s];\n", t.Name.String(), attrs)
		if withEnvs && !t.Env.IsZero() && !slices.Contains(envs, t.Env.String()) {
			envs = append(envs, t.Env.String())
		}
	}
	for _, env := range envs {
		_, _ = fmt.Fprintf(w, "  %q [shape=box];\n", "env:"+env)
	}
	for _, t := range targets {
		for _, dep := range g.Dependencies(t) {
			if member[dep.Name] {
				_, _ = fmt.Fprintf(w, "  %q -> %q;\n", t.Name.String(), dep.Name.String())
			}
		}
		if withEnvs && !t.Env.IsZero() {
			_, _ = fmt.Fprintf(w, "  %q -> %q;\n", t.Name.String(), "env:"+t.Env.String())
		}
	}
	_, _ = fmt.Fprintln(w, "}")
}
