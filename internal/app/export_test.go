package app

import (
	"io"

	"go.trai.ch/ybt/internal/core/domain"
)

// WithRunID fixes the run id generator.
func (a *App) WithRunID(id string) *App {
	a.runID = func() string { return id }
	return a
}

func RenderSummary(w io.Writer, r *domain.BuildReport) { renderSummary(w, r) }

func RenderPlan(w io.Writer, p *domain.Plan) { renderPlan(w, p) }

func RenderViolations(w io.Writer, v []domain.Violation) { renderViolations(w, v) }

func RenderDot(w io.Writer, g *domain.Graph, targets []*domain.Target, cached map[domain.Name]bool, withEnvs bool) {
	renderDot(w, g, targets, cached, withEnvs)
}
