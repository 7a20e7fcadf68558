package render

import (
	"context"
	"path"

	"maml/internal/maml"
	"maml/internal/tea"
)

// Artifacts writes per-MAML artifacts through a sink, keyed <maml id>/<file>.
type Artifacts struct {
	sink Sink
}

var _ tea.WorksheetWriter = (*Artifacts)(nil)

// NewArtifacts wraps a sink.
func NewArtifacts(sink Sink) *Artifacts {
	return &Artifacts{sink: sink}
}

// WriteWorksheet implements tea.WorksheetWriter.
func (a *Artifacts) WriteWorksheet(ctx context.Context, m *maml.MAML, params maml.Params, eval maml.TEAEval) (string, error) {
	csv := Worksheet(m, params, eval.ExecHistory, eval.Result)
	return a.sink.Put(ctx, path.Join(m.ID, WorksheetFile), []byte(csv), "text/csv")
}

// WriteReport stores the Markdown report for a MAML and its evaluations.
func (a *Artifacts) WriteReport(ctx context.Context, m *maml.MAML, evals []maml.TEAEval) (string, error) {
	return a.sink.Put(ctx, path.Join(m.ID, ReportFile), []byte(Report(m, evals)), "text/markdown")
}
