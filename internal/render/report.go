package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"

	"maml/internal/maml"
)

// ReportFile is the artifact name of a Markdown report.
const ReportFile = "report.md"

// Report renders a MAML and its evaluations as Markdown.
func Report(m *maml.MAML, evals []maml.TEAEval) string {
	var b strings.Builder
	title := m.Title
	if title == "" {
		title = m.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **ID:** `%s`\n", m.ID)
	fmt.Fprintf(&b, "- **Feedstock:** %s\n", m.ProcessFeedstock)
	fmt.Fprintf(&b, "- **Target:** %s\n\n", m.ProcessTarget)

	b.WriteString("## Process flow\n\n")
	b.WriteString(FlowTable(m))
	b.WriteString("\n")

	if len(evals) == 0 {
		b.WriteString("\n_No evaluations recorded._\n")
		return b.String()
	}
	for i, e := range evals {
		fmt.Fprintf(&b, "\n## Evaluation %d: level %d (%s)\n\n", i+1, e.Level, e.CreatedAt.Format("2006-01-02 15:04:05"))
		w := table.NewWriter()
		w.AppendHeader(table.Row{"Metric", "Value"})
		for _, k := range sortedKeys(e.Result) {
			w.AppendRow(table.Row{k, fmt.Sprintf("%.4f", e.Result[k])})
		}
		b.WriteString(w.RenderMarkdown())
		b.WriteString("\n")
	}
	return b.String()
}

// FlowTable renders the process flow as a Markdown table.
func FlowTable(m *maml.MAML) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"#", "Type", "Parameters", "Output"})
	for i, s := range m.ProcessFlow {
		out := ""
		if s.Output != nil {
			out = fmt.Sprintf("%s (%s)", s.Output.Name, s.Output.Unit)
		}
		w.AppendRow(table.Row{i + 1, s.Type, strings.Join(s.ParameterNames(), ", "), out})
	}
	return w.RenderMarkdown()
}

// Terminal styles Markdown for the terminal, wrapped at width.
func Terminal(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render(md)
}
