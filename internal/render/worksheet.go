// Package render turns MAML documents and TEA evaluations into artifacts: CSV
// worksheets, Markdown reports and styled terminal output, written through a
// Sink to local disk or object storage.
package render

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"maml/internal/maml"
	"maml/internal/tea"
)

// WorksheetFile is the artifact name of a Level-1 worksheet.
const WorksheetFile = "output_tea_level_1.csv"

// Global params shown in the feedstock block, in order.
var feedstockRows = []struct{ name, label, unit string }{
	{tea.ParamInputProductAmount, "amount", "tonne/day"},
	{tea.ParamInputProductPrice, "price", "usd"},
	{tea.ParamCapEx, "capital expenditure", "usd"},
	{tea.ParamTargetProductPrice, "target product price", "usd"},
}

// Worksheet lays a Level-1 run out as a four-column CSV: a feedstock block, one
// block per step with its parameters, formula and output, then the results.
// history and result may be empty for an unsimulated MAML.
func Worksheet(m *maml.MAML, params maml.Params, history []maml.ExecRecord, result map[string]float64) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Item", "Value", "Units", "Formula"})
	blank := table.Row{"", "", "", ""}

	w.AppendRow(table.Row{"Feedstock - " + m.ProcessFeedstock, "", "", ""})
	for _, r := range feedstockRows {
		w.AppendRow(table.Row{r.label, param(params, r.name), r.unit, ""})
	}
	if price, ok := params.Prices[m.ProcessFeedstock]; ok {
		w.AppendRow(table.Row{m.ProcessFeedstock + " price", number(price), "usd", ""})
	}

	for i, step := range m.ProcessFlow {
		w.AppendRow(blank)
		w.AppendRow(table.Row{fmt.Sprintf("Step %d - %s", i+1, step.Type), "", "", ""})
		for _, p := range step.Parameters {
			w.AppendRow(table.Row{p.Name, param(params, p.Name), p.Unit, ""})
		}
		if i < len(history) {
			rec := history[i]
			w.AppendRow(table.Row{"input", number(rec.InputAmount), "", ""})
			w.AppendRow(table.Row{rec.FunctionName, "", "", rec.FunctionSource})
			if step.Output != nil {
				w.AppendRow(table.Row{step.Output.Name, number(rec.OutputValue), step.Output.Unit, ""})
			}
		} else if step.Output != nil {
			w.AppendRow(table.Row{step.Output.Name, "", step.Output.Unit, ""})
		}
	}

	if len(result) > 0 {
		w.AppendRow(blank)
		w.AppendRow(table.Row{"Results - " + m.ProcessTarget, "", "", ""})
		for _, k := range sortedKeys(result) {
			w.AppendRow(table.Row{k, number(result[k]), "", ""})
		}
	}
	return w.RenderCSV() + "\n"
}

func param(params maml.Params, name string) string {
	v, ok := params.Get(name)
	if !ok {
		return ""
	}
	return number(v)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
