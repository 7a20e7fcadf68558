package tea

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"maml/internal/knowledge"
	"maml/internal/logging"
	"maml/internal/maml"
)

const priceSuffix = "_price_usd"

const autofillInstruction = `You are an assistant trained in biochemical process engineering. Provide a JSON response, filling in values of the parameters dictionary. Do not wrap numbers as strings. Percentages should be numbers between 1-100, not decimals.

The text above is the biomanufacturing outline data. Fill in every key of the parameters dictionary and keep the same keys.`

// ParamsTemplate lists every parameter a run of m reads, zero-valued. Step
// parameters named *_price_usd are mirrored into the price table.
func ParamsTemplate(m *maml.MAML) maml.Params {
	p := maml.Params{
		Values: map[string]float64{
			ParamTargetProductPrice: 0,
			ParamInputProductPrice:  0,
			ParamInputProductAmount: 0,
			ParamCapEx:              0,
		},
		Prices: map[string]float64{},
	}
	if m.ProcessFeedstock != "" {
		p.Prices[m.ProcessFeedstock] = 0
	}
	for _, step := range m.ProcessFlow {
		for _, param := range step.Parameters {
			p.Values[param.Name] = 0
		}
	}
	SyncPrices(&p)
	return p
}

// SyncPrices copies every *_price_usd value into the price table under the
// name without the suffix.
func SyncPrices(p *maml.Params) {
	for name, v := range p.Values {
		if !strings.Contains(name, priceSuffix) {
			continue
		}
		if p.Prices == nil {
			p.Prices = make(map[string]float64)
		}
		p.Prices[strings.Replace(name, priceSuffix, "", 1)] = v
	}
}

// filledParams decodes the oracle's answer as flat params and describes the
// template as its schema.
type filledParams struct {
	hint   string
	Params maml.Params
}

func (f *filledParams) SchemaHint() string { return f.hint }

func (f *filledParams) UnmarshalJSON(data []byte) error { return f.Params.UnmarshalJSON(data) }

// AutofillParams asks the knowledge base for plausible values for every key of
// the template. A key missing from the answer is a malformed response.
func AutofillParams(ctx context.Context, kb knowledge.KnowledgeBase, m *maml.MAML, template maml.Params) (maml.Params, error) {
	doc, err := m.JSON()
	if err != nil {
		return maml.Params{}, fmt.Errorf("failed to encode maml: %w", err)
	}
	hint, err := json.Marshal(template)
	if err != nil {
		return maml.Params{}, fmt.Errorf("failed to encode params template: %w", err)
	}

	out := &filledParams{hint: string(hint)}
	if err := kb.AskStructured(ctx, string(doc), autofillInstruction, out); err != nil {
		return maml.Params{}, err
	}
	filled := out.Params
	for name := range template.Values {
		if _, ok := filled.Values[name]; !ok {
			return maml.Params{}, &knowledge.MalformedResponseError{
				Query:  "structured",
				Field:  name,
				Reason: "parameter missing from answer",
				Raw:    string(hint),
			}
		}
	}
	if filled.Prices == nil {
		filled.Prices = make(map[string]float64)
	}
	for name, v := range template.Prices {
		if _, ok := filled.Prices[name]; !ok {
			filled.Prices[name] = v
		}
	}
	SyncPrices(&filled)
	logging.Simulator("Autofilled %d params for %s", len(filled.Values), m.ID)
	return filled, nil
}
