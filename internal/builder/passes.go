package builder

import (
	"context"
	"fmt"

	"maml/internal/knowledge"
	"maml/internal/logging"
	"maml/internal/maml"
)

// ParameterSourceNovelty marks parameters added by the parameter pass.
const ParameterSourceNovelty = "novelty"

type stepOutput struct {
	OutputName string `json:"output_name" validate:"required"`
	OutputUnit string `json:"output_unit" validate:"required"`
}

type noveltyParameter struct {
	ParameterName string `json:"parameter_name" validate:"required"`
	ParameterUnit string `json:"parameter_unit"`
}

// resolveOutputs is pass two. Step i's output feeds step i+1; the last step
// feeds the target product. The MAML built so far is the query context.
func (b *Builder) resolveOutputs(ctx context.Context, m *maml.MAML) error {
	for i := range m.ProcessFlow {
		step := &m.ProcessFlow[i]
		next := m.ProcessTarget
		if i+1 < len(m.ProcessFlow) {
			next = m.ProcessFlow[i+1].Type
		}

		doc, err := m.JSON()
		if err != nil {
			return err
		}
		var out stepOutput
		if err := b.kb.AskStructured(ctx, string(doc), fmt.Sprintf(stepOutputInstruction, step.Type, next), &out); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}
		step.Output = &maml.Output{Name: out.OutputName, Unit: out.OutputUnit}
		logging.BuilderDebug("Output %s -> %s: %s (%s)", step.Type, next, out.OutputName, out.OutputUnit)
	}
	return nil
}

// resolveParameters is pass three: one tunable efficiency parameter appended
// to every step.
func (b *Builder) resolveParameters(ctx context.Context, m *maml.MAML) error {
	for i := range m.ProcessFlow {
		step := &m.ProcessFlow[i]

		doc, err := m.JSON()
		if err != nil {
			return err
		}
		var param noveltyParameter
		if err := b.kb.AskStructured(ctx, string(doc), fmt.Sprintf(noveltyParameterInstruction, step.Type), &param); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}
		name := knowledge.SnakeCase(param.ParameterName)
		if name == "" {
			return &knowledge.MalformedResponseError{Query: "structured", Field: "parameter_name", Reason: fmt.Sprintf("%q has no usable name", param.ParameterName)}
		}
		step.Parameters = append(step.Parameters, maml.Parameter{
			Name:   name,
			Unit:   param.ParameterUnit,
			Source: ParameterSourceNovelty,
		})
		logging.BuilderDebug("Parameter %s: %s (%s)", step.Type, name, param.ParameterUnit)
	}
	return nil
}
