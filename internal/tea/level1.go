// Package tea runs techno-economic analyses over MAML process flows. Level 1
// chains LLM-synthesized per-step formulas; Level 7 hands the flow to an
// external engine. The Agent runs the requested levels and records each
// evaluation in the ledger.
package tea

import (
	"context"
	"fmt"

	"maml/internal/formula"
	"maml/internal/knowledge"
	"maml/internal/logging"
	"maml/internal/maml"
)

// Global parameter names.
const (
	ParamTargetProductPrice = "target_product_price"
	ParamInputProductPrice  = "input_product_price"
	ParamInputProductAmount = knowledge.InputProductAmount
	ParamCapEx              = "cap_ex"
	ParamProfitMargin       = "profit_margin"
	ParamDiscountRate       = "discount_rate"
	ParamPrices             = "prices"
)

// Result keys.
const (
	ResultProductionCosts            = "production_costs"
	ResultMinimalSellingPrice        = "minimal_selling_price"
	ResultMinimalSellingPricePerUnit = "minimal_selling_price_per_unit"
	ResultTargetSellingPricePerUnit  = "target_selling_price_per_unit"
	ResultIRR                        = "irr"
	ResultNPV                        = "npv"
)

// Defaults used when neither params nor config set a rate.
const (
	DefaultProfitMargin = 0.10
	DefaultDiscountRate = 0.05
)

// FunctionPrefix starts every synthesized step function name.
const FunctionPrefix = "process_function_output_num_"

// Simulator is the Level-1 TEA: one synthesized formula per step, each fed the
// previous step's output.
type Simulator struct {
	kb           knowledge.KnowledgeBase
	profitMargin float64
	discountRate float64
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithProfitMargin sets the margin applied when params carry none.
func WithProfitMargin(m float64) SimulatorOption {
	return func(s *Simulator) { s.profitMargin = m }
}

// WithDiscountRate sets the NPV rate applied when params carry none.
func WithDiscountRate(r float64) SimulatorOption {
	return func(s *Simulator) { s.discountRate = r }
}

// NewSimulator creates a Level-1 simulator.
func NewSimulator(kb knowledge.KnowledgeBase, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		kb:           kb,
		profitMargin: DefaultProfitMargin,
		discountRate: DefaultDiscountRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FunctionName returns the synthesized function name for a step output.
func FunctionName(outputName string) string {
	return FunctionPrefix + knowledge.SnakeCase(outputName)
}

// Run evaluates the flow. Missing global params count as zero. Any synthesis or
// evaluation failure aborts the run without a partial result.
func (s *Simulator) Run(ctx context.Context, m *maml.MAML, params maml.Params) (map[string]float64, []maml.ExecRecord, error) {
	if m == nil || len(m.ProcessFlow) == 0 {
		return nil, nil, ErrEmptyFlow
	}
	for i, step := range m.ProcessFlow {
		if step.Output == nil || step.Output.Name == "" {
			return nil, nil, fmt.Errorf("%w: step %d (%s) has no output", maml.ErrIncomplete, i, step.Type)
		}
	}

	timer := logging.StartTimer(logging.CategorySimulator, "level 1 "+m.ID)
	defer timer.Stop()

	capEx := value(params, ParamCapEx)
	costs := capEx + value(params, ParamInputProductAmount)*value(params, ParamInputProductPrice)

	amount := value(params, ParamInputProductAmount)
	amountUnit := ""
	history := make([]maml.ExecRecord, 0, len(m.ProcessFlow))
	for i, step := range m.ProcessFlow {
		req := formulaRequest(step, amountUnit)
		f, err := s.kb.AskFormula(ctx, req)
		if err != nil {
			return nil, nil, fmt.Errorf("level 1: step %d (%s): %w", i, step.Type, err)
		}
		prog, err := formula.Compile(f)
		if err != nil {
			return nil, nil, &UnresolvedTargetError{
				Level:  maml.LevelSynthesized,
				Target: step.Type,
				Reason: "formula does not compile",
				Err:    err,
			}
		}

		bound := bindGlobals(f, params)
		args := make(map[string]float64, len(bound)+1)
		for k, v := range bound {
			args[k] = v
		}
		args[ParamInputProductAmount] = amount

		out, err := prog.Eval(args)
		if err != nil {
			return nil, nil, fmt.Errorf("level 1: step %d (%s): %w", i, step.Type, err)
		}
		logging.SimulatorDebug("%s(%v) = %v", f.FunctionName, amount, out)

		history = append(history, maml.ExecRecord{
			FunctionName:   f.FunctionName,
			FunctionSource: f.Source(),
			InputAmount:    amount,
			ArgumentsUsed:  bound,
			OutputValue:    out,
		})
		amount = out
		amountUnit = step.Output.Unit
	}

	for _, rec := range history {
		costs += rec.StepCost
	}
	result, err := s.metrics(params, capEx, costs, amount)
	if err != nil {
		return nil, nil, err
	}
	logging.Simulator("Level 1 for %s: production_costs=%.2f msp=%.2f irr=%.4f", m.ID,
		result[ResultProductionCosts], result[ResultMinimalSellingPrice], result[ResultIRR])
	return result, history, nil
}

func (s *Simulator) metrics(params maml.Params, capEx, costs, lastOutput float64) (map[string]float64, error) {
	if lastOutput == 0 {
		return nil, fmt.Errorf("%w: final step output is zero", ErrDegenerateResult)
	}
	price := value(params, ParamTargetProductPrice)
	revenue := lastOutput * price

	irr, err := IRR([]float64{-price, revenue})
	if err != nil {
		return nil, err
	}
	margin := s.profitMargin
	if v, ok := params.Get(ParamProfitMargin); ok {
		margin = v
	}
	rate := s.discountRate
	if v, ok := params.Get(ParamDiscountRate); ok {
		rate = v
	}
	msp := (costs - capEx) * (1 + margin)

	result := map[string]float64{
		ResultProductionCosts:            costs,
		ResultMinimalSellingPrice:        msp,
		ResultMinimalSellingPricePerUnit: msp / lastOutput,
		ResultTargetSellingPricePerUnit:  price,
		ResultIRR:                        irr,
		ResultNPV:                        NPV(rate, []float64{-costs, revenue}),
	}
	for k, v := range result {
		if !finite(v) {
			return nil, fmt.Errorf("%w: %s = %v", ErrDegenerateResult, k, v)
		}
	}
	return result, nil
}

// formulaRequest asks for input_product_amount first, then the step's own
// parameters without repeats.
func formulaRequest(step maml.ProcessFlowStep, inputUnit string) knowledge.FormulaRequest {
	req := knowledge.FormulaRequest{
		FunctionName:    FunctionName(step.Output.Name),
		StepType:        step.Type,
		StepDescription: step.Description,
		OutputName:      step.Output.Name,
		OutputUnit:      step.Output.Unit,
		Parameters:      []knowledge.ParameterHint{{Name: ParamInputProductAmount, Unit: inputUnit}},
	}
	seen := map[string]bool{ParamInputProductAmount: true}
	for _, p := range step.Parameters {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		req.Parameters = append(req.Parameters, knowledge.ParameterHint{Name: p.Name, Unit: p.Unit})
	}
	return req
}

// bindGlobals picks the params the formula declares. The chained input and the
// price table are never bound from params.
func bindGlobals(f formula.Formula, params maml.Params) map[string]float64 {
	bound := make(map[string]float64)
	for _, name := range f.Parameters {
		if name == ParamInputProductAmount || name == ParamPrices {
			continue
		}
		if v, ok := params.Get(name); ok {
			bound[name] = v
		}
	}
	return bound
}

func value(params maml.Params, name string) float64 {
	v, _ := params.Get(name)
	return v
}
