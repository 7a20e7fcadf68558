package tea

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/formula"
	"maml/internal/knowledge"
	"maml/internal/knowledge/knowledgetest"
	"maml/internal/maml"
)

func TestLevel1Chaining(t *testing.T) {
	kb := chainKB()
	sim := NewSimulator(kb)

	_, history, err := sim.Run(context.Background(), chainMAML(), chainParams())
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.InDelta(t, 100, history[0].InputAmount, 1e-9)
	assert.InDelta(t, 50, history[1].InputAmount, 1e-9)
	assert.InDelta(t, 40, history[2].InputAmount, 1e-9)
	assert.InDelta(t, 38, history[2].OutputValue, 1e-9)

	assert.Equal(t, "process_function_output_num_sugar_juice", history[0].FunctionName)
	assert.Contains(t, history[0].FunctionSource, "input_product_amount * 0.5")
	for _, rec := range history {
		assert.Empty(t, rec.ArgumentsUsed)
		assert.Zero(t, rec.StepCost)
	}
	assert.Equal(t, 3, kb.Count())
}

// rateKB synthesizes out = in * rate / 100 with the rate read from the step's
// own parameter.
func rateKB() *knowledgetest.Fake {
	rates := map[string]string{
		"Sugar Juice": "sugar_yield",
		"Broth":       "conversion_rate",
		"Ethanol":     "recovery",
	}
	return &knowledgetest.Fake{
		FormulaFunc: func(req knowledge.FormulaRequest) (formula.Formula, error) {
			rate := rates[req.OutputName]
			return formula.Formula{
				FunctionName: req.FunctionName,
				Parameters:   []string{ParamInputProductAmount, rate},
				Expression:   ParamInputProductAmount + " * " + rate + " / 100",
			}, nil
		},
	}
}

func TestLevel1ChainingBindsStepRates(t *testing.T) {
	params := chainParams()
	params.Values["sugar_yield"] = 50
	params.Values["conversion_rate"] = 80
	params.Values["recovery"] = 95

	result, history, err := NewSimulator(rateKB()).Run(context.Background(), chainMAML(), params)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.InDelta(t, 50, history[0].OutputValue, 1e-9)
	assert.InDelta(t, 40, history[1].OutputValue, 1e-9)
	assert.InDelta(t, 38, history[2].OutputValue, 1e-9)
	assert.Equal(t, map[string]float64{"sugar_yield": 50}, history[0].ArgumentsUsed)
	assert.Equal(t, map[string]float64{"conversion_rate": 80}, history[1].ArgumentsUsed)
	assert.Equal(t, map[string]float64{"recovery": 95}, history[2].ArgumentsUsed)
	assert.InDelta(t, result[ResultMinimalSellingPrice]/38, result[ResultMinimalSellingPricePerUnit], 1e-9)
}

func TestLevel1Metrics(t *testing.T) {
	result, _, err := NewSimulator(chainKB()).Run(context.Background(), chainMAML(), chainParams())
	require.NoError(t, err)

	// accumulator = 1000 + 100*2; revenue = 38*10
	assert.InDelta(t, 1200, result[ResultProductionCosts], 1e-9)
	assert.InDelta(t, 220, result[ResultMinimalSellingPrice], 1e-9)
	assert.InDelta(t, 220.0/38, result[ResultMinimalSellingPricePerUnit], 1e-9)
	assert.InDelta(t, 10, result[ResultTargetSellingPricePerUnit], 1e-9)
	assert.InDelta(t, 37, result[ResultIRR], 1e-6)
	assert.InDelta(t, -1200+380/1.05, result[ResultNPV], 1e-9)
	assert.Len(t, result, 6)
}

func TestLevel1RatesFromParamsAndOptions(t *testing.T) {
	params := chainParams()
	params.Values[ParamProfitMargin] = 0.5
	params.Values[ParamDiscountRate] = 0

	result, _, err := NewSimulator(chainKB()).Run(context.Background(), chainMAML(), params)
	require.NoError(t, err)
	assert.InDelta(t, 300, result[ResultMinimalSellingPrice], 1e-9)
	assert.InDelta(t, -1200+380, result[ResultNPV], 1e-9)

	result, _, err = NewSimulator(chainKB(), WithProfitMargin(0), WithDiscountRate(0.1)).
		Run(context.Background(), chainMAML(), chainParams())
	require.NoError(t, err)
	assert.InDelta(t, 200, result[ResultMinimalSellingPrice], 1e-9)
	assert.InDelta(t, -1200+380/1.1, result[ResultNPV], 1e-9)
}

func TestLevel1BindsDeclaredGlobals(t *testing.T) {
	m := chainMAML()
	m.ProcessFlow = m.ProcessFlow[:1]

	var seen knowledge.FormulaRequest
	kb := &knowledgetest.Fake{
		FormulaFunc: func(req knowledge.FormulaRequest) (formula.Formula, error) {
			seen = req
			return formula.Formula{
				FunctionName: req.FunctionName,
				Parameters:   []string{ParamInputProductAmount, "sugar_yield", "prices"},
				Expression:   "input_product_amount * sugar_yield / 100",
			}, nil
		},
	}
	params := chainParams()
	params.Values["sugar_yield"] = 40
	params.Values["unrelated"] = 7

	_, history, err := NewSimulator(kb).Run(context.Background(), m, params)
	require.Error(t, err, "prices is declared but can never be bound")
	assert.ErrorIs(t, err, formula.ErrMissingArgument)
	assert.Nil(t, history)

	assert.Equal(t, []string{"input_product_amount", "sulfuric_acid_price_usd", "sugar_yield"}, seen.ParameterNames())
	assert.Equal(t, "Sugar Juice", seen.OutputName)
	assert.Equal(t, "tonne/day", seen.OutputUnit)
}

func TestLevel1ArgumentsUsed(t *testing.T) {
	m := chainMAML()
	m.ProcessFlow = m.ProcessFlow[:1]
	kb := &knowledgetest.Fake{
		FormulaFunc: func(req knowledge.FormulaRequest) (formula.Formula, error) {
			return formula.Formula{
				FunctionName: req.FunctionName,
				Parameters:   []string{ParamInputProductAmount, "sugar_yield"},
				Expression:   "input_product_amount * sugar_yield / 100",
			}, nil
		},
	}
	params := chainParams()
	params.Values["sugar_yield"] = 40
	params.Values["unrelated"] = 7

	_, history, err := NewSimulator(kb).Run(context.Background(), m, params)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, map[string]float64{"sugar_yield": 40}, history[0].ArgumentsUsed)
	assert.InDelta(t, 40, history[0].OutputValue, 1e-9)
}

func TestFormulaRequestDeduplicates(t *testing.T) {
	step := maml.ProcessFlowStep{
		Type: "fermentation.cofermentation",
		Parameters: []maml.Parameter{
			{Name: "input_product_amount", Unit: "tonne/day"},
			{Name: "yield", Unit: "%"},
			{Name: "yield", Unit: "%"},
		},
		Output: &maml.Output{Name: "Ethanol Broth", Unit: "tonne/day"},
	}
	req := formulaRequest(step, "tonne/day")
	assert.Equal(t, []string{"input_product_amount", "yield"}, req.ParameterNames())
	assert.Equal(t, "tonne/day", req.Parameters[0].Unit)
	assert.Equal(t, "process_function_output_num_ethanol_broth", req.FunctionName)
}

func TestLevel1Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*maml.MAML, *maml.Params)
		kb     func() *knowledgetest.Fake
		want   error
	}{
		{
			name:   "empty flow",
			mutate: func(m *maml.MAML, _ *maml.Params) { m.ProcessFlow = nil },
			kb:     chainKB,
			want:   ErrEmptyFlow,
		},
		{
			name:   "step without output",
			mutate: func(m *maml.MAML, _ *maml.Params) { m.ProcessFlow[1].Output = nil },
			kb:     chainKB,
			want:   maml.ErrIncomplete,
		},
		{
			name:   "step output without a name",
			mutate: func(m *maml.MAML, _ *maml.Params) { m.ProcessFlow[2].Output = &maml.Output{} },
			kb:     chainKB,
			want:   maml.ErrIncomplete,
		},
		{
			name:   "zero output",
			mutate: func(_ *maml.MAML, p *maml.Params) { p.Values[ParamInputProductAmount] = 0 },
			kb:     chainKB,
			want:   ErrDegenerateResult,
		},
		{
			name:   "zero target price",
			mutate: func(_ *maml.MAML, p *maml.Params) { p.Values[ParamTargetProductPrice] = 0 },
			kb:     chainKB,
			want:   ErrDegenerateResult,
		},
		{
			name:   "uncompilable formula",
			mutate: func(*maml.MAML, *maml.Params) {},
			kb: func() *knowledgetest.Fake {
				return &knowledgetest.Fake{
					FormulaFunc: func(req knowledge.FormulaRequest) (formula.Formula, error) {
						return formula.Formula{
							FunctionName: req.FunctionName,
							Parameters:   []string{ParamInputProductAmount},
							Expression:   `input_product_amount + "x"`,
						}, nil
					},
				}
			},
			want: ErrUnresolvedTarget,
		},
		{
			name:   "malformed oracle answer",
			mutate: func(*maml.MAML, *maml.Params) {},
			kb: func() *knowledgetest.Fake {
				return &knowledgetest.Fake{
					FormulaFunc: func(req knowledge.FormulaRequest) (formula.Formula, error) {
						return formula.Formula{}, &knowledge.MalformedResponseError{Query: "formula", Reason: "bad"}
					},
				}
			},
			want: knowledge.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := chainMAML()
			params := chainParams()
			tt.mutate(m, &params)

			result, history, err := NewSimulator(tt.kb()).Run(context.Background(), m, params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Nil(t, result)
			assert.Nil(t, history)
		})
	}
}

func TestLevel1EmptyFlowMakesNoQueries(t *testing.T) {
	kb := chainKB()
	m := chainMAML()
	m.ProcessFlow = nil

	_, _, err := NewSimulator(kb).Run(context.Background(), m, chainParams())
	assert.ErrorIs(t, err, ErrEmptyFlow)
	assert.Zero(t, kb.Count())

	_, _, err = NewSimulator(kb).Run(context.Background(), nil, chainParams())
	assert.ErrorIs(t, err, ErrEmptyFlow)
}

func TestUnresolvedTargetError(t *testing.T) {
	inner := errors.New("boom")
	err := &UnresolvedTargetError{Level: 7, Target: "protein", Reason: "target not handled", Err: inner}
	assert.Equal(t, "tea: level 7 cannot resolve protein: target not handled: boom", err.Error())
	assert.ErrorIs(t, err, ErrUnresolvedTarget)
	assert.ErrorIs(t, err, inner)
}
