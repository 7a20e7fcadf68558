package tea

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/knowledge"
	"maml/internal/knowledge/knowledgetest"
)

func TestParamsTemplate(t *testing.T) {
	p := ParamsTemplate(chainMAML())

	for _, name := range []string{
		ParamTargetProductPrice, ParamInputProductPrice, ParamInputProductAmount, ParamCapEx,
		"sulfuric_acid_price_usd", "sugar_yield", "conversion_rate", "recovery",
	} {
		v, ok := p.Get(name)
		assert.True(t, ok, name)
		assert.Zero(t, v, name)
	}
	assert.Len(t, p.Values, 8)
	assert.Equal(t, map[string]float64{"sugarcane": 0, "sulfuric_acid": 0}, p.Prices)
}

func TestSyncPrices(t *testing.T) {
	p := ParamsTemplate(chainMAML())
	p.Values["sulfuric_acid_price_usd"] = 0.09
	SyncPrices(&p)
	assert.Equal(t, 0.09, p.Prices["sulfuric_acid"])
}

func TestAutofillParams(t *testing.T) {
	m := chainMAML()
	template := ParamsTemplate(m)

	var gotText, gotInstruction string
	kb := &knowledgetest.Fake{
		StructuredFunc: func(text, instruction string, out any) error {
			gotText, gotInstruction = text, instruction
			return knowledgetest.Fill(out, `{
				"target_product_price": 700,
				"input_product_price": 35,
				"input_product_amount": 2500,
				"cap_ex": 150000000,
				"sulfuric_acid_price_usd": 0.09,
				"sugar_yield": 48,
				"conversion_rate": 85,
				"recovery": 95,
				"prices": {"sugarcane": 35}
			}`)
		},
	}

	filled, err := AutofillParams(context.Background(), kb, m, template)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, filled.Values[ParamInputProductAmount])
	assert.Equal(t, 48.0, filled.Values["sugar_yield"])
	assert.Equal(t, 35.0, filled.Prices["sugarcane"])
	assert.Equal(t, 0.09, filled.Prices["sulfuric_acid"])

	assert.Contains(t, gotText, `"process_feedstock": "sugarcane"`)
	assert.True(t, strings.Contains(gotInstruction, "Percentages should be numbers between 1-100"))
	assert.Equal(t, 1, kb.Count())
}

func TestAutofillParamsMissingKey(t *testing.T) {
	kb := &knowledgetest.Fake{
		StructuredFunc: func(_, _ string, out any) error {
			return knowledgetest.Fill(out, `{"target_product_price": 700}`)
		},
	}
	m := chainMAML()
	_, err := AutofillParams(context.Background(), kb, m, ParamsTemplate(m))
	require.Error(t, err)
	assert.ErrorIs(t, err, knowledge.ErrMalformedResponse)
}

func TestFilledParamsSchemaHint(t *testing.T) {
	f := &filledParams{hint: `{"cap_ex":0}`}
	var h knowledge.SchemaHinter = f
	assert.Equal(t, `{"cap_ex":0}`, h.SchemaHint())

	require.NoError(t, knowledgetest.Fill(f, `{"cap_ex": 5, "prices": {"corn": 1}}`))
	assert.Equal(t, 5.0, f.Params.Values["cap_ex"])
	assert.Equal(t, 1.0, f.Params.Prices["corn"])
}
