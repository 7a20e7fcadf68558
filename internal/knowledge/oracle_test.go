package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/formula"
)

// mockClient is a scripted llm.Client.
type mockClient struct {
	CompleteWithSystemFunc func(ctx context.Context, system, user string) (string, error)
	calls                  []string
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.calls = append(m.calls, user)
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, system, user)
	}
	return "{}", nil
}

func (m *mockClient) Model() string { return "mock" }

func reply(s string) *mockClient {
	return &mockClient{CompleteWithSystemFunc: func(context.Context, string, string) (string, error) {
		return s, nil
	}}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ethanol", "ethanol"},
		{"Purified Ethanol", "purified_ethanol"},
		{"dry-biomass", "dry_biomass"},
		{"fermentation.cellulosic", "fermentation_cellulosic"},
		{"conversionRate", "conversion_rate"},
		{"HTTPServer", "http_server"},
		{"  soluble sugars  ", "soluble_sugars"},
		{"CO2 capture", "co2_capture"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SnakeCase(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestAskChoice(t *testing.T) {
	allowed := []string{"pretreatment.dilute_acid", "pretreatment.steam_explosion"}
	tests := []struct {
		name    string
		resp    string
		want    string
		wantErr bool
	}{
		{"exact", `{"method": "pretreatment.steam_explosion"}`, "pretreatment.steam_explosion", false},
		{"snake cased dotted answer", `{"method": "pretreatment_dilute_acid"}`, "pretreatment.dilute_acid", false},
		{"fenced", "```json\n{\"method\": \"Pretreatment Dilute Acid\"}\n```", "pretreatment.dilute_acid", false},
		{"not allowed", `{"method": "pretreatment.ozone"}`, "", true},
		{"missing key", `{"answer": "pretreatment.dilute_acid"}`, "", true},
		{"wrong type", `{"method": 3}`, "", true},
		{"not json", `steam explosion`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewOracle(reply(tt.resp))
			got, err := kb.AskChoice(context.Background(), "text", "determine the method", "method", allowed)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAskChoicePromptCarriesChoicesAndText(t *testing.T) {
	var sys, usr string
	client := &mockClient{CompleteWithSystemFunc: func(_ context.Context, s, u string) (string, error) {
		sys, usr = s, u
		return `{"feedstock": "corn"}`, nil
	}}
	_, err := NewOracle(client).AskChoice(context.Background(), "PAPER BODY", "determine the starting feedstock", "feedstock", []string{"corn", "sugarcane"})
	require.NoError(t, err)
	assert.Contains(t, sys, "'feedstock': str")
	assert.Contains(t, usr, "corn, sugarcane")
	assert.Contains(t, usr, "PAPER BODY")
	assert.Contains(t, usr, "determine the starting feedstock")
}

func TestAskChoiceNoAllowed(t *testing.T) {
	_, err := NewOracle(reply("{}")).AskChoice(context.Background(), "", "", "x", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestTransportErrorIsNotMalformed(t *testing.T) {
	boom := errors.New("connection reset")
	client := &mockClient{CompleteWithSystemFunc: func(context.Context, string, string) (string, error) {
		return "", boom
	}}
	kb := NewOracle(client)

	_, err := kb.AskChoice(context.Background(), "t", "i", "k", []string{"a"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedResponse)

	_, err = kb.AskText(context.Background(), "t", "i")
	assert.ErrorIs(t, err, boom)

	var out struct{}
	assert.ErrorIs(t, kb.AskStructured(context.Background(), "t", "i", &out), boom)
}

type stepOutput struct {
	OutputName string `json:"output_name" validate:"required"`
	OutputUnit string `json:"output_unit" validate:"required"`
}

func TestAskStructured(t *testing.T) {
	var sys string
	client := &mockClient{CompleteWithSystemFunc: func(_ context.Context, s, _ string) (string, error) {
		sys = s
		return `{"output_name": "dry_biomass", "output_unit": "tonne/day"}`, nil
	}}
	var out stepOutput
	require.NoError(t, NewOracle(client).AskStructured(context.Background(), "text", "determine the output", &out))
	assert.Equal(t, stepOutput{"dry_biomass", "tonne/day"}, out)
	assert.Contains(t, sys, "{ 'output_name': str, 'output_unit': str }")
}

func TestAskStructuredValidation(t *testing.T) {
	var out stepOutput
	err := NewOracle(reply(`{"output_name": "dry_biomass"}`)).AskStructured(context.Background(), "t", "i", &out)
	require.Error(t, err)
	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "structured", merr.Query)
	assert.Equal(t, "OutputUnit", merr.Field)
}

func TestAskStructuredRejectsNonPointer(t *testing.T) {
	err := NewOracle(reply("{}")).AskStructured(context.Background(), "t", "i", stepOutput{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestAskStructuredMap(t *testing.T) {
	out := map[string]float64{}
	require.NoError(t, NewOracle(reply(`{"cap_ex": 1000, "conversion_rate": 90}`)).AskStructured(context.Background(), "t", "i", &out))
	assert.Equal(t, 1000.0, out["cap_ex"])
}

func TestSchemaHint(t *testing.T) {
	type flow struct {
		Types []string `json:"process_flow_types"`
		Skip  string   `json:"-"`
		Score float64  `json:"score,omitempty"`
	}
	assert.Equal(t, "{ 'process_flow_types': List[str], 'score': number }", schemaHint(&flow{}))
	assert.Equal(t, "Dict[str, number]", schemaHint(&map[string]float64{}))
}

func TestAskText(t *testing.T) {
	got, err := NewOracle(reply(`{"text": "  Ethanol from cane.  "}`)).AskText(context.Background(), "t", "describe")
	require.NoError(t, err)
	assert.Equal(t, "Ethanol from cane.", got)

	_, err = NewOracle(reply(`{"text": "   "}`)).AskText(context.Background(), "t", "describe")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func formulaRequest() FormulaRequest {
	return FormulaRequest{
		FunctionName: "process_function_output_num_ethanol",
		StepType:     "fermentation.cellulosic",
		OutputName:   "ethanol",
		OutputUnit:   "tonne/day",
		Parameters: []ParameterHint{
			{Name: InputProductAmount, Unit: "tonne/day"},
			{Name: "conversion_rate", Unit: "%"},
		},
	}
}

func TestAskFormula(t *testing.T) {
	var usr string
	client := &mockClient{CompleteWithSystemFunc: func(_ context.Context, _, u string) (string, error) {
		usr = u
		return `{"function_name": "process_function_output_num_ethanol", "parameters": ["input_product_amount", "conversion_rate"], "expression": "input_product_amount * (conversion_rate / 100)"}`, nil
	}}
	f, err := NewOracle(client).AskFormula(context.Background(), formulaRequest())
	require.NoError(t, err)
	assert.Equal(t, "input_product_amount * (conversion_rate / 100)", f.Expression)
	assert.Contains(t, usr, "process_function_output_num_ethanol")
	assert.Contains(t, usr, `"conversion_rate"`)

	prog, err := formula.Compile(f)
	require.NoError(t, err)
	out, err := prog.Eval(map[string]float64{"input_product_amount": 50, "conversion_rate": 90})
	require.NoError(t, err)
	assert.InDelta(t, 45.0, out, 1e-9)
}

func TestAskFormulaShape(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"wrong name", `{"function_name": "f", "parameters": ["input_product_amount"], "expression": "input_product_amount"}`},
		{"missing input", `{"function_name": "process_function_output_num_ethanol", "parameters": ["conversion_rate"], "expression": "conversion_rate"}`},
		{"unrequested parameter", `{"function_name": "process_function_output_num_ethanol", "parameters": ["input_product_amount", "yield"], "expression": "input_product_amount * yield"}`},
		{"empty expression", `{"function_name": "process_function_output_num_ethanol", "parameters": ["input_product_amount"], "expression": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOracle(reply(tt.resp)).AskFormula(context.Background(), formulaRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.True(t, strings.Contains(err.Error(), "formula"))
		})
	}
}

func TestMalformedResponseErrorMessage(t *testing.T) {
	err := &MalformedResponseError{Query: "choice", Field: "kind", Reason: "missing key"}
	assert.Equal(t, `knowledge: malformed choice response (field "kind"): missing key`, err.Error())
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}
