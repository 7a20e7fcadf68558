package formula

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndEval(t *testing.T) {
	tests := []struct {
		name string
		expr string
		args map[string]float64
		want float64
	}{
		{"linear", "input_product_amount * conversion_rate / 100", map[string]float64{"input_product_amount": 100, "conversion_rate": 50}, 50},
		{"integer literals", "input_product_amount * 0.8", map[string]float64{"input_product_amount": 50, "conversion_rate": 1}, 40},
		{"math functions", "min(input_product_amount, 10) + sqrt(conversion_rate) + pow(2, 3)", map[string]float64{"input_product_amount": 50, "conversion_rate": 16}, 22},
		{"power operator", "input_product_amount ** 2 + conversion_rate", map[string]float64{"input_product_amount": 3, "conversion_rate": 1}, 10},
		{"ternary", "conversion_rate > 1 ? input_product_amount * conversion_rate / 100 : input_product_amount * conversion_rate", map[string]float64{"input_product_amount": 100, "conversion_rate": 95}, 95},
		{"round and log", "round(log(exp(input_product_amount))) + floor(conversion_rate) + ceil(0.2) + abs(-1)", map[string]float64{"input_product_amount": 2, "conversion_rate": 1.7}, 5},
		{"extra args ignored", "input_product_amount", map[string]float64{"input_product_amount": 7, "conversion_rate": 0, "cap_ex": 9}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(Formula{
				FunctionName: "process_function_output_num_ethanol",
				Parameters:   []string{"input_product_amount", "conversion_rate"},
				Expression:   tt.expr,
			})
			require.NoError(t, err)
			got, err := p.Eval(tt.args)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompile_EveryFunction(t *testing.T) {
	args := map[string]float64{"input_product_amount": 2.5}
	want := map[string]float64{
		"abs": 2.5, "ceil": 3, "exp": math.Exp(2.5), "floor": 2, "log": math.Log(2.5),
		"max": 4, "min": 2.5, "pow": 6.25, "round": 3, "sqrt": math.Sqrt(2.5),
	}
	for _, fn := range Functions {
		t.Run(fn, func(t *testing.T) {
			expression := fn + "(input_product_amount)"
			switch fn {
			case "max", "min":
				expression = fn + "(input_product_amount, 4)"
			case "pow":
				expression = "pow(input_product_amount, 2)"
			}
			p, err := Compile(Formula{
				FunctionName: "f",
				Parameters:   []string{"input_product_amount"},
				Expression:   expression,
			})
			require.NoError(t, err)
			got, err := p.Eval(args)
			require.NoError(t, err)
			assert.InDelta(t, want[fn], got, 1e-9)
		})
	}
}

func TestCompile_RejectsUnsafe(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unknown identifier", "input_product_amount * secret"},
		{"string literal", `"rm -rf"`},
		{"builtin call", "len([1,2])"},
		{"array literal", "[1, 2, 3]"},
		{"member access", "input_product_amount.foo"},
		{"map literal", "{a: 1}"},
		{"closure", "map([1], # * 2)"},
		{"range", "1..3"},
		{"let", "let x = 1; x"},
		{"nil", "nil"},
		{"string concat", `input_product_amount + "x"`},
		{"syntax", "input_product_amount *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(Formula{
				FunctionName: "f",
				Parameters:   []string{"input_product_amount"},
				Expression:   tt.expr,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafeExpression), "got %v", err)
		})
	}
}

func TestCompile_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		f    Formula
	}{
		{"bad function name", Formula{FunctionName: "a b", Parameters: []string{"x"}, Expression: "x"}},
		{"no params", Formula{FunctionName: "f", Expression: "1"}},
		{"bad param", Formula{FunctionName: "f", Parameters: []string{"1x"}, Expression: "1"}},
		{"duplicate", Formula{FunctionName: "f", Parameters: []string{"x", "x"}, Expression: "x"}},
		{"shadows function", Formula{FunctionName: "f", Parameters: []string{"sqrt"}, Expression: "1"}},
		{"empty expression", Formula{FunctionName: "f", Parameters: []string{"x"}, Expression: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.f)
			assert.True(t, errors.Is(err, ErrInvalidFormula), "got %v", err)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	p, err := Compile(Formula{FunctionName: "f", Parameters: []string{"a", "b"}, Expression: "a / b"})
	require.NoError(t, err)

	_, err = p.Eval(map[string]float64{"a": 1})
	assert.True(t, errors.Is(err, ErrMissingArgument))

	_, err = p.Eval(map[string]float64{"a": 1, "b": 0})
	assert.True(t, errors.Is(err, ErrNonFinite))

	sq, err := Compile(Formula{FunctionName: "g", Parameters: []string{"a"}, Expression: "sqrt(a)"})
	require.NoError(t, err)
	_, err = sq.Eval(map[string]float64{"a": -1})
	assert.True(t, errors.Is(err, ErrNonFinite))
}

func TestSource(t *testing.T) {
	f := Formula{FunctionName: "process_function_output_num_ethanol", Parameters: []string{"input_product_amount", "rate"}, Expression: "input_product_amount * rate"}
	assert.Equal(t, "process_function_output_num_ethanol(input_product_amount, rate) = input_product_amount * rate", f.Source())
}
