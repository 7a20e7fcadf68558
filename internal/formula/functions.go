package formula

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
)

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes 1 argument, got %d", name, len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x), nil
	})
}

func variadic(name string, fn func(a, b float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) < 2 {
			return nil, fmt.Errorf("%s takes at least 2 arguments, got %d", name, len(params))
		}
		acc, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, p := range params[1:] {
			x, err := toFloat(p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			acc = fn(acc, x)
		}
		return acc, nil
	})
}

func mathFunctions() []expr.Option {
	return []expr.Option{
		unary("abs", math.Abs),
		unary("ceil", math.Ceil),
		unary("exp", math.Exp),
		unary("floor", math.Floor),
		unary("log", math.Log),
		unary("round", math.Round),
		unary("sqrt", math.Sqrt),
		variadic("max", math.Max),
		variadic("min", math.Min),
		expr.Function("pow", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("pow takes 2 arguments, got %d", len(params))
			}
			x, err := toFloat(params[0])
			if err != nil {
				return nil, fmt.Errorf("pow: %w", err)
			}
			y, err := toFloat(params[1])
			if err != nil {
				return nil, fmt.Errorf("pow: %w", err)
			}
			return math.Pow(x, y), nil
		}),
	}
}
