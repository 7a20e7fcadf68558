// Package formula compiles and evaluates the declarative per-step formulas the
// knowledge base returns. Expressions are restricted to arithmetic and comparison
// over declared parameters, numeric literals and a small set of math functions.
package formula

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

var (
	// ErrInvalidFormula covers structural problems: bad names, duplicate parameters.
	ErrInvalidFormula = errors.New("formula: invalid")
	// ErrUnsafeExpression is returned for any construct outside the allowed grammar.
	ErrUnsafeExpression = errors.New("formula: disallowed expression")
	// ErrMissingArgument is returned when a declared parameter is not bound.
	ErrMissingArgument = errors.New("formula: missing argument")
	// ErrNonFinite is returned when evaluation produces NaN or Inf.
	ErrNonFinite = errors.New("formula: non-finite result")
)

// Formula is the declarative description of one step's numeric function.
type Formula struct {
	FunctionName string   `json:"function_name" validate:"required"`
	Parameters   []string `json:"parameters" validate:"required,min=1,dive,required"`
	Expression   string   `json:"expression" validate:"required"`
	Description  string   `json:"description"`
}

// Source renders the formula as a one-line function definition.
func (f Formula) Source() string {
	return fmt.Sprintf("%s(%s) = %s", f.FunctionName, strings.Join(f.Parameters, ", "), f.Expression)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var allowedBinary = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true, "^": true,
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
	"and": true, "or": true, "&&": true, "||": true,
}

var allowedUnary = map[string]bool{"-": true, "+": true, "!": true, "not": true}

// Functions lists the math functions an expression may call.
var Functions = []string{"abs", "ceil", "exp", "floor", "log", "max", "min", "pow", "round", "sqrt"}

// Program is a compiled, validated formula.
type Program struct {
	formula Formula
	program *vm.Program
}

// Compile validates a formula and compiles its expression.
func Compile(f Formula) (*Program, error) {
	if !identPattern.MatchString(f.FunctionName) {
		return nil, fmt.Errorf("%w: function name %q", ErrInvalidFormula, f.FunctionName)
	}
	if len(f.Parameters) == 0 {
		return nil, fmt.Errorf("%w: no parameters", ErrInvalidFormula)
	}

	env := make(map[string]any, len(f.Parameters))
	for _, p := range f.Parameters {
		if !identPattern.MatchString(p) {
			return nil, fmt.Errorf("%w: parameter name %q", ErrInvalidFormula, p)
		}
		if isFunction(p) {
			return nil, fmt.Errorf("%w: parameter %q shadows a function", ErrInvalidFormula, p)
		}
		if _, dup := env[p]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidFormula, p)
		}
		env[p] = 0.0
	}

	if strings.TrimSpace(f.Expression) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFormula)
	}

	tree, err := parser.Parse(f.Expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsafeExpression, err)
	}
	v := &whitelist{params: env}
	ast.Walk(&tree.Node, v)
	if v.err != nil {
		return nil, v.err
	}

	opts := []expr.Option{
		expr.Env(env),
		expr.DisableAllBuiltins(),
		expr.AsFloat64(),
	}
	opts = append(opts, mathFunctions()...)

	program, err := expr.Compile(f.Expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsafeExpression, err)
	}
	return &Program{formula: f, program: program}, nil
}

// Formula returns the source formula.
func (p *Program) Formula() Formula { return p.formula }

// Eval binds arguments by name and evaluates. Every declared parameter must be
// bound; extra arguments are ignored.
func (p *Program) Eval(args map[string]float64) (float64, error) {
	env := make(map[string]any, len(p.formula.Parameters))
	var missing []string
	for _, name := range p.formula.Parameters {
		v, ok := args[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		env[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, fmt.Errorf("%w: %s needs %s", ErrMissingArgument, p.formula.FunctionName, strings.Join(missing, ", "))
	}

	out, err := expr.Run(p.program, env)
	if err != nil {
		return 0, fmt.Errorf("formula: evaluating %s: %w", p.formula.FunctionName, err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("formula: %s returned %T, want number", p.formula.FunctionName, out)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s = %v", ErrNonFinite, p.formula.FunctionName, f)
	}
	return f, nil
}

// whitelist rejects every AST node outside the numeric expression grammar.
type whitelist struct {
	params map[string]any
	err    error
}

func (w *whitelist) Visit(node *ast.Node) {
	if w.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.ConditionalNode:
	case *ast.IdentifierNode:
		if _, ok := w.params[n.Value]; !ok && !isFunction(n.Value) {
			w.err = fmt.Errorf("%w: unknown identifier %q", ErrUnsafeExpression, n.Value)
		}
	case *ast.UnaryNode:
		if !allowedUnary[n.Operator] {
			w.err = fmt.Errorf("%w: operator %q", ErrUnsafeExpression, n.Operator)
		}
	case *ast.BinaryNode:
		if !allowedBinary[n.Operator] {
			w.err = fmt.Errorf("%w: operator %q", ErrUnsafeExpression, n.Operator)
		}
	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || !isFunction(ident.Value) {
			w.err = fmt.Errorf("%w: call to %s", ErrUnsafeExpression, n.Callee.String())
		}
	case *ast.BuiltinNode:
		// abs, ceil, floor, max, min and round parse as builtins; Compile
		// replaces them with the math functions below.
		if !isFunction(n.Name) {
			w.err = fmt.Errorf("%w: call to %s", ErrUnsafeExpression, n.Name)
		}
	default:
		w.err = fmt.Errorf("%w: %T in %q", ErrUnsafeExpression, n, (*node).String())
	}
}

func isFunction(name string) bool {
	i := sort.SearchStrings(Functions, name)
	return i < len(Functions) && Functions[i] == name
}
