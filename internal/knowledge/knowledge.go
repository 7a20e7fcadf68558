// Package knowledge is the typed oracle over an LLM. Every query kind has its own
// request/response contract; answers that do not fit the contract surface as a
// MalformedResponseError instead of being guessed at.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"maml/internal/formula"
)

// ErrMalformedResponse is matched by every MalformedResponseError.
var ErrMalformedResponse = errors.New("knowledge: malformed oracle response")

// MalformedResponseError describes an oracle answer that violated its contract.
type MalformedResponseError struct {
	Query  string // choice, structured, text, formula
	Field  string // offending key, when known
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("knowledge: malformed %s response", e.Query)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrMalformedResponse as a match.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// KnowledgeBase answers typed questions about a text blob.
type KnowledgeBase interface {
	// AskChoice picks one of allowed for field and returns the matching allowed value.
	AskChoice(ctx context.Context, text, instruction, field string, allowed []string) (string, error)
	// AskStructured fills out (a pointer) from a JSON object and validates it.
	AskStructured(ctx context.Context, text, instruction string, out any) error
	// AskText returns a free-text answer.
	AskText(ctx context.Context, text, instruction string) (string, error)
	// AskFormula asks for a declarative formula computing one step's output.
	AskFormula(ctx context.Context, req FormulaRequest) (formula.Formula, error)
}

// ParameterHint names one formula parameter and its unit.
type ParameterHint struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// FormulaRequest describes the step whose output function is being synthesized.
type FormulaRequest struct {
	FunctionName    string
	StepType        string
	StepDescription string
	OutputName      string
	OutputUnit      string
	Parameters      []ParameterHint // input_product_amount first
}

// ParameterNames returns the requested parameter names in order.
func (r FormulaRequest) ParameterNames() []string {
	names := make([]string, 0, len(r.Parameters))
	for _, p := range r.Parameters {
		names = append(names, p.Name)
	}
	return names
}

// SnakeCase lowercases s and joins its words with underscores. Word boundaries
// are non-alphanumeric runs and lower-to-upper case transitions.
func SnakeCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	pendingSep := false
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}
		if unicode.IsUpper(r) && i > 0 && b.Len() > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				pendingSep = true
			}
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Truncate returns at most n runes of text. Non-positive n returns text unchanged.
func Truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
