// Package knowledgetest provides a scripted knowledge base for tests.
package knowledgetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"maml/internal/formula"
	"maml/internal/knowledge"
)

// Call records one query made against a Fake.
type Call struct {
	Kind        string // choice, structured, text, formula
	Instruction string
	Field       string
	Text        string
}

// Fake is a KnowledgeBase whose answers come from func fields. A nil func
// returns an error so unexpected queries fail loudly.
type Fake struct {
	ChoiceFunc     func(text, instruction, field string, allowed []string) (string, error)
	StructuredFunc func(text, instruction string, out any) error
	TextFunc       func(text, instruction string) (string, error)
	FormulaFunc    func(req knowledge.FormulaRequest) (formula.Formula, error)

	mu    sync.Mutex
	calls []Call
}

var _ knowledge.KnowledgeBase = (*Fake)(nil)

func (f *Fake) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a copy of every recorded query.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns the number of recorded queries.
func (f *Fake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Reset forgets recorded queries.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// AskChoice implements knowledge.KnowledgeBase.
func (f *Fake) AskChoice(_ context.Context, text, instruction, field string, allowed []string) (string, error) {
	f.record(Call{Kind: "choice", Instruction: instruction, Field: field, Text: text})
	if f.ChoiceFunc == nil {
		return "", fmt.Errorf("knowledgetest: unexpected choice query for %q", field)
	}
	return f.ChoiceFunc(text, instruction, field, allowed)
}

// AskStructured implements knowledge.KnowledgeBase.
func (f *Fake) AskStructured(_ context.Context, text, instruction string, out any) error {
	f.record(Call{Kind: "structured", Instruction: instruction, Text: text})
	if f.StructuredFunc == nil {
		return fmt.Errorf("knowledgetest: unexpected structured query")
	}
	return f.StructuredFunc(text, instruction, out)
}

// AskText implements knowledge.KnowledgeBase.
func (f *Fake) AskText(_ context.Context, text, instruction string) (string, error) {
	f.record(Call{Kind: "text", Instruction: instruction, Text: text})
	if f.TextFunc == nil {
		return "", fmt.Errorf("knowledgetest: unexpected text query")
	}
	return f.TextFunc(text, instruction)
}

// AskFormula implements knowledge.KnowledgeBase.
func (f *Fake) AskFormula(_ context.Context, req knowledge.FormulaRequest) (formula.Formula, error) {
	f.record(Call{Kind: "formula", Instruction: req.FunctionName, Field: req.OutputName})
	if f.FormulaFunc == nil {
		return formula.Formula{}, fmt.Errorf("knowledgetest: unexpected formula query for %s", req.FunctionName)
	}
	return f.FormulaFunc(req)
}

// Fill decodes a JSON literal into out, for use inside StructuredFunc.
func Fill(out any, raw string) error {
	return json.Unmarshal([]byte(raw), out)
}
