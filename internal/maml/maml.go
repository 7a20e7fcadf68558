// Package maml defines the Manufacturing Markup document: an ordered process flow
// from a feedstock to a target product, plus the TEA evaluation records produced
// from it.
package maml

import (
	"encoding/json"
	"errors"
	"fmt"

	"maml/internal/paper"
)

// ErrMissingIdentity is returned when a MAML without an id is persisted.
var ErrMissingIdentity = errors.New("maml: missing id, documents are keyed by id")

// ErrIncomplete is returned by CheckComplete when build invariants do not hold.
var ErrIncomplete = errors.New("maml: incomplete process flow")

// Parameter is a named, unit-bearing quantity attached to a step.
type Parameter struct {
	Name   string `json:"name" yaml:"name"`
	Unit   string `json:"unit" yaml:"unit"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Output is the product a step hands to the next step.
type Output struct {
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}

// ProcessFlowStep is one stage of a process flow. Options holding nil are unset.
type ProcessFlowStep struct {
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Options     map[string]*string `json:"options"`
	Parameters  []Parameter        `json:"parameters"`
	Output      *Output            `json:"output"`
}

// Option returns the value of an option and whether it is set.
func (s ProcessFlowStep) Option(key string) (string, bool) {
	v, ok := s.Options[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// ParameterNames returns the step's parameter names in order.
func (s ProcessFlowStep) ParameterNames() []string {
	names := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		names = append(names, p.Name)
	}
	return names
}

// Clone returns a deep copy of the step.
func (s ProcessFlowStep) Clone() ProcessFlowStep {
	c := s
	c.Options = CloneOptions(s.Options)
	c.Parameters = append([]Parameter(nil), s.Parameters...)
	if s.Output != nil {
		out := *s.Output
		c.Output = &out
	}
	return c
}

// CloneOptions deep-copies an options map, keeping nil values nil.
func CloneOptions(in map[string]*string) map[string]*string {
	out := make(map[string]*string, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// MAML is the structured description of one manufacturing process.
type MAML struct {
	ID               string            `json:"id"`
	PaperID          string            `json:"paper_id"`
	Paper            *paper.Paper      `json:"-"`
	Title            string            `json:"title"`
	ProcessFeedstock string            `json:"process_feedstock"`
	ProcessFlow      []ProcessFlowStep `json:"process_flow"`
	ProcessTarget    string            `json:"process_target"`
}

// Parse decodes a MAML document from JSON. An absent id falls back to the paper id.
func Parse(data []byte) (*MAML, error) {
	var m MAML
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse maml: %w", err)
	}
	if m.ID == "" {
		m.ID = m.PaperID
	}
	return &m, nil
}

// JSON encodes the document with indentation.
func (m *MAML) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// LastOutput returns the final step's output, or nil.
func (m *MAML) LastOutput() *Output {
	if len(m.ProcessFlow) == 0 {
		return nil
	}
	return m.ProcessFlow[len(m.ProcessFlow)-1].Output
}

// StepTypes returns the step types in flow order.
func (m *MAML) StepTypes() []string {
	types := make([]string, 0, len(m.ProcessFlow))
	for _, s := range m.ProcessFlow {
		types = append(types, s.Type)
	}
	return types
}

// Clone returns a deep copy. The paper pointer is shared.
func (m *MAML) Clone() *MAML {
	c := *m
	c.ProcessFlow = make([]ProcessFlowStep, len(m.ProcessFlow))
	for i, s := range m.ProcessFlow {
		c.ProcessFlow[i] = s.Clone()
	}
	return &c
}

// CheckComplete verifies the post-build invariants: every step has an output
// and at least one parameter.
func (m *MAML) CheckComplete() error {
	for i, s := range m.ProcessFlow {
		if s.Output == nil {
			return fmt.Errorf("%w: step %d (%s) has no output", ErrIncomplete, i, s.Type)
		}
		if len(s.Parameters) == 0 {
			return fmt.Errorf("%w: step %d (%s) has no parameters", ErrIncomplete, i, s.Type)
		}
	}
	return nil
}
