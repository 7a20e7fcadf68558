package maml

import (
	"encoding/json"
	"fmt"
	"time"
)

// Simulation levels.
const (
	LevelSynthesized = 1 // LLM-synthesized per-step formulas
	LevelEngine      = 7 // external full-fidelity engine
)

// EvalTypeSimulation tags evaluations produced by a simulator.
const EvalTypeSimulation = "simulation"

// Params are the global numeric inputs to a TEA run. Prices keys feedstocks
// and reagents to their unit price. On the wire Params is one flat object whose
// "prices" member holds the price table.
type Params struct {
	Values map[string]float64
	Prices map[string]float64
}

// MarshalJSON flattens Values next to the prices table.
func (p Params) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		flat[k] = v
	}
	if len(p.Prices) > 0 {
		flat["prices"] = p.Prices
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads a flat params object. Non-numeric members other than
// "prices" are rejected.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Values = make(map[string]float64, len(raw))
	p.Prices = nil
	for k, v := range raw {
		if k == "prices" {
			if err := json.Unmarshal(v, &p.Prices); err != nil {
				return fmt.Errorf("params: prices: %w", err)
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("params: %s is not a number", k)
		}
		p.Values[k] = f
	}
	return nil
}

// Get returns a named value and whether it was provided.
func (p Params) Get(name string) (float64, bool) {
	v, ok := p.Values[name]
	return v, ok
}

// ExecRecord traces one step of a Level-1 run. ArgumentsUsed holds the bound
// global parameters; the chained input is kept separately in InputAmount.
type ExecRecord struct {
	FunctionName   string             `json:"function_name"`
	FunctionSource string             `json:"function_source"`
	InputAmount    float64            `json:"input_product_amount"`
	ArgumentsUsed  map[string]float64 `json:"arguments_used"`
	OutputValue    float64            `json:"output_value"`
	StepCost       float64            `json:"step_cost"`
}

// TEAEval is one recorded simulator run.
type TEAEval struct {
	Type        string             `json:"type"`
	Level       int                `json:"level"`
	InputMAML   *MAML              `json:"input_maml"`
	InputParams Params             `json:"input_params"`
	Result      map[string]float64 `json:"result"`
	ExecHistory []ExecRecord       `json:"exec_history,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
