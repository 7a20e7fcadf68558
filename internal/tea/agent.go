package tea

import (
	"context"
	"fmt"
	"sort"
	"time"

	"maml/internal/logging"
	"maml/internal/maml"
)

// Levels lists every simulation level the agent knows, in run order.
var Levels = []int{maml.LevelSynthesized, maml.LevelEngine}

// Recorder persists evaluations. store.Ledger implements it.
type Recorder interface {
	Append(ctx context.Context, mamlID string, eval maml.TEAEval) error
	Replace(ctx context.Context, mamlID string, evals ...maml.TEAEval) error
}

// WorksheetWriter renders a Level-1 evaluation as a worksheet artifact and
// returns where it was written.
type WorksheetWriter interface {
	WriteWorksheet(ctx context.Context, m *maml.MAML, params maml.Params, eval maml.TEAEval) (string, error)
}

// Agent runs the requested simulation levels over one MAML and records the
// evaluations that succeed.
type Agent struct {
	level1    *Simulator
	level7    Level7Simulator
	ledger    Recorder
	worksheet WorksheetWriter
	outputDir string
	now       func() time.Time
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithLevel7 sets the Level-7 engine. Without one Level 7 is skipped.
func WithLevel7(s Level7Simulator) AgentOption {
	return func(a *Agent) { a.level7 = s }
}

// WithWorksheet renders a worksheet after each Level-1 run.
func WithWorksheet(w WorksheetWriter) AgentOption {
	return func(a *Agent) { a.worksheet = w }
}

// WithOutputDir sets the directory handed to the Level-7 engine.
func WithOutputDir(dir string) AgentOption {
	return func(a *Agent) { a.outputDir = dir }
}

// WithClock overrides the evaluation timestamp source.
func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates an agent over a Level-1 simulator and a ledger.
func NewAgent(level1 *Simulator, ledger Recorder, opts ...AgentOption) *Agent {
	a := &Agent{
		level1: level1,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ParseLevels validates requested levels, dropping repeats. Empty means all.
func ParseLevels(levels []int) ([]int, error) {
	if len(levels) == 0 {
		return append([]int(nil), Levels...), nil
	}
	seen := make(map[int]bool, len(levels))
	out := make([]int, 0, len(levels))
	for _, l := range levels {
		if l != maml.LevelSynthesized && l != maml.LevelEngine {
			return nil, fmt.Errorf("tea: unknown simulation level %d (known: %v)", l, Levels)
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Ints(out)
	return out, nil
}

// Run executes the requested levels in order. A failing level is logged and
// the others still run. Successful evaluations are appended to the ledger, or
// replace it when clearPrior is set. The returned error covers only bad
// arguments and ledger writes.
func (a *Agent) Run(ctx context.Context, m *maml.MAML, params maml.Params, levels []int, clearPrior bool) ([]maml.TEAEval, error) {
	if m == nil || m.ID == "" {
		return nil, maml.ErrMissingIdentity
	}
	levels, err := ParseLevels(levels)
	if err != nil {
		return nil, err
	}
	log := logging.Get(logging.CategorySimulator).With("maml_id", m.ID)
	log.Info("Running levels %v for %q", levels, m.Title)

	var evals []maml.TEAEval
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			eval maml.TEAEval
			err  error
		)
		switch level {
		case maml.LevelSynthesized:
			eval, err = a.runLevel1(ctx, m, params)
		case maml.LevelEngine:
			if a.level7 == nil {
				log.Warn("Level 7 skipped: no engine configured")
				continue
			}
			eval, err = a.runLevel7(ctx, m, params)
		}
		if err != nil {
			log.Error("Level %d failed: %v", level, err)
			continue
		}
		evals = append(evals, eval)
	}

	if clearPrior {
		err = a.ledger.Replace(ctx, m.ID, evals...)
	} else {
		for _, e := range evals {
			if err = a.ledger.Append(ctx, m.ID, e); err != nil {
				break
			}
		}
	}
	if err != nil {
		return evals, fmt.Errorf("failed to record evals for %s: %w", m.ID, err)
	}
	log.Info("Recorded %d evals (clear_prior=%v)", len(evals), clearPrior)
	return evals, nil
}

func (a *Agent) runLevel1(ctx context.Context, m *maml.MAML, params maml.Params) (maml.TEAEval, error) {
	result, history, err := a.level1.Run(ctx, m, params)
	if err != nil {
		return maml.TEAEval{}, err
	}
	eval := a.newEval(maml.LevelSynthesized, m, params, result)
	eval.ExecHistory = history

	if a.worksheet != nil {
		if where, err := a.worksheet.WriteWorksheet(ctx, m, params, eval); err != nil {
			logging.RenderWarn("Worksheet for %s failed: %v", m.ID, err)
		} else {
			logging.Render("Worksheet for %s written to %s", m.ID, where)
		}
	}
	return eval, nil
}

func (a *Agent) runLevel7(ctx context.Context, m *maml.MAML, params maml.Params) (maml.TEAEval, error) {
	result, err := a.level7.Run(ctx, m, params, a.outputDir)
	if err != nil {
		return maml.TEAEval{}, err
	}
	return a.newEval(maml.LevelEngine, m, params, result), nil
}

func (a *Agent) newEval(level int, m *maml.MAML, params maml.Params, result map[string]float64) maml.TEAEval {
	return maml.TEAEval{
		Type:        maml.EvalTypeSimulation,
		Level:       level,
		InputMAML:   m.Clone(),
		InputParams: cloneParams(params),
		Result:      result,
		CreatedAt:   a.now(),
	}
}

func cloneParams(p maml.Params) maml.Params {
	out := maml.Params{Values: make(map[string]float64, len(p.Values))}
	for k, v := range p.Values {
		out.Values[k] = v
	}
	if p.Prices != nil {
		out.Prices = make(map[string]float64, len(p.Prices))
		for k, v := range p.Prices {
			out.Prices[k] = v
		}
	}
	return out
}
