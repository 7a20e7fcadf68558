package tea

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"maml/internal/config"
	"maml/internal/logging"
	"maml/internal/maml"
)

// Level7Simulator runs a full-fidelity engine over a MAML.
type Level7Simulator interface {
	Run(ctx context.Context, m *maml.MAML, params maml.Params, outputDir string) (map[string]float64, error)
}

// engineFeedstocks are the feedstock streams the engine models, per target.
var engineFeedstocks = map[string][]string{
	"ethanol": {"sugarcane", "switchgrass"},
}

// level7Keys must all be present in an engine result.
var level7Keys = []string{ResultProductionCosts, ResultMinimalSellingPrice, ResultIRR, ResultNPV}

// engineRequest is written to the engine's stdin.
type engineRequest struct {
	MAML      *maml.MAML  `json:"maml"`
	Params    maml.Params `json:"params"`
	OutputDir string      `json:"output_dir,omitempty"`
}

// ExternalSimulator runs a configured command as the Level-7 engine. The
// command reads an engineRequest on stdin and prints a JSON result object.
type ExternalSimulator struct {
	Command []string
	Timeout time.Duration
}

// NewExternalSimulator builds the engine adapter from config.
func NewExternalSimulator(cfg *config.Config) *ExternalSimulator {
	return &ExternalSimulator{
		Command: append([]string(nil), cfg.Simulator.Level7Command...),
		Timeout: cfg.GetLevel7Timeout(),
	}
}

// CheckMapping reports whether the engine can model m.
func CheckMapping(m *maml.MAML) error {
	feedstocks, ok := engineFeedstocks[m.ProcessTarget]
	if !ok {
		return &UnresolvedTargetError{Level: maml.LevelEngine, Target: m.ProcessTarget, Reason: "target not handled"}
	}
	for _, f := range feedstocks {
		if f == m.ProcessFeedstock {
			return nil
		}
	}
	return &UnresolvedTargetError{
		Level:  maml.LevelEngine,
		Target: m.ProcessTarget,
		Reason: fmt.Sprintf("feedstock %q not handled", m.ProcessFeedstock),
	}
}

// Run implements Level7Simulator.
func (s *ExternalSimulator) Run(ctx context.Context, m *maml.MAML, params maml.Params, outputDir string) (map[string]float64, error) {
	if len(s.Command) == 0 {
		return nil, &UnresolvedTargetError{Level: maml.LevelEngine, Target: m.ProcessTarget, Reason: "no engine configured"}
	}
	if len(m.ProcessFlow) == 0 {
		return nil, ErrEmptyFlow
	}
	if err := CheckMapping(m); err != nil {
		return nil, err
	}

	input, err := json.Marshal(engineRequest{MAML: m, Params: params, OutputDir: outputDir})
	if err != nil {
		return nil, fmt.Errorf("failed to encode engine request: %w", err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategorySimulator, "level 7 "+m.ID)
	defer timer.StopWithInfo()

	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("level 7 engine: %w", ctx.Err())
		}
		return nil, fmt.Errorf("level 7 engine %s: %w: %s", s.Command[0], err, lastLine(stderr.String()))
	}

	var result map[string]float64
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return nil, fmt.Errorf("level 7 engine returned invalid result: %w", err)
	}
	for _, k := range level7Keys {
		if _, ok := result[k]; !ok {
			return nil, fmt.Errorf("level 7 engine result missing %s", k)
		}
	}
	logging.Simulator("Level 7 for %s: production_costs=%.2f msp=%.4f irr=%.4f", m.ID,
		result[ResultProductionCosts], result[ResultMinimalSellingPrice], result[ResultIRR])
	return result, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
