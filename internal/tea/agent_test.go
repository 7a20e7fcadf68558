package tea

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/maml"
	"maml/internal/store"
)

type stubEngine struct {
	result map[string]float64
	err    error
	calls  int
	dir    string
}

func (s *stubEngine) Run(_ context.Context, _ *maml.MAML, _ maml.Params, outputDir string) (map[string]float64, error) {
	s.calls++
	s.dir = outputDir
	return s.result, s.err
}

type stubWorksheet struct {
	err   error
	evals []maml.TEAEval
}

func (s *stubWorksheet) WriteWorksheet(_ context.Context, _ *maml.MAML, _ maml.Params, eval maml.TEAEval) (string, error) {
	s.evals = append(s.evals, eval)
	return "output_tea_level_1.csv", s.err
}

func newLedger(t *testing.T) *store.Ledger {
	t.Helper()
	docs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store.NewLedger(docs)
}

var fixedClock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestAgentRunsAllLevels(t *testing.T) {
	ledger := newLedger(t)
	engine := &stubEngine{result: map[string]float64{"production_costs": 1, "minimal_selling_price": 2, "irr": 0.1, "npv": 3}}
	sheet := &stubWorksheet{}
	agent := NewAgent(NewSimulator(chainKB()), ledger,
		WithLevel7(engine), WithWorksheet(sheet), WithOutputDir("/tmp/out"), WithClock(fixedClock))

	evals, err := agent.Run(context.Background(), chainMAML(), chainParams(), nil, false)
	require.NoError(t, err)
	require.Len(t, evals, 2)

	assert.Equal(t, maml.LevelSynthesized, evals[0].Level)
	assert.Equal(t, maml.EvalTypeSimulation, evals[0].Type)
	assert.Len(t, evals[0].ExecHistory, 3)
	assert.Equal(t, fixedClock(), evals[0].CreatedAt)
	assert.Equal(t, maml.LevelEngine, evals[1].Level)
	assert.Empty(t, evals[1].ExecHistory)
	assert.Equal(t, "/tmp/out", engine.dir)
	require.Len(t, sheet.evals, 1)
	assert.Equal(t, maml.LevelSynthesized, sheet.evals[0].Level)

	stored, err := ledger.List(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.InDelta(t, 1200, stored[0].Result[ResultProductionCosts], 1e-9)
	assert.Equal(t, "sugarcane", stored[0].InputMAML.ProcessFeedstock)
	assert.Equal(t, 100.0, stored[0].InputParams.Values[ParamInputProductAmount])
}

func TestAgentIsolatesLevelFailures(t *testing.T) {
	ledger := newLedger(t)
	engine := &stubEngine{err: &UnresolvedTargetError{Level: 7, Target: "ethanol", Reason: "engine crashed"}}
	agent := NewAgent(NewSimulator(chainKB()), ledger, WithLevel7(engine))

	evals, err := agent.Run(context.Background(), chainMAML(), chainParams(), []int{1, 7}, false)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, maml.LevelSynthesized, evals[0].Level)
	assert.Equal(t, 1, engine.calls)

	// Level 1 failing does not stop Level 7.
	engine.err = nil
	engine.result = map[string]float64{"production_costs": 1}
	m := chainMAML()
	m.ProcessFlow[0].Output = nil
	evals, err = agent.Run(context.Background(), m, chainParams(), nil, false)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, maml.LevelEngine, evals[0].Level)

	stored, err := ledger.List(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAgentWorksheetFailureIsNotFatal(t *testing.T) {
	agent := NewAgent(NewSimulator(chainKB()), newLedger(t), WithWorksheet(&stubWorksheet{err: errors.New("disk full")}))
	evals, err := agent.Run(context.Background(), chainMAML(), chainParams(), []int{1}, false)
	require.NoError(t, err)
	assert.Len(t, evals, 1)
}

func TestAgentAppendAndReplace(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	agent := NewAgent(NewSimulator(chainKB()), ledger)

	for i := 0; i < 2; i++ {
		_, err := agent.Run(ctx, chainMAML(), chainParams(), []int{1}, false)
		require.NoError(t, err)
	}
	stored, err := ledger.List(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "identical runs are both recorded")

	_, err = agent.Run(ctx, chainMAML(), chainParams(), []int{1}, true)
	require.NoError(t, err)
	stored, err = ledger.List(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestAgentSkipsUnconfiguredLevel7(t *testing.T) {
	agent := NewAgent(NewSimulator(chainKB()), newLedger(t))
	evals, err := agent.Run(context.Background(), chainMAML(), chainParams(), []int{7}, false)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestAgentArguments(t *testing.T) {
	agent := NewAgent(NewSimulator(chainKB()), newLedger(t))

	m := chainMAML()
	m.ID = ""
	_, err := agent.Run(context.Background(), m, chainParams(), nil, false)
	assert.ErrorIs(t, err, maml.ErrMissingIdentity)

	_, err = agent.Run(context.Background(), chainMAML(), chainParams(), []int{3}, false)
	assert.Error(t, err)
}

func TestParseLevels(t *testing.T) {
	got, err := ParseLevels(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7}, got)

	got, err = ParseLevels([]int{7, 1, 7})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7}, got)

	_, err = ParseLevels([]int{2})
	assert.Error(t, err)
}
