package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maml/internal/maml"
	"maml/internal/store"
	"maml/internal/tea"
)

var (
	simParamsFile string
	simLevels     []int
	simClearPrior bool
	simAutoParams bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [maml-id]",
	Short: "Run TEA simulations over a MAML and record the evaluations",
	Long: `Runs the requested levels (default: all). Level 1 synthesizes one formula
per step and chains them; Level 7 runs the configured external engine. A level
that fails is reported and the others still run.

Params come from --params, else the stored set (see ` + "`maml params --auto`" + `),
else --auto-params fills them in now.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simParamsFile, "params", "p", "", "Params JSON file")
	simulateCmd.Flags().IntSliceVarP(&simLevels, "levels", "l", nil, "Levels to run, e.g. 1,7 (default: all)")
	simulateCmd.Flags().BoolVar(&simClearPrior, "clear-prior", false, "Replace the MAML's recorded evaluations")
	simulateCmd.Flags().BoolVar(&simAutoParams, "auto-params", false, "Fill in missing params with the knowledge base")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	levels, err := tea.ParseLevels(simLevels)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.loadMAML(ctx, args[0])
	if err != nil {
		return err
	}
	params, err := resolveParams(ctx, a, m)
	if err != nil {
		return err
	}

	artifacts, err := a.artifacts(ctx)
	if err != nil {
		return err
	}
	agent, err := a.agent(ctx, artifacts)
	if err != nil {
		return err
	}

	logger.Info("Simulating", zap.String("maml", m.ID), zap.Ints("levels", levels))
	evals, err := agent.Run(ctx, m, params, levels, simClearPrior)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printEvals(out, evals)
	if len(evals) < len(levels) {
		printWarning(out, "%d of %d levels failed or were skipped; see the simulator log", len(levels)-len(evals), len(levels))
	}

	all, err := a.ledger.List(ctx, m.ID)
	if err != nil {
		return err
	}
	where, err := artifacts.WriteReport(ctx, m, all)
	if err != nil {
		printWarning(out, "report not written: %v", err)
		return nil
	}
	printMuted(out, "Report: %s", where)
	return nil
}

func resolveParams(ctx context.Context, a *app, m *maml.MAML) (maml.Params, error) {
	if simParamsFile != "" {
		data, err := os.ReadFile(simParamsFile)
		if err != nil {
			return maml.Params{}, fmt.Errorf("failed to read params: %w", err)
		}
		var p maml.Params
		if err := json.Unmarshal(data, &p); err != nil {
			return maml.Params{}, fmt.Errorf("failed to parse %s: %w", simParamsFile, err)
		}
		tea.SyncPrices(&p)
		return p, nil
	}

	p, err := a.params.Get(ctx, m.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return maml.Params{}, err
	}
	if !simAutoParams {
		return maml.Params{}, fmt.Errorf("no params for %s: pass --params, run `maml params %s --auto`, or use --auto-params", m.ID, m.ID)
	}
	kb, err := a.knowledge(ctx)
	if err != nil {
		return maml.Params{}, err
	}
	p, err = tea.AutofillParams(ctx, kb, m, tea.ParamsTemplate(m))
	if err != nil {
		return maml.Params{}, err
	}
	return p, a.params.Put(ctx, m.ID, p)
}

func printEvals(out io.Writer, evals []maml.TEAEval) {
	for _, e := range evals {
		printTitle(out, "Level %d  %s", e.Level, e.CreatedAt.Format("2006-01-02 15:04:05"))
		keys := make([]string, 0, len(e.Result))
		for k := range e.Result {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][2]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, [2]string{k, fmt.Sprintf("%.4f", e.Result[k])})
		}
		fmt.Fprintln(out, keyValues(rows))
	}
}
