package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"maml/internal/catalog"
	"maml/internal/render"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show [maml-id]",
	Short: "Show a MAML and its recorded evaluations",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var evalsCmd = &cobra.Command{
	Use:   "evals [maml-id]",
	Short: "List the evaluations recorded for a MAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvals,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the known process step types, feedstocks and targets",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the MAML document as JSON")
	evalsCmd.Flags().BoolVar(&showJSON, "json", false, "Print evaluations as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.loadMAML(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if showJSON {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	evals, err := a.ledger.List(ctx, m.ID)
	if err != nil {
		return err
	}
	styled, err := render.Terminal(render.Report(m, evals), 0)
	if err != nil {
		return err
	}
	fmt.Fprint(out, styled)
	return nil
}

func runEvals(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	evals, err := a.ledger.List(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if showJSON {
		data, err := json.MarshalIndent(evals, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(evals) == 0 {
		printMuted(out, "No evaluations recorded for %s", args[0])
		return nil
	}
	printEvals(out, evals)
	return nil
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Step type", "Options", "Parameters"})
	for _, t := range cat.Types() {
		spec, _ := cat.Lookup(t)
		step := cat.Instantiate(t)
		opts := make([]string, 0, len(step.Options))
		for k := range step.Options {
			opts = append(opts, k)
		}
		sort.Strings(opts)
		w.AppendRow(table.Row{spec.Type, strings.Join(opts, ", "), strings.Join(step.ParameterNames(), ", ")})
	}
	fmt.Fprintln(out, w.Render())

	fmt.Fprintln(out, keyValues([][2]string{
		{"feedstocks", strings.Join(cat.Feedstocks(), ", ")},
		{"targets", strings.Join(cat.Targets(), ", ")},
		{"fermentation methods", strings.Join(cat.FermentationMethodNames(), ", ")},
	}))
	return nil
}
