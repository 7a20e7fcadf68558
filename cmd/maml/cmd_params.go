package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"maml/internal/tea"
)

var (
	paramsAuto bool
	paramsOut  string
)

var paramsCmd = &cobra.Command{
	Use:   "params [maml-id]",
	Short: "Print the parameter template for a MAML, or fill it in",
	Long: `Prints every parameter a simulation of the MAML reads. With --auto the
knowledge base proposes values, which are stored for later simulate runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runParams,
}

func init() {
	paramsCmd.Flags().BoolVar(&paramsAuto, "auto", false, "Fill in values with the knowledge base and store them")
	paramsCmd.Flags().StringVarP(&paramsOut, "out", "o", "", "Write the params JSON to a file")
}

func runParams(cmd *cobra.Command, args []string) error {
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
	params := tea.ParamsTemplate(m)
	if paramsAuto {
		kb, err := a.knowledge(ctx)
		if err != nil {
			return err
		}
		params, err = tea.AutofillParams(ctx, kb, m, params)
		if err != nil {
			return err
		}
		if err := a.params.Put(ctx, m.ID, params); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	if paramsOut != "" {
		if err := os.WriteFile(paramsOut, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write params: %w", err)
		}
		printSuccess(cmd.ErrOrStderr(), "Params written to %s", paramsOut)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
