package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maml/internal/maml"
	"maml/internal/render"
)

var (
	buildForce   bool
	buildText    string
	buildNovelty string
)

var buildCmd = &cobra.Command{
	Use:   "build [paper.txt|paper.html|url]",
	Short: "Build a MAML process flow from a paper or a text summary",
	Long: `Loads the paper, assesses whether it describes a single process, and builds
its MAML. Papers and MAMLs are cached by id; --force rebuilds both.

Examples:
  maml build ./papers/tea_ethanol_switchgrass.txt
  maml build https://www.nature.com/articles/srep20361
  maml build --text "Sugarcane to ethanol via dilute acid pretreatment" --novelty "engineered yeast"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if buildText != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Reload the paper and rebuild the MAML")
	buildCmd.Flags().StringVar(&buildText, "text", "", "Build from a free-text process summary instead of a paper")
	buildCmd.Flags().StringVar(&buildNovelty, "novelty", "", "Notes on the process novelty (with --text)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pipe, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var m *maml.MAML
	if buildText != "" {
		m, err = pipe.FromText(ctx, buildText, buildNovelty)
		if err != nil {
			return err
		}
	} else {
		logger.Info("Ingesting paper", zap.String("link", args[0]), zap.Bool("force", buildForce))
		res, err := pipe.Ingest(ctx, args[0], buildForce)
		if err != nil {
			return err
		}
		if res.MAML == nil {
			printWarning(out, "%q is a %s paper; no MAML built", res.Paper.Title, res.Paper.DescribesProcess)
			return nil
		}
		m = res.MAML
	}
	return printMAML(out, m)
}

func printMAML(out io.Writer, m *maml.MAML) error {
	printSuccess(out, "MAML %s", m.ID)
	fmt.Fprintln(out, keyValues([][2]string{
		{"title", m.Title},
		{"feedstock", m.ProcessFeedstock},
		{"target", m.ProcessTarget},
		{"steps", fmt.Sprint(len(m.ProcessFlow))},
	}))
	styled, err := render.Terminal(render.FlowTable(m), 0)
	if err != nil {
		return err
	}
	fmt.Fprint(out, styled)
	return nil
}
