package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maml/internal/inbox"
)

var (
	watchExisting bool
	watchForce    bool
	watchSettle   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Build MAMLs from papers dropped into a directory",
	Long: `Watches a directory for .txt and .html papers and runs each new file
through the build pipeline. Runs until interrupted; --timeout does not apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Also process papers already in the directory")
	watchCmd.Flags().BoolVarP(&watchForce, "force", "f", false, "Re-parse papers that are already stored")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "Quiet period before a burst of writes is processed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	handler := func(ctx context.Context, path string) error {
		outcome, err := pipe.Ingest(ctx, path, watchForce)
		if err != nil {
			logger.Warn("Paper failed", zap.String("path", path), zap.Error(err))
			return err
		}
		if outcome.MAML == nil {
			printWarning(out, "%s: %s paper, no MAML built", path, outcome.Paper.DescribesProcess)
			return nil
		}
		printSuccess(out, "%s -> %s", path, outcome.MAML.ID)
		return nil
	}

	opts := []inbox.Option{inbox.WithSettle(watchSettle)}
	if watchExisting {
		opts = append(opts, inbox.WithExisting())
	}
	w, err := inbox.New(args[0], handler, opts...)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	printMuted(out, "Watching %s (Ctrl+C to stop)", args[0])

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	w.Stop()

	s := w.Stats()
	printMuted(out, "Processed %d, failed %d", s.Processed, s.Failed)
	return nil
}
