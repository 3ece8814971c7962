// Command buildGraph derives throughput, speedup and efficiency from an
// evaluation table and renders them as charts.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/i5heu/GoQueueSweep/internal/graph"
	"github.com/i5heu/GoQueueSweep/pkg/metrics"
	"github.com/i5heu/GoQueueSweep/pkg/results"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger, os.Stdout)
	if err := root.Execute(); err != nil {
		logger.Error("buildGraph failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type graphConfig struct {
	evalPath   string
	rawPath    string
	sqlitePath string
	outDir     string
	format     string
	table      bool
}

func newRootCmd(logger *slog.Logger, stdout io.Writer) *cobra.Command {
	var cfg graphConfig

	cmd := &cobra.Command{
		Use:   "buildGraph",
		Short: "Render throughput, speedup and efficiency charts",
		Long: `Load an evaluation table (or reconcile raw results on the fly), derive
per-row throughput, speedup against the single-thread row of the same name and
efficiency, then write throughput, speedup and efficiency charts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return buildGraphs(logger, stdout, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.evalPath, "csv", "", "Evaluation CSV (name, n_threads, operations, ...)")
	flags.StringVar(&cfg.rawPath, "raw", "", "Raw results CSV, reconciled before plotting")
	flags.StringVar(&cfg.sqlitePath, "sqlite", "", "Raw results SQLite database, reconciled before plotting")
	flags.StringVar(&cfg.outDir, "out", "plots", "Output directory for the charts")
	flags.StringVar(&cfg.format, "format", "png", "Image format: png, svg, pdf, jpg, eps, tif")
	flags.BoolVar(&cfg.table, "table", false, "Also print the derived metrics as a markdown table")
	cmd.MarkFlagsMutuallyExclusive("csv", "raw", "sqlite")
	cmd.MarkFlagsOneRequired("csv", "raw", "sqlite")

	return cmd
}

func buildGraphs(logger *slog.Logger, stdout io.Writer, cfg graphConfig) error {
	rows, err := loadEval(cfg)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("no rows to plot")
	}

	derived := metrics.Derive(rows)
	if cfg.table {
		if err := metrics.WriteTable(stdout, derived); err != nil {
			return err
		}
	}

	paths, err := graph.Render(derived, graph.Options{Dir: cfg.outDir, Format: cfg.format})
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("chart saved", slog.String("path", p))
	}
	return nil
}

func loadEval(cfg graphConfig) ([]metrics.EvalRow, error) {
	var (
		records []results.ResultRecord
		err     error
	)
	switch {
	case cfg.evalPath != "":
		return metrics.ReadEval(cfg.evalPath)
	case cfg.rawPath != "":
		records, err = results.ReadTable(cfg.rawPath)
	case cfg.sqlitePath != "":
		records, err = results.ReadSQLite(cfg.sqlitePath)
	default:
		return nil, fmt.Errorf("one of --csv, --raw or --sqlite is required")
	}
	if err != nil {
		return nil, err
	}
	return metrics.Reconcile(records)
}
