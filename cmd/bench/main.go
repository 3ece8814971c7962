// Command bench runs the queue benchmark sweep and prepares its results for
// evaluation.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/i5heu/GoQueueSweep/internal/queue"
	"github.com/i5heu/GoQueueSweep/internal/runner"
	"github.com/i5heu/GoQueueSweep/internal/sysinfo"
	"github.com/i5heu/GoQueueSweep/internal/testbench"
	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/matrix"
	"github.com/i5heu/GoQueueSweep/pkg/metrics"
	"github.com/i5heu/GoQueueSweep/pkg/results"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		slog.Error("bench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// cli carries what every subcommand shares.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	logLevel string
	logger   *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "bench",
		Short: "Concurrent queue benchmark sweep",
		Long: `Bench drives every queue implementation through a matrix of thread
counts, batch sizes and work-distribution strategies and appends one result
row per configuration to a CSV table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", c.logLevel, err)
			}
			c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(c.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(c), newReconcileCmd(c), newQueuesCmd(c))
	return root
}

type runConfig struct {
	axesPath    string
	outPath     string
	sqlitePath  string
	sessionPath string
	capacity    uint64
	progress    bool
}

func newRunCmd(c *cli) *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark matrix",
		Long: `Run every cell of the experiment matrix in order. Each result is
appended to the CSV table before the next cell starts; the sweep stops at the
first failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSweep(ctx, c, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.axesPath, "axes", "",
		"YAML file overriding the default matrix axes")
	flags.StringVar(&cfg.outPath, "out", "benchmark_large_results.csv",
		"Raw results CSV, truncated at start")
	flags.StringVar(&cfg.sqlitePath, "sqlite", "",
		"Also mirror results into this SQLite database")
	flags.StringVar(&cfg.sessionPath, "session", "sessions.json",
		"Append host and axes details to this JSON file (empty disables)")
	flags.Uint64Var(&cfg.capacity, "capacity", queue.DefaultCapacity,
		"Capacity of the bounded queues")
	flags.BoolVar(&cfg.progress, "progress", false,
		"Display a progress bar with ETA")

	return cmd
}

func runSweep(ctx context.Context, c *cli, cfg runConfig) error {
	axes := config.DefaultAxes()
	if cfg.axesPath != "" {
		var err error
		if axes, err = config.LoadAxes(cfg.axesPath); err != nil {
			return err
		}
	}
	for _, name := range axes.QueueTypes() {
		if _, ok := queue.Lookup(name); !ok {
			return &config.ValidationError{Field: "queue_types", Reason: fmt.Sprintf("unknown queue type %q", name)}
		}
	}

	cells, err := matrix.Build(axes)
	if err != nil {
		return err
	}

	csvSink := results.NewCSVSink(cfg.outPath)
	if err := csvSink.Initialize(); err != nil {
		return err
	}
	var sink results.Sink = csvSink
	if cfg.sqlitePath != "" {
		db, err := results.OpenSQLite(cfg.sqlitePath, true)
		if err != nil {
			return err
		}
		defer db.Close()
		sink = results.Tee(csvSink, db)
	}

	opts := []runner.Option{runner.WithLogger(c.logger)}
	if cfg.progress {
		bar := progressbar.NewOptions(len(cells),
			progressbar.OptionSetWriter(c.stderr),
			progressbar.OptionSetDescription("cells"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.stderr) }),
		)
		opts = append(opts, runner.WithProgress(bar))
	}

	c.logger.Info("sweep started",
		slog.Int("cells", len(cells)),
		slog.Any("queue_types", axes.QueueTypes()),
		slog.Any("threads", axes.Threads()),
		slog.Any("batch_sizes", axes.BatchSizes()),
		slog.Int("repetitions", axes.Repetitions()),
		slog.Int64("seed", axes.Seed()),
		slog.String("out", cfg.outPath),
	)

	engine := runner.TestbenchEngine{Engine: testbench.Engine{Capacity: cfg.capacity}}
	if err := runner.New(engine, sink, opts...).Run(ctx, cells); err != nil {
		return err
	}

	if cfg.sessionPath != "" {
		session := sysinfo.NewSession(sysinfo.Gather(ctx), axes.Spec(), len(cells), cfg.outPath)
		session.SQLiteFile = cfg.sqlitePath
		if err := sysinfo.AppendSession(cfg.sessionPath, session); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.stdout, "Benchmark complete! Results saved to %s\n", cfg.outPath)
	return nil
}

func newReconcileCmd(c *cli) *cobra.Command {
	var inPath, sqlitePath, outPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Convert raw results into the evaluation table",
		Long: `Map every raw result onto an evaluation row named
<queue_type>/<strategy>/b<batch>. Rows sharing a name and thread count are
pooled.`,
		RunE: func(*cobra.Command, []string) error {
			records, err := loadRecords(inPath, sqlitePath)
			if err != nil {
				return err
			}
			rows, err := metrics.Reconcile(records)
			if err != nil {
				return err
			}
			if err := metrics.WriteEval(outPath, rows); err != nil {
				return err
			}
			c.logger.Info("evaluation table written",
				slog.String("path", outPath),
				slog.Int("records", len(records)),
				slog.Int("rows", len(rows)),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inPath, "in", "benchmark_large_results.csv", "Raw results CSV")
	flags.StringVar(&sqlitePath, "sqlite", "", "Read raw results from this SQLite database instead of --in")
	flags.StringVar(&outPath, "out", "results_eval.csv", "Evaluation CSV to write")

	return cmd
}

// loadRecords prefers the SQLite mirror when one is named.
func loadRecords(csvPath, sqlitePath string) ([]results.ResultRecord, error) {
	if sqlitePath != "" {
		return results.ReadSQLite(sqlitePath)
	}
	return results.ReadTable(csvPath)
}

func newQueuesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "List the queue implementations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(c.stdout, "| Name | Concurrent | Bounded | Description |")
			fmt.Fprintln(c.stdout, "|------|------------|---------|-------------|")
			for _, k := range queue.Kinds() {
				fmt.Fprintf(c.stdout, "| %s | %t | %t | %s |\n", k.Name, k.Concurrent, k.Bounded, k.Description)
			}
			return nil
		},
	}
}
