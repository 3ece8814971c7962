package metrics

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
)

// DerivedRow is an evaluation row plus the metrics derived from it.
type DerivedRow struct {
	EvalRow

	TEff          float64
	ThroughputOps float64
	ThroughputEnq float64
	ThroughputDeq float64
	Throughput1T  float64
	Speedup       float64
	Efficiency    float64
	HasBaseline   bool
}

// Derive computes the derived metrics of every row. rows must hold at most
// one row per (name, n_threads), as DecodeEval and Reconcile guarantee; the
// single-thread baseline of a name is the throughput of its n_threads == 1
// row. Names without one get HasBaseline false and zero speedup and
// efficiency. Output order equals input order and rows is not modified.
func Derive(rows []EvalRow) []DerivedRow {
	out := make([]DerivedRow, len(rows))
	baseline := make(map[string]float64)

	for i, r := range rows {
		d := DerivedRow{EvalRow: r}
		d.TEff = r.AvgTime - r.AvgTimeout
		d.ThroughputOps = float64(r.Operations) / d.TEff
		d.ThroughputEnq = float64(r.SEnq) / d.TEff
		d.ThroughputDeq = float64(r.SDeq) / d.TEff
		out[i] = d

		if r.NThreads == 1 {
			if _, ok := baseline[r.Name]; !ok {
				baseline[r.Name] = d.ThroughputOps
			}
		}
	}

	for i := range out {
		d := &out[i]
		base, ok := baseline[d.Name]
		if !ok {
			continue
		}
		d.HasBaseline = true
		d.Throughput1T = base
		d.Speedup = d.ThroughputOps / base
		d.Efficiency = d.Speedup / float64(d.NThreads)
	}
	return out
}

// WriteTable renders rows as a markdown table sorted by name and thread
// count. Missing or non-finite values are shown as "-".
func WriteTable(w io.Writer, rows []DerivedRow) error {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b DerivedRow) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.NThreads, b.NThreads)
	})

	if _, err := fmt.Fprintln(w, "| name | n_threads | operations | t_eff | throughput_ops_s | speedup | efficiency | throughput_enq_s | throughput_deq_s |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "|------|-----------|------------|-------|------------------|---------|------------|------------------|------------------|"); err != nil {
		return err
	}

	for _, r := range sorted {
		speedup, efficiency := "-", "-"
		if r.HasBaseline {
			speedup = fixed(r.Speedup, 3)
			efficiency = fixed(r.Efficiency, 3)
		}
		if _, err := fmt.Fprintf(w, "| %s | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			r.Name,
			r.NThreads,
			r.Operations,
			fixed(r.TEff, 6),
			rounded(r.ThroughputOps),
			speedup,
			efficiency,
			rounded(r.ThroughputEnq),
			rounded(r.ThroughputDeq),
		); err != nil {
			return err
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func fixed(f float64, prec int) string {
	if !finite(f) {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func rounded(f float64) string {
	if !finite(f) {
		return "-"
	}
	return strconv.FormatFloat(math.Round(f), 'f', 0, 64)
}
