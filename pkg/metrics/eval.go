// Package metrics turns raw benchmark records into evaluation rows and
// derives throughput, speedup and efficiency from them.
package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/i5heu/GoQueueSweep/pkg/layout"
	"github.com/i5heu/GoQueueSweep/pkg/results"
)

// EvalRow is one row of the evaluation table: one queue implementation
// measured at one thread count.
type EvalRow struct {
	Name       string
	NThreads   int
	Operations int64
	AvgTime    float64
	AvgTimeout float64
	SEnq       int64
	SDeq       int64
	Enq        int64
	Deq        int64
}

// EvalHeader is the column order WriteEval produces.
var EvalHeader = []string{
	"name", "n_threads", "avg_time", "avg_timeout", "operations",
	"s_enq", "s_deq", "enq", "deq",
}

var requiredEvalColumns = []string{
	"name", "n_threads", "operations", "avg_time", "avg_timeout", "s_enq", "s_deq",
}

// RowName is the evaluation name of a cell: queue type, strategy and the
// per-thread batch size.
func RowName(queueType, strategy string, batch int, ok bool) string {
	b := "?"
	if ok {
		b = strconv.Itoa(batch)
	}
	return queueType + "/" + strategy + "/b" + b
}

type rowKey struct {
	name     string
	nThreads int
}

// DuplicateError reports two evaluation rows for the same name and thread
// count.
type DuplicateError struct {
	Name     string
	NThreads int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate row for %s at %d threads", e.Name, e.NThreads)
}

var errMissingValue = errors.New("missing value")

// Reconcile maps raw records onto evaluation rows. Records that share a
// name and thread count are pooled: counts and times are summed, so the
// derived throughput is the pooled rate. Rows keep first-occurrence order.
func Reconcile(records []results.ResultRecord) ([]EvalRow, error) {
	var out []EvalRow
	index := make(map[rowKey]int)

	for i, rec := range records {
		s, err := layout.ParseStrategy(rec.Strategy)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s, %d threads): %w", i, rec.QueueType, rec.Threads, err)
		}
		batch, ok := s.BatchSize(layout.Layout{Enq: rec.BatchEnque, Deq: rec.BatchDeque})
		key := rowKey{name: RowName(rec.QueueType, rec.Strategy, batch, ok), nThreads: rec.Threads}

		if at, seen := index[key]; seen {
			row := &out[at]
			row.Operations += rec.TotalOps
			row.AvgTime += rec.AvgTime
			row.AvgTimeout += rec.AvgTimeout
			row.SEnq += rec.SuccEnq
			row.SDeq += rec.SuccDeq
			row.Enq += rec.TotalEnq
			row.Deq += rec.TotalDeq
			continue
		}

		index[key] = len(out)
		out = append(out, EvalRow{
			Name:       key.name,
			NThreads:   rec.Threads,
			Operations: rec.TotalOps,
			AvgTime:    rec.AvgTime,
			AvgTimeout: rec.AvgTimeout,
			SEnq:       rec.SuccEnq,
			SDeq:       rec.SuccDeq,
			Enq:        rec.TotalEnq,
			Deq:        rec.TotalDeq,
		})
	}
	return out, nil
}

// WriteEval writes rows as an evaluation CSV, replacing any existing file.
func WriteEval(path string, rows []EvalRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create evaluation file %s: %w", path, err)
	}
	if err := EncodeEval(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// EncodeEval writes the evaluation header and rows to w.
func EncodeEval(w io.Writer, rows []EvalRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EvalHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Name,
			strconv.Itoa(r.NThreads),
			results.FormatFloat(r.AvgTime),
			results.FormatFloat(r.AvgTimeout),
			strconv.FormatInt(r.Operations, 10),
			strconv.FormatInt(r.SEnq, 10),
			strconv.FormatInt(r.SDeq, 10),
			strconv.FormatInt(r.Enq, 10),
			strconv.FormatInt(r.Deq, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEval loads an evaluation CSV. Columns are matched by header name, so
// their order is free and unknown columns are ignored; enq and deq are
// optional and may be blank. Every (name, n_threads) pair must be unique.
func ReadEval(path string) ([]EvalRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open evaluation file %s: %w", path, err)
	}
	defer f.Close()

	rows, err := DecodeEval(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// DecodeEval reads an evaluation table from r.
func DecodeEval(r io.Reader) ([]EvalRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredEvalColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var out []EvalRow
	seen := make(map[rowKey]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		p := namedParser{rec: rec, col: col}
		row := EvalRow{
			Name:       p.requiredStr("name"),
			NThreads:   int(p.intOf("n_threads")),
			Operations: p.intOf("operations"),
			AvgTime:    p.floatOf("avg_time"),
			AvgTimeout: p.floatOf("avg_timeout"),
			SEnq:       p.intOf("s_enq"),
			SDeq:       p.intOf("s_deq"),
			Enq:        p.optIntOf("enq"),
			Deq:        p.optIntOf("deq"),
		}
		if p.err == nil && row.NThreads < 1 {
			p.fail("n_threads", fmt.Errorf("must be at least 1, got %d", row.NThreads))
		}
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		key := rowKey{name: row.Name, nThreads: row.NThreads}
		if seen[key] {
			return nil, fmt.Errorf("line %d: %w", line, &DuplicateError{Name: row.Name, NThreads: row.NThreads})
		}
		seen[key] = true
		out = append(out, row)
	}
}

type namedParser struct {
	rec []string
	col map[string]int
	err error
}

// field returns the trimmed cell of column name, or "" when the column is
// absent.
func (p *namedParser) field(name string) string {
	i, ok := p.col[name]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *namedParser) requiredStr(name string) string {
	s := p.field(name)
	if s == "" {
		p.fail(name, errMissingValue)
	}
	return s
}

// intOf also accepts integral floats such as "1200.0".
func (p *namedParser) intOf(name string) int64 {
	s := p.field(name)
	if s == "" {
		p.fail(name, errMissingValue)
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		p.fail(name, fmt.Errorf("not an integer: %q", s))
		return 0
	}
	return int64(f)
}

// optIntOf is intOf for columns that may be absent or blank.
func (p *namedParser) optIntOf(name string) int64 {
	if p.field(name) == "" {
		return 0
	}
	return p.intOf(name)
}

func (p *namedParser) floatOf(name string) float64 {
	s := p.field(name)
	if s == "" {
		p.fail(name, errMissingValue)
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(name, err)
	}
	return f
}

func (p *namedParser) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
}
