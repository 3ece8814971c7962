// Package results holds the raw benchmark records and the sinks that persist
// them.
package results

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Summary is the aggregate an engine reports for one benchmark cell.
type Summary struct {
	AvgTime    float64 `json:"avg_time"`
	AvgTimeout float64 `json:"avg_timeout"`
	TotalOps   int64   `json:"total_n_operations"`
	SuccEnq    int64   `json:"total_succeeded_enqueues"`
	SuccDeq    int64   `json:"total_succeeded_dequeues"`
	TotalEnq   int64   `json:"total_enqueues"`
	TotalDeq   int64   `json:"total_dequeues"`
}

// ResultRecord is one row of the raw results table.
type ResultRecord struct {
	QueueType  string
	Threads    int
	BatchEnque []int
	BatchDeque []int
	Strategy   string
	AvgTime    float64
	AvgTimeout float64
	TotalOps   int64
	SuccEnq    int64
	SuccDeq    int64
	TotalEnq   int64
	TotalDeq   int64
}

// NewRecord builds the record of one cell. The batch slices are copied.
func NewRecord(queueType string, threads int, enq, deq []int, strategy string, s Summary) ResultRecord {
	return ResultRecord{
		QueueType:  queueType,
		Threads:    threads,
		BatchEnque: slices.Clone(enq),
		BatchDeque: slices.Clone(deq),
		Strategy:   strategy,
		AvgTime:    s.AvgTime,
		AvgTimeout: s.AvgTimeout,
		TotalOps:   s.TotalOps,
		SuccEnq:    s.SuccEnq,
		SuccDeq:    s.SuccDeq,
		TotalEnq:   s.TotalEnq,
		TotalDeq:   s.TotalDeq,
	}
}

// Header is the fixed column order of the raw results table.
var Header = []string{
	"queue_type", "threads", "batch_enque", "batch_deque",
	"strategy", "avg_time", "avg_timeout", "total_ops",
	"succ_enq", "succ_deq", "total_enq", "total_deq",
}

// Row renders r in Header order.
func (r ResultRecord) Row() []string {
	return []string{
		r.QueueType,
		strconv.Itoa(r.Threads),
		FormatInts(r.BatchEnque),
		FormatInts(r.BatchDeque),
		r.Strategy,
		FormatFloat(r.AvgTime),
		FormatFloat(r.AvgTimeout),
		strconv.FormatInt(r.TotalOps, 10),
		strconv.FormatInt(r.SuccEnq, 10),
		strconv.FormatInt(r.SuccDeq, 10),
		strconv.FormatInt(r.TotalEnq, 10),
		strconv.FormatInt(r.TotalDeq, 10),
	}
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (ResultRecord, error) {
	if len(row) != len(Header) {
		return ResultRecord{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	var r ResultRecord
	p := fieldParser{row: row}
	r.QueueType = strings.TrimSpace(row[0])
	r.Threads = p.intAt(1)
	r.BatchEnque = p.intsAt(2)
	r.BatchDeque = p.intsAt(3)
	r.Strategy = strings.TrimSpace(row[4])
	r.AvgTime = p.floatAt(5)
	r.AvgTimeout = p.floatAt(6)
	r.TotalOps = p.int64At(7)
	r.SuccEnq = p.int64At(8)
	r.SuccDeq = p.int64At(9)
	r.TotalEnq = p.int64At(10)
	r.TotalDeq = p.int64At(11)
	if p.err != nil {
		return ResultRecord{}, p.err
	}
	return r, nil
}

// FormatInts renders a batch layout as "[a, b, c]".
func FormatInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseInts parses "[a, b, c]". A bare integer is read as a one-element list.
func ParseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("parse batch %q: %w", s, err)
		}
		return []int{n}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("parse batch %q: missing closing bracket", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []int{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parse batch %q: %w", s, err)
		}
		out[i] = n
	}
	return out, nil
}

// FormatFloat uses the shortest representation that parses back to f.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type fieldParser struct {
	row []string
	err error
}

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", columnName(i), err)
	}
}

func (p *fieldParser) intAt(i int) int {
	n, err := strconv.Atoi(strings.TrimSpace(p.row[i]))
	if err != nil {
		p.fail(i, err)
	}
	return n
}

func (p *fieldParser) int64At(i int) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(p.row[i]), 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return n
}

func (p *fieldParser) floatAt(i int) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.row[i]), 64)
	if err != nil {
		p.fail(i, err)
	}
	return f
}

func (p *fieldParser) intsAt(i int) []int {
	xs, err := ParseInts(p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return xs
}

func columnName(i int) string {
	if i < len(Header) {
		return Header[i]
	}
	return strconv.Itoa(i)
}
