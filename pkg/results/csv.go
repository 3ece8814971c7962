package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sink persists result records one at a time.
type Sink interface {
	Append(ResultRecord) error
}

// CSVSink writes the raw results table. Every Append opens, writes, syncs
// and closes the file, so a crash loses at most the record in flight.
type CSVSink struct {
	Path string
}

// NewCSVSink returns a sink for path. Call Initialize before Append.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{Path: path}
}

// Initialize truncates or creates the file and writes the header row.
func (s *CSVSink) Initialize() error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create results file %s: %w", s.Path, err)
	}
	if err := writeRowAndClose(f, Header); err != nil {
		return fmt.Errorf("write header to %s: %w", s.Path, err)
	}
	return nil
}

// Append writes one record at the end of the file.
func (s *CSVSink) Append(r ResultRecord) error {
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open results file %s: %w", s.Path, err)
	}
	if err := writeRowAndClose(f, r.Row()); err != nil {
		return fmt.Errorf("append to %s: %w", s.Path, err)
	}
	return nil
}

func writeRowAndClose(f *os.File, row []string) error {
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTable loads a raw results file in insertion order.
func ReadTable(path string) ([]ResultRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results file %s: %w", path, err)
	}
	defer f.Close()

	records, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// DecodeTable reads a raw results table from r. The header must list the
// fixed columns in order; blanks after separators are tolerated.
func DecodeTable(r io.Reader) ([]ResultRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	for i, name := range Header {
		if strings.TrimSpace(header[i]) != name {
			return nil, fmt.Errorf("header column %d is %q, want %q", i, header[i], name)
		}
	}

	var out []ResultRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

// Tee fans each record out to every sink in order and stops at the first
// failure.
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

type teeSink []Sink

func (t teeSink) Append(r ResultRecord) error {
	for _, s := range t {
		if err := s.Append(r); err != nil {
			return err
		}
	}
	return nil
}
