package bench

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ReportHeader is the first line of every report.
const ReportHeader = "#size\tmin\tavg\tmax\ttimes"

// ReportWriter writes the tab-separated size table. Every row is flushed as it
// is written so rows for finished sizes survive an aborted sweep.
type ReportWriter struct {
	writer *bufio.Writer
	closer io.Closer
	path   string
	closed bool
}

// NewReportWriter writes the header to w and returns a writer for the rows.
// Close flushes but never closes w.
func NewReportWriter(w io.Writer) (*ReportWriter, error) {
	rw := &ReportWriter{writer: bufio.NewWriter(w)}

	if _, err := rw.writer.WriteString(ReportHeader + "\n"); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	if err := rw.writer.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush report header: %w", err)
	}
	return rw, nil
}

// CreateReport creates (or truncates) the report file at path.
func CreateReport(path string) (*ReportWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	rw, err := NewReportWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	rw.closer = file
	rw.path = path
	return rw, nil
}

// Write appends one row: size, min, avg, max and every trial time.
func (rw *ReportWriter) Write(r SizeReport) error {
	if rw.closed {
		return fmt.Errorf("report writer closed")
	}

	buf := make([]byte, 0, 32*(4+len(r.Sample)))
	buf = strconv.AppendInt(buf, int64(r.Size), 10)
	for _, v := range []float64{r.Min, r.Avg, r.Max} {
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	for _, t := range r.Sample {
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, t, 'g', -1, 64)
	}
	buf = append(buf, '\n')

	if _, err := rw.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	if err := rw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush report row: %w", err)
	}
	return nil
}

// Close flushes and, for reports opened by CreateReport, closes the file.
// Closing twice is a no-op.
func (rw *ReportWriter) Close() error {
	if rw.closed {
		return nil
	}
	rw.closed = true

	if err := rw.writer.Flush(); err != nil {
		if rw.closer != nil {
			rw.closer.Close()
		}
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if rw.closer != nil {
		if err := rw.closer.Close(); err != nil {
			return fmt.Errorf("failed to close report: %w", err)
		}
	}
	return nil
}

// Path returns the report's file path, or "" for writers not backed by a file.
func (rw *ReportWriter) Path() string {
	return rw.path
}
