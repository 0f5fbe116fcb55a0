// Package report reads and writes caption reports: plain text files with one
// "<timestamp>, <caption>" line per sampled frame.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/heimdex/vidtopics/internal/frames"
	"github.com/heimdex/vidtopics/internal/store"
)

// Record is one captioned frame.
type Record struct {
	Timestamp time.Duration
	Caption   string
}

// Line renders the record without its trailing newline.
func (r Record) Line() string {
	return frames.FormatTimestamp(r.Timestamp) + ", " + r.Caption
}

// Write replaces the report at path with records, atomically.
func Write(path string, records []Record) error {
	return store.WriteFileAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, r := range records {
			if _, err := bw.WriteString(r.Line() + "\n"); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// Parse reads report lines. Only the first comma separates the fields, so
// captions may contain commas. Blank lines are skipped.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		ts, caption, ok := cutRecord(line)
		if !ok {
			return nil, fmt.Errorf("line %d: missing caption field", lineNo)
		}
		d, err := frames.ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, Record{Timestamp: d, Caption: strings.TrimSpace(caption)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// cutRecord splits a line at the comma ending the timestamp. Timestamps past
// 24 hours carry a "N days, " prefix whose comma is part of the timestamp.
func cutRecord(line string) (ts, caption string, ok bool) {
	prefix := ""
	if i := strings.Index(line, " day"); i > 0 && isDigits(line[:i]) {
		if j := strings.Index(line, ", "); j > i {
			prefix, line = line[:j+2], line[j+2:]
		}
	}
	ts, caption, ok = strings.Cut(line, ",")
	return prefix + ts, caption, ok
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Read parses the report file at path.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
