// Package catalog loads the command file: one CSV record per process with
// the fields group, name and command line.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CommentMarker disables a record when its group starts with it.
const CommentMarker = "#"

// Entry is one command of the catalog.
type Entry struct {
	Group       string
	Name        string
	CommandLine string
}

// MalformedRecordError identifies a record that is not three fields.
type MalformedRecordError struct {
	Record int // 1-based, counting every record read including comments
	Line   int
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("can't make sense of command record %d (line %d): %v", e.Record, e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

var errTooFewFields = errors.New("expected group, name and command")

// Load reads the catalog file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// Parse reads catalog records from r in declaration order. Commented-out
// records are skipped before their remaining fields are inspected.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// shell quoting inside an unquoted command field is passed through
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var entries []Entry
	for n := 1; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			var line int
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			return nil, &MalformedRecordError{Record: n, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)

		group := strings.TrimSpace(record[0])
		if strings.HasPrefix(group, CommentMarker) {
			continue
		}
		if len(record) < 3 {
			return nil, &MalformedRecordError{Record: n, Line: line, Err: errTooFewFields}
		}
		entries = append(entries, Entry{
			Group:       group,
			Name:        strings.TrimSpace(record[1]),
			CommandLine: strings.TrimSpace(record[2]),
		})
	}
}
