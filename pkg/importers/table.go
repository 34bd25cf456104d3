package importers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// normalize converts CRLF and CR line endings to LF.
func normalize(data []byte) string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func splitLines(s string) []string {
	return strings.Split(normalize([]byte(s)), "\n")
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// blockAfter returns the text following the first line accepted by header.
func blockAfter(text string, header func(line string) bool) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if header(strings.TrimSpace(line)) {
			return strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", false
}

// firstRecord returns the fields of the first non-blank CSV row of text.
func firstRecord(text string) ([]string, error) {
	r := newCSVReader(text)
	rec, err := r.Read()
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func newCSVReader(text string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	return r
}

// csvColumns parses comma-separated numeric rows, skipping the first skip
// rows, and returns the requested columns column-major.
func csvColumns(text string, skip int, cols ...int) ([][]float64, error) {
	r := newCSVReader(text)
	out := make([][]float64, len(cols))
	for row := 0; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row < skip {
			continue
		}
		for j, c := range cols {
			if c >= len(rec) {
				return nil, fmt.Errorf("row %d has %d fields, column %d wanted", row+1, len(rec), c)
			}
			v, err := parseFloat(rec[c])
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", row+1, c, err)
			}
			out[j] = append(out[j], v)
		}
	}
	return out, nil
}

// numericPrefix keeps the leading run of lines whose first comma-separated
// field is a number, ignoring blank lines. It drops trailers written after
// the data.
func numericPrefix(lines []string) string {
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		first, _, _ := strings.Cut(line, ",")
		if _, err := parseFloat(strings.Trim(strings.TrimSpace(first), `"`)); err != nil {
			break
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// fieldsFloat parses the first n whitespace-separated fields of line. n<=0
// parses every field.
func fieldsFloat(line string, n int) ([]float64, error) {
	fields := strings.Fields(line)
	if n > 0 {
		if len(fields) < n {
			return nil, fmt.Errorf("%q has %d fields, want %d", line, len(fields), n)
		}
		fields = fields[:n]
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
