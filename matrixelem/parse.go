package matrixelem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedRecord is returned when a matrix-element line cannot be
// parsed.
var ErrMalformedRecord = fmt.Errorf("matrixelem: malformed record")

// Record is one parsed database line: the four external particle indices
// and the raw expression text.
type Record struct {
	Indices [4]int
	Expr    string
}

var recordRe = regexp.MustCompile(
	`^M\[\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\]\s*->\s*(.+?)\s*$`,
)

// ParseRecords reads matrix-element records from r. Blank lines and lines
// starting with # are skipped; any other line must be a valid record.
func ParseRecords(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		match := recordRe.FindStringSubmatch(line)
		if match == nil {
			return nil, fmt.Errorf("%w: line %d: %q",
				ErrMalformedRecord, lineNo, line)
		}

		rec := Record{Expr: match[5]}
		for i := 0; i < 4; i++ {
			rec.Indices[i], _ = strconv.Atoi(match[i+1])
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("matrixelem: reading records: %w", err)
	}

	return records, nil
}

// ParseFile reads matrix-element records from the file at path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("matrixelem: %w", err)
	}
	defer f.Close()

	return ParseRecords(f)
}
