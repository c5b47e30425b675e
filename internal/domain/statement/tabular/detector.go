// Package tabular infers the structure of delimited statement exports -
// delimiter, header row, column mapping, number format - and extracts
// normalized positions from them.
package tabular

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/amount"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
)

// ErrInsufficientData marks documents with too few usable lines or no header
// row above the minimum score. Fatal for the document, recoverable for the
// caller.
var ErrInsufficientData = errors.New("insufficient data")

// Layout is the inferred structure of one delimited document. Produced from
// a sample of lines, consumed immediately by the row parser, not persisted.
type Layout struct {
	Delimiter    rune
	DecimalSep   rune // ',' or '.'
	ThousandsSep rune // 0 when none detected
	HeaderRow    int  // index into the supplied lines
	DataStart    int
	Mapping      columns.Mapping
}

// Detector infers tabular layout from raw lines.
type Detector struct {
	mapper *columns.Mapper
}

// NewDetector creates a detector using the given column mapper.
func NewDetector(mapper *columns.Mapper) *Detector {
	return &Detector{mapper: mapper}
}

// DetectLayout infers the layout with the header at the first non-blank line.
// Institution templates relax the header position via DetectLayoutAt.
// preferredDelim overrides delimiter inference when non-zero.
func (d *Detector) DetectLayout(lines []string, preferredDelim rune) (*Layout, error) {
	first := -1
	nonBlank := 0
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			if first < 0 {
				first = i
			}
			nonBlank++
		}
	}
	if nonBlank < 2 {
		return nil, fmt.Errorf("%w: need at least 2 non-blank lines, got %d", ErrInsufficientData, nonBlank)
	}
	return d.DetectLayoutAt(lines, first, preferredDelim)
}

// DetectLayoutAt infers the layout with the header fixed at headerRow.
func (d *Detector) DetectLayoutAt(lines []string, headerRow int, preferredDelim rune) (*Layout, error) {
	if headerRow < 0 || headerRow >= len(lines) {
		return nil, fmt.Errorf("%w: header row %d out of range (%d lines)", ErrInsufficientData, headerRow, len(lines))
	}
	nonBlank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonBlank++
		}
	}
	if nonBlank < 2 {
		return nil, fmt.Errorf("%w: need at least 2 non-blank lines, got %d", ErrInsufficientData, nonBlank)
	}

	header := strings.TrimRight(lines[headerRow], "\r")
	delim := preferredDelim
	if delim == 0 {
		delim = DetectDelimiter(header)
	}

	headers, err := splitRecord(header, delim)
	if err != nil {
		headers = strings.Split(header, string(delim))
	}
	for i, h := range headers {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}
	mapping := d.mapper.Map(headers)

	dec, thou := d.inferNumberFormat(lines, headerRow, delim, mapping.Value)

	return &Layout{
		Delimiter:    delim,
		DecimalSep:   dec,
		ThousandsSep: thou,
		HeaderRow:    headerRow,
		DataStart:    headerRow + 1,
		Mapping:      mapping,
	}, nil
}

// DetectDelimiter evaluates the fixed candidate set against one line and
// returns the delimiter yielding the most columns. Ties resolve by the
// candidate list's declared priority order, semicolon first.
func DetectDelimiter(line string) rune {
	best := classifier.Delimiters[0]
	bestCols := 1 + strings.Count(line, string(best))
	for _, d := range classifier.Delimiters[1:] {
		cols := 1 + strings.Count(line, string(d))
		if cols > bestCols {
			best = d
			bestCols = cols
		}
	}
	return best
}

// inferNumberFormat samples up to 9 rows under the header and classifies the
// dominant pattern in the value column.
func (d *Detector) inferNumberFormat(lines []string, headerRow int, delim rune, valueCol int) (rune, rune) {
	if valueCol < 0 {
		return amount.InferFormat(nil)
	}

	var samples []string
	for i := headerRow + 1; i < len(lines) && len(samples) < 9; i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, err := splitRecord(line, delim)
		if err != nil {
			continue
		}
		if valueCol < len(fields) {
			samples = append(samples, strings.TrimSpace(fields[valueCol]))
		}
	}

	return amount.InferFormat(samples)
}
