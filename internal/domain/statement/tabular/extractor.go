package tabular

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/amount"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// layoutSampleLines is how many lines the streaming path buffers before
// committing to a layout.
const layoutSampleLines = 10

// Options tunes a single extraction run. Zero values mean "infer".
type Options struct {
	Delimiter       rune
	MappingOverride *columns.Mapping
}

// Result is the outcome of one tabular extraction.
type Result struct {
	Positions      []position.Position
	Layout         *Layout
	Warnings       []string
	DetectedFormat string
}

// Extractor turns delimited text into positions.
type Extractor struct {
	detector *Detector
	logger   *slog.Logger
}

// NewExtractor creates an extractor with the default column keyword tables.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		detector: NewDetector(columns.NewMapper(columns.DefaultConfig())),
		logger:   logger,
	}
}

// Extract parses the whole document in memory. Rows that cannot be parsed are
// skipped with a warning carrying the 1-based line number; they never abort
// the document.
func (e *Extractor) Extract(content string, opts Options) (*Result, error) {
	lines := strings.Split(content, "\n")

	layout, err := e.detector.DetectLayout(lines, opts.Delimiter)
	if err != nil {
		return nil, err
	}
	return e.extractWithLayout(lines, layout, opts)
}

// ExtractAt parses with the header pinned to headerRow, used by institution
// templates whose exports carry metadata above the table.
func (e *Extractor) ExtractAt(lines []string, headerRow int, opts Options) (*Result, error) {
	layout, err := e.detector.DetectLayoutAt(lines, headerRow, opts.Delimiter)
	if err != nil {
		return nil, err
	}
	return e.extractWithLayout(lines, layout, opts)
}

func (e *Extractor) extractWithLayout(lines []string, layout *Layout, opts Options) (*Result, error) {
	layout.Mapping = applyOverride(layout.Mapping, opts.MappingOverride)
	if !layout.Mapping.Usable() {
		return nil, fmt.Errorf("%w: header resolves no name or value column", ErrInsufficientData)
	}

	res := &Result{Layout: layout, DetectedFormat: "generic"}
	expectCols := len(strings.Split(strings.TrimRight(lines[layout.HeaderRow], "\r"), string(layout.Delimiter)))

	for i := layout.DataStart; i < len(lines); i++ {
		raw := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		record, err := splitRecord(raw, layout.Delimiter)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		e.parseRow(record, i+1, layout, expectCols, res)
	}

	// Zero positions is not an error: the caller decides what to do with an
	// empty result, guided by the warnings and the quality report.
	if len(res.Positions) == 0 {
		res.Warnings = append(res.Warnings, "no parseable position rows below the header")
	}
	return res, nil
}

// ExtractStream parses row-at-a-time from r, buffering only the sample lines
// needed for layout detection. Used for documents above the streaming
// threshold.
func (e *Extractor) ExtractStream(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sample []string
	for len(sample) < layoutSampleLines && scanner.Scan() {
		sample = append(sample, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	layout, err := e.detector.DetectLayout(sample, opts.Delimiter)
	if err != nil {
		return nil, err
	}
	layout.Mapping = applyOverride(layout.Mapping, opts.MappingOverride)
	if !layout.Mapping.Usable() {
		return nil, fmt.Errorf("%w: header resolves no name or value column", ErrInsufficientData)
	}

	res := &Result{Layout: layout, DetectedFormat: "generic"}
	expectCols := len(strings.Split(strings.TrimRight(sample[layout.HeaderRow], "\r"), string(layout.Delimiter)))

	lineNum := 0
	process := func(raw string) {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			return
		}
		record, err := splitRecord(raw, layout.Delimiter)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v", lineNum, err))
			return
		}
		e.parseRow(record, lineNum, layout, expectCols, res)
	}

	for i, raw := range sample {
		lineNum = i + 1
		if i < layout.DataStart {
			continue
		}
		process(raw)
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		lineNum++
		process(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	if len(res.Positions) == 0 {
		res.Warnings = append(res.Warnings, "no parseable position rows below the header")
	}
	return res, nil
}

// parseRow converts one record into a position, or records a warning and
// skips. The document-level invariant is that every emitted position has a
// non-empty name and a strictly positive value.
func (e *Extractor) parseRow(record []string, lineNum int, layout *Layout, expectCols int, res *Result) {
	if len(record) != expectCols {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"line %d: inconsistent column count (got %d, expected %d)", lineNum, len(record), expectCols))
	}

	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := field(layout.Mapping.Name)
	if name == "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: missing position name, row skipped", lineNum))
		return
	}

	rawValue := field(layout.Mapping.Value)
	if rawValue == "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: missing value, row skipped", lineNum))
		return
	}
	value, err := amount.Parse(rawValue, layout.DecimalSep, layout.ThousandsSep)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %v, row skipped", lineNum, err))
		return
	}
	if value <= 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: non-positive value %s, row skipped", lineNum, rawValue))
		return
	}

	pos := position.Position{
		Name:       name,
		Value:      value,
		Confidence: layout.Mapping.Confidence,
		Source:     &position.Provenance{Line: lineNum},
	}
	if id := strings.ToUpper(field(layout.Mapping.Identifier)); id != "" {
		if position.ValidIdentifier(id) {
			pos.Identifier = id
		} else {
			// Position survives without the identifier.
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: identifier %q has no valid shape, dropped", lineNum, id))
		}
	}

	res.Positions = append(res.Positions, pos)
}

// splitRecord parses one physical line as a CSV record so quoted fields keep
// embedded delimiters. LazyQuotes tolerates the stray quotes bank exports
// produce.
func splitRecord(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("malformed row: %w", err)
	}
	return record, nil
}

func applyOverride(base columns.Mapping, o *columns.Mapping) columns.Mapping {
	if o == nil {
		return base
	}
	if o.Name >= 0 {
		base.Name = o.Name
	}
	if o.Identifier >= 0 {
		base.Identifier = o.Identifier
	}
	if o.Value >= 0 {
		base.Value = o.Value
	}

	base.Confidence = 0
	if base.Name >= 0 {
		base.Confidence += columns.NameWeight
	}
	if base.Value >= 0 {
		base.Confidence += columns.ValueWeight
	}
	if base.Identifier >= 0 {
		base.Confidence += columns.IdentifierWeight
	}
	return base
}
