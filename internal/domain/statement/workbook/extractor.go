package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/amount"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// ErrInsufficientData marks workbooks where no sheet scored above the
// relevance cutoff.
var ErrInsufficientData = errors.New("insufficient data")

// Result is the outcome of one workbook extraction, aggregated over all
// processed sheets.
type Result struct {
	Positions []position.Position
	Sheets    []SheetScore
	Warnings  []string
}

// Options tunes a single extraction run.
type Options struct {
	MappingOverride *columns.Mapping
}

// Extractor reads spreadsheet files sheet by sheet.
type Extractor struct {
	mapper *columns.Mapper
	logger *slog.Logger
}

// NewExtractor creates an extractor with the default column keyword tables.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		mapper: columns.NewMapper(columns.DefaultConfig()),
		logger: logger,
	}
}

// scoredSheet is a surviving sheet with its buffered sample, queued for the
// extraction phase.
type scoredSheet struct {
	name   string
	score  float64
	sample [][]string
}

// Extract scores every sheet first, then extracts the ones above the cutoff
// in descending score order, so the most relevant sheet's positions lead the
// result. Rows are streamed through the file's row iterator, so only the
// per-sheet sample is ever buffered. A sheet that panics or errors is
// recorded as a warning and skipped.
func (e *Extractor) Extract(ctx context.Context, data []byte, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("closing workbook", slog.Any("error", cerr))
		}
	}()

	res := &Result{}
	var survivors []scoredSheet
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sample, ok := e.sampleSheet(f, sheet, res)
		if !ok {
			continue
		}
		score := scoreSheet(sheet, sample)
		if score < ScoreCutoff {
			res.Sheets = append(res.Sheets, SheetScore{Name: sheet, Score: score})
			continue
		}
		res.Sheets = append(res.Sheets, SheetScore{Name: sheet, Score: score, Processed: true})
		survivors = append(survivors, scoredSheet{name: sheet, score: score, sample: sample})
	}

	// Ties keep workbook order.
	sort.SliceStable(survivors, func(i, j int) bool { return survivors[i].score > survivors[j].score })

	for _, s := range survivors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		e.extractSheet(f, s, opts, res)
	}

	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: no sheet scored above the relevance cutoff", ErrInsufficientData)
	}
	// Processed sheets that yielded nothing have already left per-sheet
	// warnings; an empty result is for the caller to judge.
	return res, nil
}

// sampleSheet buffers the leading rows for scoring and header detection. A
// sheet that cannot be read is recorded with a zero score and skipped.
func (e *Extractor) sampleSheet(f *excelize.File, sheet string, res *Result) (sample [][]string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sample, ok = nil, false
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: sampling panicked: %v", sheet, r))
			res.Sheets = append(res.Sheets, SheetScore{Name: sheet})
			e.logger.Error("sheet sampling panicked", slog.String("sheet", sheet), slog.Any("panic", r))
		}
	}()

	rows, err := f.Rows(sheet)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
		res.Sheets = append(res.Sheets, SheetScore{Name: sheet})
		return nil, false
	}
	defer rows.Close()

	for len(sample) < sampleRows && rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
			res.Sheets = append(res.Sheets, SheetScore{Name: sheet})
			return nil, false
		}
		sample = append(sample, cols)
	}
	return sample, true
}

// extractSheet never lets one sheet abort the workbook. Panics from malformed
// sheet data are converted into sheet-level warnings.
func (e *Extractor) extractSheet(f *excelize.File, s scoredSheet, opts Options, res *Result) {
	sheet := s.name
	defer func() {
		if r := recover(); r != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: extraction panicked: %v", sheet, r))
			e.logger.Error("sheet extraction panicked", slog.String("sheet", sheet), slog.Any("panic", r))
		}
	}()

	headerIdx, mapping := e.findHeader(s.sample)
	mapping = applyOverride(mapping, opts.MappingOverride)
	if headerIdx < 0 || !mapping.Usable() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: no usable header row in first %d rows", sheet, sampleRows))
		return
	}

	dec, thou := inferFormat(s.sample[headerIdx+1:], mapping.Value)

	before := len(res.Positions)
	rowNum := 0
	for _, row := range s.sample {
		rowNum++
		if rowNum <= headerIdx+1 {
			continue
		}
		e.parseRow(row, sheet, rowNum, mapping, dec, thou, res)
	}

	// A full sample means the sheet may have more rows than were buffered;
	// reopen the iterator and continue past them.
	if len(s.sample) == sampleRows {
		rows, err := f.Rows(sheet)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
			return
		}
		defer rows.Close()

		skipped := 0
		for skipped < len(s.sample) && rows.Next() {
			skipped++
		}
		for rows.Next() {
			rowNum++
			cols, err := rows.Columns()
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q row %d: %v", sheet, rowNum, err))
				continue
			}
			e.parseRow(cols, sheet, rowNum, mapping, dec, thou, res)
		}
		if err := rows.Error(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: %v", sheet, err))
		}
	}

	if len(res.Positions) == before {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q: no parseable position rows", sheet))
	}
}

// findHeader scans the sample for the row whose cells best resolve the column
// roles. Rows that are mostly numeric are data, not headers, and are skipped.
func (e *Extractor) findHeader(sample [][]string) (int, columns.Mapping) {
	bestIdx := -1
	best := columns.Mapping{Name: -1, Identifier: -1, Value: -1}

	for i, row := range sample {
		if len(row) < 2 || mostlyNumeric(row) {
			continue
		}
		m := e.mapper.Map(row)
		if m.Confidence > best.Confidence {
			bestIdx, best = i, m
		}
	}
	return bestIdx, best
}

func mostlyNumeric(row []string) bool {
	filled, numeric := 0, 0
	for _, cell := range row {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		filled++
		if looksNumeric(cell) {
			numeric++
		}
	}
	return filled > 0 && numeric*2 > filled
}

func (e *Extractor) parseRow(row []string, sheet string, rowNum int, mapping columns.Mapping, dec, thou rune, res *Result) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	name := cell(mapping.Name)
	if name == "" {
		return // trailing blank or spacer row, not worth a warning
	}

	rawValue := cell(mapping.Value)
	if rawValue == "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q row %d: missing value, row skipped", sheet, rowNum))
		return
	}
	value, err := amount.Parse(rawValue, dec, thou)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q row %d: %v, row skipped", sheet, rowNum, err))
		return
	}
	if value <= 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q row %d: non-positive value %s, row skipped", sheet, rowNum, rawValue))
		return
	}

	pos := position.Position{
		Name:       name,
		Value:      value,
		Confidence: mapping.Confidence,
		Source:     &position.Provenance{Sheet: sheet, Line: rowNum},
	}
	if id := strings.ToUpper(cell(mapping.Identifier)); id != "" {
		if position.ValidIdentifier(id) {
			pos.Identifier = id
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q row %d: identifier %q has no valid shape, dropped", sheet, rowNum, id))
		}
	}

	res.Positions = append(res.Positions, pos)
}

func inferFormat(rows [][]string, valueCol int) (rune, rune) {
	if valueCol < 0 {
		return amount.InferFormat(nil)
	}
	var samples []string
	for _, row := range rows {
		if valueCol < len(row) {
			samples = append(samples, row[valueCol])
		}
	}
	return amount.InferFormat(samples)
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
