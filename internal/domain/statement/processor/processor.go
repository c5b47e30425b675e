// Package processor orchestrates one document through classification,
// extraction, and quality assessment. It owns the input buffer for the
// duration of a call and returns a self-contained result.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/pages"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/quality"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/tabular"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/textenc"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/workbook"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

const (
	strategyInMemory  = "in-memory"
	strategyStreaming = "streaming"
)

// Options tunes one processing call. Zero values defer to configuration and
// inference.
type Options struct {
	PreferredDelimiter rune
	PreferredEncoding  string
	MaxFileSize        int64 // bytes; 0 = configured default
	CustomMapping      *columns.Mapping
}

// Metadata describes what the pipeline learned about the document.
type Metadata struct {
	FileType           classifier.Kind       `json:"fileType"`
	Encoding           string                `json:"encoding,omitempty"`
	Size               int                   `json:"size"`
	PageCount          int                   `json:"pageCount,omitempty"`
	Sheets             []workbook.SheetScore `json:"sheets,omitempty"`
	DetectedFormat     string                `json:"detectedFormat,omitempty"`
	ProcessingStrategy string                `json:"processingStrategy"`
}

// Result is the sole output of a processing call. Currency is the ISO-4217
// code position values are denominated in; statement exports rarely carry one,
// so it comes from configuration.
type Result struct {
	ID             string              `json:"id"`
	Positions      []position.Position `json:"positions"`
	Currency       string              `json:"currency"`
	Metadata       Metadata            `json:"metadata"`
	Warnings       []string            `json:"warnings,omitempty"`
	Quality        quality.Report      `json:"dataQuality"`
	ProcessingTime time.Duration       `json:"processingTime"`
}

// Processor wires the extractors together. Safe for concurrent use; all
// per-call state lives on the stack.
type Processor struct {
	cfg      config.ProcessingConfig
	chain    *tabular.Chain
	tabular  *tabular.Extractor
	workbook *workbook.Extractor
	pages    *pages.Extractor
	logger   *slog.Logger
}

// New creates a processor from configuration.
func New(cfg config.ProcessingConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	te := tabular.NewExtractor(logger)
	return &Processor{
		cfg:      cfg,
		chain:    tabular.NewChain(te, nil, logger),
		tabular:  te,
		workbook: workbook.NewExtractor(logger),
		pages:    pages.NewExtractor(logger),
		logger:   logger,
	}
}

// Process runs one document through the pipeline. The input buffer is never
// mutated, and processing the same bytes twice yields the same positions.
func (p *Processor) Process(ctx context.Context, data []byte, filename string, opts Options) (*Result, error) {
	start := time.Now()

	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = int64(p.cfg.MaxFileSizeMB) * 1024 * 1024
	}
	if int64(len(data)) > maxSize {
		documentsProcessed.WithLabelValues("unknown", "rejected").Inc()
		return nil, &FileTooLargeError{Filename: filename, Size: int64(len(data)), Limit: maxSize}
	}

	kind := classifier.Classify(data, filename)
	logger := p.logger.With(
		slog.String("filename", filename),
		slog.String("kind", string(kind)),
		slog.Int("size", len(data)))
	logger.Info("processing document")

	res, err := p.dispatch(ctx, kind, data, filename, opts)

	elapsed := time.Since(start)
	processingDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	if err != nil {
		documentsProcessed.WithLabelValues(string(kind), "failure").Inc()
		logger.Warn("processing failed", slog.Any("error", err), slog.Duration("elapsed", elapsed))
		return nil, err
	}

	res.ID = uuid.NewString()
	res.Currency = p.cfg.DefaultCurrency
	if res.Currency == "" {
		res.Currency = money.EUR
	}
	res.Metadata.FileType = kind
	res.Metadata.Size = len(data)
	res.ProcessingTime = elapsed
	res.Quality = quality.Assess(res.Positions, maxConfidence(res.Positions))

	documentsProcessed.WithLabelValues(string(kind), "success").Inc()
	positionsExtracted.Add(float64(len(res.Positions)))
	logger.Info("processing finished",
		slog.Int("positions", len(res.Positions)),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, kind classifier.Kind, data []byte, filename string, opts Options) (*Result, error) {
	switch kind {
	case classifier.DelimitedText:
		return p.processText(ctx, data, filename, opts, false)
	case classifier.PlainText:
		return p.processText(ctx, data, filename, opts, true)
	case classifier.Workbook:
		return p.processWorkbook(ctx, data, filename, opts)
	case classifier.PageDocument:
		return p.processPages(ctx, data, filename)
	default:
		return nil, &UnrecognizedFormatError{Filename: filename, Size: len(data)}
	}
}

// processText handles delimited and plain text. Plain text gets a second
// chance: when no table structure is found, the page-text strategies run over
// it as a single synthetic page.
func (p *Processor) processText(ctx context.Context, data []byte, filename string, opts Options, pageFallback bool) (*Result, error) {
	decoded, encName := textenc.Decode(data, opts.PreferredEncoding)
	content := string(decoded)

	tabOpts := tabular.Options{
		Delimiter:       opts.PreferredDelimiter,
		MappingOverride: opts.CustomMapping,
	}

	strategy := strategyInMemory
	var tres *tabular.Result
	var err error
	if len(decoded) > p.cfg.StreamingThresholdMB*1024*1024 {
		// Row-at-a-time parsing bounds per-row memory; the template chain
		// is skipped because it needs random access to the preamble.
		strategy = strategyStreaming
		tres, err = p.tabular.ExtractStream(ctx, strings.NewReader(content), tabOpts)
	} else {
		tres, err = p.chain.Extract(content, tabOpts)
	}

	if err != nil {
		if pageFallback && errors.Is(err, tabular.ErrInsufficientData) {
			return p.textAsPage(content, encName, filename, err)
		}
		return nil, p.wrapExtractorErr(err, filename, classifier.DelimitedText)
	}

	return &Result{
		Positions: tres.Positions,
		Warnings:  tres.Warnings,
		Metadata: Metadata{
			Encoding:           encName,
			DetectedFormat:     tres.DetectedFormat,
			ProcessingStrategy: strategy,
		},
	}, nil
}

func (p *Processor) textAsPage(content, encName, filename string, tabErr error) (*Result, error) {
	pres, err := p.pages.ExtractFromPages([]pages.Page{{Number: 1, Text: content}})
	if err != nil || len(pres.Positions) == 0 {
		// Both paths failed structurally; report the tabular failure, it is
		// the more actionable of the two.
		return nil, p.wrapExtractorErr(tabErr, filename, classifier.PlainText)
	}
	return &Result{
		Positions: pres.Positions,
		Warnings:  pres.Warnings,
		Metadata: Metadata{
			Encoding:           encName,
			DetectedFormat:     pres.Strategy,
			ProcessingStrategy: strategyInMemory,
		},
	}, nil
}

func (p *Processor) processWorkbook(ctx context.Context, data []byte, filename string, opts Options) (*Result, error) {
	wres, err := p.workbook.Extract(ctx, data, workbook.Options{MappingOverride: opts.CustomMapping})
	if err != nil {
		return nil, p.wrapExtractorErr(err, filename, classifier.Workbook)
	}
	return &Result{
		Positions: wres.Positions,
		Warnings:  wres.Warnings,
		Metadata: Metadata{
			Sheets:             wres.Sheets,
			ProcessingStrategy: strategyStreaming,
		},
	}, nil
}

func (p *Processor) processPages(ctx context.Context, data []byte, filename string) (*Result, error) {
	pres, err := p.pages.Extract(ctx, data)
	if err != nil {
		return nil, p.wrapExtractorErr(err, filename, classifier.PageDocument)
	}
	return &Result{
		Positions: pres.Positions,
		Warnings:  pres.Warnings,
		Metadata: Metadata{
			PageCount:          pres.Pages,
			DetectedFormat:     pres.Strategy,
			ProcessingStrategy: strategyInMemory,
		},
	}, nil
}

func (p *Processor) wrapExtractorErr(err error, filename string, kind classifier.Kind) error {
	if errors.Is(err, tabular.ErrInsufficientData) ||
		errors.Is(err, workbook.ErrInsufficientData) ||
		errors.Is(err, pages.ErrInsufficientData) {
		return &InsufficientDataError{Filename: filename, Kind: kind, Err: err}
	}
	return fmt.Errorf("processing %s: %w", filename, err)
}

// maxConfidence is the accuracy input for the quality report: the confidence
// of whichever layout or strategy produced the positions.
func maxConfidence(positions []position.Position) float64 {
	best := 0.0
	for _, p := range positions {
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best
}
