package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// ErrInsufficientData marks page documents without a machine-readable text
// layer.
var ErrInsufficientData = errors.New("insufficient data")

// Result is the outcome of one page-document extraction.
type Result struct {
	Positions []position.Position
	Strategy  string // winning strategy name
	Pages     int
	Warnings  []string
}

// Extractor runs every strategy over the page text and keeps the best yield.
type Extractor struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewExtractor creates an extractor with the built-in strategies, ordered by
// descending confidence so yield ties resolve toward precision.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		strategies: []Strategy{structuredStrategy{}, tableStrategy{}, proximityStrategy{}},
		logger:     logger,
	}
}

// Extract decodes the document and arbitrates the strategies over its text.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	pages, err := ExtractText(data)
	if err != nil {
		if errors.Is(err, ErrNoText) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
		}
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return e.ExtractFromPages(pages)
}

// ExtractFromPages arbitrates the strategies over already-decoded text. Also
// the entry point for plain-text documents, which behave like a single page.
//
// Arbitration is by yield: the strategy extracting the most positions wins,
// and ties go to the earlier (higher-confidence) strategy. A strategy that
// panics is disqualified with a warning, never the document.
func (e *Extractor) ExtractFromPages(pages []Page) (*Result, error) {
	res := &Result{Pages: len(pages)}

	var best []position.Position
	for _, s := range e.strategies {
		positions := e.runStrategy(s, pages, res)
		e.logger.Debug("strategy finished",
			slog.String("strategy", s.Name()),
			slog.Int("positions", len(positions)))
		if len(positions) > len(best) {
			best = positions
			res.Strategy = s.Name()
		}
	}

	// Zero positions is not an error: the warning plus a near-zero quality
	// report leave the policy decision to the caller.
	if len(best) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no strategy extracted positions from %d page(s)", len(pages)))
		return res, nil
	}
	res.Positions = best
	return res, nil
}

func (e *Extractor) runStrategy(s Strategy, pages []Page, res *Result) (positions []position.Position) {
	defer func() {
		if r := recover(); r != nil {
			positions = nil
			res.Warnings = append(res.Warnings, fmt.Sprintf("strategy %q panicked: %v", s.Name(), r))
			e.logger.Error("strategy panicked", slog.String("strategy", s.Name()), slog.Any("panic", r))
		}
	}()
	return s.Extract(pages)
}
