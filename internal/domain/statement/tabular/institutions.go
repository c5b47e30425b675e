package tabular

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
)

const (
	// headerScanLines bounds the search for a header row. Bank exports put
	// metadata blocks above the table, never below it.
	headerScanLines = 20
	// minHeaderScore is the acceptance threshold for the generic scorer:
	// one keyword hit plus a repeated delimiter, or two keyword hits.
	minHeaderScore = 3
)

// Template describes one institution's export format. Templates differ only
// in configuration; the extraction algorithm is shared.
type Template struct {
	Name           string
	HeaderKeywords []string // lowercase; all must appear on one line
	Delimiter      rune     // 0 = infer
	MaxScanLines   int      // 0 = headerScanLines
}

// DefaultTemplates returns the built-in German broker formats, tried in
// order. Earlier templates win when keyword sets overlap.
func DefaultTemplates() []Template {
	return []Template{
		{Name: "comdirect", HeaderKeywords: []string{"bezeichnung", "wkn", "wert in eur"}, Delimiter: ';'},
		{Name: "ing", HeaderKeywords: []string{"wertpapiername", "isin", "kurswert"}, Delimiter: ';'},
		{Name: "dkb", HeaderKeywords: []string{"bezeichnung", "isin", "kurswert"}, Delimiter: ';'},
		{Name: "consorsbank", HeaderKeywords: []string{"bezeichnung", "isin", "wert"}, Delimiter: ';'},
	}
}

// findHeader returns the index of the first line carrying every keyword, or
// -1 when the document does not match this template.
func (t Template) findHeader(lines []string) int {
	limit := t.MaxScanLines
	if limit == 0 {
		limit = headerScanLines
	}
	for i, line := range lines {
		if i >= limit {
			break
		}
		l := strings.ToLower(line)
		matched := true
		for _, kw := range t.HeaderKeywords {
			if !strings.Contains(l, kw) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// Chain tries institution templates in order and falls back to a scored
// generic header search. A template failure is recoverable: the chain moves
// on to the next candidate.
type Chain struct {
	templates []Template
	extractor *Extractor
	scorer    *headerScorer
	logger    *slog.Logger
}

// NewChain creates a chain over the given templates. Nil templates means
// DefaultTemplates.
func NewChain(extractor *Extractor, templates []Template, logger *slog.Logger) *Chain {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		templates: templates,
		extractor: extractor,
		scorer:    newHeaderScorer(columns.DefaultConfig()),
		logger:    logger,
	}
}

// Extract runs the template chain over the document.
func (c *Chain) Extract(content string, opts Options) (*Result, error) {
	lines := strings.Split(content, "\n")

	for _, t := range c.templates {
		idx := t.findHeader(lines)
		if idx < 0 {
			continue
		}
		templateOpts := opts
		if templateOpts.Delimiter == 0 {
			templateOpts.Delimiter = t.Delimiter
		}
		res, err := c.extractor.ExtractAt(lines, idx, templateOpts)
		if err != nil {
			c.logger.Warn("institution template did not apply",
				slog.String("template", t.Name),
				slog.Any("error", err))
			continue
		}
		res.DetectedFormat = t.Name
		return res, nil
	}

	idx, score := c.scorer.bestHeader(lines)
	if idx < 0 || score < minHeaderScore {
		return nil, fmt.Errorf("%w: no header row found above minimum score in first %d lines",
			ErrInsufficientData, headerScanLines)
	}
	res, err := c.extractor.ExtractAt(lines, idx, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// headerScorer finds header-like lines with a multi-pattern keyword matcher.
// All role keywords are compiled into one automaton so each candidate line is
// scanned once regardless of vocabulary size.
type headerScorer struct {
	matcher *ahocorasick.Matcher
}

func newHeaderScorer(cfg columns.Config) *headerScorer {
	var keywords []string
	keywords = append(keywords, cfg.NamePatterns...)
	keywords = append(keywords, cfg.IdentifierPatterns...)
	keywords = append(keywords, cfg.ValuePatterns...)

	patterns := make([][]byte, len(keywords))
	for i, kw := range keywords {
		patterns[i] = []byte(kw)
	}
	return &headerScorer{matcher: ahocorasick.NewMatcher(patterns)}
}

// bestHeader scores each candidate line - 2 per distinct keyword hit, 1 for a
// repeated delimiter - and returns the best index with its score, or (-1, 0).
func (h *headerScorer) bestHeader(lines []string) (int, int) {
	bestIdx, bestScore := -1, 0
	for i, line := range lines {
		if i >= headerScanLines {
			break
		}
		l := strings.ToLower(strings.TrimSpace(line))
		if l == "" {
			continue
		}

		score := 2 * len(h.matcher.Match([]byte(l)))
		for _, d := range classifier.Delimiters {
			if strings.Count(l, string(d)) >= 2 {
				score++
				break
			}
		}

		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestScore
}
