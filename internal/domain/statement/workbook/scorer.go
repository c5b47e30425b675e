// Package workbook extracts positions from spreadsheet files. Sheets are
// scored by name and sampled content; only plausible ones are processed, and
// a failing sheet never takes down its siblings.
package workbook

import (
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// ScoreCutoff is the minimum relevance score a sheet needs to be processed.
const ScoreCutoff = 0.3

// sampleRows is how many leading rows are buffered per sheet for scoring and
// header detection.
const sampleRows = 15

// SheetScore records the relevance verdict for one sheet, kept in the result
// for the quality report.
type SheetScore struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Processed bool    `json:"processed"`
}

var positiveNameHints = []string{
	"depot", "portfolio", "position", "bestand", "holding",
	"wertpapier", "anlagen", "assets",
}

var negativeNameHints = []string{
	"chart", "diagramm", "grafik", "hinweis", "legende", "info", "notes",
}

// financialTerms is the header vocabulary shared with the column mapper, used
// here as a content signal.
var financialTerms = func() []string {
	cfg := columns.DefaultConfig()
	terms := make([]string, 0, len(cfg.NamePatterns)+len(cfg.IdentifierPatterns)+len(cfg.ValuePatterns))
	terms = append(terms, cfg.NamePatterns...)
	terms = append(terms, cfg.IdentifierPatterns...)
	terms = append(terms, cfg.ValuePatterns...)
	return terms
}()

// scoreSheet combines the name signal with a content sample. The sample
// rewards data-shaped rows, financial header terms, and identifier-shaped
// cells, so a position table rescues a penalized sheet name while decorative
// numbers do not.
func scoreSheet(name string, sample [][]string) float64 {
	score := 0.3

	lower := strings.ToLower(name)
	for _, hint := range positiveNameHints {
		if strings.Contains(lower, hint) {
			score += 0.3
			break
		}
	}
	for _, hint := range negativeNameHints {
		if strings.Contains(lower, hint) {
			score -= 0.3
			break
		}
	}

	dataBonus := 0.0
	idBonus := 0.0
	hasTerms := false
	for _, row := range sample {
		filled := 0
		numeric := false
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			filled++
			if looksNumeric(cell) {
				numeric = true
			}
			if position.ValidIdentifier(strings.ToUpper(cell)) {
				idBonus += 0.05
			}
			if !hasTerms && containsFinancialTerm(cell) {
				hasTerms = true
			}
		}
		if filled >= 2 && numeric {
			dataBonus += 0.05
		}
	}
	if dataBonus > 0.2 {
		dataBonus = 0.2
	}
	if idBonus > 0.15 {
		idBonus = 0.15
	}
	score += dataBonus + idBonus
	if hasTerms {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func containsFinancialTerm(cell string) bool {
	l := strings.ToLower(cell)
	for _, term := range financialTerms {
		if strings.Contains(l, term) {
			return true
		}
	}
	return false
}

// looksNumeric is a cheap shape check, not a parse: digits with optional
// sign, separators, and currency noise.
func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',' || r == '-' || r == '+' || r == ' ' || r == '\u00a0' || r == '€' || r == '$':
		default:
			return false
		}
	}
	return digits > 0
}
