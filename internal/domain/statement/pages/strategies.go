package pages

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/amount"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

// Strategy extracts candidate positions from page text. Strategies are
// independent and never see each other's output; the arbiter keeps the best
// yield.
type Strategy interface {
	Name() string
	Confidence() float64
	Extract(pages []Page) []position.Position
}

// Fixed per-strategy confidence, attached to every position the strategy
// emits. Precision ordering: the stricter the pattern, the higher the score.
const (
	structuredConfidence = 0.9
	tableConfidence      = 0.8
	proximityConfidence  = 0.6
)

// amountPattern matches locale-formatted monetary values: grouped thousands
// or a decimal part is required, so share counts and years do not qualify.
const amountPattern = `-?(?:\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+[.,]\d{1,2})`

var (
	identifierTokenRe = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{10}\b`)
	amountTokenRe     = regexp.MustCompile(amountPattern)

	// Aggregate rows repeat position values and must not become positions
	// themselves.
	totalMarkerRe = regexp.MustCompile(`(?i)^\s*(summe|gesamt|gesamtwert|zwischensumme|total|saldo|endbestand|depotwert)\b`)
)

// candidate is a raw strategy hit before number-format resolution. Values are
// parsed in a second pass so the format can be inferred from all hits at once.
type candidate struct {
	name string
	id   string
	raw  string
	line int
}

func finalize(cands []candidate, confidence float64, strategy string) []position.Position {
	raws := make([]string, len(cands))
	for i, c := range cands {
		raws[i] = c.raw
	}
	dec, thou := amount.InferFormat(raws)

	var out []position.Position
	for _, c := range cands {
		value, err := amount.Parse(c.raw, dec, thou)
		if err != nil || value <= 0 {
			continue
		}
		name := strings.TrimSpace(c.name)
		if name == "" {
			continue
		}
		pos := position.Position{
			Name:       name,
			Value:      value,
			Confidence: confidence,
			Source:     &position.Provenance{Line: c.line, Strategy: strategy},
		}
		if position.ValidIdentifier(c.id) {
			pos.Identifier = c.id
		}
		out = append(out, pos)
	}
	return out
}

// structuredStrategy matches whole lines laid out as name / identifier /
// value, the shape printed by most broker statements.
type structuredStrategy struct{}

var structuredLineRes = []*regexp.Regexp{
	// Name  DE0007164600  12.345,67 EUR
	regexp.MustCompile(`^(\S.*?)\s{2,}([A-Z]{2}[A-Z0-9]{10})\s+(` + amountPattern + `)\s*(?:EUR|USD|CHF|GBP|€|\$)?\s*$`),
	// Name (DE0007164600) 12.345,67
	regexp.MustCompile(`^(\S.*?)\s*\(([A-Z]{2}[A-Z0-9]{10})\)\s+(` + amountPattern + `)\s*(?:EUR|USD|CHF|GBP|€|\$)?\s*$`),
	// Tab-separated export pasted into a text layer
	regexp.MustCompile(`^([^\t]+)\t+([A-Z]{2}[A-Z0-9]{10})\t+(` + amountPattern + `)\s*(?:EUR|USD|CHF|GBP|€|\$)?\s*$`),
}

func (structuredStrategy) Name() string        { return "structured" }
func (structuredStrategy) Confidence() float64 { return structuredConfidence }

func (structuredStrategy) Extract(pages []Page) []position.Position {
	var cands []candidate
	line := 0
	for _, page := range pages {
		for _, text := range strings.Split(page.Text, "\n") {
			line++
			if totalMarkerRe.MatchString(text) {
				continue
			}
			for _, re := range structuredLineRes {
				m := re.FindStringSubmatch(text)
				if m == nil {
					continue
				}
				cands = append(cands, candidate{name: m[1], id: m[2], raw: m[3], line: line})
				break
			}
		}
	}
	return finalize(cands, structuredConfidence, "structured")
}

// tableStrategy handles looser column layouts: any line splitting into 3+
// columns where the rightmost numeric column is the value. The identifier is
// optional, which is why this ranks below structured.
type tableStrategy struct{}

var (
	columnSplitRe = regexp.MustCompile(`\t+|\s{2,}`)
	// amountColumnRe accepts a column that is nothing but a monetary value,
	// optionally suffixed with a currency marker.
	amountColumnRe = regexp.MustCompile(`^` + amountPattern + `\s*(?:EUR|USD|CHF|GBP|€|\$)?$`)
)

func (tableStrategy) Name() string        { return "table" }
func (tableStrategy) Confidence() float64 { return tableConfidence }

func (tableStrategy) Extract(pages []Page) []position.Position {
	var cands []candidate
	line := 0
	for _, page := range pages {
		for _, text := range strings.Split(page.Text, "\n") {
			line++
			if totalMarkerRe.MatchString(text) {
				continue
			}

			cols := columnSplitRe.Split(strings.TrimSpace(text), -1)
			if len(cols) < 3 {
				continue
			}

			value := ""
			for i := len(cols) - 1; i >= 1; i-- {
				if c := strings.TrimSpace(cols[i]); amountColumnRe.MatchString(c) {
					value = amountTokenRe.FindString(c)
					break
				}
			}
			if value == "" {
				continue
			}

			name := strings.TrimSpace(cols[0])
			if name == "" || !containsLetter(name) {
				continue
			}

			id := identifierTokenRe.FindString(text)
			cands = append(cands, candidate{name: name, id: id, raw: value, line: line})
		}
	}
	return finalize(cands, tableConfidence, "table")
}

// proximityStrategy is the last resort: anchor on identifier-shaped tokens
// and take the largest monetary value in the surrounding lines. Low
// confidence because the association is spatial, not structural.
type proximityStrategy struct{}

const proximityWindow = 2

func (proximityStrategy) Name() string        { return "proximity" }
func (proximityStrategy) Confidence() float64 { return proximityConfidence }

func (proximityStrategy) Extract(pages []Page) []position.Position {
	var lines []string
	for _, page := range pages {
		lines = append(lines, strings.Split(page.Text, "\n")...)
	}

	seen := make(map[string]bool)
	var cands []candidate

	for i, text := range lines {
		loc := identifierTokenRe.FindStringIndex(text)
		if loc == nil {
			continue
		}
		id := text[loc[0]:loc[1]]
		if seen[id] {
			continue
		}

		raw := largestAmountNearby(lines, i)
		if raw == "" {
			continue
		}

		name := strings.TrimSuffix(strings.TrimSpace(text[:loc[0]]), ":")
		if isIdentifierLabel(name) {
			name = ""
		}
		if !plausibleName(name) || !containsLetter(name) {
			name = ""
			for j := i - 1; j >= 0 && j >= i-proximityWindow; j-- {
				prev := strings.TrimSpace(lines[j])
				if plausibleName(prev) && containsLetter(prev) && !identifierTokenRe.MatchString(prev) {
					name = prev
					break
				}
			}
		}
		if name == "" {
			continue
		}

		seen[id] = true
		cands = append(cands, candidate{name: name, id: id, raw: raw, line: i + 1})
	}
	return finalize(cands, proximityConfidence, "proximity")
}

// largestAmountNearby scans the window around the anchor line and returns the
// raw token with the largest magnitude. Market value is reliably the biggest
// number near a holding; prices and counts are smaller.
func largestAmountNearby(lines []string, anchor int) string {
	best := ""
	bestVal := 0.0
	for i := anchor - proximityWindow; i <= anchor+proximityWindow; i++ {
		if i < 0 || i >= len(lines) || totalMarkerRe.MatchString(lines[i]) {
			continue
		}
		for _, tok := range amountTokenRe.FindAllString(lines[i], -1) {
			v, err := amount.Parse(tok, 0, 0)
			if err != nil || v <= 0 {
				continue
			}
			if v > bestVal {
				best, bestVal = tok, v
			}
		}
	}
	return best
}

// plausibleName bounds a spatially-associated name at 5 to 100 characters:
// shorter is a label or stray token, longer is prose.
func plausibleName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 5 && n <= 100
}

// isIdentifierLabel filters field labels that precede the identifier on the
// same line and would otherwise masquerade as a position name.
func isIdentifierLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "isin", "wkn", "isin/wkn", "wkn/isin", "kennnummer", "identifier":
		return true
	}
	return false
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127 {
			return true
		}
	}
	return false
}
