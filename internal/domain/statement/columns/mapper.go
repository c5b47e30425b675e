// Package columns maps header-like labels to the name/identifier/value roles
// needed to read a position table. Keyword tables are configuration injected
// at construction time, not baked into the matching algorithm.
package columns

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Fixed confidence weights per resolved role. Value dominates because a
// reading is useless without it. Mapping confidence is always the exact sum
// of the weights for whichever roles resolved - never an independent estimate.
const (
	NameWeight       = 0.4
	ValueWeight      = 0.5
	IdentifierWeight = 0.1
)

// Mapping holds the resolved column indices (-1 = unresolved) and the derived
// confidence score.
type Mapping struct {
	Name       int     `json:"name"`
	Identifier int     `json:"identifier"`
	Value      int     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Usable reports whether the mapping resolves the two roles a position cannot
// exist without. An unusable mapping is still returned to the caller.
func (m Mapping) Usable() bool {
	return m.Name >= 0 && m.Value >= 0
}

// Config carries the weighted keyword pattern lists, evaluated in role
// priority order: name, then identifier, then value.
type Config struct {
	NamePatterns       []string
	IdentifierPatterns []string
	ValuePatterns      []string
}

// DefaultConfig returns the German/English keyword tables used by the
// built-in detectors.
func DefaultConfig() Config {
	return Config{
		NamePatterns: []string{
			"bezeichnung", "wertpapiername", "wertpapier", "name", "titel",
			"instrument", "beschreibung", "position", "produkt",
			"security", "description",
		},
		IdentifierPatterns: []string{
			"isin", "wkn", "kennnummer", "identifier", "symbol", "valor",
		},
		ValuePatterns: []string{
			"kurswert", "marktwert", "gesamtwert", "wert", "betrag",
			"market value", "value", "amount", "total", "summe", "saldo",
		},
	}
}

// Mapper scores candidate columns for the three roles.
type Mapper struct {
	cfg Config
}

// NewMapper creates a mapper with the given keyword configuration.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map resolves header labels to roles. The first label (left-to-right)
// matching any pattern in a role's list claims that role; a label claims at
// most one role, with earlier lists taking priority over later ones.
func (m *Mapper) Map(headers []string) Mapping {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	claimed := make(map[int]bool, 3)

	mapping := Mapping{Name: -1, Identifier: -1, Value: -1}

	mapping.Name = m.match(lowered, claimed, m.cfg.NamePatterns)
	if mapping.Name >= 0 {
		claimed[mapping.Name] = true
	}
	mapping.Identifier = m.match(lowered, claimed, m.cfg.IdentifierPatterns)
	if mapping.Identifier >= 0 {
		claimed[mapping.Identifier] = true
	}
	mapping.Value = m.match(lowered, claimed, m.cfg.ValuePatterns)

	if mapping.Name >= 0 {
		mapping.Confidence += NameWeight
	}
	if mapping.Value >= 0 {
		mapping.Confidence += ValueWeight
	}
	if mapping.Identifier >= 0 {
		mapping.Confidence += IdentifierWeight
	}

	return mapping
}

// match returns the first unclaimed label containing any pattern, falling
// back to a bounded fuzzy comparison for labels that drifted from the
// canonical spelling (umlaut transliteration, dropped letters).
func (m *Mapper) match(headers []string, claimed map[int]bool, patterns []string) int {
	for i, h := range headers {
		if claimed[i] || h == "" {
			continue
		}
		for _, p := range patterns {
			if strings.Contains(h, p) {
				return i
			}
		}
	}

	for i, h := range headers {
		if claimed[i] || h == "" {
			continue
		}
		for _, p := range patterns {
			if len(p) < 5 {
				continue // short patterns fuzz into everything
			}
			if rank := fuzzy.RankMatchNormalizedFold(p, h); rank >= 0 && rank <= 2 {
				return i
			}
			if rank := fuzzy.RankMatchNormalizedFold(h, p); rank >= 0 && rank <= 2 {
				return i
			}
		}
	}

	return -1
}
