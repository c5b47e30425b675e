// Package position defines the normalized output records shared by every
// extraction path. A Position is created by exactly one extractor per
// document and never mutated afterwards.
package position

import (
	"fmt"
	"regexp"

	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// identifierRe is the canonical ISIN shape: 2 letters + 10 alphanumerics.
var identifierRe = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{10}$`)

// Position is one line-item holding of a named financial instrument with a
// monetary value and an optional standardized identifier.
type Position struct {
	Name       string      `json:"name"`
	Identifier string      `json:"identifier,omitempty"` // validated ISIN shape, never merely captured
	Value      float64     `json:"value"`                // always > 0 for accepted positions
	Confidence float64     `json:"confidence,omitempty"` // [0,1]
	Source     *Provenance `json:"source,omitempty"`
}

// Provenance records where a position came from, for debugging.
type Provenance struct {
	Line     int    `json:"line,omitempty"` // 1-based source line or row
	Sheet    string `json:"sheet,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// String renders the provenance in compact form, e.g. "Portfolio!4" or
// "line 2 (structured)".
func (p *Provenance) String() string {
	if p == nil {
		return ""
	}
	switch {
	case p.Sheet != "":
		return fmt.Sprintf("%s!%d", p.Sheet, p.Line)
	case p.Strategy != "":
		return fmt.Sprintf("line %d (%s)", p.Line, p.Strategy)
	default:
		return fmt.Sprintf("line %d", p.Line)
	}
}

// ValidIdentifier reports whether s matches the canonical identifier shape.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// FindIdentifier returns the first identifier-shaped token in s, or "".
func FindIdentifier(s string) string {
	return looseIdentifierRe.FindString(s)
}

var looseIdentifierRe = regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{10}\b`)

// Money returns the position value as currency-safe money. Statement exports
// rarely carry an explicit currency column, so the caller supplies the code
// (EUR for the primary user base).
func (p Position) Money(currencyCode string) *money.Money {
	return money.NewFromFloat(p.Value, currencyCode)
}
