// Package amount normalizes decimal-formatted numeric strings written in an
// unknown locale convention. Every extractor funnels its raw values through
// Parse, so a bug here silently corrupts every downstream value - the test
// suite covers the full round-trip matrix.
package amount

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError reports a value that could not be normalized to a number.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse amount %q: %s", e.Raw, e.Reason)
}

// currencyTokens are stripped before numeric interpretation. Longer tokens
// first so "R$" wins over "$".
var currencyTokens = []string{"EUR", "USD", "GBP", "CHF", "R$", "€", "$", "£", "¥"}

var (
	loneCommaDecimalRe = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	dotGroupedRe       = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	commaGroupedRe     = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)
)

// Parse converts a raw numeric string to a float. decimalSep and thousandsSep
// carry the convention inferred by the format detector; either may be 0 when
// unknown, in which case Parse falls back to positional heuristics:
//
//   - when both ',' and '.' are present, the one appearing later is the
//     decimal point and the other is removed wholesale
//   - a lone comma matching ^\d+,\d{1,2}$ is treated as a decimal point
//   - ambiguous lone-comma integers are NOT coerced and fail instead
//
// Values wrapped in parentheses are negated. Residual non-numeric content is
// a parse failure, never a zero.
func Parse(raw string, decimalSep, thousandsSep rune) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &ParseError{Raw: raw, Reason: "empty value"}
	}

	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\t' || r == '\'' {
			return -1
		}
		return r
	}, s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "-") { // trailing minus, seen in some exports
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	if s == "" {
		return 0, &ParseError{Raw: raw, Reason: "no digits"}
	}

	s = resolveSeparators(s, decimalSep, thousandsSep)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ParseError{Raw: raw, Reason: "residual non-numeric content"}
	}

	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

// resolveSeparators rewrites s into canonical dot-decimal form where the
// convention can be determined, and leaves it untouched where it cannot.
func resolveSeparators(s string, decimalSep, thousandsSep rune) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the later one is the decimal point.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}

	case lastComma >= 0:
		switch {
		case loneCommaDecimalRe.MatchString(s):
			s = strings.Replace(s, ",", ".", 1)
		case decimalSep == ',':
			s = strings.Replace(s, ",", ".", 1)
		case thousandsSep == ',' && commaGroupedRe.MatchString(s):
			s = strings.ReplaceAll(s, ",", "")
		}
		// Otherwise left as-is; the comma fails numeric conversion below.

	case lastDot >= 0:
		if thousandsSep == '.' && dotGroupedRe.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
		// A lone dot is otherwise already a canonical decimal point.
	}

	return s
}

// Format shape classifiers for sampled value strings.
var (
	germanShapeRe    = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)?$`)
	englishShapeRe   = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	bareCommaShapeRe = regexp.MustCompile(`^-?\d+,\d+$`)
	bareDotShapeRe   = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// InferFormat classifies the dominant number-format convention among sampled
// raw value strings and returns the (decimalSep, thousandsSep) pair. German
// convention is the default when the evidence is inconclusive - a deliberate
// locale bias for the intended user base.
func InferFormat(samples []string) (decimalSep, thousandsSep rune) {
	german := 0
	english := 0

	for _, raw := range samples {
		s := strings.TrimSpace(raw)
		for _, tok := range currencyTokens {
			s = strings.ReplaceAll(s, tok, "")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		switch {
		case germanShapeRe.MatchString(s), bareCommaShapeRe.MatchString(s):
			german++
		case englishShapeRe.MatchString(s), bareDotShapeRe.MatchString(s):
			english++
		}
	}

	if english > german {
		return '.', ','
	}
	return ',', '.'
}
