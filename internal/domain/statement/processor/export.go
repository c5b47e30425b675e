package processor

import (
	"io"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
)

type positionRow struct {
	Name       string  `csv:"name"`
	Identifier string  `csv:"identifier"`
	Value      float64 `csv:"value"`
	Currency   string  `csv:"currency"`
	Display    string  `csv:"display"`
	Confidence float64 `csv:"confidence"`
	Source     string  `csv:"source"`
}

// WritePositionsCSV renders extracted positions as a flat CSV, the format
// most downstream portfolio tools re-import. Currency is the result's
// ISO-4217 code; the display column carries the currency-formatted value.
func WritePositionsCSV(w io.Writer, positions []position.Position, currency string) error {
	rows := make([]positionRow, 0, len(positions))
	for _, p := range positions {
		m := p.Money(currency)
		row := positionRow{
			Name:       p.Name,
			Identifier: p.Identifier,
			Value:      p.Value,
			Currency:   m.Currency(),
			Display:    m.Display(),
			Confidence: p.Confidence,
		}
		if p.Source != nil {
			row.Source = p.Source.String()
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(&rows, w)
}
