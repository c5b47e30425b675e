package tabular

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
)

const germanDepot = `Bezeichnung;ISIN;Kurswert
SAP SE;DE0007164600;12.345,67
Siemens AG;DE0007236101;8.901,23
`

func newTestExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError})))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		line string
		want rune
	}{
		{"semicolon", "Bezeichnung;ISIN;Kurswert", ';'},
		{"comma", "Name,ISIN,Value", ','},
		{"tab", "Name\tISIN\tValue", '\t'},
		{"pipe", "Name|ISIN|Value", '|'},
		{"tie resolves to semicolon", "a;b,c;d,", ';'},
		{"no delimiter defaults to semicolon", "just one column", ';'},
		{"comma wins on count", "a;b,c,d,e", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.line))
		})
	}
}

func TestDetectLayout(t *testing.T) {
	d := NewDetector(columns.NewMapper(columns.DefaultConfig()))

	t.Run("german semicolon export", func(t *testing.T) {
		layout, err := d.DetectLayout(strings.Split(germanDepot, "\n"), 0)
		require.NoError(t, err)

		assert.Equal(t, ';', int32(layout.Delimiter))
		assert.Equal(t, ',', int32(layout.DecimalSep))
		assert.Equal(t, 0, layout.Mapping.Name)
		assert.Equal(t, 1, layout.Mapping.Identifier)
		assert.Equal(t, 2, layout.Mapping.Value)
		assert.InDelta(t, 1.0, layout.Mapping.Confidence, 1e-9)
	})

	t.Run("english comma export", func(t *testing.T) {
		content := "Name,Symbol,Market Value\nApple Inc.,US0378331005,\"1,234.56\"\nMicrosoft Corp.,US5949181045,987.65\n"
		layout, err := d.DetectLayout(strings.Split(content, "\n"), 0)
		require.NoError(t, err)

		assert.Equal(t, ',', int32(layout.Delimiter))
		assert.Equal(t, '.', int32(layout.DecimalSep))
	})

	t.Run("single line is insufficient", func(t *testing.T) {
		_, err := d.DetectLayout([]string{"Bezeichnung;ISIN;Kurswert"}, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("header plus one data row is enough", func(t *testing.T) {
		_, err := d.DetectLayout([]string{"Bezeichnung;ISIN;Kurswert", "SAP SE;DE0007164600;1,00"}, 0)
		require.NoError(t, err)
	})

	t.Run("delimiter override", func(t *testing.T) {
		layout, err := d.DetectLayout(strings.Split("Name|Wert\nA|1,00\n", "\n"), '|')
		require.NoError(t, err)
		assert.Equal(t, '|', int32(layout.Delimiter))
	})
}

func TestExtract(t *testing.T) {
	e := newTestExtractor()

	t.Run("german depot export", func(t *testing.T) {
		res, err := e.Extract(germanDepot, Options{})
		require.NoError(t, err)
		require.Len(t, res.Positions, 2)

		assert.Equal(t, "SAP SE", res.Positions[0].Name)
		assert.Equal(t, "DE0007164600", res.Positions[0].Identifier)
		assert.InDelta(t, 12345.67, res.Positions[0].Value, 1e-9)
		assert.Equal(t, 2, res.Positions[0].Source.Line)

		assert.Equal(t, "Siemens AG", res.Positions[1].Name)
		assert.InDelta(t, 8901.23, res.Positions[1].Value, 1e-9)
		assert.Empty(t, res.Warnings)
	})

	t.Run("ragged row warns and survives", func(t *testing.T) {
		content := "Bezeichnung;ISIN;Kurswert\n" +
			"SAP SE;DE0007164600;100,00\n" +
			"broken row without columns\n" +
			"Siemens AG;DE0007236101;200,00\n"
		res, err := e.Extract(content, Options{})
		require.NoError(t, err)

		assert.Len(t, res.Positions, 2)
		require.NotEmpty(t, res.Warnings)
		assert.Contains(t, res.Warnings[0], "line 3")
	})

	t.Run("unparseable value skips row with line number", func(t *testing.T) {
		content := "Bezeichnung;Kurswert\nSAP SE;abc\nSiemens AG;50,00\n"
		res, err := e.Extract(content, Options{})
		require.NoError(t, err)

		assert.Len(t, res.Positions, 1)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "line 2")
		assert.Contains(t, res.Warnings[0], "row skipped")
	})

	t.Run("non-positive values are skipped", func(t *testing.T) {
		content := "Bezeichnung;Kurswert\nCash;0,00\nShort Position;-150,00\nSAP SE;100,00\n"
		res, err := e.Extract(content, Options{})
		require.NoError(t, err)

		require.Len(t, res.Positions, 1)
		assert.Equal(t, "SAP SE", res.Positions[0].Name)
		assert.Len(t, res.Warnings, 2)
	})

	t.Run("invalid identifier is dropped, position kept", func(t *testing.T) {
		content := "Bezeichnung;ISIN;Kurswert\nSAP SE;NOT-AN-ID;100,00\n"
		res, err := e.Extract(content, Options{})
		require.NoError(t, err)

		require.Len(t, res.Positions, 1)
		assert.Empty(t, res.Positions[0].Identifier)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("quoted field keeps embedded delimiter", func(t *testing.T) {
		content := "Name,Value\n\"Berkshire Hathaway Inc., Class B\",\"1,234.56\"\n"
		res, err := e.Extract(content, Options{})
		require.NoError(t, err)

		require.Len(t, res.Positions, 1)
		assert.Equal(t, "Berkshire Hathaway Inc., Class B", res.Positions[0].Name)
		assert.InDelta(t, 1234.56, res.Positions[0].Value, 1e-9)
	})

	t.Run("no usable mapping fails", func(t *testing.T) {
		_, err := e.Extract("Spalte1;Spalte2\nfoo;bar\n", Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("header with no parseable rows yields empty result", func(t *testing.T) {
		res, err := e.Extract("Bezeichnung;Kurswert\n;\n", Options{})
		require.NoError(t, err)

		assert.Empty(t, res.Positions)
		require.NotEmpty(t, res.Warnings)
		assert.Contains(t, res.Warnings[len(res.Warnings)-1], "no parseable position rows")
	})

	t.Run("extra trailing cell warns but keeps the row", func(t *testing.T) {
		res, err := e.Extract("Name,ISIN,Value\nMicrosoft,,2345.67,ExtraCell\n", Options{})
		require.NoError(t, err)

		require.Len(t, res.Positions, 1)
		assert.Equal(t, "Microsoft", res.Positions[0].Name)
		assert.Empty(t, res.Positions[0].Identifier)
		assert.InDelta(t, 2345.67, res.Positions[0].Value, 1e-9)
		require.NotEmpty(t, res.Warnings)
		assert.Contains(t, res.Warnings[0], "inconsistent column count")
	})

	t.Run("mapping override redirects columns", func(t *testing.T) {
		content := "Bezeichnung;Notiz;Kurswert\nSAP SE;wichtig;100,00\n"
		res, err := e.Extract(content, Options{
			MappingOverride: &columns.Mapping{Name: 1, Identifier: -1, Value: -1},
		})
		require.NoError(t, err)

		require.Len(t, res.Positions, 1)
		assert.Equal(t, "wichtig", res.Positions[0].Name)
	})
}

func TestExtractStream(t *testing.T) {
	e := newTestExtractor()

	t.Run("matches in-memory extraction", func(t *testing.T) {
		inMem, err := e.Extract(germanDepot, Options{})
		require.NoError(t, err)

		streamed, err := e.ExtractStream(context.Background(), strings.NewReader(germanDepot), Options{})
		require.NoError(t, err)

		assert.Equal(t, inMem.Positions, streamed.Positions)
	})

	t.Run("rows beyond the layout sample are processed", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("Bezeichnung;Kurswert\n")
		for i := 0; i < 50; i++ {
			sb.WriteString("Position AG;100,00\n")
		}
		res, err := e.ExtractStream(context.Background(), strings.NewReader(sb.String()), Options{})
		require.NoError(t, err)
		assert.Len(t, res.Positions, 50)
		assert.Equal(t, 51, res.Positions[49].Source.Line)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var sb strings.Builder
		sb.WriteString("Bezeichnung;Kurswert\n")
		for i := 0; i < layoutSampleLines+5; i++ {
			sb.WriteString("Position AG;100,00\n")
		}
		_, err := e.ExtractStream(ctx, strings.NewReader(sb.String()), Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func BenchmarkExtract(b *testing.B) {
	e := newTestExtractor()

	var sb strings.Builder
	sb.WriteString("Bezeichnung;ISIN;Kurswert\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("SAP SE;DE0007164600;12.345,67\n")
	}
	content := sb.String()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Extract(content, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
