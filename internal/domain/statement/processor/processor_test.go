package processor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/columns"
	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/position"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
)

const germanDepot = "Bezeichnung;ISIN;Kurswert\n" +
	"SAP SE;DE0007164600;12.345,67\n" +
	"Siemens AG;DE0007236101;8.901,23\n"

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestProcessor() *Processor {
	cfg := config.ProcessingConfig{
		MaxFileSizeMB:        50,
		StreamingThresholdMB: 10,
		DefaultCurrency:      "EUR",
	}
	return New(cfg, slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestProcessDelimitedText(t *testing.T) {
	p := newTestProcessor()
	ctx := context.Background()

	t.Run("german depot end to end", func(t *testing.T) {
		res, err := p.Process(ctx, []byte(germanDepot), "depot.csv", Options{})
		require.NoError(t, err)

		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "EUR", res.Currency)
		assert.Equal(t, classifier.DelimitedText, res.Metadata.FileType)
		assert.Equal(t, "utf-8", res.Metadata.Encoding)
		assert.Equal(t, strategyInMemory, res.Metadata.ProcessingStrategy)
		assert.Equal(t, len(germanDepot), res.Metadata.Size)
		assert.Positive(t, res.ProcessingTime)

		require.Len(t, res.Positions, 2)
		assert.Equal(t, "SAP SE", res.Positions[0].Name)
		assert.Equal(t, "DE0007164600", res.Positions[0].Identifier)
		assert.InDelta(t, 12345.67, res.Positions[0].Value, 1e-9)

		assert.InDelta(t, 1.0, res.Quality.Completeness, 1e-9)
		assert.InDelta(t, 1.0, res.Quality.Accuracy, 1e-9)
		assert.Empty(t, res.Quality.Issues)
	})

	t.Run("processing is idempotent", func(t *testing.T) {
		first, err := p.Process(ctx, []byte(germanDepot), "depot.csv", Options{})
		require.NoError(t, err)
		second, err := p.Process(ctx, []byte(germanDepot), "depot.csv", Options{})
		require.NoError(t, err)

		assert.Equal(t, first.Positions, second.Positions)
		assert.Equal(t, first.Warnings, second.Warnings)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("input buffer is not mutated", func(t *testing.T) {
		data := []byte(germanDepot)
		snapshot := bytes.Clone(data)
		_, err := p.Process(ctx, data, "depot.csv", Options{})
		require.NoError(t, err)
		assert.Equal(t, snapshot, data)
	})

	t.Run("custom mapping overrides inference", func(t *testing.T) {
		content := "Bezeichnung;Notiz;Kurswert\nSAP SE;wichtig;100,00\n"
		res, err := p.Process(ctx, []byte(content), "depot.csv", Options{
			CustomMapping: &columns.Mapping{Name: 1, Identifier: -1, Value: -1},
		})
		require.NoError(t, err)
		require.Len(t, res.Positions, 1)
		assert.Equal(t, "wichtig", res.Positions[0].Name)
	})

	t.Run("preferred delimiter is honored", func(t *testing.T) {
		content := "Name|Wert\nSAP SE|100,00\n"
		res, err := p.Process(ctx, []byte(content), "export.dat", Options{PreferredDelimiter: '|'})
		require.NoError(t, err)
		require.Len(t, res.Positions, 1)
	})
}

func TestProcessFailures(t *testing.T) {
	p := newTestProcessor()
	ctx := context.Background()

	t.Run("unrecognized format", func(t *testing.T) {
		_, err := p.Process(ctx, []byte("freeform prose without structure"), "mystery.bin", Options{})
		require.Error(t, err)

		var ferr *UnrecognizedFormatError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "mystery.bin", ferr.Filename)
	})

	t.Run("file above the size cap is rejected", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), 2048)
		_, err := p.Process(ctx, big, "big.csv", Options{MaxFileSize: 1024})
		require.Error(t, err)

		var lerr *FileTooLargeError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, int64(2048), lerr.Size)
		assert.Equal(t, int64(1024), lerr.Limit)
	})

	t.Run("header-only document is insufficient data", func(t *testing.T) {
		_, err := p.Process(ctx, []byte("Bezeichnung;ISIN;Kurswert\n"), "empty.csv", Options{})
		require.Error(t, err)

		var ierr *InsufficientDataError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, "empty.csv", ierr.Filename)
	})
}

func TestProcessPlainTextFallback(t *testing.T) {
	p := newTestProcessor()

	// No delimiter structure, but the page-text strategies can read it.
	content := "Depotauszug\n" +
		"SAP SE  DE0007164600  12.345,67 EUR\n" +
		"Siemens AG  DE0007236101  8.901,23 EUR\n"

	res, err := p.Process(context.Background(), []byte(content), "auszug.txt", Options{})
	require.NoError(t, err)

	assert.Equal(t, classifier.PlainText, res.Metadata.FileType)
	assert.Equal(t, "structured", res.Metadata.DetectedFormat)
	require.Len(t, res.Positions, 2)
	assert.Equal(t, "SAP SE", res.Positions[0].Name)
}

func TestWritePositionsCSV(t *testing.T) {
	positions := []position.Position{
		{Name: "SAP SE", Identifier: "DE0007164600", Value: 12345.67, Confidence: 1,
			Source: &position.Provenance{Line: 2}},
		{Name: "Berkshire, Class B", Value: 1234.56, Confidence: 0.9},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, positions, "EUR"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,identifier,value,currency,display,confidence,source", lines[0])
	assert.Contains(t, lines[1], "SAP SE")
	assert.Contains(t, lines[1], "EUR")
	assert.Contains(t, lines[1], "€")
	assert.Contains(t, lines[1], "line 2")
	assert.Contains(t, lines[2], `"Berkshire, Class B"`)
}
