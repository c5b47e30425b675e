package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	csvSample := []byte("Bezeichnung;ISIN;Kurswert\nSAP SE;DE0007164600;100,00\n")

	tests := []struct {
		name     string
		data     []byte
		filename string
		want     Kind
	}{
		{"csv extension", csvSample, "depot.csv", DelimitedText},
		{"tsv extension", []byte("a\tb\nc\td\n"), "export.tsv", DelimitedText},
		{"xlsx extension", []byte("PK\x03\x04rest"), "depot.xlsx", Workbook},
		{"pdf extension", []byte("%PDF-1.7\n"), "auszug.pdf", PageDocument},
		{"txt extension", []byte("freeform"), "notes.txt", PlainText},
		{"uppercase extension", csvSample, "DEPOT.CSV", DelimitedText},
		{"pdf signature overrides csv extension", []byte("%PDF-1.4\n"), "really.csv", PageDocument},
		{"zip signature overrides txt extension", []byte("PK\x03\x04"), "archive.txt", Workbook},
		{"pk-prefixed text keeps csv extension", []byte("PK Logistik AG;DE0007164600;100,00\nSiemens AG;DE0007236101;200,00\n"), "depot.csv", DelimitedText},
		{"ole signature classifies legacy workbook", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, "alt.xls", Workbook},
		{"unknown extension with delimited content", csvSample, "export.dat", DelimitedText},
		{"no extension with delimited content", csvSample, "export", DelimitedText},
		{"unknown extension with prose", []byte("Sehr geehrte Damen und Herren,\nanbei die Unterlagen.\n"), "brief.doc", Unknown},
		{"empty buffer with unknown name", nil, "mystery.bin", Unknown},
		{"single line is not delimited", []byte("a;b;c"), "one.dat", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.data, tt.filename))
		})
	}
}

func TestLooksDelimited(t *testing.T) {
	t.Run("consistent delimiter counts", func(t *testing.T) {
		assert.True(t, looksDelimited([]byte("a;b;c\nd;e;f\ng;h;i\n")))
	})

	t.Run("tolerates one column of drift", func(t *testing.T) {
		assert.True(t, looksDelimited([]byte("a;b;c\nd;e;f;g\n")))
	})

	t.Run("wild count variance rejected", func(t *testing.T) {
		assert.False(t, looksDelimited([]byte("a;b\nx;y;z;w;v;u\n")))
	})

	t.Run("prose rejected", func(t *testing.T) {
		assert.False(t, looksDelimited([]byte("erste Zeile ohne Trenner\nzweite Zeile auch nicht\n")))
	})
}
