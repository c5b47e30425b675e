// Package classifier detects the container type of an uploaded document from
// its filename extension and binary signature. Classification is a pure
// function of the byte buffer's prefix and the filename.
package classifier

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind is the closed set of recognized document containers. It is determined
// once per document and never reassigned.
type Kind string

const (
	DelimitedText Kind = "delimited-text"
	Workbook      Kind = "workbook"
	PageDocument  Kind = "page-document"
	PlainText     Kind = "plain-text"
	Unknown       Kind = "unknown"
)

// extKinds is the exact-match extension table, the primary signal.
var extKinds = map[string]Kind{
	".csv":  DelimitedText,
	".tsv":  DelimitedText,
	".xlsx": Workbook,
	".xlsm": Workbook,
	".xls":  Workbook,
	".pdf":  PageDocument,
	".txt":  PlainText,
}

// Delimiters is the fixed candidate set, in priority order. Semicolon first
// reflects the German-locale bias of the primary user base.
var Delimiters = []rune{';', ',', '\t', '|'}

var (
	magicPDF = []byte("%PDF")
	// Full ZIP local-file header. The two-byte "PK" prefix alone also occurs
	// in ordinary text, e.g. a CSV whose first cell names a company.
	magicZIP = []byte("PK\x03\x04")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Classify determines the document kind. The extension decides unless it is
// absent, unrecognized, or contradicted by a binary signature; content
// sniffing decides the rest. Unknown is a hard failure for the caller, not a
// degraded best-effort parse.
func Classify(data []byte, filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	byExt, extKnown := extKinds[ext]

	bySig := sniffSignature(data)
	if bySig != Unknown {
		// A binary signature outranks a contradicting extension.
		return bySig
	}

	if extKnown {
		return byExt
	}

	if looksDelimited(data) {
		return DelimitedText
	}

	return Unknown
}

// sniffSignature checks the fixed binary magic numbers: %PDF for page
// documents, ZIP local-file header or OLE compound-file header for workbooks.
func sniffSignature(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return PageDocument
	case bytes.HasPrefix(data, magicZIP):
		return Workbook
	case bytes.HasPrefix(data, magicOLE):
		return Workbook
	}
	return Unknown
}

// looksDelimited samples the first ~1KB and accepts when some candidate
// delimiter occurs a consistent number of times (tolerance 1) across at
// least the first 5 lines.
func looksDelimited(data []byte) bool {
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}

	var lines []string
	for _, line := range strings.Split(string(sample), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 5 {
			break
		}
	}
	if len(lines) < 2 {
		return false
	}

	for _, d := range Delimiters {
		base := strings.Count(lines[0], string(d))
		if base == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			n := strings.Count(line, string(d))
			if n == 0 || n < base-1 || n > base+1 {
				consistent = false
				break
			}
		}
		if consistent {
			return true
		}
	}
	return false
}
