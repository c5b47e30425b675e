// Package pages extracts positions from page-oriented documents. Text is
// pulled from the content streams page by page, then a set of independent
// regex strategies competes over the result.
package pages

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoText marks documents whose pages carry no extractable text, typically
// scans without an OCR layer.
var ErrNoText = errors.New("no text content in document")

// Page holds the recovered text of one document page. Line breaks are
// preserved because every strategy downstream works line-wise.
type Page struct {
	Number int
	Text   string
}

// ExtractText decodes the document and returns the text of every page that
// has any.
func ExtractText(data []byte) ([]Page, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("reading page document: %w", err)
	}

	var pages []Page
	for nr := 1; nr <= ctx.PageCount; nr++ {
		text := pageText(ctx, nr)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: nr, Text: text})
	}

	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

// pdfStringRe matches string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromStream walks the content stream operators. Show operators (Tj, TJ)
// append to the current line; positioning operators (Td, TD, T*, ') start a
// new one. Fragments inside one TJ array are kerning splits of the same run
// and concatenate directly; separate show operators on a line are distinct
// column placements and get a two-space gap, which the strategies key on.
func textFromStream(data []byte) string {
	var lines []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	appendFragment := func(line []byte) {
		var frag strings.Builder
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			frag.WriteString(decodePDFString(m[1]))
		}
		if s := frag.String(); s != "" {
			if cur.Len() > 0 {
				cur.WriteString("  ")
			}
			cur.WriteString(s)
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			appendFragment(line)

		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			flush()
			appendFragment(line)

		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")):
			flush()
		}
	}
	flush()

	return strings.Join(lines, "\n")
}

// decodePDFString handles the basic escape sequences, including octal.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
