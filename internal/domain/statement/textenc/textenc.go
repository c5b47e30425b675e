// Package textenc detects and decodes the character encoding of uploaded
// text documents. Bank exports are a mix of UTF-8, UTF-16 (Excel "Unicode
// Text"), and Windows-1252, usually without declaring which.
package textenc

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Canonical encoding names reported in result metadata.
const (
	UTF8        = "utf-8"
	UTF16LE     = "utf-16le"
	UTF16BE     = "utf-16be"
	Windows1252 = "windows-1252"
	Latin1      = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts data to UTF-8 and reports the encoding used. preferred
// overrides detection when non-empty and recognized. Decode never fails:
// bytes that are not valid UTF-8 and carry no BOM are reinterpreted as
// Windows-1252, which is total over all byte values.
func Decode(data []byte, preferred string) ([]byte, string) {
	if preferred != "" {
		if enc, name := byName(preferred); enc != nil {
			if out, err := decodeWith(data, enc); err == nil {
				return out, name
			}
		}
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], UTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
		if err == nil {
			return out, UTF16LE
		}
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))
		if err == nil {
			return out, UTF16BE
		}
	}

	if utf8.Valid(data) {
		return data, UTF8
	}

	out, err := decodeWith(data, charmap.Windows1252)
	if err != nil {
		// Windows-1252 decoding is total; this branch exists for safety only.
		return data, UTF8
	}
	return out, Windows1252
}

func byName(name string) (encoding.Encoding, string) {
	switch name {
	case UTF8, "utf8":
		return encoding.Nop, UTF8
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), UTF16LE
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), UTF16BE
	case Windows1252, "cp1252":
		return charmap.Windows1252, Windows1252
	case Latin1, "latin1":
		return charmap.ISO8859_1, Latin1
	}
	return nil, ""
}

func decodeWith(data []byte, enc encoding.Encoding) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	return out, err
}
