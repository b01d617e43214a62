package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

var (
	errInvalidUTF8 = errors.New("stream did not contain valid UTF-8")
	errOddLength   = errors.New("odd number of bytes in UTF-16 stream")
	errMalformed   = errors.New("malformed input")
)

// Codec converts between file bytes and text under one declared encoding.
type Codec struct {
	name string
	enc  encoding.Encoding // nil means strict UTF-8
	form utf16Form
}

type utf16Form int

const (
	notUTF16 utf16Form = iota
	utf16LE
	utf16BE
	utf16BOM // byte order taken from the BOM, big endian without one
)

type encodingSpec struct {
	enc  encoding.Encoding
	form utf16Form
}

var encodings = map[string]encodingSpec{
	"utf-16le":     {unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), utf16LE},
	"utf-16be":     {unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), utf16BE},
	"utf-16":       {unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), utf16BOM},
	"iso-8859-1":   {charmap.ISO8859_1, notUTF16},
	"latin1":       {charmap.ISO8859_1, notUTF16},
	"windows-1252": {charmap.Windows1252, notUTF16},
}

// LookupEncoding returns the codec for name. Names are case-insensitive;
// an empty name selects UTF-8.
func LookupEncoding(name string) (Codec, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf-8", "utf8":
		return Codec{name: DefaultEncoding}, nil
	}
	spec, ok := encodings[n]
	if !ok {
		return Codec{}, fmt.Errorf("unsupported encoding %q", name)
	}
	return Codec{name: n, enc: spec.enc, form: spec.form}, nil
}

// SupportedEncodings returns every accepted encoding name.
func SupportedEncodings() []string {
	out := []string{DefaultEncoding, "utf8"}
	for n := range encodings {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Name returns the canonical encoding name.
func (c Codec) Name() string {
	if c.name == "" {
		return DefaultEncoding
	}
	return c.name
}

// Decode converts raw bytes to text. Input is validated, never repaired:
// the x/text decoders substitute U+FFFD for malformed sequences, so any
// replacement character that was not literally present in data is an error.
func (c Codec) Decode(data []byte) (string, error) {
	if c.enc == nil {
		if !utf8.Valid(data) {
			return "", errInvalidUTF8
		}
		return string(data), nil
	}
	if c.form != notUTF16 && len(data)%2 != 0 {
		return "", fmt.Errorf("decode %s: %w", c.name, errOddLength)
	}
	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	if bytes.Count(out, replacementUTF8) != c.literalReplacements(data) {
		return "", fmt.Errorf("decode %s: %w", c.name, errMalformed)
	}
	return string(out), nil
}

var replacementUTF8 = []byte(string(utf8.RuneError))

// literalReplacements counts U+FFFD code units stored in data. None of the
// supported single-byte charsets can represent U+FFFD.
func (c Codec) literalReplacements(data []byte) int {
	form := c.form
	if form == utf16BOM {
		form = utf16BE
		if len(data) >= 2 && data[0] == 0xff && data[1] == 0xfe {
			form = utf16LE
		}
	}
	n := 0
	for i := 0; i+1 < len(data); i += 2 {
		switch {
		case form == utf16LE && data[i] == 0xfd && data[i+1] == 0xff:
			n++
		case form == utf16BE && data[i] == 0xff && data[i+1] == 0xfd:
			n++
		}
	}
	return n
}

// Encode converts text to bytes in the declared encoding.
func (c Codec) Encode(text string) ([]byte, error) {
	if c.enc == nil {
		return []byte(text), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return out, nil
}
