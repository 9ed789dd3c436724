package ir

import "fmt"

// Format identifies a wire format.
type Format string

// Supported wire formats.
const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
	FormatXML    Format = "xml"
	FormatQuery  Format = "query" // HTTP query string
	FormatForm   Format = "form"  // HTTP urlencoded form body
	FormatURI    Format = "uri"   // single HTTP path segment
	FormatString Format = "string"
)

// Formats lists every format in a stable order.
var Formats = []Format{
	FormatJSON,
	FormatBinary,
	FormatXML,
	FormatQuery,
	FormatForm,
	FormatURI,
	FormatString,
}

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// IsKeyValue reports whether the format encodes records as flat key/value
// parameters (HTTP query and form bodies).
func (f Format) IsKeyValue() bool {
	return f == FormatQuery || f == FormatForm
}

// IsText reports whether the format encodes a whole value as one string.
func (f Format) IsText() bool {
	return f == FormatURI || f == FormatString
}

// QueryFamily reports whether the format uses the HTTP query tag shapes
// (query, form, uri and plain string).
func (f Format) QueryFamily() bool {
	return f.IsKeyValue() || f.IsText()
}
