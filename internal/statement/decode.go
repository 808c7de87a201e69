package statement

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the single-byte Western-European charset Brazilian
// banks export OFX files in.
const DefaultEncoding = "ISO-8859-1"

// lookupEncoding resolves an IANA charset name. An empty name selects
// DefaultEncoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}

// Decode transcodes raw statement bytes from the given charset to UTF-8.
// Decoding happens before any structural parsing so accented characters
// in memo fields survive.
func Decode(raw []byte, encodingName string) ([]byte, error) {
	enc, err := lookupEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("Decode: %w", err)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("Decode: transcoding from %s: %w", encodingName, err)
	}
	return out, nil
}
