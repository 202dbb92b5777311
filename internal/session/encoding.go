package session

import (
	"strings"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// minSniffConfidence is the lowest chardet confidence trusted over the UTF-8 fallback
const minSniffConfidence = 50

// chardet names that are not WHATWG labels
var sniffAliases = map[string]string{
	"GB-18030": "gb18030",
}

// DecodeBody converts a response body to UTF-8 text.
//
// Resolution order: a charset declared in the Content-Type header, then a <meta> declaration
// or valid UTF-8 found by prescan, then statistical sniffing, then UTF-8 with invalid bytes
// replaced. Misdetection corrupts non-ASCII section labels, so nothing is passed through raw.
func DecodeBody(body []byte, contentType string) (text string, encodingName string) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if certain || name != "windows-1252" {
		// windows-1252 is what DetermineEncoding falls back to when it found nothing
		return decodeWith(enc, name, body)
	}

	if !hasHighBit(body) {
		return string(body), "utf-8"
	}

	if sniffed := sniffCharset(body); sniffed != "" {
		if enc, name := charset.Lookup(sniffed); enc != nil {
			return decodeWith(enc, name, body)
		}
	}

	return strings.ToValidUTF8(string(body), "�"), "utf-8"
}

func decodeWith(enc encoding.Encoding, name string, body []byte) (string, string) {
	if name == "utf-8" {
		return strings.ToValidUTF8(string(body), "�"), name
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�"), "utf-8"
	}
	return string(out), name
}

// sniffCharset returns a charset label guessed from the bytes, or "" when unsure
func sniffCharset(body []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Confidence < minSniffConfidence {
		return ""
	}
	if alias, ok := sniffAliases[result.Charset]; ok {
		return alias
	}
	return result.Charset
}

func hasHighBit(body []byte) bool {
	for _, b := range body {
		if b >= 0x80 {
			return true
		}
	}
	return false
}
