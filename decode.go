package imapio

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
)

// wordDecoder decodes RFC 2047 encoded-words in every charset x/net knows
var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
		enc, _ := charset.Lookup(label)
		if enc == nil {
			return nil, fmt.Errorf("unknown charset %q", label)
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// DecodeHeader turns a raw header value into clean, whitespace-collapsed
// text. Adjacent encoded-words glued together as "?==?" get one repair
// attempt; anything still undecodable is passed through with invalid UTF-8
// dropped. It never fails.
func DecodeHeader(text string) string {
	s, err := wordDecoder.DecodeHeader(text)
	if err != nil {
		s, err = wordDecoder.DecodeHeader(strings.ReplaceAll(text, "?==?", "?= =?"))
	}
	if err != nil {
		warnLog("", "", "could not decode header", "header", text, "error", err)
		s = text
	}
	return collapseSpace(dropInvalid(s))
}

// decodeText decodes payload with the first charset label that resolves,
// falling back to the detected charset and finally to raw UTF-8. It returns
// the text and the label that was used.
func decodeText(payload []byte, labels ...string) (string, string) {
	for _, label := range labels {
		if s, ok := decodeWith(payload, label); ok {
			return s, strings.ToLower(label)
		}
	}
	if label := detectCharset(payload); label != "" {
		if s, ok := decodeWith(payload, label); ok {
			return s, label
		}
	}
	return dropInvalid(string(payload)), ""
}

func decodeWith(payload []byte, label string) (string, bool) {
	if label == "" {
		return "", false
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return "", false
	}
	b, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	return dropInvalid(string(b)), true
}

// detectCharset guesses the charset of b, returning "" when unsure
func detectCharset(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	r, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || r == nil {
		return ""
	}
	return strings.ToLower(r.Charset)
}

// dropInvalid removes invalid UTF-8 and replacement characters
func dropInvalid(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), string(utf8.RuneError), "")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
