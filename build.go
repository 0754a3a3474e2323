package imapio

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jhillyerd/enmime/v2"
)

const octetStream = "application/octet-stream"

// Suffixes marking a compressed file; such attachments are sent as opaque
// binaries whatever their inner type
var compressionSuffixes = []string{".gz", ".tgz", ".z", ".bz2", ".xz", ".br", ".zst"}

// Draft describes a message to build
type Draft struct {
	WhenUTC         time.Time // zero means now
	Subject         string
	FromWhom        string
	ToWhom          string
	CCWhom          string
	BCCWhom         string
	BodyText        string
	BodyHTML        string
	AttachmentPaths []string
}

// BuildMessage builds the smallest MIME tree that holds the draft: a single
// part for one body, multipart/alternative for text plus HTML, and
// multipart/mixed once attachments are involved.
func BuildMessage(d Draft) (*enmime.Part, error) {
	var text, html *enmime.Part
	if d.BodyText != "" {
		text = textPart("text/plain", d.BodyText)
	}
	if d.BodyHTML != "" {
		html = textPart("text/html", d.BodyHTML)
	}

	var root *enmime.Part
	if len(d.AttachmentPaths) > 0 {
		root = enmime.NewPart("multipart/mixed")
		if body := bodyPart(text, html); body != nil {
			root.AddChild(body)
		}
		for _, path := range d.AttachmentPaths {
			a, err := attachmentPart(path)
			if err != nil {
				return nil, err
			}
			root.AddChild(a)
		}
	} else {
		root = bodyPart(text, html)
		if root == nil {
			root = textPart("text/plain", "")
		}
	}

	setHeaders(root, d)
	return root, nil
}

// EncodeMessage serializes a built message
func EncodeMessage(p *enmime.Part) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func textPart(contentType, body string) *enmime.Part {
	p := enmime.NewPart(contentType)
	p.Charset = "utf-8"
	p.Content = []byte(body)
	return p
}

func bodyPart(text, html *enmime.Part) *enmime.Part {
	switch {
	case text != nil && html != nil:
		alt := enmime.NewPart("multipart/alternative")
		alt.AddChild(text)
		alt.AddChild(html)
		return alt
	case text != nil:
		return text
	default:
		return html
	}
}

func attachmentPart(path string) (*enmime.Part, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	name := filepath.Base(path)
	contentType := guessType(name)

	p := enmime.NewPart(contentType)
	p.Content = payload
	p.FileName = name
	p.Disposition = "attachment"
	if strings.HasPrefix(contentType, "text/") {
		p.Charset = detectCharset(payload)
		if p.Charset == "" {
			p.Charset = "utf-8"
		}
	}
	return p, nil
}

// guessType maps a file name to a media type, falling back to
// application/octet-stream for unknown or compressed files
func guessType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || slices.Contains(compressionSuffixes, ext) {
		return octetStream
	}
	mediaType, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil || mediaType == "" {
		return octetStream
	}
	return mediaType
}

func setHeaders(p *enmime.Part, d Draft) {
	if p.Header == nil {
		p.Header = map[string][]string{}
	}

	when := d.WhenUTC
	if when.IsZero() {
		when = time.Now()
	}
	p.Header.Set("Date", when.UTC().Format(time.RFC1123Z))
	p.Header.Set("Subject", mime.QEncoding.Encode("utf-8", d.Subject))

	for _, h := range []struct {
		name  string
		value string
	}{
		{"From", d.FromWhom},
		{"To", d.ToWhom},
		{"Cc", d.CCWhom},
		{"Bcc", d.BCCWhom},
	} {
		if v := encodeAddresses(h.value); v != "" {
			p.Header.Set(h.name, v)
		}
	}
}

// encodeAddresses re-renders an address list with encoded-word names,
// keeping text that does not parse as a plain encoded value
func encodeAddresses(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	list, err := mail.ParseAddressList(value)
	if err != nil {
		return mime.QEncoding.Encode("utf-8", value)
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.String()
	}
	return strings.Join(out, ", ")
}
