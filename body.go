package imapio

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	humanize "github.com/dustin/go-humanize"
	"github.com/jhillyerd/enmime/v2"
)

// Body is the decoded content of a message
type Body struct {
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment represents an email attachment or inline part
type Attachment struct {
	Name     string
	MimeType string
	Content  []byte
}

// String returns a formatted string representation of a Body
func (b Body) String() string {
	body := strings.Builder{}

	if len(b.Text) != 0 {
		if len(b.Text) > 20 {
			body.WriteString(fmt.Sprintf("Text: %s...", b.Text[:20]))
		} else {
			body.WriteString(fmt.Sprintf("Text: %s", b.Text))
		}
		body.WriteString(fmt.Sprintf(" (%s)\n", humanize.Bytes(uint64(len(b.Text)))))
	}
	if len(b.HTML) != 0 {
		if len(b.HTML) > 20 {
			body.WriteString(fmt.Sprintf("HTML: %s...", b.HTML[:20]))
		} else {
			body.WriteString(fmt.Sprintf("HTML: %s", b.HTML))
		}
		body.WriteString(fmt.Sprintf(" (%s)\n", humanize.Bytes(uint64(len(b.HTML)))))
	}

	if len(b.Attachments) != 0 {
		body.WriteString(fmt.Sprintf("%d Attachment(s): %s\n", len(b.Attachments), b.Attachments))
	}

	return body.String()
}

// String returns a formatted string representation of an Attachment
func (a Attachment) String() string {
	return fmt.Sprintf("%s (%s %s)", a.Name, a.MimeType, humanize.Bytes(uint64(len(a.Content))))
}

// Body fetches and decodes the whole message without marking it seen
func (m *Message) Body() (*Body, error) {
	raw, err := m.fetchBody("(BODY.PEEK[])")
	if err != nil {
		return nil, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		if Verbose {
			debugLog(m.session.String(), m.session.folder, "message body could not be parsed", "uid", m.UID, "dump", spew.Sdump(raw))
		}
		return nil, fmt.Errorf("%s could not parse message body: %w", m.context(), err)
	}

	b := &Body{Text: env.Text, HTML: env.HTML}
	for _, list := range [][]*enmime.Part{env.Attachments, env.Inlines} {
		for _, a := range list {
			b.Attachments = append(b.Attachments, Attachment{
				Name:     a.FileName,
				MimeType: a.ContentType,
				Content:  a.Content,
			})
		}
	}
	return b, nil
}
