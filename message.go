package imapio

import (
	"bufio"
	"bytes"
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-message/textproto"
)

// Message is one message discovered by a walk. Its UID is only meaningful
// in the folder it was found in, and every operation runs against the
// folder currently selected on the session.
type Message struct {
	UID      int
	Tags     []string
	WhenUTC  time.Time // zero when the message carries no usable Date
	Subject  string
	FromWhom string
	ToWhom   string
	CCWhom   string
	BCCWhom  string

	session *Session
}

const headerFetchItems = "(BODY.PEEK[HEADER.FIELDS (SUBJECT FROM TO CC BCC DATE)] UID)"

var specialsRE = regexp.MustCompile(`[][\\()<>@,:;".]`)

// Date layouts without a zone; such dates are read as UTC
var zonelessLayouts = []string{
	"Mon, _2 Jan 2006 15:04:05",
	"Mon, _2 Jan 2006 15:04",
	"_2 Jan 2006 15:04:05",
	"_2 Jan 2006 15:04",
}

func newMessage(s *Session, uid int, tags []string, header []byte) *Message {
	m := &Message{
		UID:     uid,
		Tags:    slices.Clone(tags),
		session: s,
	}

	h, err := readHeader(header)
	if err != nil {
		warnLog(s.String(), s.folder, "header partially parsed", "uid", uid, "error", err)
	}

	m.WhenUTC = parseDate(h.Get("Date"))
	m.Subject = DecodeHeader(h.Get("Subject"))
	m.FromWhom = formatWhom(h.Values("From"))
	m.ToWhom = formatWhom(h.Values("To"))
	m.CCWhom = formatWhom(h.Values("Cc"))
	m.BCCWhom = formatWhom(h.Values("Bcc"))
	return m
}

// readHeader parses a header block, which FETCH may hand over without the
// terminating blank line
func readHeader(b []byte) (textproto.Header, error) {
	if !bytes.HasSuffix(b, []byte("\r\n\r\n")) && !bytes.HasSuffix(b, []byte("\n\n")) {
		b = append(slices.Clip(bytes.TrimRight(b, "\r\n")), "\r\n\r\n"...)
	}
	return textproto.ReadHeader(bufio.NewReader(bytes.NewReader(b)))
}

// parseDate normalizes an RFC 5322 date to UTC
func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t.UTC()
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// formatWhom renders every instance of an address header as a comma-joined
// "Name <address>" list
func formatWhom(values []string) string {
	var out []string
	for _, v := range values {
		list, err := addressParser.ParseList(v)
		if err != nil {
			if d := DecodeHeader(v); d != "" {
				out = append(out, d)
			}
			continue
		}
		for _, a := range list {
			out = append(out, formatAddress(DecodeHeader(a.Name), a.Address))
		}
	}
	return strings.Join(out, ", ")
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	if specialsRE.MatchString(name) {
		name = `"` + AddSlashes.Replace(name) + `"`
	}
	return name + " <" + address + ">"
}

func (m *Message) context() string {
	return m.session.context(fmt.Sprintf("UID=%d %s", m.UID, FormatTags(m.Tags, " ")))
}

// Flags fetches the message's current flags
func (m *Message) Flags() ([]string, error) {
	r, err := m.session.t.UIDFetch(m.UID, "(FLAGS)")
	if err != nil {
		return nil, transportError(m.context(), "could not get flags", err)
	}
	if !r.OK() {
		return nil, &ProtocolError{Context: m.context(), Text: "could not get flags", Data: responseData(r)}
	}
	flags, err := parseFlags(r.Lines, m.UID)
	if err != nil {
		return nil, fmt.Errorf("%s could not parse flags: %w", m.context(), err)
	}
	return flags, nil
}

// SetFlags replaces the message's flags with flags
func (m *Message) SetFlags(flags []string) error {
	r, err := m.session.t.UIDStore(m.UID, "FLAGS", "("+strings.Join(flags, " ")+")")
	if err != nil {
		return transportError(m.context(), "could not set flags", err)
	}
	if !r.OK() {
		return &ProtocolError{Context: m.context(), Text: "could not set flags", Data: responseData(r)}
	}
	return nil
}

// SetFlag adds or removes a single flag, leaving the others alone
func (m *Message) SetFlag(flag string, on bool) (*Message, error) {
	item := "-FLAGS"
	if on {
		item = "+FLAGS"
	}
	r, err := m.session.t.UIDStore(m.UID, item, "("+flag+")")
	if err != nil {
		return m, transportError(m.context(), "could not flag message", err)
	}
	if !r.OK() {
		return m, &ProtocolError{Context: m.context(), Text: "could not flag message", Data: responseData(r)}
	}
	return m, nil
}

func (m *Message) hasFlag(flag string) (bool, error) {
	flags, err := m.Flags()
	if err != nil {
		return false, err
	}
	return hasFlag(flags, flag), nil
}

// Seen reports whether the message is marked \Seen
func (m *Message) Seen() (bool, error) {
	return m.hasFlag(FlagSeen)
}

// SetSeen marks the message as seen or unseen
func (m *Message) SetSeen(on bool) error {
	_, err := m.SetFlag(FlagSeen, on)
	return err
}

// Deleted reports whether the message is marked \Deleted
func (m *Message) Deleted() (bool, error) {
	return m.hasFlag(FlagDeleted)
}

// SetDeleted marks the message as deleted or not
func (m *Message) SetDeleted(on bool) error {
	_, err := m.SetFlag(FlagDeleted, on)
	return err
}

// Save fetches the full message and, when target is not empty, writes it
// there (".gz" compresses, ".mbox" appends to a mailbox file). The flags
// the message had before the fetch are restored afterwards. It returns the
// message's leaf parts without payloads.
func (m *Message) Save(target string) ([]Part, error) {
	flags, err := m.Flags()
	if err != nil {
		return nil, err
	}

	raw, err := m.fetchBody("(RFC822)")
	if err != nil {
		return nil, err
	}

	// \Recent is managed by the server and cannot be stored
	flags = slices.DeleteFunc(flags, func(f string) bool { return strings.EqualFold(f, FlagRecent) })
	if err = m.SetFlags(flags); err != nil {
		return nil, err
	}

	if target != "" {
		if err = writeFile(target, raw); err != nil {
			return nil, fmt.Errorf("%s could not save message: %w", m.context(), err)
		}
		debugLog(m.session.String(), m.session.folder, "message saved", "uid", m.UID, "target", target)
	}

	parts, err := ReadParts(bytes.NewReader(raw), nil, true, false)
	if err != nil {
		return nil, fmt.Errorf("%s could not parse message: %w", m.context(), err)
	}
	return parts, nil
}

// fetchBody returns the first literal of a UID FETCH for the message
func (m *Message) fetchBody(items string) ([]byte, error) {
	r, err := m.session.t.UIDFetch(m.UID, items)
	if err != nil {
		return nil, transportError(m.context(), "connection failed while fetching message body", err)
	}
	if !r.OK() {
		return nil, &ProtocolError{Context: m.context(), Text: "could not fetch message body", Data: responseData(r)}
	}
	for _, line := range r.Lines {
		if _, literal, _, ok := splitLiteral(line); ok {
			return []byte(literal), nil
		}
	}
	return nil, &ProtocolError{Context: m.context(), Text: "could not fetch message body", Data: responseData(r)}
}

func (m *Message) String() string {
	when := "-"
	if !m.WhenUTC.IsZero() {
		when = m.WhenUTC.Format(time.RFC3339)
	}
	return fmt.Sprintf("UID=%d [%s] %s %q from %s", m.UID, FormatTags(m.Tags, "/"), when, m.Subject, m.FromWhom)
}
