package imapio

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// fakeMessage is one message held by a fakeFolder. Its position in the
// folder is its sequence number.
type fakeMessage struct {
	uid      int
	header   string
	raw      string
	flags    []string
	uidFirst bool // UID item before the header literal
	noUID    bool
	fetchNO  bool
}

type fakeFolder struct {
	name         string
	messages     []*fakeMessage
	selectNO     bool
	searchNO     bool
	searchResult []int
}

type appendCall struct {
	folder  string
	when    time.Time
	literal []byte
}

// fakeTransport answers commands with wire-shaped responses from memory
type fakeTransport struct {
	delim    string
	folders  []*fakeFolder
	selected *fakeFolder

	listNO     bool
	storeNO    bool
	abortOn    string // command that fails with an abort
	abortAfter int    // number of successful abortOn commands before the abort
	calls      map[string]int

	commands []string
	created  []string
	appended []appendCall
	closed   bool
}

func newFakeTransport(folders ...*fakeFolder) *fakeTransport {
	return &fakeTransport{delim: `\`, folders: folders, calls: map[string]int{}}
}

func okResponse(text string, lines ...string) *Response {
	return &Response{Status: "OK", Text: text, Lines: lines}
}

func noResponse(text string) *Response {
	return &Response{Status: "NO", Text: text}
}

func (f *fakeTransport) record(cmd string) error {
	f.commands = append(f.commands, cmd)
	name, _, _ := strings.Cut(cmd, " ")
	f.calls[name]++
	if f.abortOn == name && f.calls[name] > f.abortAfter {
		return abortError(name, io.ErrUnexpectedEOF)
	}
	return nil
}

func (f *fakeTransport) folder(name string) *fakeFolder {
	if name == "" {
		name = "INBOX"
	}
	for _, ff := range f.folders {
		if ff.name == name {
			return ff
		}
	}
	return nil
}

func (f *fakeTransport) message(uid int) *fakeMessage {
	if f.selected == nil {
		return nil
	}
	for _, m := range f.selected.messages {
		if m.uid == uid {
			return m
		}
	}
	return nil
}

func (f *fakeTransport) Select(folder string) (*Response, error) {
	if err := f.record("SELECT " + folder); err != nil {
		return nil, err
	}
	ff := f.folder(folder)
	if ff == nil || ff.selectNO {
		return noResponse("[NONEXISTENT] Unknown Mailbox"), nil
	}
	f.selected = ff
	return okResponse("[READ-WRITE] SELECT completed",
		`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`,
		fmt.Sprintf("* %d EXISTS", len(ff.messages)),
		"* 0 RECENT",
	), nil
}

func (f *fakeTransport) List() (*Response, error) {
	if err := f.record("LIST"); err != nil {
		return nil, err
	}
	if f.listNO {
		return noResponse("LIST failed"), nil
	}
	lines := make([]string, len(f.folders))
	for i, ff := range f.folders {
		lines[i] = fmt.Sprintf(`* LIST (\HasNoChildren) "%s" "%s"`, AddSlashes.Replace(f.delim), AddSlashes.Replace(ff.name))
	}
	return okResponse("LIST completed", lines...), nil
}

func (f *fakeTransport) Search(charset, criterion string) (*Response, error) {
	if err := f.record("SEARCH " + charset + " " + criterion); err != nil {
		return nil, err
	}
	if f.selected == nil || f.selected.searchNO {
		return noResponse("SEARCH failed"), nil
	}
	ids := make([]string, len(f.selected.searchResult))
	for i, id := range f.selected.searchResult {
		ids[i] = fmt.Sprint(id)
	}
	return okResponse("SEARCH completed", strings.TrimSpace("* SEARCH "+strings.Join(ids, " "))), nil
}

func (f *fakeTransport) Fetch(seq int, items string) (*Response, error) {
	if err := f.record(fmt.Sprintf("FETCH %d %s", seq, items)); err != nil {
		return nil, err
	}
	if f.selected == nil || seq < 1 || seq > len(f.selected.messages) {
		return &Response{Status: "BAD", Text: "Invalid messageset"}, nil
	}
	m := f.selected.messages[seq-1]
	if m.fetchNO {
		return noResponse("FETCH failed"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "* %d FETCH (", seq)
	if m.uidFirst && !m.noUID {
		fmt.Fprintf(&b, "UID %d ", m.uid)
	}
	fmt.Fprintf(&b, "BODY[HEADER.FIELDS (SUBJECT FROM TO CC BCC DATE)] {%d}\r\n%s", len(m.header), m.header)
	if !m.uidFirst && !m.noUID {
		fmt.Fprintf(&b, " UID %d", m.uid)
	}
	b.WriteString(")")
	return okResponse("FETCH completed", b.String()), nil
}

func (f *fakeTransport) UIDFetch(uid int, items string) (*Response, error) {
	if err := f.record(fmt.Sprintf("UID-FETCH %d %s", uid, items)); err != nil {
		return nil, err
	}
	m := f.message(uid)
	if m == nil {
		return okResponse("UID FETCH completed"), nil
	}

	switch items {
	case "(FLAGS)":
		return okResponse("UID FETCH completed",
			fmt.Sprintf("* 1 FETCH (UID %d FLAGS (%s))", uid, strings.Join(m.flags, " "))), nil
	case "(RFC822)":
		// Reading the full body marks the message seen, like a real server
		if !hasFlag(m.flags, FlagSeen) {
			m.flags = append(m.flags, FlagSeen)
		}
		return okResponse("UID FETCH completed",
			fmt.Sprintf("* 1 FETCH (UID %d RFC822 {%d}\r\n%s)", uid, len(m.raw), m.raw),
			fmt.Sprintf("* 1 FETCH (FLAGS (%s))", strings.Join(m.flags, " "))), nil
	case "(BODY.PEEK[])":
		return okResponse("UID FETCH completed",
			fmt.Sprintf("* 1 FETCH (UID %d BODY[] {%d}\r\n%s)", uid, len(m.raw), m.raw)), nil
	}
	return &Response{Status: "BAD", Text: "unsupported items " + items}, nil
}

func (f *fakeTransport) UIDStore(uid int, item, flags string) (*Response, error) {
	if err := f.record(fmt.Sprintf("UID-STORE %d %s %s", uid, item, flags)); err != nil {
		return nil, err
	}
	if f.storeNO {
		return noResponse("STORE failed"), nil
	}
	m := f.message(uid)
	if m == nil {
		return okResponse("UID STORE completed"), nil
	}

	list := strings.Fields(strings.Trim(flags, "()"))
	if hasFlag(list, FlagRecent) {
		return &Response{Status: "BAD", Text: `Cannot store \Recent flag`}, nil
	}
	switch item {
	case "FLAGS":
		m.flags = list
	case "+FLAGS":
		for _, fl := range list {
			if !hasFlag(m.flags, fl) {
				m.flags = append(m.flags, fl)
			}
		}
	case "-FLAGS":
		m.flags = slices.DeleteFunc(m.flags, func(fl string) bool { return hasFlag(list, fl) })
	}
	return okResponse("UID STORE completed"), nil
}

func (f *fakeTransport) Append(folder, flags string, when time.Time, literal []byte) (*Response, error) {
	if err := f.record("APPEND " + folder); err != nil {
		return nil, err
	}
	if f.folder(folder) == nil {
		return noResponse("[TRYCREATE] no such mailbox"), nil
	}
	f.appended = append(f.appended, appendCall{folder: folder, when: when, literal: literal})
	return okResponse(fmt.Sprintf("[APPENDUID 1 %d] APPEND completed", len(f.appended))), nil
}

func (f *fakeTransport) Create(folder string) (*Response, error) {
	if err := f.record("CREATE " + folder); err != nil {
		return nil, err
	}
	f.created = append(f.created, folder)
	f.folders = append(f.folders, &fakeFolder{name: folder})
	return okResponse("CREATE completed"), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func newTestSession(f *fakeTransport) *Session {
	s := NewSession(f, "imap.example.com", 993, "jane")
	s.Shuffle = nil
	return s
}

func headerBlob(subject, from string, extra ...string) string {
	var b strings.Builder
	if subject != "" {
		b.WriteString("Subject: " + subject + "\r\n")
	}
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	for _, e := range extra {
		b.WriteString(e + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}
