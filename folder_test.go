package imapio

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseListLine(t *testing.T) {
	tests := []struct {
		line string
		want Folder
		ok   bool
	}{
		{
			line: `* LIST (\HasNoChildren) "/" "Work/Invoices"`,
			want: Folder{Name: "Work/Invoices", Delimiter: "/", Flags: []string{`\HasNoChildren`}},
			ok:   true,
		},
		{
			line: `* LIST (\Noselect \HasChildren) NIL Public`,
			want: Folder{Name: "Public", Flags: []string{`\Noselect`, `\HasChildren`}},
			ok:   true,
		},
		{
			line: `* LIST () "\\" "A \"quoted\" name"`,
			want: Folder{Name: `A "quoted" name`, Delimiter: `\`, Flags: []string{}},
			ok:   true,
		},
		{
			line: "* LIST () \"/\" {11}\r\nhello world",
			want: Folder{Name: "hello world", Delimiter: "/", Flags: []string{}},
			ok:   true,
		},
		{
			line: `* LSUB () "." INBOX.Sent`,
			want: Folder{Name: "INBOX.Sent", Delimiter: ".", Flags: []string{}},
			ok:   true,
		},
		{line: "* OK still here"},
		{line: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseListLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Name != tt.want.Name || got.Delimiter != tt.want.Delimiter || !slices.Equal(got.Flags, tt.want.Flags) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFolderTags(t *testing.T) {
	tests := []struct {
		folder Folder
		want   []string
	}{
		{Folder{Name: "Work/Invoices", Delimiter: "/"}, []string{"work", "invoices"}},
		{Folder{Name: `Work\Invoices`}, []string{"work", "invoices"}},
		{Folder{Name: "INBOX.Sent Items", Delimiter: "."}, []string{"inbox", "sent items"}},
	}
	for _, tt := range tests {
		if got := tt.folder.Tags(); !slices.Equal(got, tt.want) {
			t.Errorf("%+v.Tags() = %q, want %q", tt.folder, got, tt.want)
		}
	}
}

func TestFolders(t *testing.T) {
	f := newFakeTransport(&fakeFolder{name: "INBOX"}, &fakeFolder{name: `Work\Invoices`}, &fakeFolder{name: `Say "hi"`})
	s := newTestSession(f)

	names, err := s.FolderNames()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"INBOX", `Work\Invoices`, `Say "hi"`}; !slices.Equal(names, want) {
		t.Errorf("names = %q, want %q", names, want)
	}
	if want := []string{"SELECT ", "LIST"}; !slices.Equal(f.commands, want) {
		t.Errorf("commands = %q, want %q", f.commands, want)
	}
	if s.Folder() != "INBOX" {
		t.Errorf("Folder() = %q", s.Folder())
	}
}

func TestFoldersListRefused(t *testing.T) {
	f := newFakeTransport(&fakeFolder{name: "INBOX"})
	f.listNO = true
	s := newTestSession(f)

	_, err := s.Folders()
	if err == nil {
		t.Fatal("expected error")
	}
	if IsAbort(err) {
		t.Error("refusal reported as abort")
	}
	if !strings.HasPrefix(err.Error(), "[jane@imap.example.com:993] could not fetch folders") {
		t.Errorf("error = %q", err)
	}
}

func TestCd(t *testing.T) {
	inbox := &fakeFolder{name: "INBOX", messages: msgs(1, 2, 3)}
	f := newFakeTransport(inbox, &fakeFolder{name: "Locked", selectNO: true})
	s := newTestSession(f)

	n, err := s.Cd("")
	if err != nil || n != 3 {
		t.Fatalf("Cd(\"\") = %d, %v", n, err)
	}
	if s.Folder() != "INBOX" {
		t.Errorf("Folder() = %q", s.Folder())
	}

	n, err = s.Cd("Locked")
	if err != nil || n != 0 {
		t.Errorf("Cd(Locked) = %d, %v", n, err)
	}
	if s.Folder() != "" {
		t.Errorf("Folder() = %q after refused select", s.Folder())
	}

	f.abortOn = "SELECT"
	f.abortAfter = f.calls["SELECT"]
	if _, err = s.Cd("INBOX"); !IsAbort(err) {
		t.Errorf("Cd during abort = %v, want abort", err)
	}
}

func TestStats(t *testing.T) {
	f := newFakeTransport(
		&fakeFolder{name: "INBOX", messages: msgs(1, 2)},
		&fakeFolder{name: `Work\Invoices`, messages: msgs(3)},
		&fakeFolder{name: "Broken", selectNO: true},
		&fakeFolder{name: `Spam\Old`, messages: msgs(4, 5, 6)},
	)
	s := newTestSession(f)
	if _, err := s.Cd(`Work\Invoices`); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(nil, []string{"spam"})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Fatalf("got %d stats: %+v", len(stats), stats)
	}

	want := []struct {
		name  string
		count int
		fails bool
	}{
		{"INBOX", 2, false},
		{`Work\Invoices`, 1, false},
		{"Broken", 0, true},
	}
	for i, w := range want {
		st := stats[i]
		if st.Name != w.name || st.Count != w.count || (st.Error != nil) != w.fails {
			t.Errorf("stats[%d] = %+v, want %+v", i, st, w)
		}
	}
	if !slices.Equal(stats[1].Tags, []string{"work", "invoices"}) {
		t.Errorf("tags = %q", stats[1].Tags)
	}

	if s.Folder() != `Work\Invoices` {
		t.Errorf("folder not restored: %q", s.Folder())
	}
	if last := f.commands[len(f.commands)-1]; last != `SELECT Work\Invoices` {
		t.Errorf("last command = %q", last)
	}
}

func TestStatsWithoutSelection(t *testing.T) {
	f := newFakeTransport(&fakeFolder{name: "INBOX"}, &fakeFolder{name: "Archive", messages: msgs(1)})
	s := newTestSession(f)

	if _, err := s.Stats(nil, nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"SELECT ", "LIST", "SELECT INBOX", "SELECT Archive"}
	if !slices.Equal(f.commands, want) {
		t.Errorf("commands = %q, want %q", f.commands, want)
	}
}

func TestStatsAbort(t *testing.T) {
	f := newFakeTransport(&fakeFolder{name: "INBOX"}, &fakeFolder{name: "Work"})
	f.abortOn = "SELECT"
	f.abortAfter = 2
	s := newTestSession(f)

	stats, err := s.Stats(nil, nil)
	if !IsAbort(err) {
		t.Fatalf("err = %v, want abort", err)
	}
	if len(stats) != 1 || stats[0].Name != "INBOX" {
		t.Errorf("partial stats = %+v", stats)
	}
}

func TestRevive(t *testing.T) {
	when := time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)
	msg, err := BuildMessage(Draft{WhenUTC: when, Subject: "back", FromWhom: "jane@example.com", BodyText: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("creates missing folder", func(t *testing.T) {
		f := newFakeTransport(&fakeFolder{name: "INBOX"})
		s := newTestSession(f)

		text, err := s.Revive("Archive", msg)
		if err != nil {
			t.Fatal(err)
		}
		if text != "[APPENDUID 1 1] APPEND completed" {
			t.Errorf("text = %q", text)
		}
		if !slices.Equal(f.created, []string{"Archive"}) {
			t.Errorf("created = %q", f.created)
		}
		if len(f.appended) != 1 {
			t.Fatalf("appended %d messages", len(f.appended))
		}
		a := f.appended[0]
		if a.folder != "Archive" || !a.when.Equal(when) {
			t.Errorf("append = %s at %s", a.folder, a.when)
		}
		if !strings.Contains(string(a.literal), "Subject: back") {
			t.Errorf("literal missing subject:\n%s", a.literal)
		}
	})

	t.Run("matches existing folder ignoring case", func(t *testing.T) {
		f := newFakeTransport(&fakeFolder{name: "INBOX"}, &fakeFolder{name: `Work\Invoices`})
		s := newTestSession(f)

		if _, err := s.Revive(`work\invoices`, msg); err != nil {
			t.Fatal(err)
		}
		if len(f.created) != 0 {
			t.Errorf("created = %q", f.created)
		}
		if f.appended[0].folder != `Work\Invoices` {
			t.Errorf("appended to %q", f.appended[0].folder)
		}
	})

	t.Run("abort", func(t *testing.T) {
		f := newFakeTransport(&fakeFolder{name: "INBOX"})
		f.abortOn = "APPEND"
		s := newTestSession(f)

		_, err := s.Revive("INBOX", msg)
		if !IsAbort(err) {
			t.Fatalf("err = %v, want abort", err)
		}
		if !strings.Contains(err.Error(), "[jane@imap.example.com:993] [INBOX] could not revive message") {
			t.Errorf("error = %q", err)
		}
	})
}

func TestSessionClose(t *testing.T) {
	f := newFakeTransport()
	s := newTestSession(f)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.closed {
		t.Error("transport not closed")
	}
	if s.Transport() != Transport(f) {
		t.Error("Transport() returned a different value")
	}
}
