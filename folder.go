package imapio

import (
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime/v2"
)

// Folder is one entry of a LIST response
type Folder struct {
	Name      string
	Delimiter string // empty when the server reports NIL
	Flags     []string
}

// FolderStats represents statistics for a folder
type FolderStats struct {
	Name  string
	Tags  []string
	Count int
	Error error
}

var listRE = regexp.MustCompile(`(?is)^\*\s+(?:LIST|LSUB)\s+\((.*?)\)\s+(NIL|"(?:[^"\\]|\\.)*")\s?(.*)$`)

// Tags derives the folder's tags using its own delimiter
func (f Folder) Tags() []string {
	return ParseTagsDelim(f.Name, f.Delimiter)
}

// parseListLine parses `* LIST (flags) "delim" name`, where the name may be
// an atom, a quoted string or a literal
func parseListLine(line string) (Folder, bool) {
	m := listRE.FindStringSubmatch(line)
	if m == nil {
		return Folder{}, false
	}

	f := Folder{Flags: strings.Fields(m[1])}
	if !strings.EqualFold(m[2], "NIL") {
		f.Delimiter = RemoveSlashes.Replace(m[2][1 : len(m[2])-1])
	}

	name := m[3]
	if prefix, literal, _, ok := splitLiteral(name); ok && strings.TrimSpace(prefix) == "" {
		name = strings.TrimLeft(literal, " \t")
	} else {
		name = strings.TrimLeft(name, " \t")
		if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
			name = RemoveSlashes.Replace(name[1 : len(name)-1])
		}
	}
	f.Name = name
	return f, true
}

// Folders selects the default folder and lists every folder on the server
func (s *Session) Folders() ([]Folder, error) {
	if _, err := s.Cd(""); err != nil {
		return nil, err
	}

	r, err := s.t.List()
	if err != nil {
		return nil, transportError(s.context(""), "could not fetch folders", err)
	}
	if !r.OK() {
		return nil, &ProtocolError{Context: s.context(""), Text: "could not fetch folders", Data: responseData(r)}
	}

	folders := make([]Folder, 0, len(r.Lines))
	for _, line := range r.Lines {
		f, ok := parseListLine(line)
		if !ok {
			debugLog(s.String(), s.folder, "skipping unparsable list line", "line", line)
			continue
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// FolderNames returns the names reported by Folders
func (s *Session) FolderNames() ([]string, error) {
	folders, err := s.Folders()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(folders))
	for i, f := range folders {
		names[i] = f.Name
	}
	return names, nil
}

// Cd selects folder (INBOX when empty) and returns its message count. A
// folder the server refuses to select yields 0 and no error; only a broken
// connection is reported.
func (s *Session) Cd(folder string) (int, error) {
	count, _, err := s.selectFolder(folder)
	return count, err
}

// selectFolder is Cd reporting whether the folder is now selected. After a
// refused SELECT no folder is considered selected.
func (s *Session) selectFolder(folder string) (count int, ok bool, err error) {
	r, err := s.t.Select(folder)
	if err != nil {
		if IsAbort(err) {
			return 0, false, transportError(s.context(folder), "connection failed while selecting folder", err)
		}
		s.folder = ""
		warnLog(s.String(), folder, "could not select folder", "error", err)
		return 0, false, nil
	}
	if !r.OK() {
		s.folder = ""
		warnLog(s.String(), folder, "could not select folder", "response", responseData(r))
		return 0, false, nil
	}
	if folder == "" {
		folder = "INBOX"
	}
	s.folder = folder
	return parseExists(r.Lines), true, nil
}

// Stats counts the messages of every folder passing the tag filters.
// Per-folder failures are recorded on the entry; only aborts stop it.
func (s *Session) Stats(includes, excludes []string) ([]FolderStats, error) {
	current := s.folder
	folders, err := s.Folders()
	if err != nil {
		return nil, err
	}

	inc, exc := NewTagSet(includes...), NewTagSet(excludes...)

	var stats []FolderStats
	for _, f := range folders {
		tags := f.Tags()
		if !accepts(inc, exc, tags) {
			continue
		}

		stat := FolderStats{Name: f.Name, Tags: tags}
		r, err := s.t.Select(f.Name)
		switch {
		case err != nil && IsAbort(err):
			return stats, transportError(s.context(f.Name), "connection failed while selecting folder", err)
		case err != nil:
			stat.Error = err
			s.folder = ""
		case !r.OK():
			s.folder = ""
			stat.Error = &ProtocolError{Context: s.context(f.Name), Text: "could not select folder", Data: responseData(r)}
		default:
			stat.Count = parseExists(r.Lines)
			s.folder = f.Name
		}
		stats = append(stats, stat)
	}

	// Restore original folder state
	if current != "" && current != s.folder {
		if _, err := s.Cd(current); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// Revive uploads msg into targetFolder, matched case-insensitively and
// created when missing. The message's Date becomes the internal date. It
// returns the server's completion text, which carries APPENDUID when the
// server supports UIDPLUS.
func (s *Session) Revive(targetFolder string, msg *enmime.Part) (string, error) {
	folders, err := s.Folders()
	if err != nil {
		return "", err
	}

	folder := ""
	for _, f := range folders {
		if strings.EqualFold(f.Name, targetFolder) {
			folder = f.Name
			break
		}
	}

	if folder == "" {
		folder = targetFolder
		r, err := s.t.Create(folder)
		if err != nil {
			return "", transportError(s.context(folder), "could not create folder", err)
		}
		if !r.OK() {
			warnLog(s.String(), folder, "could not create folder", "response", responseData(r))
		}
	}

	raw, err := EncodeMessage(msg)
	if err != nil {
		return "", err
	}

	r, err := s.t.Append(folder, "", parseDate(msg.Header.Get("Date")), raw)
	if err != nil {
		return "", transportError(s.context(folder), "could not revive message", err)
	}
	if !r.OK() {
		return "", &ProtocolError{Context: s.context(folder), Text: "could not revive message", Data: responseData(r)}
	}
	return r.Text, nil
}

// accepts applies the walk filter: no excluded tag, and an included tag
// whenever includes are given
func accepts(includes, excludes TagSet, tags []string) bool {
	if excludes.Intersects(tags) {
		return false
	}
	return len(includes) == 0 || includes.Intersects(tags)
}
