package imapio

import (
	"fmt"
	"iter"
	"strings"
)

// Walker iterates over the messages of the folders that pass a tag filter.
// Folder and message failures are logged and skipped; the walk only stops
// early when the connection aborts, which Err then reports.
//
//	w := s.Walk([]string{"work"}, []string{"spam"}, "UNSEEN")
//	for w.Next() {
//		m := w.Message()
//		...
//	}
//	if err := w.Err(); err != nil {
//		...
//	}
type Walker struct {
	s         *Session
	includes  TagSet
	excludes  TagSet
	criterion string

	started bool
	done    bool
	folders []Folder
	folder  string
	tags    []string
	indices []int
	msg     *Message
	err     error
}

// Walk starts a walk over the folders carrying an included tag (any folder
// when includes is empty) and no excluded tag. A non-empty criterion is
// passed to SEARCH to pick messages; otherwise every message is visited.
// Nothing is sent to the server before the first call to Next.
func (s *Session) Walk(includes, excludes []string, criterion string) *Walker {
	return &Walker{
		s:         s,
		includes:  NewTagSet(includes...),
		excludes:  NewTagSet(excludes...),
		criterion: strings.TrimSpace(criterion),
	}
}

// Next advances to the next message, reporting false once the walk is over
func (w *Walker) Next() bool {
	if w.done {
		return false
	}

	if !w.started {
		w.started = true
		folders, err := w.s.Folders()
		if err != nil {
			return w.fail(err)
		}
		w.s.shuffle(len(folders), func(i, j int) {
			folders[i], folders[j] = folders[j], folders[i]
		})
		w.folders = folders
	}

	for {
		for len(w.indices) > 0 {
			index := w.indices[0]
			w.indices = w.indices[1:]

			m, err := w.fetchHeader(index)
			if err != nil {
				return w.fail(err)
			}
			if m != nil {
				w.msg = m
				return true
			}
		}

		if len(w.folders) == 0 {
			w.done = true
			w.msg = nil
			return false
		}

		f := w.folders[0]
		w.folders = w.folders[1:]
		if err := w.enter(f); err != nil {
			return w.fail(err)
		}
	}
}

// Message returns the message Next advanced to
func (w *Walker) Message() *Message {
	return w.msg
}

// Err returns the error that ended the walk, if any
func (w *Walker) Err() error {
	return w.err
}

// All adapts the walk to range-over-func. A terminating error is yielded
// last with a nil message.
func (w *Walker) All() iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		for w.Next() {
			if !yield(w.Message(), nil) {
				return
			}
		}
		if err := w.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (w *Walker) fail(err error) bool {
	w.err = err
	w.done = true
	w.msg = nil
	w.indices = nil
	w.folders = nil
	return false
}

// enter selects a folder that passes the filters and queues its messages
func (w *Walker) enter(f Folder) error {
	tags := f.Tags()
	if !accepts(w.includes, w.excludes, tags) {
		return nil
	}

	count, ok, err := w.s.selectFolder(f.Name)
	if err != nil || !ok {
		return err
	}

	var indices []int
	if w.criterion != "" {
		r, err := w.s.t.Search("UTF-8", "("+w.criterion+")")
		if err != nil {
			if IsAbort(err) {
				return transportError(w.s.context(FormatTags(tags, " ")), "connection failed while searching", err)
			}
			warnLog(w.s.String(), f.Name, "could not search mailbox", "criterion", w.criterion, "error", err)
			return nil
		}
		if !r.OK() {
			warnLog(w.s.String(), f.Name, "could not search mailbox", "criterion", w.criterion, "response", responseData(r))
			return nil
		}
		if indices, err = parseSearchResponse(r.Lines); err != nil {
			warnLog(w.s.String(), f.Name, "could not parse search response", "criterion", w.criterion, "error", err)
			return nil
		}
	} else {
		indices = make([]int, count)
		for i := range indices {
			indices[i] = i + 1
		}
	}

	w.s.shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	debugLog(w.s.String(), f.Name, "walking folder", "tags", FormatTags(tags, " "), "messages", len(indices))
	w.folder = f.Name
	w.tags = tags
	w.indices = indices
	return nil
}

// fetchHeader peeks at one message's header. A nil message with a nil
// error means the message was skipped.
func (w *Walker) fetchHeader(index int) (*Message, error) {
	r, err := w.s.t.Fetch(index, headerFetchItems)
	if err != nil {
		if IsAbort(err) {
			context := w.s.context(fmt.Sprintf("INDEX=%d %s", index, FormatTags(w.tags, " ")))
			return nil, transportError(context, "connection failed while fetching message header", err)
		}
		warnLog(w.s.String(), w.folder, "could not peek at message header", "index", index, "error", err)
		return nil, nil
	}
	if !r.OK() {
		warnLog(w.s.String(), w.folder, "could not peek at message header", "index", index, "response", responseData(r))
		return nil, nil
	}

	prefix, header, trailer := headerLiteral(r.Lines)
	uid, ok := findUID(trailer, prefix)
	if !ok {
		warnLog(w.s.String(), w.folder, "could not extract uid", "index", index, "response", responseData(r))
		return nil, nil
	}

	return newMessage(w.s, uid, w.tags, []byte(header)), nil
}

// headerLiteral finds the header literal among the FETCH lines, returning
// the text around it for the UID lookup
func headerLiteral(lines []string) (prefix, literal, trailer string) {
	for _, line := range lines {
		if p, l, t, ok := splitLiteral(line); ok {
			return p, l, t
		}
	}
	return strings.Join(lines, " "), "", ""
}
