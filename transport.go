package imapio

import (
	"strings"
	"time"
)

// Response is the outcome of one tagged IMAP command.
type Response struct {
	Status string   // OK, NO or BAD
	Text   string   // rest of the tagged completion line
	Lines  []string // untagged responses with literals inlined, trailing CRLF removed
}

// OK reports whether the command completed successfully.
func (r *Response) OK() bool {
	return r != nil && strings.EqualFold(r.Status, "OK")
}

// Transport is the ordered command channel a Session drives.
//
// A non-OK status is reported through Response and is not an error. Errors
// are reserved for failures of the channel itself; those that leave the
// connection unusable must satisfy errors.Is(err, ErrAbort).
type Transport interface {
	Select(folder string) (*Response, error)
	List() (*Response, error)
	Search(charset, criterion string) (*Response, error)
	Fetch(seq int, items string) (*Response, error)
	UIDFetch(uid int, items string) (*Response, error)
	UIDStore(uid int, item, flags string) (*Response, error)
	Append(folder, flags string, when time.Time, literal []byte) (*Response, error)
	Create(folder string) (*Response, error)
}
