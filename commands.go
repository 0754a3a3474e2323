package imapio

import (
	"fmt"
	"time"
)

func quote(s string) string {
	return `"` + AddSlashes.Replace(s) + `"`
}

// Select selects a folder in read-write mode. An empty name selects INBOX.
func (d *Dialer) Select(folder string) (*Response, error) {
	if folder == "" {
		folder = "INBOX"
	}
	r, err := d.Exec("SELECT "+quote(folder), nil, RetryCount)
	if err != nil {
		return nil, err
	}
	if r.OK() {
		d.Folder = folder
	} else {
		d.Folder = ""
	}
	return r, nil
}

// List lists every folder visible to the account
func (d *Dialer) List() (*Response, error) {
	return d.Exec(`LIST "" "*"`, nil, RetryCount)
}

// Search runs a SEARCH in the selected folder. The criterion is sent as is.
func (d *Dialer) Search(charset, criterion string) (*Response, error) {
	cmd := "SEARCH "
	if charset != "" {
		cmd += "CHARSET " + charset + " "
	}
	return d.Exec(cmd+criterion, nil, RetryCount)
}

// Fetch fetches items for one message sequence number
func (d *Dialer) Fetch(seq int, items string) (*Response, error) {
	return d.Exec(fmt.Sprintf("FETCH %d %s", seq, items), nil, RetryCount)
}

// UIDFetch fetches items for one message UID
func (d *Dialer) UIDFetch(uid int, items string) (*Response, error) {
	return d.Exec(fmt.Sprintf("UID FETCH %d %s", uid, items), nil, RetryCount)
}

// UIDStore alters the flags of one message UID. Item is FLAGS, +FLAGS or
// -FLAGS; flags is the parenthesized flag list.
func (d *Dialer) UIDStore(uid int, item, flags string) (*Response, error) {
	return d.Exec(fmt.Sprintf("UID STORE %d %s %s", uid, item, flags), nil, RetryCount)
}

// Append uploads a message into folder. Appends are never retried, so a
// dropped connection cannot duplicate the message.
func (d *Dialer) Append(folder, flags string, when time.Time, literal []byte) (*Response, error) {
	cmd := "APPEND " + quote(folder)
	if flags != "" {
		cmd += " (" + flags + ")"
	}
	if !when.IsZero() {
		cmd += ` "` + when.Format(TimeFormat) + `"`
	}
	cmd += fmt.Sprintf(" {%d}", len(literal))
	if literal == nil {
		literal = []byte{}
	}
	return d.Exec(cmd, literal, 0)
}

// Create creates a folder
func (d *Dialer) Create(folder string) (*Response, error) {
	return d.Exec("CREATE "+quote(folder), nil, 0)
}
