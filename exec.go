package imapio

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"github.com/rs/xid"
)

const nl = "\r\n"

var atom = regexp.MustCompile(`{\d+}$`)

var errNotConnected = errors.New("not connected")

// commandTag returns a fresh command tag. XID tags are 20 uppercase
// base32hex characters (0-9, A-V).
func commandTag() string {
	return strings.ToUpper(xid.New().String())
}

// dropNl removes trailing newline characters from a byte slice
func dropNl(b []byte) []byte {
	if len(b) >= 1 && b[len(b)-1] == '\n' {
		if len(b) >= 2 && b[len(b)-2] == '\r' {
			return b[:len(b)-2]
		}
		return b[:len(b)-1]
	}
	return b
}

// Exec executes an IMAP command and collects its untagged responses.
// When literal is not nil it is uploaded after the server's continuation
// request. I/O failures are retried retryCount times after reconnecting;
// once retries are exhausted the returned error satisfies IsAbort.
func (d *Dialer) Exec(command string, literal []byte, retryCount int) (*Response, error) {
	verb, _, _ := strings.Cut(command, " ")
	if !d.Connected {
		return nil, abortError(verb, errNotConnected)
	}

	var resp *Response
	err := retry.Retry(func() (err error) {
		resp, err = d.execOnce(command, literal)
		return err
	}, retryCount, func(err error) error {
		warnLog(d.name(), d.Folder, "command failed, closing connection", "command", verb, "error", err)
		_ = d.Close()
		return nil
	}, func() error {
		return d.Reconnect()
	})
	if err != nil {
		errorLog(d.name(), d.Folder, "command retries exhausted", "command", verb, "error", err)
		d.closeConn()
		return nil, abortError(verb, err)
	}
	return resp, nil
}

func (d *Dialer) execOnce(command string, literal []byte) (*Response, error) {
	if !d.Connected {
		return nil, errNotConnected
	}

	tag := commandTag()

	if CommandTimeout != 0 {
		_ = d.conn.SetDeadline(time.Now().Add(CommandTimeout))
		defer func() { _ = d.conn.SetDeadline(time.Time{}) }()
	}

	c := fmt.Sprintf("%s %s%s", tag, command, nl)

	if Verbose {
		sanitized := strings.ReplaceAll(strings.TrimSpace(c), quote(d.Password), `"****"`)
		debugLog(d.name(), d.Folder, "sending command", "command", sanitized)
	}

	if _, err := io.WriteString(d.conn, c); err != nil {
		return nil, err
	}

	resp := &Response{}
	for {
		line, err := d.readResponseLine()
		if err != nil {
			return nil, err
		}

		if Verbose && !SkipResponses {
			debugLog(d.name(), d.Folder, "server response", "response", line)
		}

		if strings.HasPrefix(line, "+") {
			// Continuation request: upload the pending literal, or answer an
			// unexpected challenge with an empty line so the server can finish.
			payload := []byte(nl)
			if literal != nil {
				payload = append(literal[:len(literal):len(literal)], nl...)
				literal = nil
			}
			if _, err = d.conn.Write(payload); err != nil {
				return nil, err
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, tag+" "); ok {
			status, text, _ := strings.Cut(rest, " ")
			resp.Status = strings.ToUpper(status)
			resp.Text = text
			return resp, nil
		}

		resp.Lines = append(resp.Lines, line)
	}
}

// readResponseLine reads one server response line, inlining any literals it
// announces with a trailing {n}.
func (d *Dialer) readResponseLine() (string, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		return "", err
	}

	last := line
	for {
		a := atom.Find(dropNl(last))
		if a == nil {
			break
		}

		n, err := strconv.Atoi(string(a[1 : len(a)-1]))
		if err != nil {
			return "", err
		}

		buf := make([]byte, n)
		if _, err = io.ReadFull(d.r, buf); err != nil {
			return "", err
		}
		line = append(line, buf...)

		last, err = d.r.ReadBytes('\n')
		if err != nil {
			return "", err
		}
		line = append(line, last...)
	}

	return string(dropNl(line)), nil
}
