package imapio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAbort marks a transport failure that leaves the connection unusable.
// Transport implementations must return errors for which
// errors.Is(err, ErrAbort) holds when the connection breaks mid-command.
var ErrAbort = errors.New("imap connection aborted")

// ProtocolError is returned when the server answers a command with a status
// other than OK.
type ProtocolError struct {
	Context string   // session and message context, e.g. "[user@host:993] [UID=7 work]"
	Text    string   // what was being attempted
	Data    []string // raw server response, for diagnostics
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	if e.Context != "" {
		b.WriteString(e.Context)
		b.WriteByte(' ')
	}
	b.WriteString(e.Text)
	for _, d := range e.Data {
		b.WriteByte('\n')
		b.WriteString(d)
	}
	return b.String()
}

// AbortError wraps a transport abort with the context in which it happened.
type AbortError struct {
	Context string
	Text    string
	Err     error
}

func (e *AbortError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Context, e.Text, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Is reports AbortError as ErrAbort even if the wrapped error was not
// produced by this package.
func (e *AbortError) Is(target error) bool { return target == ErrAbort }

// IsAbort reports whether err signals a broken connection.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAbort)
}

// abortError marks err as a transport-level abort.
func abortError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAbort, op, err)
}

// responseData flattens a response for error reporting.
func responseData(r *Response) []string {
	if r == nil {
		return nil
	}
	data := make([]string, 0, len(r.Lines)+1)
	data = append(data, r.Lines...)
	if r.Text != "" {
		data = append(data, r.Status+" "+r.Text)
	}
	return data
}
