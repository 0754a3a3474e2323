package imapio

import (
	"fmt"
	"io"
	"math/rand/v2"
)

// Session is an authenticated mailbox account driven over one Transport.
// It is not safe for concurrent use; open one session per goroutine.
type Session struct {
	Host string
	Port int
	User string

	// Shuffle randomizes folder and message order during walks. Nil keeps
	// the order the server reports.
	Shuffle func(n int, swap func(i, j int))

	t      Transport
	folder string
}

// NewSession wraps an already authenticated transport
func NewSession(t Transport, host string, port int, user string) *Session {
	return &Session{
		Host:    host,
		Port:    port,
		User:    user,
		Shuffle: rand.Shuffle,
		t:       t,
	}
}

// Connect dials host over TLS and logs in with LOGIN
func Connect(host string, port int, user, password string) (*Session, error) {
	d, err := New(user, password, host, port)
	return connected(d, err, host, port, user)
}

// ConnectPlain dials host over TLS and authenticates with SASL PLAIN
func ConnectPlain(host string, port int, user, password string) (*Session, error) {
	d, err := NewWithPlain(user, password, host, port)
	return connected(d, err, host, port, user)
}

// ConnectOAuth2 dials host over TLS and authenticates with XOAUTH2
func ConnectOAuth2(host string, port int, user, accessToken string) (*Session, error) {
	d, err := NewWithOAuth2(user, accessToken, host, port)
	return connected(d, err, host, port, user)
}

func connected(d *Dialer, err error, host string, port int, user string) (*Session, error) {
	if err != nil {
		return nil, fmt.Errorf("[%s@%s:%d] could not connect to server: %w", user, host, port, err)
	}
	return NewSession(d, host, port, user), nil
}

// Transport returns the command channel the session drives
func (s *Session) Transport() Transport {
	return s.t
}

// Folder returns the folder selected by the last successful Cd
func (s *Session) Folder() string {
	return s.folder
}

// Close closes the transport when it can be closed
func (s *Session) Close() error {
	if c, ok := s.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("%s@%s:%d", s.User, s.Host, s.Port)
}

// context renders the "[user@host:port] [detail]" prefix used in errors
func (s *Session) context(detail string) string {
	if detail == "" {
		return "[" + s.String() + "]"
	}
	return "[" + s.String() + "] [" + detail + "]"
}

func (s *Session) shuffle(n int, swap func(i, j int)) {
	if s.Shuffle != nil && n > 1 {
		s.Shuffle(n, swap)
	}
}

// transportError attaches context to an error returned by the transport,
// keeping aborts recognizable
func transportError(context, text string, err error) error {
	if IsAbort(err) {
		return &AbortError{Context: context, Text: text, Err: err}
	}
	return fmt.Errorf("%s %s: %w", context, text, err)
}
