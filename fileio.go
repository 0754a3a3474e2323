package imapio

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
)

// stack is a reader or writer layered over a file, closed innermost first
type stack struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s *stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *stack) push(c io.Closer) {
	s.closers = append([]io.Closer{c}, s.closers...)
}

// createFile opens path for writing one message. A ".gz" suffix compresses
// the output; ".mbox" (also under ".gz") appends to a mailbox file.
func createFile(path string) (io.WriteCloser, error) {
	inner, gz := strings.CutSuffix(path, ".gz")
	isMbox := strings.HasSuffix(inner, ".mbox")

	var f *os.File
	var err error
	if isMbox {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	} else {
		f, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	s := &stack{Writer: f, closers: []io.Closer{f}}
	if gz {
		zw := gzip.NewWriter(s.Writer)
		s.Writer = zw
		s.push(zw)
	}
	if isMbox {
		mw := &mboxWriter{dst: s.Writer}
		s.Writer = mw
		s.push(mw)
	}
	return s, nil
}

// openFile opens a message written by createFile. For mailbox files only
// the first message is read.
func openFile(path string) (io.ReadCloser, error) {
	inner, gz := strings.CutSuffix(path, ".gz")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &stack{Reader: f, closers: []io.Closer{f}}
	if gz {
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		s.Reader = zr
		s.push(zr)
	}
	if strings.HasSuffix(inner, ".mbox") {
		r, err := mbox.NewReader(s.Reader).NextMessage()
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("read mailbox %s: %w", path, err)
		}
		s.Reader = r
	}
	return s, nil
}

// writeFile stores one raw message at path
func writeFile(path string, raw []byte) (err error) {
	w, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = w.Write(raw)
	return err
}

// mboxWriter buffers a message so its envelope sender and date are known
// before the "From " separator line is written
type mboxWriter struct {
	buf bytes.Buffer
	dst io.Writer
}

func (m *mboxWriter) Write(p []byte) (int, error) {
	return m.buf.Write(p)
}

func (m *mboxWriter) Close() error {
	from, date := envelope(m.buf.Bytes())
	w := mbox.NewWriter(m.dst)
	mw, err := w.CreateMessage(from, date)
	if err != nil {
		return fmt.Errorf("mbox: %w", err)
	}
	if _, err = mw.Write(m.buf.Bytes()); err != nil {
		return fmt.Errorf("mbox: %w", err)
	}
	return w.Close()
}

// envelope returns the sender address and date used on the mbox separator
func envelope(raw []byte) (string, time.Time) {
	from, date := "MAILER-DAEMON", time.Now().UTC()
	h, _ := readHeader(headerBlock(raw))
	if a, err := mail.ParseAddress(h.Get("From")); err == nil {
		from = a.Address
	}
	if t := parseDate(h.Get("Date")); !t.IsZero() {
		date = t
	}
	return from, date
}

// headerBlock cuts the header section off a raw message
func headerBlock(raw []byte) []byte {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+4]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+2]
	}
	return raw
}
