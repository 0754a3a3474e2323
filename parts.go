package imapio

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
)

// Part is one leaf of a message's MIME tree. Index counts every node,
// containers included, depth-first from the root at 0.
type Part struct {
	Index       int
	Filename    string
	ContentType string
	Charset     string // charset Text was decoded with
	Payload     []byte // transfer-decoded bytes; nil when peeking
	Text        string // Payload as text when charset decoding was asked for
}

func (p Part) String() string {
	name := p.Filename
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("#%d %s %s", p.Index, p.ContentType, name)
}

// ExtractParts reads a stored message (".gz" and ".mbox" are unwrapped)
// and returns its leaf parts. See ReadParts.
func ExtractParts(sourcePath string, indices []int, peek, decodeCharset bool) (parts []Part, err error) {
	f, err := openFile(sourcePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadParts(f, indices, peek, decodeCharset)
}

// ReadParts walks a MIME message and returns its non-multipart parts,
// limited to indices when any are given. Payloads are left out when
// peeking. With decodeCharset, Text is filled using the part's charset,
// then the message's charset, then a detected one; bytes that still do not
// decode are dropped.
func ReadParts(r io.Reader, indices []int, peek, decodeCharset bool) ([]Part, error) {
	entity, err := message.Read(r)
	if entity == nil || (err != nil && !lenient(err)) {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	_, rootParams, _ := entity.Header.ContentType()
	defaultCharset := rootParams["charset"]

	parts := make([]Part, 0)
	index := -1
	err = entity.Walk(func(_ []int, e *message.Entity, err error) error {
		if err != nil && !lenient(err) {
			return err
		}
		if e == nil {
			return nil
		}
		index++

		mediaType, params, _ := e.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if len(indices) > 0 && !slices.Contains(indices, index) {
			return nil
		}

		p := Part{Index: index, ContentType: mediaType}
		if name, ferr := (&gomail.AttachmentHeader{Header: e.Header}).Filename(); ferr == nil && name != "" {
			p.Filename = DecodeHeader(name)
		}

		if !peek {
			if p.Payload, err = io.ReadAll(e.Body); err != nil {
				return fmt.Errorf("read part %d: %w", index, err)
			}
			if decodeCharset {
				p.Text, p.Charset = decodeText(p.Payload, params["charset"], defaultCharset)
			}
		}

		parts = append(parts, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk message: %w", err)
	}
	return parts, nil
}

// lenient reports errors go-message raises while still producing a usable
// entity
func lenient(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
