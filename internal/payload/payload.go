// Package payload builds the byte encodings offered to a drop target.
//
// A PathSet is built once from canonical absolute paths and owns two
// immutable buffers:
//   - a text/uri-list encoding: "file://<path>\r\n" per path
//   - a plain-text fallback: "file://<path>" joined by single spaces
//
// Both buffers carry a trailing NUL that is not part of the reported length.
// Path characters are not escaped.
package payload

import (
	"errors"
	"strings"
)

// ErrNoPaths is returned when a PathSet is built from an empty path list.
var ErrNoPaths = errors.New("payload: at least one path is required")

const (
	uriScheme = "file://"
	uriEOL    = "\r\n"
)

// Encoding is a NUL-terminated byte buffer.
type Encoding struct {
	buf []byte
}

func newEncoding(s string) Encoding {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return Encoding{buf: buf}
}

// Bytes returns the encoded content without the terminator.
// The returned slice must not be modified.
func (e Encoding) Bytes() []byte {
	if len(e.buf) == 0 {
		return nil
	}
	return e.buf[:len(e.buf)-1]
}

// Len returns the content length, excluding the terminator.
func (e Encoding) Len() int {
	if len(e.buf) == 0 {
		return 0
	}
	return len(e.buf) - 1
}

// String returns the content without the terminator.
func (e Encoding) String() string {
	return string(e.Bytes())
}

// PathSet is the ordered set of paths offered by one drag session.
type PathSet struct {
	paths   []string
	uriList Encoding
	text    Encoding
}

// New builds a PathSet from already validated absolute paths.
// Order is preserved; later duplicates are dropped.
func New(paths []string) (*PathSet, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	seen := make(map[string]struct{}, len(paths))
	unique := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	var uri, text strings.Builder
	for i, p := range unique {
		uri.WriteString(uriScheme)
		uri.WriteString(p)
		uri.WriteString(uriEOL)

		if i > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(uriScheme)
		text.WriteString(p)
	}

	return &PathSet{
		paths:   unique,
		uriList: newEncoding(uri.String()),
		text:    newEncoding(text.String()),
	}, nil
}

// Paths returns a copy of the offered paths in order.
func (s *PathSet) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Count returns the number of offered paths.
func (s *PathSet) Count() int {
	return len(s.paths)
}

// URIList returns the text/uri-list encoding.
func (s *PathSet) URIList() Encoding {
	return s.uriList
}

// Text returns the plain-text fallback encoding.
func (s *PathSet) Text() Encoding {
	return s.text
}
