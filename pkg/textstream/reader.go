// Package textstream provides a cursor-based reader over an in-memory
// string, used by vcsparse to tokenize porcelain/log/diff output without
// copying beyond what callers ask for.
package textstream

import "strings"

// Reader wraps an immutable string with a read cursor. All operations are
// O(n) in the characters consumed and return slices of the original string;
// put-back is bounded by the length of the most recently returned slice.
type Reader struct {
	s      string
	pos    int
	lastN  int // length of the most recently returned slice, for PutBack bounds
}

// New returns a Reader positioned at the start of s.
func New(s string) *Reader {
	return &Reader{s: s}
}

// Done reports whether the cursor is at the end of the string.
func (r *Reader) Done() bool {
	return r.pos >= len(r.s)
}

// ReadLine returns the characters up to and including the next line feed,
// or the remainder of the string if none remains.
func (r *Reader) ReadLine() string {
	if r.Done() {
		r.lastN = 0
		return ""
	}
	rest := r.s[r.pos:]
	idx := strings.IndexByte(rest, '\n')
	var line string
	if idx < 0 {
		line = rest
	} else {
		line = rest[:idx+1]
	}
	r.pos += len(line)
	r.lastN = len(line)
	return line
}

// ReadUntil returns the characters up to but not including the first
// occurrence of ch, advancing past them but not past ch itself. If ch does
// not occur, it returns the remainder and the reader is left Done.
func (r *Reader) ReadUntil(ch byte) string {
	if r.Done() {
		r.lastN = 0
		return ""
	}
	rest := r.s[r.pos:]
	idx := strings.IndexByte(rest, ch)
	var out string
	if idx < 0 {
		out = rest
	} else {
		out = rest[:idx]
	}
	r.pos += len(out)
	r.lastN = len(out)
	return out
}

// ReadUntilWhitespace is ReadUntil generalized to any ASCII whitespace
// delimiter.
func (r *Reader) ReadUntilWhitespace() string {
	if r.Done() {
		r.lastN = 0
		return ""
	}
	rest := r.s[r.pos:]
	idx := strings.IndexFunc(rest, isASCIISpace)
	var out string
	if idx < 0 {
		out = rest
	} else {
		out = rest[:idx]
	}
	r.pos += len(out)
	r.lastN = len(out)
	return out
}

// ReadToEnd returns and consumes the remainder of the string.
func (r *Reader) ReadToEnd() string {
	out := r.s[r.pos:]
	r.pos = len(r.s)
	r.lastN = len(out)
	return out
}

// Skip advances the cursor by n characters, bounded by the end of the
// string.
func (r *Reader) Skip(n int) {
	r.pos += n
	if r.pos > len(r.s) {
		r.pos = len(r.s)
	}
	r.lastN = 0
}

// SkipWhitespace advances the cursor past any run of ASCII whitespace.
func (r *Reader) SkipWhitespace() {
	for !r.Done() && isASCIISpace(rune(r.s[r.pos])) {
		r.pos++
	}
	r.lastN = 0
}

// PutBack rewinds the cursor by n characters. n must not exceed the length
// of the most recently returned slice — callers use this to re-expose a
// line that was consumed only to test its prefix.
func (r *Reader) PutBack(n int) {
	if n > r.lastN {
		n = r.lastN
	}
	r.pos -= n
	if r.pos < 0 {
		r.pos = 0
	}
	r.lastN -= n
}

// PutBackLine is shorthand for PutBack(len(line)), restoring the cursor to
// before line and leaving the reader able to re-read it.
func (r *Reader) PutBackLine(line string) {
	r.PutBack(len(line))
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
