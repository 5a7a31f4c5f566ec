package vcsparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/sitehost/scmcore/pkg/textstream"
)

// ParseCommitBlock parses one commit block:
//
//	commit <hash> [(from <hash>)]
//	<Key>: <value>
//	...
//	<blank line>
//	<message lines>
//	<blank line terminator>
//
// The merge-parent annotation on the first line, if any, is intentionally
// ignored. Unknown header keys are ignored.
func ParseCommitBlock(r *textstream.Reader) (*ChangeSet, error) {
	first := strings.TrimRight(r.ReadLine(), "\r\n")
	fields := strings.Fields(first)
	if len(fields) < 2 || fields[0] != "commit" {
		return nil, fmt.Errorf("vcsparse: expected commit header, got %q", first)
	}
	cs := &ChangeSet{ID: fields[1]}

	for {
		line := r.ReadLine()
		if IsSingleLineFeed(line) || line == "" {
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")
		idx := strings.IndexByte(trimmed, ':')
		if idx < 0 {
			continue
		}
		key := trimmed[:idx]
		value := strings.TrimSpace(trimmed[idx+1:])
		switch key {
		case "Author":
			cs.AuthorName, cs.AuthorEmail = splitAuthor(value)
		case "Date":
			ts, err := time.Parse(TimestampLayout, value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			cs.Timestamp = ts
		}
	}

	// Message lines are concatenated without separators — a deliberate
	// quirk of the source format, not a bug; fixtures depend on it.
	var msg strings.Builder
	for {
		line := r.ReadLine()
		if IsSingleLineFeed(line) || line == "" {
			break
		}
		msg.WriteString(line)
	}
	cs.Message = msg.String()

	return cs, nil
}

func splitAuthor(value string) (name, email string) {
	lt := strings.IndexByte(value, '<')
	gt := strings.IndexByte(value, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return strings.TrimSpace(value), ""
	}
	return strings.TrimSpace(value[:lt]), strings.TrimSpace(value[lt+1:gt])
}

// ParseLog repeatedly applies ParseCommitBlock until the reader is done.
func ParseLog(s string) ([]ChangeSet, error) {
	r := textstream.New(s)
	var out []ChangeSet
	for !r.Done() {
		skipBlankLines(r)
		if r.Done() {
			break
		}
		cs, err := ParseCommitBlock(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	return out, nil
}

func skipBlankLines(r *textstream.Reader) {
	for !r.Done() {
		line := r.ReadLine()
		if IsSingleLineFeed(line) {
			continue
		}
		r.PutBackLine(line)
		return
	}
}
