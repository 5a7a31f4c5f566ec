package vcsparse

import (
	"strings"

	"github.com/sitehost/scmcore/pkg/textstream"
)

var statusCodes = map[string]ChangeType{
	"A":  Added,
	"AM": Added,
	"M":  Modified,
	"MM": Modified,
	"D":  Deleted,
	"R":  Renamed,
	"??": Untracked,
}

// ParseStatus parses `status --porcelain` output into a sequence of
// FileStatus records, in source order.
func ParseStatus(s string) ([]FileStatus, error) {
	r := textstream.New(s)
	var out []FileStatus
	for !r.Done() {
		line := strings.TrimRight(r.ReadLine(), "\r\n")
		r2 := textstream.New(line)
		r2.SkipWhitespace()
		if r2.Done() {
			continue
		}
		code := r2.ReadUntilWhitespace()
		r2.SkipWhitespace()
		path := strings.TrimSpace(r2.ReadToEnd())
		if path == "" {
			continue
		}
		ct, ok := statusCodes[code]
		if !ok {
			return nil, unsupportedStatusErr(code)
		}
		out = append(out, FileStatus{Path: path, Type: ct})
	}
	return out, nil
}
