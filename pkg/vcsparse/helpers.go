package vcsparse

import (
	"regexp"
	"strconv"
	"strings"
)

// TimestampLayout is the fixed format the version-control tool emits commit
// dates in: `Www Mmm d HH:MM:SS YYYY ±HHMM`.
const TimestampLayout = "Mon Jan 2 15:04:05 2006 -0700"

// IsSingleLineFeed reports whether line consists solely of a single LF
// (possibly preceded by CR). Used as a section terminator in commit blocks
// and summaries.
func IsSingleLineFeed(line string) bool {
	return line == "\n" || line == "\r\n"
}

// IsCommitHeader reports whether line begins with `commit `, used mid-diff
// to detect a nested merge-parent block.
func IsCommitHeader(line string) bool {
	return strings.HasPrefix(line, "commit ")
}

var summaryFooterRe = regexp.MustCompile(
	`^\s*(\d+) files? changed(?:, (\d+) insertions?\(\+\))?(?:, (\d+) deletions?\(-\))?`,
)

// ParseSummaryFooter recognizes the `N files changed, N insertions(+), N
// deletions(-)` shortstat line (either trailing clause may be absent,
// reading as zero) and records the totals on detail. Returns false if line
// does not match.
func ParseSummaryFooter(line string, detail *ChangeSetDetail) bool {
	m := summaryFooterRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	detail.FilesChanged, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		detail.Insertions, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		detail.Deletions, _ = strconv.Atoi(m[3])
	}
	return true
}
