package vcsparse

import (
	"strconv"
	"strings"

	"github.com/sitehost/scmcore/pkg/textstream"
)

// ParseShow parses the output of `show <id> -m -p --numstat --shortstat`
// (or the working-tree `diff --numstat --shortstat` equivalent, when
// includeChangeSet is false) into a ChangeSetDetail.
func ParseShow(r *textstream.Reader, includeChangeSet bool) (*ChangeSetDetail, error) {
	var detail *ChangeSetDetail
	if includeChangeSet {
		cs, err := ParseCommitBlock(r)
		if err != nil {
			return nil, err
		}
		detail = newChangeSetDetail(cs)
	} else {
		detail = newChangeSetDetail(nil)
	}

	if err := parseSummarySection(r, detail); err != nil {
		return nil, err
	}
	if err := parseDiffSection(r, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func parseSummarySection(r *textstream.Reader, detail *ChangeSetDetail) error {
	for !r.Done() {
		line := r.ReadLine()
		if IsSingleLineFeed(line) || line == "" {
			return nil
		}
		if strings.HasPrefix(line, "diff --git") {
			r.PutBackLine(line)
			return nil
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.Contains(trimmed, "\t") {
			parseNumstatLine(trimmed, detail)
			continue
		}
		ParseSummaryFooter(trimmed, detail)
	}
	return nil
}

func parseNumstatLine(line string, detail *ChangeSetDetail) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return
	}
	ins, del, path := fields[0], fields[1], fields[2]
	fi := detail.fileInfo(path)
	if ins == "-" || del == "-" {
		fi.Binary = true
		fi.Insertions, fi.Deletions = 0, 0
		return
	}
	if n, err := strconv.Atoi(ins); err == nil {
		fi.Insertions = n
	}
	if n, err := strconv.Atoi(del); err == nil {
		fi.Deletions = n
	}
}

func parseDiffSection(r *textstream.Reader, detail *ChangeSetDetail) error {
	for !r.Done() {
		line := r.ReadLine()
		if !strings.HasPrefix(line, "diff --git") {
			continue
		}
		r.PutBackLine(line)
		fd, err := parseFileDiffChunk(r, detail)
		if err != nil {
			return err
		}
		if fd != nil {
			mergeFileDiff(detail, fd)
		}
	}
	return nil
}

// parseFileDiffChunk parses one `diff --git a/<path> b/<path>` chunk,
// starting at its header line. It returns nil, nil when the chunk is
// discarded because the enclosing merge detail already has this path.
func parseFileDiffChunk(r *textstream.Reader, detail *ChangeSetDetail) (*FileDiff, error) {
	header := strings.TrimRight(r.ReadLine(), "\r\n")
	fileName := extractDiffGitFileName(header)

	if detail.mergeContext && detail.HasFile(fileName) {
		skipToNextDiffHeaderOrEnd(r)
		return nil, nil
	}

	fd := &FileDiff{FileName: fileName}

	// Scan header/index lines until the first hunk marker or a binary
	// patch announcement.
	for !r.Done() {
		line := r.ReadLine()
		if strings.HasPrefix(line, "diff --git") {
			r.PutBackLine(line)
			return fd, nil
		}
		if strings.HasPrefix(line, "GIT binary patch") {
			fd.Binary = true
			skipToNextDiffHeaderOrEnd(r)
			return fd, nil
		}
		if strings.HasPrefix(line, "@@") {
			r.PutBackLine(line)
			break
		}
	}

	for !r.Done() {
		line := r.ReadLine()
		switch {
		case strings.HasPrefix(line, "diff --git"):
			r.PutBackLine(line)
			return fd, nil
		case IsCommitHeader(line):
			r.PutBackLine(line)
			if _, err := ParseCommitBlock(r); err != nil {
				return nil, err
			}
			detail.mergeContext = true
			if err := parseSummarySection(r, detail); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "@@"):
			// A hunk header, possibly the second and later one in a
			// multi-hunk diff; it carries no line content of its own.
		case strings.HasPrefix(line, "+"):
			fd.Lines = append(fd.Lines, LineDiff{Type: Added, Text: line})
		case strings.HasPrefix(line, "-"):
			fd.Lines = append(fd.Lines, LineDiff{Type: Deleted, Text: line})
		default:
			fd.Lines = append(fd.Lines, LineDiff{Type: None, Text: line})
		}
	}
	return fd, nil
}

func skipToNextDiffHeaderOrEnd(r *textstream.Reader) {
	for !r.Done() {
		line := r.ReadLine()
		if strings.HasPrefix(line, "diff --git") {
			r.PutBackLine(line)
			return
		}
	}
}

// extractDiffGitFileName pulls the path out of a `diff --git a/<path>
// b/<path>` header line: the substring after "a/" up to the next
// whitespace.
func extractDiffGitFileName(header string) string {
	idx := strings.Index(header, " a/")
	if idx < 0 {
		return ""
	}
	rest := header[idx+len(" a/"):]
	end := strings.IndexAny(rest, " \t")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

// mergeFileDiff merges fd into detail's file map: binary is OR'd and
// becomes sticky, fd.Binary is updated to the merged value so the returned
// object stays consistent, and diff lines are appended in order.
func mergeFileDiff(detail *ChangeSetDetail, fd *FileDiff) {
	fi := detail.fileInfo(fd.FileName)
	fi.Binary = fi.Binary || fd.Binary
	fd.Binary = fi.Binary
	fi.Lines = append(fi.Lines, fd.Lines...)
}

// ParseNameStatus applies `--name-status` output to an existing detail,
// updating each known path's ChangeType. Unknown paths and unsupported
// status codes are ignored.
func ParseNameStatus(s string, detail *ChangeSetDetail) {
	r := textstream.New(s)
	for !r.Done() {
		line := strings.TrimRight(r.ReadLine(), "\r\n")
		if !strings.Contains(line, "\t") {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		code, path := fields[0], fields[1]
		ct, ok := statusCodes[code]
		if !ok {
			continue
		}
		if fi, ok := detail.Files[path]; ok {
			fi.Type = ct
		}
	}
}
