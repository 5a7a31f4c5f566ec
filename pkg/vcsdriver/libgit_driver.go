package vcsdriver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sitehost/scmcore/pkg/sctx"
)

func readFileText(workingDir, path string) (string, error) {
	b, err := os.ReadFile(filepath.Join(workingDir, path))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LibGitDriver reproduces the textual shapes ExecDriver gets from the real
// executable, but in-process via go-git — for environments with no
// executable on PATH. It dispatches on the same argument vectors the core
// sends to C4, producing output vcsparse parses identically either way.
type LibGitDriver struct{}

// NewLibGitDriver returns a LibGitDriver.
func NewLibGitDriver() *LibGitDriver { return &LibGitDriver{} }

func (d *LibGitDriver) Execute(ctx sctx.Context, workingDir string, argv []string) (out string, err error) {
	start := time.Now()
	defer func() { observe("libgit", argv, start, err) }()

	if len(argv) == 0 {
		return "", driverErr(argv, fmt.Errorf("empty argument vector"))
	}

	switch argv[0] {
	case "init":
		return d.init(workingDir)
	case "config":
		return "", nil // core.autocrlf has no in-process analogue; accepted as a no-op.
	case "rev-parse":
		return d.revParse(workingDir)
	case "status":
		return d.status(workingDir)
	case "log":
		return d.log(workingDir, argv[1:])
	case "add":
		return d.add(workingDir, argv[1:])
	case "rm":
		return d.rm(workingDir, argv[1:])
	case "commit":
		return d.commit(workingDir, argv[1:])
	case "show":
		return d.show(workingDir, argv[1:])
	case "checkout":
		return d.checkout(workingDir, argv[1:])
	case "diff":
		return d.diff(workingDir, argv[1:])
	case "branch":
		return d.branch(workingDir)
	default:
		return "", driverErr(argv, fmt.Errorf("unsupported subcommand"))
	}
}

func (d *LibGitDriver) init(workingDir string) (string, error) {
	if _, err := git.PlainInit(workingDir, false); err != nil {
		return "", driverErr([]string{"init"}, err)
	}
	return "", nil
}

func (d *LibGitDriver) open(workingDir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(workingDir)
	if err != nil {
		return nil, driverErr([]string{"open"}, err)
	}
	return repo, nil
}

func (d *LibGitDriver) revParse(workingDir string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", driverErr([]string{"rev-parse", "HEAD"}, ErrEmptyRepository)
		}
		return "", driverErr([]string{"rev-parse", "HEAD"}, err)
	}
	return head.Hash().String() + "\n", nil
}

func (d *LibGitDriver) status(workingDir string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr([]string{"status"}, err)
	}
	st, err := wt.Status()
	if err != nil {
		return "", driverErr([]string{"status"}, err)
	}

	paths := make([]string, 0, len(st))
	for p := range st {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf strings.Builder
	for _, p := range paths {
		code := porcelainCode(st[p])
		if code == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s %s\n", code, p)
	}
	return buf.String(), nil
}

// porcelainCode maps a go-git FileStatus to a porcelain status code
// ("??", "A", "M", "D" or "R") that vcsparse's statusCodes table
// recognizes, or "" for an unchanged path.
func porcelainCode(fs *git.FileStatus) string {
	switch {
	case fs.Worktree == git.Untracked:
		return "??"
	case fs.Staging == git.Added:
		return "A"
	case fs.Staging == git.Modified || fs.Worktree == git.Modified:
		return "M"
	case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
		return "D"
	case fs.Staging == git.Renamed:
		return "R"
	default:
		return ""
	}
}

func (d *LibGitDriver) log(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	iter, err := repo.Log(&git.LogOptions{All: true})
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", nil
		}
		return "", driverErr(append([]string{"log"}, args...), err)
	}

	skip, limit := parseSkipLimit(args)

	var buf strings.Builder
	i := 0
	_ = iter.ForEach(func(c *object.Commit) error {
		defer func() { i++ }()
		if i < skip {
			return nil
		}
		if limit >= 0 && i >= skip+limit {
			return io.EOF
		}
		writeCommitBlock(&buf, c)
		buf.WriteString("\n")
		return nil
	})
	return buf.String(), nil
}

// parseSkipLimit reads the `--skip N`, `-n M`, and `--max-count=M` pagination
// flags, if present — the last is what cmd/scmsyncd's `log` subcommand
// actually sends; the real git binary accepts all three.
func parseSkipLimit(args []string) (skip, limit int) {
	limit = -1
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--skip":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &skip)
			}
		case arg == "-n":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &limit)
			}
		case strings.HasPrefix(arg, "--max-count="):
			fmt.Sscanf(strings.TrimPrefix(arg, "--max-count="), "%d", &limit)
		}
	}
	return skip, limit
}

func writeCommitBlock(buf *strings.Builder, c *object.Commit) {
	fmt.Fprintf(buf, "commit %s\n", c.Hash.String())
	fmt.Fprintf(buf, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(buf, "Date:   %s\n", c.Author.When.Format(TimestampLayout))
	buf.WriteString("\n")
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(buf, "    %s\n", line)
	}
}

// TimestampLayout mirrors vcsparse.TimestampLayout so this package does not
// need to import vcsparse just for a format string.
const TimestampLayout = "Mon Jan 2 15:04:05 2006 -0700"

func (d *LibGitDriver) add(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr(append([]string{"add"}, args...), err)
	}
	if len(args) == 1 && args[0] == "." {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return "", driverErr(args, err)
		}
		return "", nil
	}
	for _, p := range args {
		if _, err := wt.Add(p); err != nil {
			return "", driverErr(args, err)
		}
	}
	return "", nil
}

func (d *LibGitDriver) rm(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr(append([]string{"rm"}, args...), err)
	}
	for _, a := range args {
		if a == "--cached" {
			continue
		}
		if _, err := wt.Remove(a); err != nil {
			return "", driverErr(args, err)
		}
	}
	return "", nil
}

func (d *LibGitDriver) commit(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr(append([]string{"commit"}, args...), err)
	}

	st, err := wt.Status()
	if err == nil && st.IsClean() {
		return "nothing to commit, working directory clean\n", nil
	}

	msg, author := parseCommitArgs(args)
	name, email := splitCommitAuthor(author)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: name, Email: email, When: nowFunc()},
	})
	if err != nil {
		return "", driverErr(args, err)
	}
	return "", nil
}

// nowFunc is overridable in tests; production uses wall-clock time.
var nowFunc = time.Now

func parseCommitArgs(args []string) (msg, author string) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-m" && i+1 < len(args):
			msg = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--author="):
			author = strings.TrimPrefix(args[i], "--author=")
		}
	}
	return msg, author
}

func splitCommitAuthor(author string) (name, email string) {
	lt := strings.IndexByte(author, '<')
	gt := strings.IndexByte(author, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return author, "unknown@localhost"
	}
	return strings.TrimSpace(author[:lt]), strings.TrimSpace(author[lt+1:gt])
}

func (d *LibGitDriver) show(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", driverErr(append([]string{"show"}, args...), fmt.Errorf("missing id"))
	}
	id := args[0]
	hash, err := resolveRevision(repo, id)
	if err != nil {
		return "", driverErr(args, err)
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return "", driverErr(args, err)
	}

	nameStatusOnly := containsArg(args, "--name-status")
	numstat := containsArg(args, "--numstat")

	var parent *object.Commit
	if commit.NumParents() > 0 {
		parent, err = commit.Parent(0)
		if err != nil {
			return "", driverErr(args, err)
		}
	}

	var buf strings.Builder
	if !nameStatusOnly {
		writeCommitBlock(&buf, commit)
		buf.WriteString("\n")
	} else {
		fmt.Fprintf(&buf, "%s\n", commit.Hash.String())
	}

	toTree, err := commit.Tree()
	if err != nil {
		return "", driverErr(args, err)
	}

	// A root commit (no parent) has nothing to diff a *object.Patch
	// against; every file in its tree is an addition.
	if parent == nil {
		if err := writeRootCommitDiff(&buf, toTree, nameStatusOnly, numstat); err != nil {
			return "", driverErr(args, err)
		}
		return buf.String(), nil
	}

	fromTree, err := parent.Tree()
	if err != nil {
		return "", driverErr(args, err)
	}
	patch, err := fromTree.Patch(toTree)
	if err != nil {
		return "", driverErr(args, err)
	}

	if nameStatusOnly {
		writeNameStatus(&buf, patch)
		return buf.String(), nil
	}
	if numstat {
		writeNumstatAndShortstat(&buf, patch)
	}
	writeUnifiedDiff(&buf, patch)
	return buf.String(), nil
}

// writeRootCommitDiff handles the initial commit: go-git's object.Patch is
// produced from a tree-to-tree comparison, so a commit with no parent (no
// "from" tree) is reported by walking its tree directly instead, with every
// file treated as an addition.
func writeRootCommitDiff(buf *strings.Builder, tree *object.Tree, nameStatusOnly, numstat bool) error {
	type entry struct {
		path string
		text string
	}
	var entries []entry
	err := tree.Files().ForEach(func(f *object.File) error {
		content, cerr := f.Contents()
		if cerr != nil {
			content = ""
		}
		entries = append(entries, entry{path: f.Name, text: content})
		return nil
	})
	if err != nil {
		return err
	}

	if nameStatusOnly {
		for _, e := range entries {
			fmt.Fprintf(buf, "A\t%s\n", e.path)
		}
		return nil
	}

	if numstat {
		total := 0
		for _, e := range entries {
			n := len(splitNonEmptyLines(e.text))
			fmt.Fprintf(buf, "%d\t0\t%s\n", n, e.path)
			total += n
		}
		fmt.Fprintf(buf, "%d files changed, %d insertions(+)\n", len(entries), total)
	}
	for _, e := range entries {
		fmt.Fprintf(buf, "diff --git a/%s b/%s\n", e.path, e.path)
		fmt.Fprintf(buf, "--- /dev/null\n")
		fmt.Fprintf(buf, "+++ b/%s\n", e.path)
		buf.WriteString("@@ -0,0 +0,0 @@\n")
		for _, l := range splitNonEmptyLines(e.text) {
			buf.WriteString("+" + l + "\n")
		}
	}
	return nil
}

func resolveRevision(repo *git.Repository, id string) (plumbing.Hash, error) {
	if id == "HEAD" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return head.Hash(), nil
	}
	return plumbing.NewHash(id), nil
}

func containsArg(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func writeNumstatAndShortstat(buf *strings.Builder, patch *object.Patch) {
	binaryPaths := binaryFilePaths(patch)
	stats := patch.Stats()
	ins, del := 0, 0
	for _, s := range stats {
		if binaryPaths[statName(s)] {
			fmt.Fprintf(buf, "-\t-\t%s\n", statName(s))
			continue
		}
		fmt.Fprintf(buf, "%d\t%d\t%s\n", s.Addition, s.Deletion, statName(s))
		ins += s.Addition
		del += s.Deletion
	}
	fmt.Fprintf(buf, "%d files changed, %d insertions(+), %d deletions(-)\n", len(stats), ins, del)
}

// binaryFilePaths reports, per path, whether patch's FilePatches marked it
// binary — go-git's authoritative signal, unlike a zero/zero stat line
// which an empty or unchanged text file also produces.
func binaryFilePaths(patch *object.Patch) map[string]bool {
	out := make(map[string]bool)
	for _, fp := range patch.FilePatches() {
		if !fp.IsBinary() {
			continue
		}
		from, to := fp.Files()
		out[filePatchPath(from, to)] = true
	}
	return out
}

func statName(s object.FileStat) string { return s.Name }

func writeNameStatus(buf *strings.Builder, patch *object.Patch) {
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case from == nil && to != nil:
			fmt.Fprintf(buf, "A\t%s\n", to.Path())
		case from != nil && to == nil:
			fmt.Fprintf(buf, "D\t%s\n", from.Path())
		case from != nil && to != nil:
			fmt.Fprintf(buf, "M\t%s\n", to.Path())
		}
	}
}

func writeUnifiedDiff(buf *strings.Builder, patch *object.Patch) {
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		path := filePatchPath(from, to)
		fmt.Fprintf(buf, "diff --git a/%s b/%s\n", path, path)
		if fp.IsBinary() {
			buf.WriteString("GIT binary patch\n")
			continue
		}
		fmt.Fprintf(buf, "--- a/%s\n", path)
		fmt.Fprintf(buf, "+++ b/%s\n", path)
		buf.WriteString("@@ -0,0 +0,0 @@\n")
		for _, chunk := range fp.Chunks() {
			prefix := " "
			switch chunk.Type() {
			case gitdiff.Add:
				prefix = "+"
			case gitdiff.Delete:
				prefix = "-"
			}
			for _, line := range strings.SplitAfter(chunk.Content(), "\n") {
				if line == "" {
					continue
				}
				buf.WriteString(prefix)
				buf.WriteString(line)
				if !strings.HasSuffix(line, "\n") {
					buf.WriteString("\n")
				}
			}
		}
	}
}

func filePatchPath(from, to interface {
	Path() string
}) string {
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

func (d *LibGitDriver) checkout(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", driverErr(append([]string{"checkout"}, args...), fmt.Errorf("missing id"))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr(args, err)
	}
	hash, err := resolveRevision(repo, args[0])
	if err != nil {
		return "", driverErr(args, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", driverErr(args, err)
	}
	return "", nil
}

// diff reproduces `diff --staged` against the now-added worktree contents.
// go-git has no direct "index tree" object to hand to Tree.Patch, so unlike
// show() (which diffs two real commit trees) this walks the status map
// directly: each path's blob in HEAD's tree against the file now on disk.
func (d *LibGitDriver) diff(workingDir string, args []string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", driverErr(append([]string{"diff"}, args...), err)
	}
	st, err := wt.Status()
	if err != nil {
		return "", driverErr(args, err)
	}

	var headTree *object.Tree
	if head, err := repo.Head(); err == nil {
		if commit, err := repo.CommitObject(head.Hash()); err == nil {
			headTree, _ = commit.Tree()
		}
	}

	paths := make([]string, 0, len(st))
	for p := range st {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if containsArg(args, "--name-status") {
		var buf strings.Builder
		for _, p := range paths {
			code := porcelainCode(st[p])
			if code == "" || code == "??" {
				continue
			}
			fmt.Fprintf(&buf, "%s\t%s\n", code, p)
		}
		return buf.String(), nil
	}

	var buf strings.Builder
	filesChanged, ins, del := 0, 0, 0
	for _, p := range paths {
		code := porcelainCode(st[p])
		if code == "" {
			continue
		}
		oldLines := treeFileLines(headTree, p)
		newLines := workingFileLines(workingDir, p, code)

		filesChanged++
		ins += len(newLines)
		del += len(oldLines)
		fmt.Fprintf(&buf, "%d\t%d\t%s\n", len(newLines), len(oldLines), p)
	}
	fmt.Fprintf(&buf, "%d files changed, %d insertions(+), %d deletions(-)\n", filesChanged, ins, del)

	for _, p := range paths {
		code := porcelainCode(st[p])
		if code == "" {
			continue
		}
		oldLines := treeFileLines(headTree, p)
		newLines := workingFileLines(workingDir, p, code)

		fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", p, p)
		fmt.Fprintf(&buf, "--- a/%s\n", p)
		fmt.Fprintf(&buf, "+++ b/%s\n", p)
		buf.WriteString("@@ -0,0 +0,0 @@\n")
		for _, l := range oldLines {
			buf.WriteString("-" + l + "\n")
		}
		for _, l := range newLines {
			buf.WriteString("+" + l + "\n")
		}
	}
	return buf.String(), nil
}

func treeFileLines(tree *object.Tree, path string) []string {
	if tree == nil {
		return nil
	}
	f, err := tree.File(path)
	if err != nil {
		return nil
	}
	content, err := f.Contents()
	if err != nil {
		return nil
	}
	return splitNonEmptyLines(content)
}

func workingFileLines(workingDir, path, code string) []string {
	if code == "D" {
		return nil
	}
	content, err := readFileText(workingDir, path)
	if err != nil {
		return nil
	}
	return splitNonEmptyLines(content)
}

func splitNonEmptyLines(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func (d *LibGitDriver) branch(workingDir string) (string, error) {
	repo, err := d.open(workingDir)
	if err != nil {
		return "", err
	}
	refs, err := repo.Branches()
	if err != nil {
		return "", driverErr([]string{"branch"}, err)
	}
	var buf bytes.Buffer
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		fmt.Fprintf(&buf, "  %s\n", ref.Name().Short())
		return nil
	})
	return buf.String(), nil
}

