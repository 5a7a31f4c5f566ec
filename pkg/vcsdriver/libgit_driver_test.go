package vcsdriver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitehost/scmcore/pkg/sctx"
	"github.com/sitehost/scmcore/pkg/vcsparse"
)

func TestLibGitDriverInitAndEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	d := NewLibGitDriver()
	ctx := sctx.Background()

	_, err := d.Execute(ctx, dir, []string{"init"})
	require.NoError(t, err)

	out, err := d.Execute(ctx, dir, []string{"branch"})
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = d.Execute(ctx, dir, []string{"rev-parse", "HEAD"})
	assert.ErrorIs(t, err, ErrDriver)
}

func TestLibGitDriverCommitAndStatus(t *testing.T) {
	dir := t.TempDir()
	d := NewLibGitDriver()
	ctx := sctx.Background()

	_, err := d.Execute(ctx, dir, []string{"init"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\nworld\n"), 0o644))

	out, err := d.Execute(ctx, dir, []string{"status", "--porcelain"})
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")

	statuses, err := vcsparse.ParseStatus(out)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, vcsparse.Untracked, statuses[0].Type)

	_, err = d.Execute(ctx, dir, []string{"add", "."})
	require.NoError(t, err)

	_, err = d.Execute(ctx, dir, []string{"commit", "-m", "first commit", `--author=Jane Doe <jane@example.com>`})
	require.NoError(t, err)

	head, err := d.Execute(ctx, dir, []string{"rev-parse", "HEAD"})
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(head))

	log, err := d.Execute(ctx, dir, []string{"log", "--all"})
	require.NoError(t, err)
	sets, err := vcsparse.ParseLog(log)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "    first commit\n", sets[0].Message)
	assert.Equal(t, "Jane Doe", sets[0].AuthorName)
}

func TestLibGitDriverCommitCleanIsNoOp(t *testing.T) {
	dir := t.TempDir()
	d := NewLibGitDriver()
	ctx := sctx.Background()

	_, err := d.Execute(ctx, dir, []string{"init"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x\n"), 0o644))
	_, err = d.Execute(ctx, dir, []string{"add", "."})
	require.NoError(t, err)
	_, err = d.Execute(ctx, dir, []string{"commit", "-m", "first", `--author=A <a@x.com>`})
	require.NoError(t, err)

	out, err := d.Execute(ctx, dir, []string{"commit", "-m", "second", `--author=A <a@x.com>`})
	require.NoError(t, err)
	assert.Contains(t, out, "working directory clean")
}

func TestExecDriverUnknownExecutable(t *testing.T) {
	d := NewExecDriver("this-executable-does-not-exist-xyz")
	_, err := d.Execute(sctx.Background(), t.TempDir(), []string{"status"})
	assert.ErrorIs(t, err, ErrDriver)
}

