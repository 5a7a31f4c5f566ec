// Package vcsdriver executes version-control commands against a working
// directory and returns their raw stdout text for vcsparse to interpret. It
// ships two backends behind the same Driver interface: ExecDriver shells
// out to the real executable on PATH, and LibGitDriver reproduces the same
// textual shapes in-process via go-git, for environments where no
// executable is available.
package vcsdriver

import (
	"errors"
	"fmt"

	"github.com/sitehost/scmcore/pkg/sctx"
)

// ErrDriver wraps a non-zero exit or I/O failure from a command invocation.
var ErrDriver = errors.New("vcsdriver: command failed")

// ErrEmptyRepository is returned by operations that are meaningless against
// a repository with no commits, where the driver can detect this cheaply.
var ErrEmptyRepository = errors.New("vcsdriver: empty repository")

func driverErr(argv []string, cause error) error {
	return fmt.Errorf("%w: %v: %w", ErrDriver, argv, cause)
}

// Driver is the minimal command-execution contract the rest of this module
// depends on: run argv inside workingDir and return its stdout text.
// Non-zero exit is a failure distinct from a parse error raised later by
// vcsparse against a successful Driver's output.
type Driver interface {
	Execute(ctx sctx.Context, workingDir string, argv []string) (string, error)
}
