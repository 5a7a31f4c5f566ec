package vcsdriver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/sitehost/scmcore/pkg/sctx"
)

// ExecDriver shells out to a version-control executable on PATH. It forces
// an invariant locale on every invocation so commit timestamps always come
// back in the fixed English month/day-of-week format vcsparse expects,
// regardless of the host's configured locale.
type ExecDriver struct {
	// Executable is the binary to invoke, e.g. "git".
	Executable string
}

// NewExecDriver returns an ExecDriver that shells out to executable.
func NewExecDriver(executable string) *ExecDriver {
	return &ExecDriver{Executable: executable}
}

// Execute runs d.Executable with argv inside workingDir and returns its
// stdout as text. A non-zero exit or a failure to start the process is
// reported as ErrDriver; ctx's deadline/cancellation aborts the subprocess.
func (d *ExecDriver) Execute(ctx sctx.Context, workingDir string, argv []string) (string, error) {
	start := time.Now()
	log := ctx.Logger().WithValues("executable", d.Executable, "argv", argv, "workingDir", workingDir)

	cmd := exec.CommandContext(ctx, d.Executable, argv...)
	cmd.Dir = workingDir
	cmd.Env = append(cmd.Environ(), "LC_ALL=C", "LANG=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	observe("exec", argv, start, err)
	if err != nil {
		if ctxErr := context.Cause(ctx); ctxErr != nil && ctx.Err() != nil {
			log.V(1).Info("command aborted by context", "cause", ctxErr)
			return "", driverErr(argv, ctxErr)
		}
		log.Error(err, "command failed", "stderr", stderr.String())
		return "", driverErr(argv, fmt.Errorf("%s: %w", stderr.String(), err))
	}
	return stdout.String(), nil
}
