package netutil

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/sitehost/scmcore/pkg/sctx"
)

// sentryFlushTimeout bounds how long a panic report waits for Sentry to
// drain its queue before giving up.
const sentryFlushTimeout = 5 * time.Second

// reportPanic captures a recovered panic value, forwards it to Sentry, and
// logs it with its stack trace under msg. It returns false when there was
// nothing to recover, so callers can tell a clean return from a handled
// panic.
func reportPanic(ctx sctx.Context, recovered any, msg string) bool {
	if recovered == nil {
		return false
	}
	if eventID := sentry.CurrentHub().Recover(recovered); eventID != nil {
		ctx.Logger().Info("panic captured", "event_id", *eventID)
	}
	ctx.Logger().Error(fmt.Errorf("panic"), msg,
		"stack-trace", string(debug.Stack()),
		"recover", recovered,
	)
	if !sentry.Flush(sentryFlushTimeout) {
		ctx.Logger().Info("sentry flush failed")
	}
	return true
}

// Recover isolates a single unit of work's panic from the rest of its
// caller — deferred directly (not wrapped in a closure) at the top of a
// goroutine or loop iteration that must not let one bad input, such as a
// malformed function.json, abort a larger aggregate operation.
func Recover(ctx sctx.Context) {
	reportPanic(ctx, recover(), "recovered from panic")
}

// RecoverWithExit is Recover for a process's top-level deferred call: a
// crash still gets its Sentry report flushed, then the process exits
// instead of unwinding further with a corrupted call stack.
func RecoverWithExit(ctx sctx.Context) {
	if reportPanic(ctx, recover(), "recovered from panic before exiting") {
		os.Exit(1)
	}
}
