// Package sctx wraps context.Context with an attached structured logger,
// so every suspending operation in this module (filesystem I/O, command
// execution, the operations-client POST) carries both a cancellation
// signal and a logger through one parameter, instead of two.
package sctx

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// defaultLogger backs Background/TODO; set once at process start via
// SetDefaultLogger.
var defaultLogger logr.Logger = logr.Discard()

// Context is a context.Context that also carries a structured logger.
type Context interface {
	context.Context
	Logger() logr.Logger
	Parent() context.Context
	SetParent(ctx context.Context) Context
}

// CancelFunc mirrors context.CancelFunc for callers that want to name the
// type explicitly rather than infer it from WithCancel's return.
type CancelFunc context.CancelFunc

// stackOnCancel records, once, the stack trace in effect when a derived
// context's cancel function is what moves it to done — so Err() can report
// where an operation's cancellation was triggered from, without every
// WithCancel/WithDeadline/WithTimeout caller needing to capture that
// themselves. It is safe for concurrent use.
type stackOnCancel struct {
	mu       sync.Mutex
	recorded error
}

func (s *stackOnCancel) record(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded == nil {
		s.recorded = fmt.Errorf("%w (canceled at %v\n%s)", cause, time.Now(), string(debug.Stack()))
	}
}

func (s *stackOnCancel) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

// ctx is the Context implementation: a context.Context plus a logger, and
// optionally a stackOnCancel recorder attached by one of the With*
// constructors below.
type ctx struct {
	context.Context
	log      logr.Logger
	onCancel *stackOnCancel
}

func (c ctx) Logger() logr.Logger { return c.log }
func (c ctx) Parent() context.Context { return c.Context }

func (c ctx) SetParent(p context.Context) Context {
	c.Context = p
	return c
}

func (c ctx) Err() error {
	if c.onCancel != nil {
		if recorded := c.onCancel.get(); recorded != nil {
			return recorded
		}
	}
	return c.Context.Err()
}

// Background returns context.Background with a default logger.
func Background() Context {
	return ctx{log: defaultLogger, Context: context.Background()}
}

// TODO returns context.TODO with a default logger.
func TODO() Context {
	return ctx{log: defaultLogger, Context: context.TODO()}
}

// deriveCancelable builds a child Context from a plain-context constructor
// (context.WithCancel, context.WithDeadline, context.WithTimeout) and
// wraps its cancel func so that, when calling it is what cancels the
// context, the cancellation is recorded with a call stack for later
// diagnosis by Err(). A context that is already done when cancel is called
// (its deadline passed, or its parent was canceled) records nothing. This
// one helper backs WithCancel, WithDeadline, and WithTimeout below instead
// of each repeating the bookkeeping.
func deriveCancelable(parent Context, child context.Context, cancel context.CancelFunc, log logr.Logger) (Context, context.CancelFunc) {
	recorder := &stackOnCancel{}
	derived := ctx{log: log, Context: child, onCancel: recorder}
	return derived, func() {
		done := derived.Context.Err() != nil
		cancel()
		if !done {
			recorder.record(derived.Context.Err())
		}
	}
}

// WithCancel returns context.WithCancel with the log object propagated.
func WithCancel(parent Context) (Context, context.CancelFunc) {
	child, cancel := context.WithCancel(parent)
	return deriveCancelable(parent, child, cancel, parent.Logger())
}

// WithDeadline returns context.WithDeadline with the log object propagated and
// the deadline added to the structured log values.
func WithDeadline(parent Context, d time.Time) (Context, context.CancelFunc) {
	child, cancel := context.WithDeadline(parent, d)
	return deriveCancelable(parent, child, cancel, parent.Logger().WithValues("deadline", d))
}

// WithTimeout returns context.WithTimeout with the log object propagated and
// the timeout added to the structured log values.
func WithTimeout(parent Context, timeout time.Duration) (Context, context.CancelFunc) {
	child, cancel := context.WithTimeout(parent, timeout)
	return deriveCancelable(parent, child, cancel, parent.Logger().WithValues("timeout", timeout))
}

// WithCancelCause returns context.WithCancelCause with the log object
// propagated, recording the same kind of cancellation stack trace as
// WithCancel/WithDeadline/WithTimeout, keyed off the caller-supplied cause
// instead of the generic context.Canceled.
func WithCancelCause(parent Context) (Context, context.CancelCauseFunc) {
	child, cancel := context.WithCancelCause(parent)
	recorder := &stackOnCancel{}
	derived := ctx{log: parent.Logger(), Context: child, onCancel: recorder}
	return derived, func(cause error) {
		done := derived.Context.Err() != nil
		cancel(cause)
		if !done {
			recorder.record(context.Cause(derived.Context))
		}
	}
}

// Cause returns the cause of ctx's cancellation, as set by a
// context.CancelCauseFunc obtained from WithCancelCause.
func Cause(c context.Context) error {
	return context.Cause(c)
}

// WithValue returns context.WithValue with the log object propagated and
// the value added to the structured log values (if the key is a string).
func WithValue(parent Context, key, val any) Context {
	logger := parent.Logger()
	if k, ok := key.(string); ok {
		logger = logger.WithValues(k, val)
	}
	return ctx{
		log:     logger,
		Context: context.WithValue(parent, key, val),
	}
}

// WithValues returns context.WithValue with the log object propagated and
// the values added to the structured log values (if the key is a string).
func WithValues(parent Context, keyAndVals ...any) Context {
	c := parent
	for i := 0; i < len(keyAndVals)-1; i += 2 {
		c = WithValue(c, keyAndVals[i], keyAndVals[i+1])
	}
	return c
}

// WithLogger converts a context.Context into a Context by adding a logger.
func WithLogger(parent context.Context, logger logr.Logger) Context {
	return ctx{
		log:     logger,
		Context: parent,
	}
}

// AddLogger converts a context.Context into a Context. If the underlying type
// is already a Context, that will be returned, otherwise a default logger will
// be added.
func AddLogger(parent context.Context) Context {
	if loggerCtx, ok := parent.(Context); ok {
		return loggerCtx
	}
	return WithLogger(parent, defaultLogger)
}

// SetDefaultLogger sets the package-level global default logger that will be
// used for Background and TODO contexts.
func SetDefaultLogger(l logr.Logger) {
	defaultLogger = l
}
