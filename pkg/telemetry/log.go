// Package telemetry builds the structured logger used by every component
// in this module. It wraps zap behind the go-logr/logr facade (via
// go-logr/zapr) so call sites depend only on logr.Logger, and optionally
// tees entries to Sentry through zapsentry for error reporting.
package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures a logger under construction.
type Option func(*options)

type options struct {
	cores   []zapcore.Core
	atLevel *zap.AtomicLevel
}

// sinkOption builds a zapcore.Core gated by the given AtomicLevel.
type sinkOption func(*zap.AtomicLevel) zapcore.Core

// SinkOption tunes how a single sink is gated.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	leveler  *zap.AtomicLevel
	level    int8
	levelSet bool
}

// WithLeveler makes a sink's verbosity controlled by an externally held
// zap.AtomicLevel (see SetLevelForControl), instead of a fixed level.
func WithLeveler(l zap.AtomicLevel) SinkOption {
	return func(c *sinkConfig) { c.leveler = &l }
}

// WithLevel fixes a sink's maximum verbosity, independent of SetLevel.
func WithLevel(level int8) SinkOption {
	return func(c *sinkConfig) { c.level = level; c.levelSet = true }
}

// defaultLevel is the verbosity threshold for sinks built without an
// explicit WithLeveler/WithLevel, controlled process-wide by SetLevel.
var defaultLevel = zap.NewAtomicLevel()

func humanTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339))
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("info-%d", -l))
}

func newSink(w io.Writer, newEncoder func(zapcore.EncoderConfig) zapcore.Encoder, opts ...SinkOption) Option {
	cfg := sinkConfig{level: 0}
	for _, o := range opts {
		o(&cfg)
	}
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "ts",
		NameKey:        "logger",
		EncodeLevel:    levelEncoder,
		EncodeTime:     humanTimeEncoder,
		ConsoleSeparator: "\t",
	}
	return func(o *options) {
		leveler := cfg.leveler
		if leveler == nil {
			if cfg.levelSet {
				al := zap.NewAtomicLevelAt(zapcore.Level(-cfg.level))
				leveler = &al
			} else {
				leveler = &defaultLevel
			}
		}
		o.cores = append(o.cores, zapcore.NewCore(newEncoder(encCfg), zapcore.AddSync(w), leveler))
		if o.atLevel == nil {
			o.atLevel = leveler
		}
	}
}

// WithJSONSink adds a JSON-encoded sink writing to w.
func WithJSONSink(w io.Writer, opts ...SinkOption) Option {
	return newSink(w, zapcore.NewJSONEncoder, opts...)
}

// WithConsoleSink adds a tab-delimited console sink writing to w.
func WithConsoleSink(w io.Writer, opts ...SinkOption) Option {
	return newSink(w, zapcore.NewConsoleEncoder, opts...)
}

// WithSentry adds a sink that forwards Error-level entries to Sentry.
// A construction failure (bad DSN, etc.) degrades to a log line on the
// other configured sinks rather than failing New outright.
func WithSentry(clientOptions sentry.ClientOptions, tags map[string]string) Option {
	return func(o *options) {
		core, err := sentryCore(clientOptions, tags)
		if err != nil {
			o.cores = append(o.cores, errorLoggingCore(err))
			return
		}
		o.cores = append(o.cores, core)
	}
}

func sentryCore(clientOptions sentry.ClientOptions, tags map[string]string) (zapcore.Core, error) {
	client, err := sentry.NewClient(clientOptions)
	if err != nil {
		return nil, err
	}
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags:  tags,
	}
	factory, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, err
	}
	return factory, nil
}

// errorLoggingCore carries a configuration failure in the core list; New
// logs it once, as "error configuring logger", through the other sinks so
// it's visible without aborting New.
func errorLoggingCore(err error) zapcore.Core {
	return &onceCore{err: err}
}

type onceCore struct {
	zapcore.Core
	err  error
	done bool
}

func (c *onceCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.done {
		c.done = true
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *onceCore) Write(e zapcore.Entry, _ []zapcore.Field) error {
	e.Message = "error configuring logger: " + c.err.Error() + "\n" + e.Message
	return nil
}

func (c *onceCore) Enabled(zapcore.Level) bool        { return true }
func (c *onceCore) With([]zapcore.Field) zapcore.Core { return c }
func (c *onceCore) Sync() error                       { return nil }

// New constructs a logr.Logger named service from the given sinks, and
// returns a flush function that must be called before the process exits
// to drain buffered writers.
func New(service string, opts ...Option) (logr.Logger, func() error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.cores) == 0 {
		o.cores = append(o.cores, zapcore.NewNopCore())
	}
	core := zapcore.NewTee(o.cores...)
	zl := zap.New(core, zap.AddCallerSkip(1)).Named(service)
	logger := zapr.NewLogger(zl)
	for _, c := range o.cores {
		if oc, ok := c.(*onceCore); ok {
			logger.Error(oc.err, "error configuring logger")
		}
	}
	return logger, zl.Sync
}

// underlyingZapLogger unwraps a logr.Logger built by New back to the
// *zap.Logger underneath, via the zapr.Underlier the Sink implements.
func underlyingZapLogger(logger logr.Logger) *zap.Logger {
	return logger.GetSink().(zapr.Underlier).GetUnderlying()
}

// AddSink returns a new logger that also writes to the sink added by opt,
// alongside a flush function covering just the new sink.
func AddSink(logger logr.Logger, opt Option) (logr.Logger, func() error, error) {
	var o options
	opt(&o)
	if len(o.cores) == 0 {
		return logger, func() error { return nil }, nil
	}
	zl := underlyingZapLogger(logger)
	combined := zapcore.NewTee(append([]zapcore.Core{zl.Core()}, o.cores...)...)
	newZl := zl.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return combined }))
	return zapr.NewLogger(newZl), newZl.Sync, nil
}

// AddSentry is AddSink specialised for Sentry, surfacing construction
// errors to the caller instead of silently degrading.
func AddSentry(logger logr.Logger, clientOptions sentry.ClientOptions, tags map[string]string) (logr.Logger, func() error, error) {
	core, err := sentryCore(clientOptions, tags)
	if err != nil {
		return logger, func() error { return nil }, err
	}
	zl := underlyingZapLogger(logger)
	combined := zapcore.NewTee(zl.Core(), core)
	newZl := zl.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return combined }))
	return zapr.NewLogger(newZl), newZl.Sync, nil
}

// SetLevel sets the verbosity threshold for every sink built without an
// explicit WithLevel/WithLeveler option. Sinks built with WithLevel are
// fixed at construction; sinks built with WithLeveler are controlled by
// SetLevelForControl instead.
func SetLevel(level int8) {
	defaultLevel.SetLevel(zapcore.Level(-level))
}

// SetLevelForControl sets the verbosity threshold on a leveler obtained via
// WithLeveler.
func SetLevelForControl(l zap.AtomicLevel, level int8) {
	l.SetLevel(zapcore.Level(-level))
}

// findLevel reports the most verbose level logger's cores enable (a tee of
// several cores enables a level if any one of them does).
func findLevel(logger logr.Logger) int8 {
	zl := underlyingZapLogger(logger)
	for l := int8(0); l < 127; l++ {
		if zl.Core().Enabled(zapcore.Level(-l)) && !zl.Core().Enabled(zapcore.Level(-l-1)) {
			return l
		}
	}
	return 127
}
