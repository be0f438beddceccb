// Package flogging provides the named, levelled zap loggers used throughout
// the engine.
package flogging

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// SpecEnv names the environment variable holding the default level.
	SpecEnv = "ECENGINE_LOGGING_SPEC"

	defaultLevel = zapcore.InfoLevel
)

// Config is used to provide dependencies to the logging system.
type Config struct {
	// Format is "json" or "console". Empty selects console.
	Format string

	// LogSpec is a level name (debug, info, warn, error). Empty falls back
	// to $ECENGINE_LOGGING_SPEC and then to info.
	LogSpec string

	// Writer is the sink for log records. Nil means os.Stderr.
	Writer io.Writer
}

// Logging holds the shared core every named logger writes through.
type Logging struct {
	mutex sync.RWMutex
	level zap.AtomicLevel
	core  zapcore.Core
}

var global = mustNew(Config{})

// New creates a logging system from c.
func New(c Config) (*Logging, error) {
	l := &Logging{level: zap.NewAtomicLevelAt(defaultLevel)}
	if err := l.Apply(c); err != nil {
		return nil, err
	}
	return l, nil
}

func mustNew(c Config) *Logging {
	l, err := New(c)
	if err != nil {
		panic(err)
	}
	return l
}

// Apply reconfigures the logging system. Every logger, including those
// created earlier, writes through the new level, format and sink.
func (l *Logging) Apply(c Config) error {
	if c.LogSpec == "" {
		c.LogSpec = os.Getenv(SpecEnv)
	}
	lvl := defaultLevel
	if c.LogSpec != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LogSpec))); err != nil {
			return err
		}
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.NameKey = "name"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if c.Format == "json" {
		enc = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	switch w := c.Writer.(type) {
	case *os.File:
		sink = zapcore.Lock(w)
	case zapcore.WriteSyncer:
		sink = w
	default:
		sink = zapcore.AddSync(w)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.level.SetLevel(lvl)
	l.core = zapcore.NewCore(enc, sink, l.level)
	return nil
}

func (l *Logging) current() zapcore.Core {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.core
}

// Logger returns a logger named name.
func (l *Logging) Logger(name string) *Logger {
	z := zap.New(&sharedCore{logging: l}, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{s: z.Named(name).Sugar()}
}

// sharedCore is the zapcore.Core handed to every logger. It resolves the
// encoder and sink of its Logging on each write.
type sharedCore struct {
	logging *Logging
	fields  []zapcore.Field
}

func (c *sharedCore) Enabled(lvl zapcore.Level) bool {
	return c.logging.level.Enabled(lvl)
}

func (c *sharedCore) With(fields []zapcore.Field) zapcore.Core {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	return &sharedCore{logging: c.logging, fields: append(all, fields...)}
}

func (c *sharedCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *sharedCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	return c.logging.current().Write(e, append(all, fields...))
}

func (c *sharedCore) Sync() error {
	return c.logging.current().Sync()
}

// Init reconfigures the global logging system.
func Init(c Config) error {
	return global.Apply(c)
}

// SetLevel changes the level of the global logging system.
func SetLevel(level zapcore.Level) {
	global.level.SetLevel(level)
}

// MustGetLogger returns a logger named name from the global logging system.
func MustGetLogger(name string) *Logger {
	return global.Logger(name)
}

// A Logger is an adapter around a zap.SugaredLogger.
type Logger struct{ s *zap.SugaredLogger }

func (f *Logger) Debugf(template string, args ...interface{}) { f.s.Debugf(template, args...) }
func (f *Logger) Debugw(msg string, kvPairs ...interface{})   { f.s.Debugw(msg, kvPairs...) }
func (f *Logger) Infof(template string, args ...interface{})  { f.s.Infof(template, args...) }
func (f *Logger) Infow(msg string, kvPairs ...interface{})    { f.s.Infow(msg, kvPairs...) }
func (f *Logger) Warnf(template string, args ...interface{})  { f.s.Warnf(template, args...) }
func (f *Logger) Warnw(msg string, kvPairs ...interface{})    { f.s.Warnw(msg, kvPairs...) }
func (f *Logger) Errorf(template string, args ...interface{}) { f.s.Errorf(template, args...) }
func (f *Logger) Errorw(msg string, kvPairs ...interface{})   { f.s.Errorw(msg, kvPairs...) }

// Warningf is kept for callers used to the go-logging method set.
func (f *Logger) Warningf(template string, args ...interface{}) { f.s.Warnf(template, args...) }

func (f *Logger) With(args ...interface{}) *Logger { return &Logger{s: f.s.With(args...)} }
func (f *Logger) Named(name string) *Logger        { return &Logger{s: f.s.Named(name)} }
func (f *Logger) Sync() error                      { return f.s.Sync() }
func (f *Logger) Zap() *zap.Logger                 { return f.s.Desugar() }

// IsEnabledFor reports whether records at level would be written.
func (f *Logger) IsEnabledFor(level zapcore.Level) bool {
	return f.s.Desugar().Core().Enabled(level)
}
