package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

// Logger is the zap backed Log. Loggers derived with With share one level.
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

type options struct {
	out     io.Writer
	console bool
	sample  bool
}

type Option func(*options)

// WithOutput writes entries to w instead of stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithConsole switches from JSON lines to the human readable console encoder.
func WithConsole() Option {
	return func(o *options) { o.console = true }
}

// WithoutSampling keeps every entry; by default repeated messages are sampled
// after the first hundred per second.
func WithoutSampling() Option {
	return func(o *options) { o.sample = false }
}

func New(level Level, opts ...Option) *Logger {
	o := options{out: os.Stderr, sample: true}
	for _, opt := range opts {
		opt(&o)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if o.console {
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	atomic := zap.NewAtomicLevelAt(level.zap())
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(o.out)), atomic)
	if o.sample {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}
	return &Logger{zap: zap.New(core), level: atomic}
}

// NewWithCore wraps an existing zap core, typically an observer in tests.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zap: zap.New(core), level: zap.NewAtomicLevelAt(zap.DebugLevel)}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.ErrorLevel)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, zapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, zapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, zapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, zapFields(fields)...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zap: l.zap.With(zapFields(fields)...), level: l.level}
}

func (l *Logger) SetLevel(level Level) { l.level.SetLevel(level.zap()) }

func (l *Logger) GetLevel() Level { return levelOf(l.level.Level()) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

var zapLevels = [...]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

func (l Level) zap() zapcore.Level {
	if int(l) < len(zapLevels) {
		return zapLevels[l]
	}
	return zapcore.InfoLevel
}

func levelOf(z zapcore.Level) Level {
	for l, zl := range zapLevels {
		if zl == z {
			return Level(l)
		}
	}
	return LevelInfo
}

func (f Field) zap() zap.Field {
	switch f.Type {
	case BoolType:
		return zap.Bool(f.Key, f.Value.(bool))
	case DurationType:
		return zap.Duration(f.Key, f.Value.(time.Duration))
	case Float64Type:
		return zap.Float64(f.Key, f.Value.(float64))
	case IntType:
		return zap.Int(f.Key, f.Value.(int))
	case Int64Type:
		return zap.Int64(f.Key, f.Value.(int64))
	case StringType:
		return zap.String(f.Key, f.Value.(string))
	case StringsType:
		return zap.Strings(f.Key, f.Value.([]string))
	case ErrorType:
		err, _ := f.Value.(error)
		return zap.NamedError(f.Key, err)
	}
	return zap.Any(f.Key, f.Value)
}

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = f.zap()
	}
	return out
}
