package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Logger is a component-scoped logger. The package-level functions log
// through the root logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	mu     sync.RWMutex
	root   *Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	inited sync.Once
)

// initLogger installs a console logger on stderr unless Setup ran first.
func initLogger() {
	inited.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if root == nil {
			root = build(os.Stderr, "console")
		}
	})
}

// Setup replaces the root logger. format is "console" (default) or "json".
func Setup(w io.Writer, format string) {
	inited.Do(func() {})
	l := build(w, format)
	mu.Lock()
	root = l
	mu.Unlock()
}

func build(w io.Writer, format string) *Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return &Logger{sugar: zap.New(core).Sugar()}
}

// SetLevel changes the minimum level of every logger.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func current() *Logger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a logger whose lines carry the given component name.
func Named(component string) *Logger {
	return &Logger{sugar: current().sugar.Named(component)}
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.sugar.Debugw(msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.sugar.Infow(msg, kv...)
}

// Error prepends err to the key/value list.
func (l *Logger) Error(msg string, err error, kv ...any) {
	l.sugar.Errorw(msg, append([]any{"err", err}, kv...)...)
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	current().Error(msg, err, kv...)
}

// Sync flushes buffered entries of the root logger.
func Sync() {
	_ = current().sugar.Sync()
}
