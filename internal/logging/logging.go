package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// Init configures the global logger. Level is one of debug, info, warn, error.
// Calling Init again replaces the logger (used by tests).
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(level)
}

func build(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}

func get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = build("info")
	}
	return logger
}

// log accepts both printf-style arguments and zap fields in the same call
// list. Printf arguments must precede fields.
func log(level zapcore.Level, msg string, args []interface{}) {
	fields := make([]zap.Field, 0, len(args))
	printf := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if f, ok := arg.(zap.Field); ok {
			fields = append(fields, f)
		} else {
			printf = append(printf, arg)
		}
	}
	if len(printf) > 0 {
		msg = fmt.Sprintf(msg, printf...)
	}
	if ce := get().Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Debug logs a debug message.
func Debug(msg string, args ...interface{}) { log(zapcore.DebugLevel, msg, args) }

// Info logs an informational message.
func Info(msg string, args ...interface{}) { log(zapcore.InfoLevel, msg, args) }

// Warn logs a warning.
func Warn(msg string, args ...interface{}) { log(zapcore.WarnLevel, msg, args) }

// Error logs an error.
func Error(msg string, args ...interface{}) { log(zapcore.ErrorLevel, msg, args) }

// Sync flushes buffered log entries.
func Sync() {
	_ = get().Sync()
}
