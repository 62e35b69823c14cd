// Package logging wraps zap with the defaults tim's components expect:
// human-readable console output on a terminal, structured JSON otherwise.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mattn/go-isatty"
)

var (
	once    sync.Once
	base    *zap.Logger
	jsonSet bool
)

// Configure sets the process-wide base logger. Call once at startup,
// before any package calls Default(). Safe to call multiple times in
// tests; each call replaces the base logger, so the latest call wins.
func Configure(jsonLogs bool, debug bool) {
	jsonSet = jsonLogs
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonLogs || !isatty.IsTerminal(os.Stderr.Fd()) {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	base = zap.New(core)
}

// Default returns the process-wide logger, configuring sane defaults
// (info level; console on a terminal, JSON otherwise) the first time
// it's called if Configure was never invoked.
func Default() *zap.Logger {
	once.Do(func() {
		if base == nil {
			Configure(false, false)
		}
	})
	return base
}

// With returns a child logger carrying the given fields, grounded on
// Default().
func With(fields ...zap.Field) *zap.Logger {
	return Default().With(fields...)
}

// Sync flushes any buffered log entries. Callers should defer this in
// main(); the returned error from stderr sync on some platforms is
// expected and intentionally ignored by callers.
func Sync() error {
	if base == nil {
		return nil
	}
	return base.Sync()
}
