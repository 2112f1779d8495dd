// Package clilog builds the single zap logger shared by cmd/gocnc and
// every internal/ package, grounded on EdgxCloud-EdgeFlow/internal/
// logger's console-encoder zapcore setup (minus its file-rotation and
// WebSocket bridge cores, which this kernel has no use for). The
// returned zap.AtomicLevel lets M111 raise verbosity at runtime the way
// PyCNC's M111 handler calls logging.getLogger().setLevel(DEBUG).
package clilog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-encoded *zap.SugaredLogger writing to stdout at
// level (itself mutable afterward via the returned AtomicLevel).
func New(level zapcore.Level) (*zap.SugaredLogger, zap.AtomicLevel) {
	atom := zap.NewAtomicLevelAt(level)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), atom)
	logger := zap.New(core, zap.AddCaller())
	return logger.Sugar(), atom
}
