package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Multi returns a logger that writes every entry to all of loggers' cores,
// each filtering by its own level. The serve command uses it to keep console
// output while also writing JSON to a log file.
func Multi(loggers ...*zap.Logger) *zap.Logger {
	cores := make([]zapcore.Core, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			cores = append(cores, l.Core())
		}
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
