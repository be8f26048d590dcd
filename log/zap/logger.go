/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger represents a zap logger implementation.
type Logger struct {
	lg       *zap.Logger
	sgLogger *zap.SugaredLogger
}

// NewLogger creates an initialized zap logger instance.
func NewLogger(level string, outputPath string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	outputPaths := []string{"/dev/stdout"}
	if len(outputPath) > 0 {
		outputPaths = append(outputPaths, outputPath)
	}
	cfg.OutputPaths = outputPaths

	logger, _ := cfg.Build()
	sugaredLogger := logger.Sugar()
	return &Logger{
		lg:       logger,
		sgLogger: sugaredLogger,
	}
}

// Debugf uses fmt.Sprintf to log a templated debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sgLogger.Debugf(format, args...)
}

// Infof uses fmt.Sprintf to log a templated info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sgLogger.Infof(format, args...)
}

// Warnf uses fmt.Sprintf to log a templated warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sgLogger.Warnf(format, args...)
}

// Errorf uses fmt.Sprintf to log a templated error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sgLogger.Errorf(format, args...)
}

// Fatalf uses fmt.Sprintf to log a templated fatal message.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.sgLogger.Fatalf(format, args...)
}

// Close flushes any buffered log entry.
func (l *Logger) Close() error {
	return l.lg.Sync()
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
