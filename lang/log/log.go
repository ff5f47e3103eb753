/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log is the process logger. It keeps printf-style helpers on top of
// a zap SugaredLogger so call sites stay short.
package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a flag value to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  *zap.SugaredLogger
	isJSON bool
)

func init() {
	sugar = build(false)
}

func build(json bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !json {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Configure switches between console and JSON encoding.
func Configure(json bool) {
	mu.Lock()
	defer mu.Unlock()
	if json == isJSON {
		return
	}
	_ = sugar.Sync()
	sugar = build(json)
	isJSON = json
}

func SetLogLevel(l Level) {
	level.SetLevel(l.zapLevel())
}

// SetOutput replaces the underlying logger, mostly for tests.
func SetOutput(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, args ...interface{}) {
	get().Debugf(strings.TrimRight(format, "\n"), args...)
}

func Info(format string, args ...interface{}) {
	get().Infof(strings.TrimRight(format, "\n"), args...)
}

func Warn(format string, args ...interface{}) {
	get().Warnf(strings.TrimRight(format, "\n"), args...)
}

func Error(format string, args ...interface{}) {
	get().Errorf(strings.TrimRight(format, "\n"), args...)
}

func Fatal(format string, args ...interface{}) {
	get().Fatalf(strings.TrimRight(format, "\n"), args...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = get().Sync()
}
