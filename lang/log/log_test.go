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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(level)
	SetOutput(zap.New(core))
	t.Cleanup(func() {
		SetLogLevel(InfoLevel)
		mu.Lock()
		sugar = build(isJSON)
		mu.Unlock()
	})
	return logs
}

func TestLevels(t *testing.T) {
	logs := observe(t)
	SetLogLevel(InfoLevel)

	Debug("hidden %d", 1)
	Info("parse: %d blocks\n", 3)
	Warn("retrying %s", "blk_002")
	Error("failed")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "parse: 3 blocks", entries[0].Message, "trailing newline trimmed")
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	SetLogLevel(DebugLevel)
	Debug("shown %d", 2)
	assert.Equal(t, 1, logs.FilterMessage("shown 2").Len())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		" INFO ":  InfoLevel,
		"warning": WarnLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"chatty":  InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { Configure(false) })
	Configure(true)
	assert.True(t, isJSON)
	Info("json line")
	Configure(false)
	assert.False(t, isJSON)
}
