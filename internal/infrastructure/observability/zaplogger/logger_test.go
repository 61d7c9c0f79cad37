package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core), observability.F("service", "storefront"))

	child := l.With(observability.F("session_id", "sess_1"))
	child.Debug("hidden")
	child.Info("use_case_done", observability.F("outcome", "success"))
	child.Error("failed", observability.F("error", errors.New("boom")))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	info := entries[0].ContextMap()
	assert.Equal(t, "use_case_done", entries[0].Message)
	assert.Equal(t, "storefront", info["service"])
	assert.Equal(t, "sess_1", info["session_id"])
	assert.Equal(t, "success", info["outcome"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	_ = l.With(observability.F("k", "v"))
	l.Warn("plain")

	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["k"]
	assert.False(t, ok)
}
