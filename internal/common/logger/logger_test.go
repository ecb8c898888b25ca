package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndScoping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"flowType": "family"})

	log.Info("question answered", map[string]interface{}{"field": "name"})
	log.WithError(errors.New("redis down")).Warn("mirror failed", nil)

	entries := logs.All()
	assert.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "family", first["flowType"])
	assert.Equal(t, "name", first["field"])

	second := entries[1].ContextMap()
	assert.Equal(t, "redis down", second["error"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestMapToZapFields_ErrorValues(t *testing.T) {
	fields := mapToZapFields(map[string]interface{}{"cause": errors.New("boom")})
	assert.Len(t, fields, 1)
	assert.Equal(t, zapcore.ErrorType, fields[0].Type)
	assert.Nil(t, mapToZapFields(nil))
}

func TestNew_Levels(t *testing.T) {
	l := New("warn", "json")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	d := New("debug", "console")
	assert.True(t, d.Core().Enabled(zapcore.DebugLevel))
}
