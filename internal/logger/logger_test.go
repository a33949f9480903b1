package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{"off", LevelOff, false, false},
		{"normal", LevelNormal, false, true},
		{"verbose", LevelVerbose, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level, &buf)

			log.Debug("debug %d", 1)
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug 1")), "debug visible (out=%q)", buf.String())

			log.Info("info %s", "line")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info line")), "info visible (out=%q)", buf.String())
		})
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelOff, &buf)

	log.Error("hidden")
	assert.Zero(t, buf.Len())

	log.SetLevel(LevelNormal)
	assert.Equal(t, LevelNormal, log.GetLevel())
	log.Error("visible")
	assert.Contains(t, buf.String(), "visible")
}

// countingStringer counts how often it is formatted.
type countingStringer struct{ calls int }

func (c *countingStringer) String() string {
	c.calls++
	return "counted"
}

func TestSuppressedLinesAreNotFormatted(t *testing.T) {
	var buf bytes.Buffer
	arg := &countingStringer{}

	log := New(LevelNormal, &buf)
	log.Debug("value %s", arg)
	assert.Zero(t, arg.calls, "debug is off at LevelNormal")

	log.SetLevel(LevelOff)
	log.Error("value %s", arg)
	assert.Zero(t, arg.calls)
	assert.Zero(t, buf.Len())

	log.SetLevel(LevelVerbose)
	log.Debug("value %s", arg)
	assert.Equal(t, 1, arg.calls)
	assert.Contains(t, buf.String(), "value counted")
}
