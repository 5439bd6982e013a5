package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpDiscardsEverything(t *testing.T) {
	var n NoOp
	assert.False(t, n.Enabled(LevelError))
	n.Log(Entry{Level: LevelError, Message: "should not panic"})
}

func TestDefaultLoggerRoundTrip(t *testing.T) {
	SetDefault(nil)
	require.Equal(t, NoOp{}, Default())

	var buf bytes.Buffer
	zl := NewZerologLogger(LevelInfo, &buf)
	SetDefault(zl)
	defer SetDefault(nil)

	require.True(t, Default().Enabled(LevelInfo))
	require.False(t, Default().Enabled(LevelDebug))

	Default().Log(Entry{
		Level:    LevelWarn,
		Category: "lockfree",
		Message:  "retry limit approaching",
		Err:      errors.New("contended"),
		Fields:   map[string]any{"retries": 42},
	})

	assert.Contains(t, buf.String(), "retry limit approaching")
	assert.Contains(t, buf.String(), "lockfree")
	assert.Contains(t, buf.String(), "contended")
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(99):  "UNKNOWN",
	}
	for level, want := range cases {
		assert.Equal(t, want, level.String())
	}
}
