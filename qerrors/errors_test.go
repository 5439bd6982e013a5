package qerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueErrorString(t *testing.T) {
	err := New("enqueue", KindStopped)
	assert.Equal(t, "jobqueue: enqueue: stopped", err.Error())

	cause := errors.New("boom")
	wrapped := Wrap("dequeue", KindUnknown, cause)
	assert.Contains(t, wrapped.Error(), "boom")
	assert.ErrorIs(t, wrapped, cause)
}

func TestIs(t *testing.T) {
	err := New("enqueue", KindInvalidArgument)
	require.True(t, Is(err, KindInvalidArgument))
	require.False(t, Is(err, KindStopped))
	require.False(t, Is(errors.New("plain"), KindStopped))
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidArgument:    "invalid_argument",
		KindStopped:            "stopped",
		KindEmpty:              "empty",
		KindAllocationFailed:   "allocation_failed",
		KindRetryLimitExceeded: "retry_limit_exceeded",
		KindUnknown:            "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
