package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	n := New(LevelWarning, "session expiring")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, LevelWarning, n.Level)
	assert.Equal(t, "session expiring", n.Message)
	assert.False(t, n.Persistent)

	assert.NotEqual(t, n.ID, New(LevelWarning, "session expiring").ID)
}

func TestPersistent(t *testing.T) {
	n := Persistent(LevelWarning, "session expired")
	assert.True(t, n.Persistent)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}

	r.Notify(New(LevelInfo, "a"))
	r.Notify(New(LevelError, "b"))
	r.Notify(New(LevelError, "c"))

	assert.Len(t, r.All(), 3)
	errs := r.ByLevel(LevelError)
	require.Len(t, errs, 2)
	assert.Equal(t, "b", errs[0].Message)

	r.Reset()
	assert.Empty(t, r.All())
}
