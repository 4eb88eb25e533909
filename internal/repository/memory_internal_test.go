package repository

import (
	"testing"
	"time"

	"medichat/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestBeforeCursor_EqualTimestamps(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cursor := entity.MessageCursor{Timestamp: at, Id: "b"}

	assert.True(t, beforeCursor(entity.Message{Id: "a", Timestamp: at}, cursor),
		"smaller id at the boundary timestamp is older")
	assert.False(t, beforeCursor(entity.Message{Id: "b", Timestamp: at}, cursor),
		"the cursor position itself is excluded")
	assert.False(t, beforeCursor(entity.Message{Id: "c", Timestamp: at}, cursor))

	assert.True(t, beforeCursor(entity.Message{Id: "z", Timestamp: at.Add(-time.Second)}, cursor))
	assert.False(t, beforeCursor(entity.Message{Id: "a", Timestamp: at.Add(time.Second)}, cursor))

	// Timestamp-only cursors keep the old strictly-older cut.
	tsOnly := entity.MessageCursor{Timestamp: at}
	assert.False(t, beforeCursor(entity.Message{Id: "a", Timestamp: at}, tsOnly))
	assert.True(t, beforeCursor(entity.Message{Id: "a", Timestamp: at.Add(-time.Second)}, tsOnly))
}
