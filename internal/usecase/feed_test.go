package usecase_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"medichat/internal/entity"
	"medichat/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessages(n int, start time.Time) []entity.Message {
	out := make([]entity.Message, n)
	for i := 0; i < n; i++ {
		out[i] = entity.Message{
			Id:        fmt.Sprintf("m%03d", i),
			RoomId:    "alice_bob",
			SenderId:  "alice",
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: start.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestMergeById_OrderIndependent(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	all := makeMessages(30, base)

	// Slice the messages into overlapping batches.
	batches := [][]entity.Message{
		all[0:12],
		all[8:20],
		all[15:30],
		all[5:10],
	}

	reference := usecase.Chronological(usecase.MergeById(nil, all))

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([][]entity.Message, len(batches))
		copy(shuffled, batches)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		var set map[string]entity.Message
		for _, batch := range shuffled {
			set = usecase.MergeById(set, batch)
		}

		assert.Equal(t, reference, usecase.Chronological(set), "trial %d: batch order changed the result", trial)
	}
}

func TestMergeById_LastWriteWins(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	original := makeMessages(3, base)

	edited := original[1]
	edited.Text = "corrected dosage"
	edited.Edited = true

	set := usecase.MergeById(nil, original)
	set = usecase.MergeById(set, []entity.Message{edited})

	sorted := usecase.Chronological(set)
	require.Len(t, sorted, 3)
	assert.Equal(t, "corrected dosage", sorted[1].Text)
	assert.True(t, sorted[1].Edited)
}

func TestChronological_TiebreakById(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	set := usecase.MergeById(nil, []entity.Message{
		{Id: "b", Timestamp: at},
		{Id: "a", Timestamp: at},
		{Id: "c", Timestamp: at},
	})

	sorted := usecase.Chronological(set)
	require.Len(t, sorted, 3)
	assert.Equal(t, "a", sorted[0].Id)
	assert.Equal(t, "b", sorted[1].Id)
	assert.Equal(t, "c", sorted[2].Id)
}

func TestFeed_LoadPage_Boundaries(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("exactly pageSize messages", func(t *testing.T) {
		all := makeMessages(5, base)
		fetched := descending(all) // repository returns newest first

		feed := usecase.NewFeed(entity.MessageCursor{})
		info := feed.LoadPage(fetched, 5)

		assert.False(t, info.HasMore)
		assert.Len(t, feed.Messages(), 5)
	})

	t.Run("pageSize plus one message", func(t *testing.T) {
		all := makeMessages(6, base)
		fetched := descending(all)

		feed := usecase.NewFeed(entity.MessageCursor{})
		info := feed.LoadPage(fetched, 5)

		assert.True(t, info.HasMore)
		messages := feed.Messages()
		require.Len(t, messages, 5)
		// The oldest fetched record is dropped; the cursor points at the
		// oldest record kept.
		assert.Equal(t, all[1].Id, messages[0].Id)
		assert.Equal(t, entity.MessageCursor{Timestamp: all[1].Timestamp, Id: all[1].Id}, info.NextCursor)
	})
}

func TestFeed_LoadPage_CursorDisambiguatesEqualTimestamps(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Three messages sharing one timestamp, id as the only order key.
	all := []entity.Message{
		{Id: "a", Timestamp: at},
		{Id: "b", Timestamp: at},
		{Id: "c", Timestamp: at},
	}

	feed := usecase.NewFeed(entity.MessageCursor{})
	info := feed.LoadPage(descending(all), 2)

	require.True(t, info.HasMore)
	// A timestamp-only cursor would point every one of them past the
	// boundary; the id pins the exact position.
	assert.Equal(t, entity.MessageCursor{Timestamp: at, Id: "b"}, info.NextCursor)
}

func TestFeed_Apply_HeadAbsorbsNewMessages(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	all := makeMessages(3, base)

	feed := usecase.NewFeed(entity.MessageCursor{})
	feed.LoadPage(descending(all), 10)

	incoming := entity.Message{Id: "m100", Timestamp: base.Add(time.Hour), Text: "new"}
	assert.True(t, feed.Apply(incoming))

	messages := feed.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "m100", messages[3].Id)
}

func TestFeed_Apply_CursorFeedIgnoresInserts(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	all := makeMessages(3, base)

	feed := usecase.NewFeed(entity.MessageCursor{Timestamp: base.Add(time.Hour)})
	feed.LoadPage(descending(all), 10)

	insert := entity.Message{Id: "m200", Timestamp: base.Add(time.Minute)}
	assert.False(t, feed.Apply(insert))
	assert.Len(t, feed.Messages(), 3)

	// Updates to loaded messages still land.
	update := all[1]
	update.Text = entity.DeletedText
	update.Deleted = true
	assert.True(t, feed.Apply(update))
	assert.True(t, feed.Messages()[1].Deleted)
}

func TestFeed_DeleteKeepsChronologicalSlot(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	all := makeMessages(5, base)

	feed := usecase.NewFeed(entity.MessageCursor{})
	feed.LoadPage(descending(all), 10)

	deleted := all[2]
	deleted.Text = entity.DeletedText
	deleted.Deleted = true
	feed.Apply(deleted)

	messages := feed.Messages()
	require.Len(t, messages, 5)
	assert.Equal(t, all[2].Id, messages[2].Id)
	assert.Equal(t, all[2].Timestamp, messages[2].Timestamp)
	assert.Equal(t, entity.DeletedText, messages[2].Text)
	assert.True(t, messages[2].Deleted)
}

func descending(ascending []entity.Message) []entity.Message {
	out := make([]entity.Message, len(ascending))
	for i, message := range ascending {
		out[len(ascending)-1-i] = message
	}
	return out
}
