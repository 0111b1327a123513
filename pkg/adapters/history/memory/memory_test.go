package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polichat/polichat/pkg/ports"
)

func TestAppendAndHistory(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s-1", "u-1", "what is the dress code?", "Business casual."))
	require.NoError(t, store.Append(ctx, "s-1", "u-1", "and on fridays?", "Casual."))

	history, err := store.History(ctx, "s-1", "u-1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, ports.Message{Role: ports.RoleUser, Content: "what is the dress code?"}, history[0])
	assert.Equal(t, ports.Message{Role: ports.RoleAssistant, Content: "Business casual."}, history[1])
	assert.Equal(t, "and on fridays?", history[2].Content)

	t.Run("history copy is isolated", func(t *testing.T) {
		history[0].Content = "mutated"
		again, err := store.History(ctx, "s-1", "u-1")
		require.NoError(t, err)
		assert.Equal(t, "what is the dress code?", again[0].Content)
	})

	t.Run("unknown session is empty, not an error", func(t *testing.T) {
		history, err := store.History(ctx, "missing", "u-1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestSessionMetadata(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s-1", "u-1", "first question", "answer"))

	sess, err := store.Session(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, "first question", sess.Title)
	assert.False(t, sess.UpdatedAt.IsZero())

	t.Run("title truncated to fifty runes", func(t *testing.T) {
		long := strings.Repeat("é", 80)
		require.NoError(t, store.Append(ctx, "s-2", "u-1", long, "ok"))

		sess, err := store.Session(ctx, "s-2")
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("é", 50), sess.Title)
	})

	t.Run("empty first message gets placeholder title", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "s-3", "u-1", "", "ok"))

		sess, err := store.Session(ctx, "s-3")
		require.NoError(t, err)
		assert.Equal(t, "New Chat", sess.Title)
	})

	t.Run("unknown session errors", func(t *testing.T) {
		_, err := store.Session(ctx, "missing")
		assert.Error(t, err)
	})
}

func TestSessionsOrderedByRecency(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "old", "u-1", "first", "a"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.Append(ctx, "new", "u-1", "second", "b"))
	require.NoError(t, store.Append(ctx, "other-user", "u-2", "third", "c"))

	sessions, err := store.Sessions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)
}

func TestDelete(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s-1", "u-1", "q", "a"))
	require.NoError(t, store.Delete(ctx, "s-1"))

	_, err := store.Session(ctx, "s-1")
	assert.Error(t, err)

	history, err := store.History(ctx, "s-1", "u-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Error(t, store.Delete(ctx, "s-1"))
}
