package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/store"
	"github.com/vovakirdan/wirethread/internal/store/sqlite"
)

func TestRecorderDecisions(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(nil)
	r.now = func() time.Time { return fixed }

	old := &store.Message{ID: 3, SenderID: 7, Body: "hi"}

	tests := []struct {
		name    string
		old     *store.Message
		updated *store.Message
		logged  bool
	}{
		{name: "changed body", old: old, updated: &store.Message{ID: 3, Body: "hi there"}, logged: true},
		{name: "identical body", old: old, updated: &store.Message{ID: 3, Body: "hi"}},
		{name: "unknown message", old: nil, updated: &store.Message{ID: 3, Body: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, logged := r.OnMessageUpdating(context.Background(), tt.old, tt.updated)
			require.Equal(t, tt.logged, logged)
			if !tt.logged {
				require.Nil(t, entry)
				return
			}
			require.Equal(t, int64(3), entry.MessageID)
			require.Equal(t, int64(7), entry.EditorID)
			require.Equal(t, "hi", entry.OldBody)
			require.Equal(t, fixed, entry.CreatedAt)
		})
	}
}

func TestHistoryWrittenWithUpdate(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	st.SetHooks(store.MessageHooks{Updating: NewRecorder(nil).OnMessageUpdating})

	alice, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	msg := &store.Message{SenderID: alice.ID, ReceiverID: bob.ID, Body: "v1"}
	require.NoError(t, st.CreateMessage(ctx, msg))

	for _, body := range []string{"v2", "v2", "v3"} {
		_, err := st.UpdateMessageBody(ctx, msg.ID, body)
		require.NoError(t, err)
	}

	svc := New(st)
	entries, err := svc.List(ctx, core.Actor{UserID: bob.ID}, msg.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "v2", entries[0].OldBody)
	require.Equal(t, "v1", entries[1].OldBody)

	_, err = svc.List(ctx, core.Actor{UserID: 999}, msg.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.List(ctx, core.Actor{UserID: alice.ID}, msg.ID+1)
	require.ErrorIs(t, err, core.ErrNotFound, fmt.Sprintf("message %d should not exist", msg.ID+1))
}
