package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/store"
	"github.com/vovakirdan/wirethread/internal/store/sqlite"
)

type failingStore struct {
	Store
	creates int
}

func (f *failingStore) GetUserByID(context.Context, int64) (*store.User, error) {
	return nil, errors.New("disk I/O error")
}

func (f *failingStore) CreateNotification(context.Context, *store.Notification) error {
	f.creates++
	return errors.New("disk I/O error")
}

type dropPublisher struct{ calls int }

func (p *dropPublisher) Publish(int64, *core.Event) bool {
	p.calls++
	return false
}

func TestDispatcherCreatesOneNotification(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	hub := &dropPublisher{}
	d := NewDispatcher(st, hub, nil)
	st.SetHooks(store.MessageHooks{Created: d.OnMessageCreated})

	alice, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, "bob", "hash")
	require.NoError(t, err)

	msg := &store.Message{SenderID: alice.ID, ReceiverID: bob.ID, Body: "hi"}
	require.NoError(t, st.CreateMessage(ctx, msg))

	svc := New(st)
	items, err := svc.List(ctx, core.Actor{UserID: bob.ID}, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "You have a new message from alice!", items[0].Detail)
	require.False(t, items[0].IsRead)
	require.Equal(t, 1, hub.calls)

	_, err = svc.MarkRead(ctx, core.Actor{UserID: alice.ID}, items[0].ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	marked, err := svc.MarkRead(ctx, core.Actor{UserID: bob.ID}, items[0].ID)
	require.NoError(t, err)
	require.True(t, marked.IsRead)

	unread, err := svc.List(ctx, core.Actor{UserID: bob.ID}, true)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestDispatcherSwallowsStoreFailures(t *testing.T) {
	st := &failingStore{}
	hub := &dropPublisher{}
	d := NewDispatcher(st, hub, nil)

	require.NotPanics(t, func() {
		d.OnMessageCreated(context.Background(), &store.Message{ID: 1, SenderID: 2, ReceiverID: 3, Body: "x"})
	})
	require.Equal(t, 1, st.creates)
	require.Zero(t, hub.calls, "nothing is pushed when the notification was not stored")
}

func TestMessageCreationSurvivesDispatchFailure(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	broken := &failingStore{}
	st.SetHooks(store.MessageHooks{Created: NewDispatcher(broken, nil, nil).OnMessageCreated})

	alice, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	msg := &store.Message{SenderID: alice.ID, ReceiverID: alice.ID, Body: "note to self"}
	require.NoError(t, st.CreateMessage(ctx, msg))
	require.NotZero(t, msg.ID)
	require.Equal(t, 1, broken.creates)

	got, err := st.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, "note to self", got.Body)
}
