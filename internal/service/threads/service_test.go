package threads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/store"
)

type memStore struct {
	rows    map[int64]*store.Message
	listErr error
}

func (m *memStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	msg, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return msg, nil
}

func (m *memStore) ListThreadMessages(_ context.Context, rootID int64) ([]*store.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	// Naive walk; the tree assembly does not depend on row order.
	var out []*store.Message
	for _, msg := range m.rows {
		if msg.ID == rootID || descendsFrom(m.rows, msg, rootID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func descendsFrom(rows map[int64]*store.Message, msg *store.Message, rootID int64) bool {
	seen := map[int64]bool{}
	for msg.ParentID != nil && !seen[msg.ID] {
		seen[msg.ID] = true
		if *msg.ParentID == rootID {
			return true
		}
		parent, ok := rows[*msg.ParentID]
		if !ok {
			return false
		}
		msg = parent
	}
	return false
}

func newMemStore(msgs ...*store.Message) *memStore {
	m := &memStore{rows: make(map[int64]*store.Message)}
	for _, msg := range msgs {
		m.rows[msg.ID] = msg
	}
	return m
}

func message(id, sender, receiver int64, parent *int64, at time.Time) *store.Message {
	return &store.Message{ID: id, SenderID: sender, ReceiverID: receiver, ParentID: parent, Body: "b", CreatedAt: at}
}

func ptr(v int64) *int64 { return &v }

func TestBuildThreadVisibleRoot(t *testing.T) {
	now := time.Now()
	st := newMemStore(
		message(1, 1, 2, nil, now),
		message(2, 2, 1, ptr(1), now.Add(time.Second)),
		message(3, 1, 2, ptr(2), now.Add(2*time.Second)),
		message(4, 2, 1, ptr(1), now.Add(3*time.Second)),
		message(5, 3, 4, nil, now),
	)
	svc := New(st, nil)

	tree, err := svc.BuildThread(context.Background(), 1, core.OwnTraffic(1))
	require.NoError(t, err)
	require.Equal(t, 4, tree.Size())
	require.Equal(t, 2, tree.Depth())
	require.Equal(t, int64(2), tree.Replies[0].ID)
	require.Equal(t, int64(4), tree.Replies[1].ID)
	require.Equal(t, int64(3), tree.Replies[0].Replies[0].ID)

	sub, err := svc.BuildThread(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Size())
}

func TestBuildThreadHiddenRootIsNotFound(t *testing.T) {
	st := newMemStore(message(5, 3, 4, nil, time.Now()))
	svc := New(st, nil)

	_, err := svc.BuildThread(context.Background(), 5, core.OwnTraffic(1))
	require.ErrorIs(t, err, core.ErrNotFound)

	tree, err := svc.BuildThread(context.Background(), 5, core.Everything())
	require.NoError(t, err)
	require.Empty(t, tree.Replies)
}

func TestBuildThreadMissingRoot(t *testing.T) {
	svc := New(newMemStore(), nil)

	_, err := svc.BuildThread(context.Background(), 42, core.Everything())
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestBuildThreadStoreFailureIsTransient(t *testing.T) {
	st := newMemStore(message(1, 1, 2, nil, time.Now()))
	st.listErr = errors.New("database is locked")
	svc := New(st, nil)

	_, err := svc.BuildThread(context.Background(), 1, core.Everything())
	require.ErrorIs(t, err, core.ErrTransientStore)
	require.NotErrorIs(t, err, core.ErrNotFound)
}
