package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirethread/internal/store"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id int64, parent int64, offset time.Duration) *store.Message {
	m := &store.Message{ID: id, SenderID: 1, ReceiverID: 2, Body: "m", CreatedAt: base.Add(offset)}
	if parent != 0 {
		m.ParentID = &parent
	}
	return m
}

func collectIDs(n *Node) []int64 {
	var ids []int64
	n.Walk(func(node *Node) { ids = append(ids, node.ID) })
	return ids
}

func TestBuildTreeNestsRepliesInOrder(t *testing.T) {
	rows := []*store.Message{
		msg(1, 0, 0),
		msg(4, 1, 3*time.Minute),
		msg(2, 1, time.Minute),
		msg(3, 2, 2*time.Minute),
		msg(5, 2, 90*time.Second),
	}

	tree := BuildTree(1, rows)
	if tree == nil {
		t.Fatalf("expected tree")
	}

	if got := collectIDs(tree); len(got) != 5 {
		t.Fatalf("expected 5 nodes, got %v", got)
	}
	if len(tree.Replies) != 2 || tree.Replies[0].ID != 2 || tree.Replies[1].ID != 4 {
		t.Fatalf("unexpected root replies: %v", collectIDs(tree))
	}
	sub := tree.Replies[0]
	if len(sub.Replies) != 2 || sub.Replies[0].ID != 5 || sub.Replies[1].ID != 3 {
		t.Fatalf("expected replies of 2 ordered [5 3], got %v", collectIDs(sub))
	}
	if tree.Size() != 5 || tree.Depth() != 2 {
		t.Fatalf("unexpected size/depth: %d/%d", tree.Size(), tree.Depth())
	}
}

func TestBuildTreeSiblingsAreNonDecreasing(t *testing.T) {
	rows := []*store.Message{msg(1, 0, 0)}
	// Same timestamp for several replies; ties break on id.
	for id := int64(10); id > 1; id-- {
		rows = append(rows, msg(id, 1, time.Duration(id%3)*time.Second))
	}

	tree := BuildTree(1, rows)
	tree.Walk(func(n *Node) {
		for i := 1; i < len(n.Replies); i++ {
			prev, cur := n.Replies[i-1], n.Replies[i]
			if cur.CreatedAt.Before(prev.CreatedAt) {
				t.Fatalf("replies of %d out of order: %d before %d", n.ID, prev.ID, cur.ID)
			}
			if cur.CreatedAt.Equal(prev.CreatedAt) && cur.ID < prev.ID {
				t.Fatalf("tie not broken by id: %d before %d", prev.ID, cur.ID)
			}
		}
	})
}

func TestBuildTreeEachMessageOnce(t *testing.T) {
	rows := []*store.Message{
		msg(1, 0, 0),
		msg(2, 1, time.Second),
		msg(2, 1, time.Second), // duplicate row
		msg(3, 2, 2*time.Second),
		msg(3, 2, 2*time.Second),
	}

	ids := collectIDs(BuildTree(1, rows))
	seen := map[int64]int{}
	for _, id := range ids {
		seen[id]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("message %d appears %d times", id, count)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct messages, got %v", ids)
	}
}

func TestBuildTreeOmitsOrphanedBranch(t *testing.T) {
	// 2 was deleted; 3 still points at it.
	rows := []*store.Message{
		msg(1, 0, 0),
		msg(3, 2, time.Second),
		msg(4, 1, 2*time.Second),
	}

	ids := collectIDs(BuildTree(1, rows))
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Fatalf("expected [1 4], got %v", ids)
	}
}

func TestBuildTreeToleratesCycles(t *testing.T) {
	a := msg(1, 2, 0)
	b := msg(2, 1, time.Second)
	self := msg(3, 3, 2*time.Second)

	tree := BuildTree(1, []*store.Message{a, b, self})
	if ids := collectIDs(tree); len(ids) != 2 {
		t.Fatalf("expected cycle to be cut after one pass, got %v", ids)
	}

	selfTree := BuildTree(3, []*store.Message{self})
	if len(selfTree.Replies) != 0 {
		t.Fatalf("self reference must not produce a reply")
	}
}

func TestBuildTreeMissingRoot(t *testing.T) {
	if tree := BuildTree(9, []*store.Message{msg(1, 0, 0)}); tree != nil {
		t.Fatalf("expected nil tree, got %+v", tree)
	}
}

func TestBuildTreeLeafHasEmptyReplies(t *testing.T) {
	tree := BuildTree(1, []*store.Message{msg(1, 0, 0)})
	if tree.Replies == nil {
		t.Fatalf("expected non-nil replies slice")
	}
}
