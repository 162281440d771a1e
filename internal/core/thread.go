package core

import (
	"sort"

	"github.com/vovakirdan/wirethread/internal/store"
)

// Node is a message together with its replies, ordered oldest first.
type Node struct {
	*store.Message
	Replies []*Node
}

// Size counts the messages in the subtree rooted at n.
func (n *Node) Size() int {
	size := 0
	n.Walk(func(*Node) { size++ })
	return size
}

// Depth is the number of levels below n (0 for a message without replies).
func (n *Node) Depth() int {
	depth := 0
	for _, r := range n.Replies {
		if d := r.Depth() + 1; d > depth {
			depth = d
		}
	}
	return depth
}

// BuildTree assembles the reply tree rooted at rootID from a flat set of rows.
// It returns nil if the root is not among rows.
//
// Duplicate rows collapse to their first occurrence and every message appears at most
// once in the result. Rows whose parent is missing from rows are not reachable from the
// root and are left out.
func BuildTree(rootID int64, rows []*store.Message) *Node {
	byID := make(map[int64]*store.Message, len(rows))
	for _, msg := range rows {
		if msg == nil {
			continue
		}
		if _, dup := byID[msg.ID]; !dup {
			byID[msg.ID] = msg
		}
	}

	root, ok := byID[rootID]
	if !ok {
		return nil
	}

	children := make(map[int64][]*store.Message, len(byID))
	for _, msg := range byID {
		if msg.ParentID == nil || *msg.ParentID == msg.ID {
			continue
		}
		children[*msg.ParentID] = append(children[*msg.ParentID], msg)
	}
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool {
			a, b := siblings[i], siblings[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	}

	visited := make(map[int64]bool, len(byID))
	var assemble func(msg *store.Message) *Node
	assemble = func(msg *store.Message) *Node {
		visited[msg.ID] = true
		node := &Node{Message: msg, Replies: []*Node{}}
		for _, child := range children[msg.ID] {
			if visited[child.ID] {
				continue
			}
			node.Replies = append(node.Replies, assemble(child))
		}
		return node
	}

	return assemble(root)
}

// Walk visits n and its replies depth-first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, r := range n.Replies {
		r.Walk(fn)
	}
}
