// Package btree implements the unique B+Tree FileStore keeps as its
// record-id index: every leaf's DataPtrs entry is a heap offset, and
// Replace/Get are the only two operations the store ever drives it
// through; the tree's exported surface is those two plus NewUniqueTree and
// Upsert.
package btree

import (
	"sync"

	"github.com/relionhq/queryengine/pkg/storekey"
)

// BPlusTree is a concurrent B+Tree keyed on storekey.Comparable with int64
// leaf values (heap offsets). Latch crabbing lets readers and writers
// descend the tree concurrently without holding a single global lock.
type BPlusTree struct {
	T    int
	Root *Node
	mu   sync.RWMutex // guards the Root pointer during structural splits
}

// NewUniqueTree creates the id -> heap-offset index FileStore keeps, with T
// the tree's minimum degree (max 2T-1 keys per node before a split).
func NewUniqueTree(t int) *BPlusTree {
	return &BPlusTree{
		T:    t,
		Root: NewNode(t, true),
	}
}

// Replace sets key's value unconditionally, inserting it if absent. This is
// the index-maintenance half of every FileStore write: a new heap offset
// replaces whatever offset the id previously pointed at.
func (b *BPlusTree) Replace(key storekey.Comparable, dataPtr int64) error {
	return b.Upsert(key, func(oldValue int64, exists bool) (int64, error) {
		return dataPtr, nil
	})
}

// Upsert runs fn against key's current value (if any) and stores whatever
// fn returns, atomically with respect to concurrent Get/Replace calls on
// the same leaf.
func (b *BPlusTree) Upsert(key storekey.Comparable, fn func(oldValue int64, exists bool) (newValue int64, err error)) error {
	return b.upsertHelper(key, fn)
}

func (b *BPlusTree) upsertHelper(key storekey.Comparable, fn func(oldValue int64, exists bool) (newValue int64, err error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode(b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends to the leaf holding (or that should hold) key,
// splitting any full node it passes through so the leaf it finally reaches
// is guaranteed not to be full. Assumes curr arrives already locked by the
// caller and releases every lock it passes through (latch crabbing).
func (b *BPlusTree) upsertTopDown(curr *Node, key storekey.Comparable, fn func(oldValue int64, exists bool) (newValue int64, err error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)

			if key.Compare(curr.Keys[i]) >= 0 {
				// the split pushed our key into the new right sibling
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.UpsertNonFull(key, fn)
}

// Get returns the value stored for key, or false if key is absent.
func (b *BPlusTree) Get(key storekey.Comparable) (int64, bool) {
	if b == nil {
		return 0, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return 0, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.DataPtrs[j], true
		}
	}
	return 0, false
}
