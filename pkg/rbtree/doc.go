// Package rbtree implements an intrusive red-black tree over slab-allocated
// nodes.
//
// # Overview
//
// Nodes are not allocated by the tree. A payload type embeds Link, which
// carries the key, the color and the child/parent links, and the payload
// itself lives in a Slab. Links are Ref indices into that slab rather than
// pointers, so a node can be moved between trees or kept in off-heap
// bookkeeping without the tree ever allocating.
//
//	type pool struct {
//		rbtree.Link[uint32]
//		slots int
//	}
//
//	slab := rbtree.NewSlab[pool](64)
//	tree := rbtree.New[uint32, pool](slab)
//	ref, p := slab.New()
//	tree.Insert(32, ref)
//
// # Duplicate keys
//
// Inserting a node that is already in the tree is a no-op that returns the
// node. Inserting a different node under an existing key replaces the old
// node in place: the new node takes over its color and links and the tree
// size does not change. InsertReplace returns the displaced node so the
// caller can chain or free it.
//
// # Concurrency
//
// A Tree and its Slab are not safe for concurrent use.
package rbtree
