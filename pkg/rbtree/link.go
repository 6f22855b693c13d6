package rbtree

import "cmp"

// Color is a node color.
type Color uint8

const (
	Black Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "black"
}

// Link is the intrusive part of a tree node. Embed it in the payload type.
type Link[K cmp.Ordered] struct {
	key    K
	color  Color
	left   Ref
	right  Ref
	parent Ref
	exists bool
}

// Key returns the key the node was inserted under.
func (l *Link[K]) Key() K { return l.key }

// SetKey sets the key used by InsertNode. It must not be called while the
// node is in a tree.
func (l *Link[K]) SetKey(k K) { l.key = k }

// Color returns the node color.
func (l *Link[K]) Color() Color { return l.color }

// Exists reports whether the node is currently linked into a tree.
func (l *Link[K]) Exists() bool { return l.exists }

// Left returns the left child.
func (l *Link[K]) Left() Ref { return l.left }

// Right returns the right child.
func (l *Link[K]) Right() Ref { return l.right }

// Parent returns the parent.
func (l *Link[K]) Parent() Ref { return l.parent }

func (l *Link[K]) treeLink() *Link[K] { return l }

func (l *Link[K]) reset() {
	l.left, l.right, l.parent = Nil, Nil, Nil
	l.color = Black
	l.exists = false
}

// Node constrains pointers to payload types that embed Link[K].
type Node[K cmp.Ordered, T any] interface {
	*T
	treeLink() *Link[K]
}
