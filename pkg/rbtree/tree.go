package rbtree

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant is wrapped by every Validate failure.
var ErrInvariant = errors.New("rbtree: invariant violated")

// Tree is a red-black tree whose nodes live in a Slab.
type Tree[K cmp.Ordered, T any, P Node[K, T]] struct {
	slab *Slab[T]
	root Ref
	size int
}

// New returns an empty tree over slab. Several trees may share one slab.
func New[K cmp.Ordered, T any, P Node[K, T]](slab *Slab[T]) *Tree[K, T, P] {
	return &Tree[K, T, P]{slab: slab, root: Nil}
}

// Slab returns the node storage.
func (t *Tree[K, T, P]) Slab() *Slab[T] { return t.slab }

// Len returns the number of nodes in the tree.
func (t *Tree[K, T, P]) Len() int { return t.size }

// Root returns the root node.
func (t *Tree[K, T, P]) Root() Ref { return t.root }

// At returns the payload of r.
func (t *Tree[K, T, P]) At(r Ref) *T { return t.slab.At(r) }

func (t *Tree[K, T, P]) link(r Ref) *Link[K] {
	return P(t.slab.At(r)).treeLink()
}

// Insert sets the key of r, links it and returns r. A node that is already
// linked is returned unchanged, key included. When another node holds the
// same key, r takes its place; use InsertReplace to get the displaced node.
func (t *Tree[K, T, P]) Insert(key K, r Ref) Ref {
	t.InsertReplace(key, r)
	return r
}

// InsertNode is Insert under r's current key.
func (t *Tree[K, T, P]) InsertNode(r Ref) Ref {
	t.insert(r)
	return r
}

// InsertReplace is Insert that returns the node r displaced, or Nil when
// the key was free or r was already linked. The displaced node is unlinked
// and may be freed or chained by the caller.
func (t *Tree[K, T, P]) InsertReplace(key K, r Ref) Ref {
	n := t.link(r)
	if n.exists {
		return Nil
	}
	n.key = key
	return t.insert(r)
}

func (t *Tree[K, T, P]) insert(r Ref) Ref {
	n := t.link(r)
	if n.exists {
		return Nil
	}

	parent := Nil
	cur := t.root
	var c int
	for cur != Nil {
		parent = cur
		cn := t.link(cur)
		c = cmp.Compare(n.key, cn.key)
		switch {
		case c < 0:
			cur = cn.left
		case c > 0:
			cur = cn.right
		default:
			t.replace(cur, r)
			return cur
		}
	}

	n.left, n.right, n.parent = Nil, Nil, parent
	n.color = Red
	n.exists = true
	switch {
	case parent == Nil:
		t.root = r
	case c < 0:
		t.link(parent).left = r
	default:
		t.link(parent).right = r
	}
	t.size++
	t.fixAfterInsert(r)
	return Nil
}

// Find returns the node with key, or Nil.
func (t *Tree[K, T, P]) Find(key K) Ref {
	cur := t.root
	for cur != Nil {
		n := t.link(cur)
		switch c := cmp.Compare(key, n.key); {
		case c < 0:
			cur = n.left
		case c > 0:
			cur = n.right
		default:
			return cur
		}
	}
	return Nil
}

// Ceil returns the node with the smallest key >= key, or Nil.
func (t *Tree[K, T, P]) Ceil(key K) Ref {
	best := Nil
	cur := t.root
	for cur != Nil {
		n := t.link(cur)
		switch c := cmp.Compare(key, n.key); {
		case c < 0:
			best = cur
			cur = n.left
		case c > 0:
			cur = n.right
		default:
			return cur
		}
	}
	return best
}

// Delete removes the node with key and returns it, or Nil if none.
func (t *Tree[K, T, P]) Delete(key K) Ref {
	r := t.Find(key)
	if r != Nil {
		t.DeleteNode(r)
	}
	return r
}

// DeleteNode unlinks r. It reports false if r was not in a tree.
func (t *Tree[K, T, P]) DeleteNode(r Ref) bool {
	p := t.link(r)
	if !p.exists {
		return false
	}

	if p.left != Nil && p.right != Nil {
		t.swapWithSuccessor(r, t.min(p.right))
	}

	replacement := p.left
	if replacement == Nil {
		replacement = p.right
	}

	switch {
	case replacement != Nil:
		t.link(replacement).parent = p.parent
		t.replaceChild(p.parent, r, replacement)
		if p.color == Black {
			t.fixAfterDelete(replacement)
		}
	case p.parent == Nil:
		t.root = Nil
	default:
		// r stands in for its own nil leaf during the fixup.
		if p.color == Black {
			t.fixAfterDelete(r)
		}
		if p.parent != Nil {
			t.replaceChild(p.parent, r, Nil)
		}
	}

	p.reset()
	t.size--
	return true
}

// Min returns the node with the smallest key, or Nil.
func (t *Tree[K, T, P]) Min() Ref {
	if t.root == Nil {
		return Nil
	}
	return t.min(t.root)
}

// Next returns the in-order successor of r, or Nil.
func (t *Tree[K, T, P]) Next(r Ref) Ref {
	n := t.link(r)
	if n.right != Nil {
		return t.min(n.right)
	}
	child, p := r, n.parent
	for p != Nil && t.link(p).right == child {
		child, p = p, t.link(p).parent
	}
	return p
}

// Ascend calls fn for each node in key order until fn returns false.
// fn must not modify the tree.
func (t *Tree[K, T, P]) Ascend(fn func(Ref, *T) bool) {
	for r := t.Min(); r != Nil; r = t.Next(r) {
		if !fn(r, t.slab.At(r)) {
			return
		}
	}
}

func (t *Tree[K, T, P]) min(r Ref) Ref {
	for l := t.link(r).left; l != Nil; l = t.link(r).left {
		r = l
	}
	return r
}

// replace puts r into old's position. old must be linked and r must not be.
func (t *Tree[K, T, P]) replace(old, r Ref) {
	o, n := t.link(old), t.link(r)
	n.left, n.right, n.parent, n.color = o.left, o.right, o.parent, o.color
	n.exists = true
	t.replaceChild(o.parent, old, r)
	if n.left != Nil {
		t.link(n.left).parent = r
	}
	if n.right != Nil {
		t.link(n.right).parent = r
	}
	o.reset()
}

// swapWithSuccessor exchanges the tree positions and colors of a and its
// in-order successor s. Payloads stay where they are.
func (t *Tree[K, T, P]) swapWithSuccessor(a, s Ref) {
	na, ns := t.link(a), t.link(s)
	aParent, aLeft, aRight, aColor := na.parent, na.left, na.right, na.color
	sParent, sRight, sColor := ns.parent, ns.right, ns.color

	ns.parent = aParent
	t.replaceChild(aParent, a, s)
	ns.left = aLeft
	t.link(aLeft).parent = s
	ns.color = aColor
	if sParent == a {
		ns.right = a
		na.parent = s
	} else {
		ns.right = aRight
		t.link(aRight).parent = s
		na.parent = sParent
		t.link(sParent).left = a
	}

	na.left = Nil
	na.right = sRight
	if sRight != Nil {
		t.link(sRight).parent = a
	}
	na.color = sColor
}

func (t *Tree[K, T, P]) replaceChild(parent, old, r Ref) {
	if parent == Nil {
		t.root = r
		return
	}
	pn := t.link(parent)
	if pn.left == old {
		pn.left = r
	} else {
		pn.right = r
	}
}

func (t *Tree[K, T, P]) colorOf(r Ref) Color {
	if r == Nil {
		return Black
	}
	return t.link(r).color
}

func (t *Tree[K, T, P]) setColor(r Ref, c Color) {
	if r != Nil {
		t.link(r).color = c
	}
}

func (t *Tree[K, T, P]) parentOf(r Ref) Ref {
	if r == Nil {
		return Nil
	}
	return t.link(r).parent
}

func (t *Tree[K, T, P]) leftOf(r Ref) Ref {
	if r == Nil {
		return Nil
	}
	return t.link(r).left
}

func (t *Tree[K, T, P]) rightOf(r Ref) Ref {
	if r == Nil {
		return Nil
	}
	return t.link(r).right
}

func (t *Tree[K, T, P]) rotateLeft(r Ref) {
	if r == Nil {
		return
	}
	n := t.link(r)
	pivot := n.right
	pn := t.link(pivot)
	n.right = pn.left
	if pn.left != Nil {
		t.link(pn.left).parent = r
	}
	pn.parent = n.parent
	t.replaceChild(n.parent, r, pivot)
	pn.left = r
	n.parent = pivot
}

func (t *Tree[K, T, P]) rotateRight(r Ref) {
	if r == Nil {
		return
	}
	n := t.link(r)
	pivot := n.left
	pn := t.link(pivot)
	n.left = pn.right
	if pn.right != Nil {
		t.link(pn.right).parent = r
	}
	pn.parent = n.parent
	t.replaceChild(n.parent, r, pivot)
	pn.right = r
	n.parent = pivot
}

func (t *Tree[K, T, P]) fixAfterInsert(x Ref) {
	for x != t.root && t.colorOf(t.parentOf(x)) == Red {
		p := t.parentOf(x)
		g := t.parentOf(p)
		if p == t.leftOf(g) {
			uncle := t.rightOf(g)
			if t.colorOf(uncle) == Red {
				t.setColor(p, Black)
				t.setColor(uncle, Black)
				t.setColor(g, Red)
				x = g
				continue
			}
			if x == t.rightOf(p) {
				x = p
				t.rotateLeft(x)
			}
			t.setColor(t.parentOf(x), Black)
			t.setColor(t.parentOf(t.parentOf(x)), Red)
			t.rotateRight(t.parentOf(t.parentOf(x)))
		} else {
			uncle := t.leftOf(g)
			if t.colorOf(uncle) == Red {
				t.setColor(p, Black)
				t.setColor(uncle, Black)
				t.setColor(g, Red)
				x = g
				continue
			}
			if x == t.leftOf(p) {
				x = p
				t.rotateRight(x)
			}
			t.setColor(t.parentOf(x), Black)
			t.setColor(t.parentOf(t.parentOf(x)), Red)
			t.rotateLeft(t.parentOf(t.parentOf(x)))
		}
	}
	t.setColor(t.root, Black)
}

func (t *Tree[K, T, P]) fixAfterDelete(x Ref) {
	for x != t.root && t.colorOf(x) == Black {
		if x == t.leftOf(t.parentOf(x)) {
			sib := t.rightOf(t.parentOf(x))
			if t.colorOf(sib) == Red {
				t.setColor(sib, Black)
				t.setColor(t.parentOf(x), Red)
				t.rotateLeft(t.parentOf(x))
				sib = t.rightOf(t.parentOf(x))
			}
			if t.colorOf(t.leftOf(sib)) == Black && t.colorOf(t.rightOf(sib)) == Black {
				t.setColor(sib, Red)
				x = t.parentOf(x)
				continue
			}
			if t.colorOf(t.rightOf(sib)) == Black {
				t.setColor(t.leftOf(sib), Black)
				t.setColor(sib, Red)
				t.rotateRight(sib)
				sib = t.rightOf(t.parentOf(x))
			}
			t.setColor(sib, t.colorOf(t.parentOf(x)))
			t.setColor(t.parentOf(x), Black)
			t.setColor(t.rightOf(sib), Black)
			t.rotateLeft(t.parentOf(x))
			x = t.root
		} else {
			sib := t.leftOf(t.parentOf(x))
			if t.colorOf(sib) == Red {
				t.setColor(sib, Black)
				t.setColor(t.parentOf(x), Red)
				t.rotateRight(t.parentOf(x))
				sib = t.leftOf(t.parentOf(x))
			}
			if t.colorOf(t.rightOf(sib)) == Black && t.colorOf(t.leftOf(sib)) == Black {
				t.setColor(sib, Red)
				x = t.parentOf(x)
				continue
			}
			if t.colorOf(t.leftOf(sib)) == Black {
				t.setColor(t.rightOf(sib), Black)
				t.setColor(sib, Red)
				t.rotateLeft(sib)
				sib = t.leftOf(t.parentOf(x))
			}
			t.setColor(sib, t.colorOf(t.parentOf(x)))
			t.setColor(t.parentOf(x), Black)
			t.setColor(t.leftOf(sib), Black)
			t.rotateRight(t.parentOf(x))
			x = t.root
		}
	}
	t.setColor(x, Black)
}

// BlackHeights returns, for every nil leaf in in-order position, the number
// of black nodes on its path from the root. A valid tree yields one
// repeated value.
func (t *Tree[K, T, P]) BlackHeights() []int {
	var out []int
	var walk func(r Ref, blacks int)
	walk = func(r Ref, blacks int) {
		if r == Nil {
			out = append(out, blacks)
			return
		}
		n := t.link(r)
		if n.color == Black {
			blacks++
		}
		walk(n.left, blacks)
		walk(n.right, blacks)
	}
	walk(t.root, 0)
	return out
}

// Validate checks ordering, parent links, coloring and black height.
func (t *Tree[K, T, P]) Validate() error {
	if t.root == Nil {
		if t.size != 0 {
			return fmt.Errorf("%w: empty tree with size %d", ErrInvariant, t.size)
		}
		return nil
	}
	if t.link(t.root).color != Black {
		return fmt.Errorf("%w: red root", ErrInvariant)
	}
	if p := t.link(t.root).parent; p != Nil {
		return fmt.Errorf("%w: root has parent %d", ErrInvariant, p)
	}

	count := 0
	var check func(r Ref) (int, error)
	check = func(r Ref) (int, error) {
		if r == Nil {
			return 1, nil
		}
		count++
		n := t.link(r)
		if !n.exists {
			return 0, fmt.Errorf("%w: node %d linked but not marked", ErrInvariant, r)
		}
		for _, c := range [2]Ref{n.left, n.right} {
			if c == Nil {
				continue
			}
			if t.link(c).parent != r {
				return 0, fmt.Errorf("%w: node %d has wrong parent", ErrInvariant, c)
			}
			if n.color == Red && t.link(c).color == Red {
				return 0, fmt.Errorf("%w: red node %d has red child %d", ErrInvariant, r, c)
			}
		}
		if n.left != Nil && cmp.Compare(t.link(n.left).key, n.key) >= 0 {
			return 0, fmt.Errorf("%w: left child of %d out of order", ErrInvariant, r)
		}
		if n.right != Nil && cmp.Compare(t.link(n.right).key, n.key) <= 0 {
			return 0, fmt.Errorf("%w: right child of %d out of order", ErrInvariant, r)
		}
		lh, err := check(n.left)
		if err != nil {
			return 0, err
		}
		rh, err := check(n.right)
		if err != nil {
			return 0, err
		}
		if lh != rh {
			return 0, fmt.Errorf("%w: black height %d != %d under node %d", ErrInvariant, lh, rh, r)
		}
		if n.color == Black {
			lh++
		}
		return lh, nil
	}
	if _, err := check(t.root); err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("%w: reachable %d nodes, size %d", ErrInvariant, count, t.size)
	}
	return nil
}

// String renders the tree sideways, right subtree on top.
func (t *Tree[K, T, P]) String() string {
	var b strings.Builder
	var walk func(r Ref, depth int)
	walk = func(r Ref, depth int) {
		if r == Nil {
			return
		}
		n := t.link(r)
		walk(n.right, depth+1)
		fmt.Fprintf(&b, "%s%v(%s)\n", strings.Repeat("    ", depth), n.key, n.color)
		walk(n.left, depth+1)
	}
	walk(t.root, 0)
	return b.String()
}
