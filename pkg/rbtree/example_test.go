package rbtree_test

import (
	"fmt"

	"github.com/brn/yatsc-sub001/pkg/rbtree"
)

type pool struct {
	rbtree.Link[uint32]
	name string
}

func Example() {
	slab := rbtree.NewSlab[pool](16)
	tree := rbtree.New[uint32, pool](slab)

	for _, size := range []uint32{64, 16, 32} {
		r, p := slab.New()
		p.name = fmt.Sprintf("class-%d", size)
		tree.Insert(size, r)
	}

	tree.Ascend(func(_ rbtree.Ref, p *pool) bool {
		fmt.Println(p.Key(), p.name)
		return true
	})
	fmt.Println(tree.Validate() == nil)
	// Output:
	// 16 class-16
	// 32 class-32
	// 64 class-64
	// true
}
