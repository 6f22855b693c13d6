package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/brn/yatsc-sub001/pkg/rbtree"
)

var treeDelete []string

func init() {
	cmd := newTreeCmd()
	cmd.Flags().StringSliceVarP(&treeDelete, "delete", "d", nil, "Keys to delete after inserting")
	rootCmd.AddCommand(cmd)
}

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <key>...",
		Short: "Insert keys into a red-black tree and print it",
		Long: `The tree command inserts the given integer keys into the intrusive
red-black tree used by the arenas, optionally deletes some of them, and
prints the resulting shape with its black heights.

Example:
  heapctl tree 10 5 20 1 7
  heapctl tree 1 2 3 4 5 6 7 8 --delete 4,5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(args, treeDelete)
		},
	}
	return cmd
}

type treeNode struct {
	rbtree.Link[int64]
}

type treeReport struct {
	Keys         []int64
	Deleted      []int64
	BlackHeights []int
	Valid        bool
	Error        string `json:",omitempty"`
}

func runTree(insert, remove []string) error {
	tree, rep, err := buildTree(insert, remove)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rep)
	}

	printInfo("%s\n", tree)
	printInfo("Keys:          %v\n", rep.Keys)
	printInfo("Black heights: %v\n", rep.BlackHeights)
	if rep.Valid {
		printInfo("Valid:         yes\n")
	} else {
		printInfo("Valid:         no (%s)\n", rep.Error)
	}
	return nil
}

func buildTree(insert, remove []string) (*rbtree.Tree[int64, treeNode, *treeNode], treeReport, error) {
	slab := rbtree.NewSlab[treeNode](64)
	tree := rbtree.New[int64, treeNode](slab)
	var rep treeReport

	for _, s := range insert {
		key, err := parseKey(s)
		if err != nil {
			return nil, rep, err
		}
		r, _ := slab.New()
		if old := tree.InsertReplace(key, r); old != rbtree.Nil {
			slab.Free(old)
		}
	}
	for _, s := range remove {
		key, err := parseKey(s)
		if err != nil {
			return nil, rep, err
		}
		if r := tree.Delete(key); r != rbtree.Nil {
			slab.Free(r)
			rep.Deleted = append(rep.Deleted, key)
		} else {
			printVerbose("Key %d not present\n", key)
		}
	}

	tree.Ascend(func(_ rbtree.Ref, n *treeNode) bool {
		rep.Keys = append(rep.Keys, n.Key())
		return true
	})
	rep.BlackHeights = tree.BlackHeights()
	if err := tree.Validate(); err != nil {
		rep.Error = err.Error()
	} else {
		rep.Valid = true
	}
	return tree, rep, nil
}

func parseKey(s string) (int64, error) {
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return key, nil
}
