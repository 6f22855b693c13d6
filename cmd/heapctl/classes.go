package main

import (
	"github.com/spf13/cobra"

	"github.com/brn/yatsc-sub001/heap"
	"github.com/brn/yatsc-sub001/heap/chunk"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the slot sizes of a size class configuration",
		Long: `The classes command prints every slot size of the configuration
selected with --classes, with the number of slots one 1 MB slab holds.

Example:
  heapctl classes
  heapctl classes --classes Balanced --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
}

type classInfo struct {
	Index int
	Size  uintptr
}

func runClasses() error {
	cfg, err := sizeClassConfig(classConfig)
	if err != nil {
		return err
	}
	tab := chunk.NewTable(cfg)
	classes := make([]classInfo, 0, tab.NumClasses())
	for i, size := range tab.Classes() {
		classes = append(classes, classInfo{Index: i, Size: size})
	}
	if jsonOut {
		return printJSON(classes)
	}

	printInfo("%s: %d classes, ceiling %s\n", tab, tab.NumClasses(), heap.FormatBytes(int64(tab.Max())))
	for _, c := range classes {
		printInfo("  %3d  %8s bytes  %8s slots/slab\n", c.Index,
			heap.FormatCount(int64(c.Size)), heap.FormatCount(int64(chunk.SlabSize/c.Size)))
	}
	return nil
}
