package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/brn/yatsc-sub001/heap"
	"github.com/brn/yatsc-sub001/heap/chunk"
)

var (
	statsCount int
	statsSizes []uint
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVarP(&statsCount, "count", "n", 1000, "Blocks to allocate per size")
	cmd.Flags().UintSliceVar(&statsSizes, "size", []uint{16, 64, 256, 4096, 20000}, "Allocation sizes")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show pool and arena statistics for a fixed workload",
		Long: `The stats command allocates --count blocks of every --size from one
bound arena and prints the per-pool breakdown and the heap counters while
the blocks are still live.

Example:
  heapctl stats
  heapctl stats --size 24 --size 48 -n 100000
  heapctl stats --classes Coarse --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
	return cmd
}

type statsReport struct {
	Classes string
	Pools   []chunk.Stats
	Heap    heap.Stats
}

func runStats() error {
	h, err := openHeap()
	if err != nil {
		return err
	}
	defer h.Close()

	rep := collectStats(h, statsSizes, statsCount)
	if jsonOut {
		return printJSON(rep)
	}

	printInfo("Size classes: %s\n\n", rep.Classes)
	if quiet {
		return nil
	}
	if err := heap.WritePoolReport(os.Stdout, rep.Pools); err != nil {
		return err
	}
	printInfo("\n")
	return heap.WriteReport(os.Stdout, rep.Heap)
}

// collectStats allocates count blocks per size, snapshots the counters and
// frees everything again.
func collectStats(h *heap.Heap, sizes []uint, count int) statsReport {
	l := h.Bind()
	defer l.Close()

	blocks := make([]heap.Block, 0, len(sizes)*count)
	for _, size := range sizes {
		printVerbose("Allocating %d x %d bytes\n", count, size)
		for range count {
			blocks = append(blocks, l.Allocate(uintptr(size)))
		}
	}

	rep := statsReport{
		Pools: l.Arena().Pools(),
		Heap:  h.Stats(),
	}
	for _, b := range blocks {
		l.Deallocate(b)
	}
	return rep
}
