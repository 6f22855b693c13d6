package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/brn/yatsc-sub001/heap"
)

var (
	benchGoroutines int
	benchObjects    int
	benchMinSize    uint64
	benchMaxSize    uint64
	benchFreeRatio  float64
	benchSeed       int64
	benchUnbound    bool
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVarP(&benchGoroutines, "goroutines", "g", 4, "Number of allocating goroutines")
	cmd.Flags().IntVarP(&benchObjects, "objects", "n", 100000, "Allocations per goroutine")
	cmd.Flags().Uint64Var(&benchMinSize, "min-size", 8, "Smallest allocation in bytes")
	cmd.Flags().Uint64Var(&benchMaxSize, "max-size", 1024, "Largest allocation in bytes")
	cmd.Flags().Float64Var(&benchFreeRatio, "free-ratio", 0.5, "Probability of freeing a random live block after each allocation")
	cmd.Flags().Int64Var(&benchSeed, "seed", 1, "Random seed (each goroutine adds its index)")
	cmd.Flags().BoolVar(&benchUnbound, "unbound", false, "Acquire an arena per call instead of binding one per goroutine")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent allocate/free workload",
		Long: `The bench command runs goroutines that allocate blocks of random size
and free a random live block with the given probability, then frees
everything that is left and prints throughput and allocator statistics.

Example:
  heapctl bench
  heapctl bench -g 8 -n 1000000 --max-size 64
  heapctl bench --min-size 20000 --max-size 20000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

type benchOptions struct {
	Goroutines int
	Objects    int
	MinSize    uintptr
	MaxSize    uintptr
	FreeRatio  float64
	Seed       int64
	Unbound    bool
}

type benchResult struct {
	Options     benchOptions
	Elapsed     time.Duration
	Allocations int
	Frees       int
	OpsPerSec   float64
	Stats       heap.Stats
}

func runBench() error {
	opts := benchOptions{
		Goroutines: benchGoroutines,
		Objects:    benchObjects,
		MinSize:    uintptr(benchMinSize),
		MaxSize:    uintptr(benchMaxSize),
		FreeRatio:  benchFreeRatio,
		Seed:       benchSeed,
		Unbound:    benchUnbound,
	}
	if err := opts.validate(); err != nil {
		return err
	}

	h, err := openHeap()
	if err != nil {
		return err
	}
	defer h.Close()

	printVerbose("Running %d goroutines x %d objects (%d-%d bytes)\n",
		opts.Goroutines, opts.Objects, opts.MinSize, opts.MaxSize)
	res := runWorkload(h, opts)

	if jsonOut {
		return printJSON(res)
	}

	printInfo("Allocations: %s in %s (%s ops/s)\n",
		heap.FormatCount(int64(res.Allocations)), res.Elapsed.Round(time.Microsecond),
		heap.FormatCount(int64(res.OpsPerSec)))
	if !quiet {
		return heap.WriteReport(os.Stdout, res.Stats)
	}
	return nil
}

func (o benchOptions) validate() error {
	switch {
	case o.Goroutines < 1:
		return fmt.Errorf("goroutines must be at least 1, got %d", o.Goroutines)
	case o.Objects < 0:
		return fmt.Errorf("objects must not be negative, got %d", o.Objects)
	case o.MinSize == 0 || o.MinSize > o.MaxSize:
		return fmt.Errorf("invalid size range %d-%d", o.MinSize, o.MaxSize)
	case o.FreeRatio < 0 || o.FreeRatio > 1:
		return fmt.Errorf("free-ratio must be within [0, 1], got %g", o.FreeRatio)
	}
	return nil
}

// runWorkload runs the benchmark and frees every block before returning.
func runWorkload(h *heap.Heap, opts benchOptions) benchResult {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		frees int
	)
	start := time.Now()
	for g := range opts.Goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var a heap.Allocator = h
			if !opts.Unbound {
				l := h.Bind()
				defer l.Close()
				a = l
			}

			rng := rand.New(rand.NewSource(opts.Seed + int64(g)))
			span := int64(opts.MaxSize-opts.MinSize) + 1
			live := make([]heap.Block, 0, opts.Objects)
			n := 0
			for range opts.Objects {
				size := opts.MinSize + uintptr(rng.Int63n(span))
				b := a.Allocate(size)
				// Touch the block so the pages are really committed.
				*(*byte)(b.Pointer()) = byte(size)
				live = append(live, b)

				if rng.Float64() < opts.FreeRatio {
					j := rng.Intn(len(live))
					a.Deallocate(live[j])
					live[j] = live[len(live)-1]
					live = live[:len(live)-1]
					n++
				}
			}
			for _, b := range live {
				a.Deallocate(b)
			}
			n += len(live)

			mu.Lock()
			frees += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := opts.Goroutines * opts.Objects
	res := benchResult{
		Options:     opts,
		Elapsed:     elapsed,
		Allocations: total,
		Frees:       frees,
		Stats:       h.Stats(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.OpsPerSec = float64(total+frees) / secs
	}
	return res
}
