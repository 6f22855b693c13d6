package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brn/yatsc-sub001/heap"
	"github.com/brn/yatsc-sub001/heap/chunk"
	"github.com/brn/yatsc-sub001/internal/logger"
)

var (
	// Global flags
	verbose     bool
	quiet       bool
	jsonOut     bool
	debugLog    bool
	classConfig string
	maxLargeBin uint64
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Benchmark and inspect the heap allocator",
	Long: `heapctl drives the size-class heap allocator with synthetic workloads
and reports arena, pool and large-object statistics. It is meant for
tuning size-class configurations and checking allocator behavior.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Options{
			Enabled: debugLog,
			Writer:  os.Stderr,
			Level:   slog.LevelDebug,
		})
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Log allocator slow paths to stderr")
	rootCmd.PersistentFlags().
		StringVar(&classConfig, "classes", chunk.DefaultConfig.Name, "Size class configuration (FineGrained, Balanced, Coarse)")
	rootCmd.PersistentFlags().
		Uint64Var(&maxLargeBin, "max-large-bin", 0, "Cap on freed large-object bytes kept for reuse (0 = unlimited)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sizeClassConfig resolves the --classes flag.
func sizeClassConfig(name string) (chunk.SizeClassConfig, error) {
	for _, cfg := range []chunk.SizeClassConfig{
		chunk.ConfigFineGrained,
		chunk.ConfigBalanced,
		chunk.ConfigCoarse,
	} {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return chunk.SizeClassConfig{}, fmt.Errorf("unknown size class configuration %q", name)
}

// openHeap builds a heap from the global flags.
func openHeap() (*heap.Heap, error) {
	sc, err := sizeClassConfig(classConfig)
	if err != nil {
		return nil, err
	}
	return heap.Open(&heap.Config{
		SizeClasses:      &sc,
		MaxLargeBinBytes: maxLargeBin,
	}), nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
