package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brn/yatsc-sub001/heap/chunk"
)

func TestSizeClassConfig(t *testing.T) {
	for _, name := range []string{"FineGrained", "Balanced", "Coarse"} {
		cfg, err := sizeClassConfig(name)
		require.NoError(t, err)
		assert.Equal(t, name, cfg.Name)
	}

	_, err := sizeClassConfig("Tiny")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tiny")
}

func TestClassesCommand(t *testing.T) {
	t.Cleanup(resetFlags)

	t.Run("text", func(t *testing.T) {
		resetFlags()
		out, err := captureOutput(t, runClasses)
		require.NoError(t, err)
		assert.Contains(t, out, "FineGrained")
		assert.Contains(t, out, "16.0 KiB")
	})

	t.Run("json", func(t *testing.T) {
		resetFlags()
		classConfig = "Coarse"
		jsonOut = true
		out, err := captureOutput(t, runClasses)
		require.NoError(t, err)

		var classes []classInfo
		decodeJSON(t, out, &classes)
		want := chunk.NewTable(chunk.ConfigCoarse)
		require.Len(t, classes, want.NumClasses())
		assert.Equal(t, uintptr(32), classes[0].Size)
		assert.Equal(t, want.Max(), classes[len(classes)-1].Size)
	})

	t.Run("unknown config", func(t *testing.T) {
		resetFlags()
		classConfig = "Tiny"
		_, err := captureOutput(t, runClasses)
		assert.Error(t, err)
	})
}

func TestTreeCommand(t *testing.T) {
	t.Cleanup(resetFlags)

	tests := []struct {
		name     string
		insert   []string
		remove   []string
		wantKeys []int64
		wantDel  []int64
		wantErr  bool
	}{
		{
			name:     "ascending inserts",
			insert:   []string{"1", "2", "3", "4", "5", "6", "7", "8"},
			wantKeys: []int64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name:     "delete some",
			insert:   []string{"10", "5", "20", "1", "7"},
			remove:   []string{"5", "99"},
			wantKeys: []int64{1, 7, 10, 20},
			wantDel:  []int64{5},
		},
		{
			name:     "duplicate replaces",
			insert:   []string{"3", "3", "-1"},
			wantKeys: []int64{-1, 3},
		},
		{
			name:    "bad key",
			insert:  []string{"x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = true
			out, err := captureOutput(t, func() error { return runTree(tt.insert, tt.remove) })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var rep treeReport
			decodeJSON(t, out, &rep)
			assert.True(t, rep.Valid, rep.Error)
			assert.Equal(t, tt.wantKeys, rep.Keys)
			assert.Equal(t, tt.wantDel, rep.Deleted)
			require.NotEmpty(t, rep.BlackHeights)
			for _, bh := range rep.BlackHeights {
				assert.Equal(t, rep.BlackHeights[0], bh)
			}
		})
	}
}

func TestRunWorkload(t *testing.T) {
	t.Cleanup(resetFlags)
	resetFlags()

	h, err := openHeap()
	require.NoError(t, err)
	defer h.Close()

	for _, unbound := range []bool{false, true} {
		res := runWorkload(h, benchOptions{
			Goroutines: 3,
			Objects:    2000,
			MinSize:    8,
			MaxSize:    512,
			FreeRatio:  0.5,
			Seed:       7,
			Unbound:    unbound,
		})
		assert.Equal(t, 6000, res.Allocations)
		assert.Equal(t, res.Allocations, res.Frees)
	}
}

func TestRunWorkloadLarge(t *testing.T) {
	t.Cleanup(resetFlags)
	resetFlags()

	h, err := openHeap()
	require.NoError(t, err)
	defer h.Close()

	res := runWorkload(h, benchOptions{
		Goroutines: 2,
		Objects:    50,
		MinSize:    20000,
		MaxSize:    70000,
		FreeRatio:  1,
		Seed:       3,
	})
	assert.Equal(t, res.Allocations, res.Frees)
	assert.Positive(t, res.Stats.LargeAllocs)
}

func TestBenchOptionsValidate(t *testing.T) {
	ok := benchOptions{Goroutines: 1, Objects: 1, MinSize: 8, MaxSize: 8, FreeRatio: 0.5}
	require.NoError(t, ok.validate())

	bad := ok
	bad.Goroutines = 0
	assert.Error(t, bad.validate())

	bad = ok
	bad.MinSize = 16
	assert.Error(t, bad.validate())

	bad = ok
	bad.FreeRatio = 1.5
	assert.Error(t, bad.validate())
}

func TestCollectStats(t *testing.T) {
	t.Cleanup(resetFlags)
	resetFlags()

	h, err := openHeap()
	require.NoError(t, err)
	defer h.Close()

	rep := collectStats(h, []uint{16, 64}, 100)
	require.Len(t, rep.Pools, 2)
	var live int64
	for _, p := range rep.Pools {
		live += p.Live
	}
	assert.Equal(t, int64(200), live)
}
