package heap

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/brn/yatsc-sub001/heap/chunk"
)

// reportPrinter groups digits the same way regardless of the host locale.
var reportPrinter = message.NewPrinter(language.English)

// FormatBytes renders n as a binary-prefixed size, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return reportPrinter.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit || m <= -unit; m /= unit {
		div *= unit
		exp++
	}
	return reportPrinter.Sprintf("%.1f %siB", float64(n)/float64(div), "KMGTPE"[exp:exp+1])
}

// FormatCount renders n with thousands separators, e.g. "1,048,576".
func FormatCount[N ~int | ~int32 | ~int64 | ~uint64](n N) string {
	return reportPrinter.Sprintf("%d", n)
}

type reportWriter struct {
	w   io.Writer
	err error
}

func (r *reportWriter) line(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = reportPrinter.Fprintf(r.w, format+"\n", args...)
}

// WriteReport writes a human-readable summary of st.
func WriteReport(w io.Writer, st Stats) error {
	r := &reportWriter{w: w}
	r.line("Arenas:")
	r.line("  local arenas:     %d (%d released)", st.Arenas, st.ReleasedArenas)
	r.line("  pools:            %d", st.Pools)
	r.line("Small objects:")
	r.line("  allocated:        %d", st.SmallAllocs)
	r.line("  freed:            %d", st.SmallFrees)
	r.line("  live:             %d", int64(st.SmallAllocs)-int64(st.SmallFrees))
	r.line("Large objects:")
	r.line("  allocated:        %d", st.LargeAllocs)
	r.line("  freed:            %d", st.LargeFrees)
	r.line("  live:             %d", st.LargeLive)
	r.line("  bin hits:         %d", st.LargeBinHits)
	r.line("  bin trims:        %d", st.LargeBinTrims)
	r.line("  binned:           %d blocks, %s", st.LargeBinBlocks, FormatBytes(int64(st.LargeBinBytes)))
	r.line("Mapped memory:")
	r.line("  blocks:           %d", st.MappedBlocks)
	r.line("  bytes:            %s (%d)", FormatBytes(st.MappedBytes), st.MappedBytes)
	r.line("  aligned retries:  %d", st.AlignedRetries)
	return r.err
}

// WritePoolReport writes one line per pool.
func WritePoolReport(w io.Writer, pools []chunk.Stats) error {
	r := &reportWriter{w: w}
	r.line("%8s %6s %10s %12s %10s %10s", "class", "slabs", "live", "distributed", "reused", "freed")
	for _, p := range pools {
		r.line("%8d %6d %10d %12d %10d %10d",
			p.SlotSize, p.Slabs, p.Live, p.Distributed, p.Reused, p.Freed)
	}
	return r.err
}
