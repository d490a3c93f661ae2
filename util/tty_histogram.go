package util

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type TtyHistOpts struct {
	Name      string
	Scale     string
	MinPct    float64
	Min       int64
	Max       int64
	Precision int
}

// TtyHist is a histogram which renders itself as text. Values outside
// [Min, Max] are clamped.
type TtyHist struct {
	opts TtyHistOpts
	hdr  *hdrhistogram.Histogram
}

func NewTtyHist(opts TtyHistOpts) *TtyHist {
	// hdrhistogram needs a lowest discernible value of at least 1, zero is
	// still recordable.
	lowest := max(1, opts.Min)

	return &TtyHist{
		opts: opts,
		hdr:  hdrhistogram.New(lowest, opts.Max, opts.Precision),
	}
}

func (h *TtyHist) Add(xs ...int64) {
	for _, x := range xs {
		if x < h.opts.Min {
			x = h.opts.Min
		}
		if x > h.opts.Max {
			x = h.opts.Max
		}
		_ = h.hdr.RecordValue(x)
	}
}

func (h *TtyHist) Count() int64 {
	return h.hdr.TotalCount()
}

func (h *TtyHist) Min() int64 {
	return h.hdr.Min()
}

func (h *TtyHist) Max() int64 {
	return h.hdr.Max()
}

func (h *TtyHist) Mean() float64 {
	return h.hdr.Mean()
}

func (h *TtyHist) Percentile(p float64) int64 {
	return h.hdr.ValueAtPercentile(p)
}

func (h *TtyHist) Reset() {
	h.hdr.Reset()
}

// Report writes a summary and a bar chart of the distribution to w.
func (h *TtyHist) Report(w io.Writer) error {
	n := h.hdr.TotalCount()

	fmt.Fprintf(w, "histogram name=%s samples=%d scale=%s\n", h.opts.Name, n, h.opts.Scale)
	if n == 0 {
		_, err := fmt.Fprintln(w, "no samples")
		return err
	}

	fmt.Fprintf(w,
		"summary min/avg/max/stddev = %d/%.3f/%d/%.3f %s\n",
		h.hdr.Min(), h.hdr.Mean(), h.hdr.Max(), h.hdr.StdDev(), h.opts.Scale)
	for _, p := range []float64{50, 90, 99} {
		fmt.Fprintf(w, "%gth percentile=%d %s\n", p, h.hdr.ValueAtPercentile(p), h.opts.Scale)
	}

	var minBinCount, maxBinCount int64 = math.MaxInt64, math.MinInt64
	for _, bin := range h.hdr.Distribution() {
		if bin.Count == 0 || h.pct(bin.Count) < h.opts.MinPct {
			continue
		}
		if bin.Count < minBinCount {
			minBinCount = bin.Count
		}
		if bin.Count > maxBinCount {
			maxBinCount = bin.Count
		}
	}

	tabw := tabwriter.NewWriter(w, 2, 2, 2, byte(' '), 0)
	for _, bin := range h.hdr.Distribution() {
		if bin.Count == 0 || h.pct(bin.Count) < h.opts.MinPct {
			continue
		}

		barSize := 1
		if maxBinCount > minBinCount {
			fraction := float64(bin.Count-minBinCount) / float64(maxBinCount-minBinCount)
			barSize = max(1, int(math.Ceil(fraction*10)))
		}

		to := bin.To
		if bin.From == to {
			to++
		}

		fmt.Fprintf(tabw,
			"%d-%d %s\t%.3g%%\t%s\t%s\n",
			bin.From, to, h.opts.Scale,
			h.pct(bin.Count),
			strings.Repeat("|", barSize),
			strconv.FormatInt(bin.Count, 10),
		)
	}

	return tabw.Flush()
}

func (h *TtyHist) pct(count int64) float64 {
	return float64(count) * 100.0 / float64(h.hdr.TotalCount())
}
