package pitch

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// HistoryEntry is one accepted estimate.
type HistoryEntry struct {
	Frequency  float64
	Timestamp  time.Duration
	Confidence float64
	RMS        float64
}

// History is a fixed-size ring of accepted estimates; the oldest entry is
// evicted when it is full.
type History struct {
	entries []HistoryEntry
	head    int
	size    int

	scratch []float64
}

// NewHistory returns an empty ring holding up to capacity entries.
func NewHistory(capacity int) *History {
	capacity = max(capacity, 1)
	return &History{
		entries: make([]HistoryEntry, capacity),
		scratch: make([]float64, capacity),
	}
}

// Push appends e, evicting the oldest entry when full.
func (h *History) Push(e HistoryEntry) {
	h.entries[h.head] = e
	h.head = (h.head + 1) % len(h.entries)
	h.size = min(h.size+1, len(h.entries))
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.entries) }

// At returns the i-th entry, 0 being the oldest.
func (h *History) At(i int) HistoryEntry {
	idx := (h.head - h.size + i + len(h.entries)) % len(h.entries)
	return h.entries[idx]
}

// Last returns the newest entry and whether there is one.
func (h *History) Last() (HistoryEntry, bool) {
	if h.size == 0 {
		return HistoryEntry{}, false
	}
	return h.At(h.size - 1), true
}

// Reset drops every entry.
func (h *History) Reset() {
	h.head = 0
	h.size = 0
}

// Median returns the median frequency of the newest n entries.
func (h *History) Median(n int) float64 {
	n = min(n, h.size)
	if n == 0 {
		return 0
	}
	freqs := h.recent(n)
	var m float64
	m, h.scratch = median(freqs, h.scratch)
	return m
}

// Stability maps the spread of the newest n entries to [0, 1]; 1 means no
// spread, 0 a standard deviation of spreadCents or more.
func (h *History) Stability(n int, spreadCents float64) float64 {
	n = min(n, h.size)
	if n < 2 {
		return 0
	}

	freqs := h.recent(n)
	mean := stat.Mean(freqs, nil)
	for i, f := range freqs {
		freqs[i] = CentsBetween(f, mean)
	}
	sd := stat.StdDev(freqs, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return clamp01(1 - sd/spreadCents)
}

// recent copies the newest n frequencies into the shared scratch buffer.
func (h *History) recent(n int) []float64 {
	out := h.scratch[:n]
	for i := range out {
		out[i] = h.At(h.size - n + i).Frequency
	}
	return out
}

// median returns the median of x using scratch for sorting; scratch is grown
// when too small and returned for reuse. x may alias scratch.
func median(x, scratch []float64) (float64, []float64) {
	if len(x) == 0 {
		return 0, scratch
	}
	if cap(scratch) < len(x) {
		scratch = make([]float64, len(x))
	}
	s := scratch[:len(x)]
	copy(s, x)
	sort.Float64s(s)

	if len(s)%2 == 1 {
		return s[len(s)/2], scratch
	}
	return stat.Mean(s[len(s)/2-1:len(s)/2+1], nil), scratch
}
