package spectrum

import (
	"cmp"
	"math"
	"slices"
)

// Peak represents a peak in the frequency spectrum
type Peak struct {
	Bin       int
	Magnitude float64
	Frequency float64
}

// logFloor keeps log-parabolic interpolation finite on empty bins.
const logFloor = 1e-12

// FindPeaks appends to dst every local maximum of mag above threshold whose
// bin lies within [minFreq, maxFreq]. Peak positions are refined by fitting a
// parabola to the log magnitudes of the neighbouring bins.
func FindPeaks(dst []Peak, mag []float64, binHz, minFreq, maxFreq, threshold float64) []Peak {
	if binHz <= 0 || len(mag) < 3 {
		return dst
	}

	lo := max(1, int(minFreq/binHz))
	hi := min(len(mag)-2, int(maxFreq/binHz)+1)

	for i := lo; i <= hi; i++ {
		m := mag[i]
		if m <= threshold || m <= mag[i-1] || m < mag[i+1] {
			continue
		}

		a := math.Log(mag[i-1] + logFloor)
		b := math.Log(m + logFloor)
		c := math.Log(mag[i+1] + logFloor)

		delta := 0.0
		if den := a - 2*b + c; den != 0 {
			delta = 0.5 * (a - c) / den
		}

		dst = append(dst, Peak{
			Bin:       i,
			Magnitude: m,
			Frequency: (float64(i) + delta) * binHz,
		})
	}
	return dst
}

// SortByMagnitude orders peaks strongest first.
func SortByMagnitude(peaks []Peak) {
	slices.SortFunc(peaks, func(a, b Peak) int {
		return cmp.Compare(b.Magnitude, a.Magnitude)
	})
}
