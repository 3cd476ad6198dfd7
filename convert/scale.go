package convert

import (
	"math"
	"math/bits"
	"time"
)

// scale computes v * num / den with a 128-bit intermediate so large byte
// offsets scaled to nanoseconds cannot overflow. Saturates on overflow,
// returns 0 when den is 0.
func scale(v, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	hi, lo := bits.Mul64(v, num)
	if hi >= den {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// scaleDuration computes d * num / den for non-negative durations.
func scaleDuration(d time.Duration, num, den int64) time.Duration {
	if d < 0 || num < 0 || den <= 0 {
		return d
	}
	return time.Duration(scale(uint64(d), uint64(num), uint64(den)))
}
