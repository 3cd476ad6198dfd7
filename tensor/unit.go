package tensor

import "time"

// Unit is one tensor-stream unit: the byte share of each tensor plus
// timing. Shares may alias one backing buffer (multi-tensor fan-out
// slices without copying); consumers must not mutate them.
type Unit struct {
	Tensors [][]byte
	Group   Group // layout of this unit; for flexible streams the dims are per-unit

	PTS      time.Duration
	DTS      time.Duration
	Duration time.Duration
}

// TotalBytes returns the summed byte length of all shares.
func (u *Unit) TotalBytes() int {
	var n int
	for _, t := range u.Tensors {
		n += len(t)
	}
	return n
}
