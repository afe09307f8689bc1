// Package lookup implements bounded binary-search table interpolation, used
// for the NTC/Zener temperature ladders (bmb package), the OCV-to-SoC curve
// and the SoC-to-SoE curve (soc package).
package lookup

import "github.com/gopher-motorsports/battery-management-system-23-sub000/x/mathx"

// Point is one (x, y) sample of a monotone-increasing-in-x table.
type Point struct {
	X float64
	Y float64
}

// Table is an ordered sequence of Points with X strictly increasing.
// Callers build Tables as package-level literals; nothing here mutates one.
type Table []Point

// maxSearchDepth bounds the binary search so pathological (not actually
// sorted) input can never loop forever; spec.md §4.6 calls this out
// explicitly and has the lookup fall back to the lower endpoint's Y on
// exhaustion rather than panicking.
const maxSearchDepth = 20

// Lookup clamps x to the table's endpoints and otherwise linearly
// interpolates between the bracketing pair. An empty table returns 0.
func (t Table) Lookup(x float64) float64 {
	n := len(t)
	if n == 0 {
		return 0
	}
	if n == 1 || x < t[0].X {
		return t[0].Y
	}
	if x >= t[n-1].X {
		return t[n-1].Y
	}

	lo, hi := 0, n-1
	for depth := 0; depth < maxSearchDepth && hi-lo > 1; depth++ {
		mid := (lo + hi) / 2
		if t[mid].X <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	if hi-lo > 1 {
		// Search did not converge within the bounded depth: fail safe to
		// the lower bracket's Y rather than risk an unbounded loop.
		return t[lo].Y
	}

	x0, y0 := t[lo].X, t[lo].Y
	x1, y1 := t[hi].X, t[hi].Y
	if x1 == x0 {
		// Equal endpoints in X: spec.md §4.6 defines this as the upper
		// endpoint's Y.
		return y1
	}
	return mathx.LerpF64(x0, y0, x1, y1, x)
}

// Monotone reports whether Y is monotone (non-decreasing or non-increasing)
// across the table, a property soc's TestOCVTableMonotone checks for the
// reference OCV table.
func (t Table) Monotone() bool {
	if len(t) < 2 {
		return true
	}
	inc, dec := true, true
	for i := 1; i < len(t); i++ {
		if t[i].Y < t[i-1].Y {
			inc = false
		}
		if t[i].Y > t[i-1].Y {
			dec = false
		}
	}
	return inc || dec
}
