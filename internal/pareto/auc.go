package pareto

import (
	"math"
	"sort"
)

// XY is one operating point in objective space, x = objective1 and
// y = objective2.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// XYs projects points onto their two objectives.
func XYs(points []Point) []XY {
	out := make([]XY, len(points))
	for i, p := range points {
		out[i] = XY{X: p.Obj1, Y: p.Obj2}
	}
	return out
}

// AUC is the area under the dominance envelope of points, in [0, 1] or NaN.
//
// Duplicates and points strictly dominated by any other point are dropped.
// The envelope is anchored at (1, 0) and at (0, y) where y is the best value
// at the smallest x, then integrated with a right-endpoint sum over the
// points sorted by x. This is a step function, not a trapezoid.
func AUC(points []XY) float64 {
	kept := envelope(points)

	if len(kept) == 0 {
		// A lone (0, NaN) point means a detector that found nothing.
		zeroX := 0
		for _, p := range points {
			if p.X == 0 {
				if !math.IsNaN(p.Y) {
					return math.NaN()
				}
				zeroX++
			}
		}
		if zeroX > 0 {
			return 0
		}
		return math.NaN()
	}

	allNaN := true
	for _, p := range kept {
		if !math.IsNaN(p.X * p.Y) {
			allNaN = false
			break
		}
	}
	if allNaN {
		return math.NaN()
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range kept {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	switch {
	case minX == 1:
		return maxWhere(kept, func(p XY) bool { return p.X == 1 }, func(p XY) float64 { return p.Y })
	case minY == 1:
		return maxWhere(kept, func(p XY) bool { return p.Y == 1 }, func(p XY) float64 { return p.X })
	case maxX == 0 || maxY == 0:
		return 0
	}
	for _, p := range kept {
		if p.X == 1 && p.Y == 1 {
			return 1
		}
	}

	if maxX != 1 {
		kept = append(kept, XY{X: 1, Y: 0})
	}
	if minX != 0 {
		y := maxWhere(kept, func(p XY) bool { return p.X == minX }, func(p XY) float64 { return p.Y })
		kept = append(kept, XY{X: 0, Y: y})
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].X != kept[j].X {
			return kept[i].X < kept[j].X
		}
		return kept[i].Y < kept[j].Y
	})

	var auc float64
	for i := 1; i < len(kept); i++ {
		auc += (kept[i].X - kept[i-1].X) * kept[i].Y
	}
	return auc
}

// envelope drops NaN points, exact duplicates and points strictly dominated
// by any input point.
func envelope(points []XY) []XY {
	var out []XY
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		duplicate := false
		for _, q := range out {
			if q == p {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		dominated := false
		for _, q := range points {
			if strictlyDominates(Point{Obj1: q.X, Obj2: q.Y}, Point{Obj1: p.X, Obj2: p.Y}) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, p)
		}
	}
	return out
}

func maxWhere(points []XY, keep func(XY) bool, value func(XY) float64) float64 {
	best := math.Inf(-1)
	for _, p := range points {
		if keep(p) {
			best = math.Max(best, value(p))
		}
	}
	return best
}
