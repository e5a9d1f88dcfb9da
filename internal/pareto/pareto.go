// Package pareto selects operating points from a swept parameter grid by
// two-objective Pareto dominance and summarises fronts by their area under
// the dominance envelope.
package pareto

import (
	"math"
	"strings"

	"github.com/banshee-data/seizure-classifier/internal/scoring"
)

// Point is one candidate operating point. Both objectives are maximised.
type Point struct {
	Obj1       float64
	Obj2       float64
	TieBreaker float64
}

func (p Point) valid() bool {
	return !math.IsNaN(p.Obj1) && !math.IsNaN(p.Obj2)
}

// dominates is the weak rule: q is strictly better than p on both objectives.
func dominates(q, p Point) bool {
	return q.Obj1 > p.Obj1 && q.Obj2 > p.Obj2
}

// strictlyDominates also lets q dominate p when it is strictly better on one
// objective and tied on the other.
func strictlyDominates(q, p Point) bool {
	return dominates(q, p) ||
		(q.Obj1 > p.Obj1 && q.Obj2 == p.Obj2) ||
		(q.Obj1 == p.Obj1 && q.Obj2 > p.Obj2)
}

// NonDominated returns, in ascending order, the indices of points that no
// other point dominates under the weak rule. Ties on one objective never
// cause domination. Points with a NaN objective are excluded.
func NonDominated(points []Point) []int {
	return front(points, dominates)
}

// StrictNonDominated is NonDominated under the strict rule: the Pareto
// efficient subset used for AUC estimation.
func StrictNonDominated(points []Point) []int {
	return front(points, strictlyDominates)
}

func front(points []Point, dom func(q, p Point) bool) []int {
	var out []int
	for i, p := range points {
		if !p.valid() {
			continue
		}
		dominated := false
		for j, q := range points {
			if j != i && dom(q, p) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, i)
		}
	}
	return out
}

// TieBreakDirection says how the tie-breaker metric resolves remaining ties.
type TieBreakDirection int

const (
	// Median picks the middle of the remaining ties by index order.
	Median TieBreakDirection = iota
	Min
	Max
)

// ParseTieBreakDirection maps "min" and "max" to their directions; anything
// else selects Median.
func ParseTieBreakDirection(s string) TieBreakDirection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min":
		return Min
	case "max":
		return Max
	}
	return Median
}

func (d TieBreakDirection) String() string {
	switch d {
	case Min:
		return "min"
	case Max:
		return "max"
	}
	return "median"
}

// MarshalText encodes the direction by name.
func (d TieBreakDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name with ParseTieBreakDirection.
func (d *TieBreakDirection) UnmarshalText(b []byte) error {
	*d = ParseTieBreakDirection(string(b))
	return nil
}

// Result is the outcome of a selection over one grid.
type Result struct {
	Front       []int `json:"front"`
	StrictFront []int `json:"strict_front"`
	// Selected is the chosen index, -1 when OK is false.
	Selected int  `json:"selected"`
	OK       bool `json:"ok"`
}

// Select computes both fronts and picks one point of the weak front:
//
//  1. the maximum Obj1, if unique;
//  2. else, among those, the maximum Obj2, if unique;
//  3. else the tie-breaker extremum for Min/Max, or the median index for Median;
//  4. if the tie-breaker is itself tied, the median index of those ties.
//
// The median index of n ties is the lower middle, (n-1)/2. An empty front
// gives OK == false.
func Select(points []Point, dir TieBreakDirection) Result {
	res := Result{
		Front:       NonDominated(points),
		StrictFront: StrictNonDominated(points),
		Selected:    -1,
	}
	if len(res.Front) == 0 {
		return res
	}
	res.Selected = selectFrom(points, res.Front, dir)
	res.OK = true
	return res
}

func selectFrom(points []Point, candidates []int, dir TieBreakDirection) int {
	ties := argExtremum(candidates, func(i int) float64 { return points[i].Obj1 }, true)
	if len(ties) == 1 {
		return ties[0]
	}
	ties = argExtremum(ties, func(i int) float64 { return points[i].Obj2 }, true)
	if len(ties) == 1 {
		return ties[0]
	}
	if dir != Min && dir != Max {
		return median(ties)
	}
	best := argExtremum(ties, func(i int) float64 { return points[i].TieBreaker }, dir == Max)
	switch len(best) {
	case 0:
		// Tie-breaker undefined for every tie.
		return median(ties)
	case 1:
		return best[0]
	}
	return median(best)
}

// argExtremum returns the candidates whose value equals the maximum (or the
// minimum) of value over candidates. NaN values are ignored.
func argExtremum(candidates []int, value func(int) float64, max bool) []int {
	var (
		best  float64
		found bool
		out   []int
	)
	for _, c := range candidates {
		v := value(c)
		if math.IsNaN(v) {
			continue
		}
		switch {
		case !found || (max && v > best) || (!max && v < best):
			best, found = v, true
			out = append(out[:0], c)
		case v == best:
			out = append(out, c)
		}
	}
	return out
}

func median(idx []int) int {
	return idx[(len(idx)-1)/2]
}

// Criteria selects the objectives and tie-breaker from aggregate scores.
type Criteria struct {
	Objective1 scoring.Objective `json:"objective1"`
	Objective2 scoring.Objective `json:"objective2"`
	TieBreaker scoring.Objective `json:"tie_breaker"`
	Direction  TieBreakDirection `json:"direction"`
}

// DefaultCriteria maximises event sensitivity then event precision, and
// prefers the shortest detection delay.
func DefaultCriteria() Criteria {
	return Criteria{
		Objective1: scoring.EventSensitivity,
		Objective2: scoring.EventPrecision,
		TieBreaker: scoring.DetectionDelay,
		Direction:  Min,
	}
}

// Points projects scores onto the criteria's objectives.
func (c Criteria) Points(scores []scoring.AggregateScore) []Point {
	out := make([]Point, len(scores))
	for i, s := range scores {
		out[i] = Point{
			Obj1:       s.Value(c.Objective1),
			Obj2:       s.Value(c.Objective2),
			TieBreaker: s.Value(c.TieBreaker),
		}
	}
	return out
}

// SelectScores runs Select over aggregate scores laid out in grid order.
func SelectScores(scores []scoring.AggregateScore, c Criteria) Result {
	return Select(c.Points(scores), c.Direction)
}
