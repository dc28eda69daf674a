package perf

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Point is one benchmarked measurement: the speedup of a single job run
// with Threads threads, relative to the same job on one thread.
type Point struct {
	Threads int
	Speedup float64
}

// Curve maps per-job thread count to observed speedup. Points are kept
// sorted by Threads.
type Curve struct {
	points []Point
}

func NewCurve(points ...Point) Curve {
	ps := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Threads < 1 {
			continue
		}
		ps = append(ps, p)
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Threads < ps[j].Threads })
	// Keep the last measurement for a repeated thread count.
	out := ps[:0]
	for _, p := range ps {
		if n := len(out); n > 0 && out[n-1].Threads == p.Threads {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return Curve{points: out}
}

// CurveFromTimes builds a curve from wall times measured at different
// thread counts. The single thread time is required.
func CurveFromTimes(times map[int]time.Duration) (Curve, error) {
	t1, ok := times[1]
	if !ok || t1 <= 0 {
		return Curve{}, errors.New("benchmark is missing a single thread measurement")
	}
	points := []Point{}
	for threads, tn := range times {
		if tn <= 0 {
			return Curve{}, fmt.Errorf("benchmark with %d threads reported %v", threads, tn)
		}
		points = append(points, Point{Threads: threads, Speedup: float64(t1) / float64(tn)})
	}
	return NewCurve(points...), nil
}

func (c Curve) Empty() bool {
	return len(c.points) == 0
}

func (c Curve) Points() []Point {
	return append([]Point(nil), c.points...)
}

// MaxThreads is the largest benchmarked thread count, 0 when empty.
func (c Curve) MaxThreads() int {
	if c.Empty() {
		return 0
	}
	return c.points[len(c.points)-1].Threads
}

// Lookup returns the speedup at threads, interpolating linearly between the
// neighbouring points. Outside the benchmarked range, or with no points, it
// returns 0 so the configuration is treated as non-viable.
func (c Curve) Lookup(threads int) float64 {
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Threads >= threads })
	if i == len(c.points) {
		return 0
	}
	hi := c.points[i]
	if hi.Threads == threads {
		return hi.Speedup
	}
	if i == 0 {
		return 0
	}
	lo := c.points[i-1]
	frac := float64(threads-lo.Threads) / float64(hi.Threads-lo.Threads)
	return lo.Speedup + frac*(hi.Speedup-lo.Speedup)
}

func (c Curve) String() string {
	parts := make([]string, 0, len(c.points))
	for _, p := range c.points {
		parts = append(parts, fmt.Sprintf("%d:%.3f", p.Threads, p.Speedup))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
