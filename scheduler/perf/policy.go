package perf

import (
	"fmt"
	"strings"
)

// Policy selects the factor functions of a Model.
type Policy int

const (
	// Benchmarked thread curve, capacity-only queue model.
	Basic Policy = iota
	// Benchmarked thread curve, queue depth contention.
	HomogeneousReschedule
	// Fixed thread curves measured for particular model families, queue
	// depth contention.
	Crfp0Reschedule
	Crfp1Reschedule
	PsoReschedule
)

var policyNames = map[Policy]string{
	Basic:                 "basic",
	HomogeneousReschedule: "homogeneous",
	Crfp0Reschedule:       "crfp0",
	Crfp1Reschedule:       "crfp1",
	PsoReschedule:         "pso",
}

func (p Policy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, s) {
			return p, nil
		}
	}
	return Basic, fmt.Errorf("unknown model policy %q", s)
}

type policyTable struct {
	// Nil means the thread curve must come from a benchmark.
	threads    *Curve
	queueDepth func(pa, pm int, topo Topology) float64
}

var (
	crfp0Curve = NewCurve(Point{1, 1}, Point{2, 1.6}, Point{4, 2.2}, Point{8, 2.5})
	crfp1Curve = NewCurve(Point{1, 1}, Point{2, 1.7}, Point{4, 2.6}, Point{8, 3.0})
	psoCurve   = NewCurve(Point{1, 1}, Point{2, 1.8}, Point{4, 3.1}, Point{8, 4.0})
)

var policyTables = map[Policy]policyTable{
	Basic:                 {nil, SpeedupFromCapacity},
	HomogeneousReschedule: {nil, SpeedupFromQueueDepth},
	Crfp0Reschedule:       {&crfp0Curve, SpeedupFromQueueDepth},
	Crfp1Reschedule:       {&crfp1Curve, SpeedupFromQueueDepth},
	PsoReschedule:         {&psoCurve, SpeedupFromQueueDepth},
}

// NeedsBenchmark reports whether the policy's thread curve comes from
// benchmarking the job itself.
func (p Policy) NeedsBenchmark() bool {
	t, ok := policyTables[p]
	return !ok || t.threads == nil
}

// NewModel builds the Model for a policy. bench is only consulted by
// policies that need a benchmark; an empty curve makes every configuration
// non-viable for them.
func NewModel(p Policy, bench Curve) Model {
	t, ok := policyTables[p]
	if !ok {
		t = policyTables[Basic]
	}
	curve := bench
	if t.threads != nil {
		curve = *t.threads
	}
	return Model{
		Threads:     curve.Lookup,
		Parallelism: SpeedupFromParallelism,
		QueueDepth:  t.queueDepth,
	}
}
