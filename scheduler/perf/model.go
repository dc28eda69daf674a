// Package perf estimates the speedup of running a batch of simulation jobs
// as Pa parallel jobs with Pm threads each, and searches for the best such
// configuration.
//
// The estimate is a coarse analytic product of three factors:
//
//	total(Pm, Pa) = min(Pa, N) * Parallelism(Pa, N) * Threads(Pm) * QueueDepth(Pa, Pm)
//
// where N is the number of jobs. min(Pa, N) * Parallelism(Pa, N) reduces to
// N / ceil(N / Pa), the throughput of N jobs spread over Pa channels.
package perf

import (
	"fmt"
	"math"

	"github.com/twitter/remotesim/common/errors"
)

// Topology describes the homogeneous part of the cluster used for
// estimates: the number of hosts sharing the largest core count, and that
// count.
type Topology struct {
	NumHosts     int
	CoresPerHost int
}

// Estimate is a candidate configuration with its predicted speedup.
type Estimate struct {
	Pm      int
	Pa      int
	Speedup float64
}

func (e Estimate) String() string {
	return fmt.Sprintf("{Pm:%d Pa:%d speedup:%.3f}", e.Pm, e.Pa, e.Speedup)
}

// Model holds the three pure factor functions. Policies differ only in
// which functions they plug in.
type Model struct {
	Threads     func(pm int) float64
	Parallelism func(pa, totalJobs int) float64
	QueueDepth  func(pa, pm int, topo Topology) float64
}

const speedupEpsilon = 1e-9

// SpeedupFromParallelism is the bin-packing efficiency of spreading
// totalJobs over min(pa, totalJobs) channels. It is 1 when every job gets
// its own channel and drops when the last round is only partially filled.
func SpeedupFromParallelism(pa, totalJobs int) float64 {
	if pa < 1 {
		return 0
	}
	if totalJobs < 1 {
		totalJobs = 1
	}
	ch := channels(pa, totalJobs)
	rounds := int(math.Ceil(float64(totalJobs) / float64(ch)))
	return float64(totalJobs) / float64(ch*rounds)
}

// SpeedupFromQueueDepth penalises parallelism beyond the number of
// independently schedulable queues numHosts * (1 + cores - pm).
func SpeedupFromQueueDepth(pa, pm int, topo Topology) float64 {
	available := topo.NumHosts * (1 + topo.CoresPerHost - pm)
	if available <= 0 || pa < 1 {
		return 0
	}
	return 1 / math.Ceil(float64(pa)/float64(available))
}

// SpeedupFromCapacity is an all-or-nothing queue model: 1 if pa jobs of pm
// threads fit the cluster's cores, 0 otherwise.
func SpeedupFromCapacity(pa, pm int, topo Topology) float64 {
	if pm < 1 || pm > topo.CoresPerHost {
		return 0
	}
	if pa <= topo.NumHosts*(topo.CoresPerHost/pm) {
		return 1
	}
	return 0
}

func channels(pa, totalJobs int) int {
	if pa < totalJobs {
		return pa
	}
	return totalJobs
}

// Total is the predicted speedup of the configuration (pm, pa).
func (m Model) Total(pm, pa, totalJobs int, topo Topology) float64 {
	if pm < 1 || pa < 1 {
		return 0
	}
	if totalJobs < 1 {
		totalJobs = 1
	}
	return float64(channels(pa, totalJobs)) *
		m.Parallelism(pa, totalJobs) *
		m.Threads(pm) *
		m.QueueDepth(pa, pm, topo)
}

// BestConfiguration evaluates every 1 <= Pm <= maxThreads and
// 1 <= Pa <= maxParallelism and returns the highest total. Ties keep the
// lower Pm, then the lower Pa. A best total of 0 is SchedulingInfeasible.
func (m Model) BestConfiguration(maxThreads, maxParallelism, totalJobs int, topo Topology) (Estimate, error) {
	best := Estimate{}
	for pm := 1; pm <= maxThreads; pm++ {
		for pa := 1; pa <= maxParallelism; pa++ {
			s := m.Total(pm, pa, totalJobs, topo)
			if s > best.Speedup+speedupEpsilon {
				best = Estimate{Pm: pm, Pa: pa, Speedup: s}
			}
		}
	}
	if best.Speedup <= 0 {
		return Estimate{}, errors.Errorf(errors.SchedulingInfeasible,
			"no viable configuration for maxThreads=%d maxParallelism=%d jobs=%d topology=%+v",
			maxThreads, maxParallelism, totalJobs, topo)
	}
	return best, nil
}
