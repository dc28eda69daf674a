package server

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/scheduler/perf"
)

// benchmarkCurve measures how the job speeds up with threads (1, 2, 4, ...
// up to maxThreads) on the best available host. Curves are cached by job
// fingerprint. If nothing can be measured the job is assumed not to scale.
func (s *Scheduler) benchmarkCurve(ctx context.Context, j *jobRecord, maxThreads int) perf.Curve {
	key := perf.Fingerprint(j.payload)
	if c, ok := s.curves.Get(key); ok {
		log.Debugf("Using cached benchmark curve for %s: %s", j.job.ID(), c)
		return c
	}
	fallback := perf.NewCurve(perf.Point{Threads: 1, Speedup: 1})

	threads := maxThreads
	if cores := s.registry.Topology().CoresPerHost; cores > 0 && cores < threads {
		threads = cores
	}
	host, ok := s.registry.BestHost(ctx, threads)
	if !ok {
		log.Infof("No host with %d free slots to benchmark job %s", threads, j.job.ID())
		return fallback
	}
	sess := s.newSession()
	if err := sess.Connect(ctx, host, threads); err != nil {
		log.Infof("Could not connect to %s to benchmark job %s: %v", host.Addr, j.job.ID(), err)
		return fallback
	}
	defer sess.Disconnect(context.Background())

	times := map[int]time.Duration{}
	for n := 1; n <= threads; n *= 2 {
		d, err := sess.Benchmark(ctx, j.payload, n)
		if err != nil {
			log.Infof("Benchmark of job %s with %d threads failed: %v", j.job.ID(), n, err)
			break
		}
		times[n] = d
	}
	curve, err := perf.CurveFromTimes(times)
	if err != nil {
		log.Infof("No benchmark curve for job %s: %v", j.job.ID(), err)
		return fallback
	}
	log.Infof("Benchmarked job %s on %s: %s", j.job.ID(), host.Addr, curve)
	s.curves.Add(key, curve)
	return curve
}
