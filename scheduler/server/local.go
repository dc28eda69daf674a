package server

import (
	"context"
	"fmt"
	"time"

	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
)

// runLocal runs the batch on the local engine. remoteErr explains why the
// batch did not run remotely, if it was meant to.
func (s *Scheduler) runLocal(ctx context.Context, b *batchRun, blocking bool, remoteErr error) {
	b.path = domain.LocalThreaded
	if blocking {
		b.path = domain.LocalBlocking
	}
	jobs := pending(b.jobs)
	if s.local == nil {
		err := remoteErr
		if err == nil {
			err = fmt.Errorf("remote execution disabled and no local engine configured")
		}
		for _, j := range jobs {
			s.finish(j, domain.Failed, err, domain.Result{})
		}
		b.err = err
		return
	}
	s.stat.Counter(stats.SchedLocalFallbackCounter).Inc(1)
	b.tags.Entry().Infof("Running %d jobs on the local engine (%s)", len(jobs), b.path)

	all := make([]domain.Job, len(jobs))
	for i, j := range jobs {
		all[i] = j.job
	}
	start := time.Now()
	if err := s.local.Initialize(ctx, all); err != nil {
		for _, j := range jobs {
			s.finish(j, domain.Failed, err, domain.Result{})
		}
		b.err = err
		b.timing.Setup = time.Since(start)
		return
	}
	b.timing.Setup = time.Since(start)

	start = time.Now()
	workers := s.config.LocalWorkers
	if blocking {
		workers = 1
	}
	s.simulateLocal(ctx, jobs, workers)
	b.timing.Run = time.Since(start)

	start = time.Now()
	s.local.Finalize(context.WithoutCancel(ctx), all)
	b.timing.Finalize = time.Since(start)
	if ctx.Err() != nil {
		b.err = errors.NewError(ctx.Err(), errors.UserAborted)
	}
}

type localOutcome struct {
	j      *jobRecord
	result domain.Result
	err    error
}

// simulateLocal keeps up to workers simulations running. With one worker
// the simulation runs on the calling goroutine. Jobs not yet started when
// ctx is done are aborted.
func (s *Scheduler) simulateLocal(ctx context.Context, jobs []*jobRecord, workers int) {
	done := make(chan localOutcome)
	next, running := 0, 0
	for next < len(jobs) || running > 0 {
		for running < workers && next < len(jobs) && ctx.Err() == nil {
			j := jobs[next]
			next++
			j.advance(domain.Assigned)
			j.advance(domain.Loading)
			j.advance(domain.Running)
			j.attempts++
			j.job.OnStarted()
			if workers == 1 {
				res, err := s.local.Simulate(ctx, j.job)
				s.finishLocal(ctx, localOutcome{j, res, err})
				continue
			}
			running++
			go func() {
				res, err := s.local.Simulate(ctx, j.job)
				done <- localOutcome{j, res, err}
			}()
		}
		if ctx.Err() != nil {
			for ; next < len(jobs); next++ {
				s.finish(jobs[next], domain.Aborted, errors.NewError(ctx.Err(), errors.UserAborted), domain.Result{})
			}
		}
		if running == 0 {
			continue
		}
		s.finishLocal(ctx, <-done)
		running--
	}
}

func (s *Scheduler) finishLocal(ctx context.Context, o localOutcome) {
	switch {
	case o.err == nil:
		s.finish(o.j, domain.Completed, nil, o.result)
	case ctx.Err() != nil:
		s.finish(o.j, domain.Aborted, errors.NewError(ctx.Err(), errors.UserAborted), domain.Result{})
	default:
		s.finish(o.j, domain.Failed, o.err, domain.Result{})
	}
}
