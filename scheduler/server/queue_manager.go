package server

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luci/go-render/render"
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/twitter/remotesim/async"
	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/worker/client"
)

type qmState int

const (
	Idle qmState = iota
	Provisioning
	Running
	Draining
	Rescheduling
)

func (s qmState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Provisioning:
		return "Provisioning"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Rescheduling:
		return "Rescheduling"
	default:
		return fmt.Sprintf("qmState(%d)", int(s))
	}
}

var validTransitions = map[qmState][]qmState{
	Idle:         {Provisioning},
	Provisioning: {Running, Rescheduling, Draining, Idle},
	Running:      {Draining, Rescheduling},
	Rescheduling: {Provisioning, Draining, Idle},
	Draining:     {Idle},
}

// slot is one worker session of a wave with its FIFO of queued jobs.
type slot struct {
	session client.Session
	queue   []*jobRecord
	current *jobRecord
	// Set after a transport failure. A dead slot is never given work again.
	dead bool
}

func (sl *slot) addr() string {
	return sl.session.Host().Addr
}

// wave is one attempt at running the remaining jobs with a fixed (Pm, Pa).
// Rescheduling tears a wave down and builds a new one.
type wave struct {
	id             string
	pm             int
	pa             int
	slots          []*slot
	blacklistDelta []string
}

func (w *wave) inFlight() []*slot {
	out := []*slot{}
	for _, sl := range w.slots {
		if sl.current != nil && !sl.dead {
			out = append(out, sl)
		}
	}
	return out
}

func (w *wave) live() []*slot {
	out := []*slot{}
	for _, sl := range w.slots {
		if !sl.dead {
			out = append(out, sl)
		}
	}
	return out
}

func (w *wave) queued() int {
	n := 0
	for _, sl := range w.slots {
		n += len(sl.queue)
	}
	return n
}

// plan lists, per session, its host and queued job ids.
func (w *wave) plan() [][]string {
	out := [][]string{}
	for _, sl := range w.slots {
		entry := []string{sl.addr()}
		for _, j := range sl.queue {
			entry = append(entry, j.job.ID())
		}
		out = append(out, entry)
	}
	return out
}

type waveOutcome int

const (
	waveDone waveOutcome = iota
	waveSkewed
	waveBroken
	waveCancelled
)

// queueManager drives the remote execution of one batch. All of its state
// is owned by the goroutine calling run; slow session calls fan out through
// async runners whose callbacks run back on that goroutine.
type queueManager struct {
	*batchRun
	s     *Scheduler
	opts  domain.Options
	model perf.Model
	state qmState
	wave  *wave
	gen   int
}

func newQueueManager(s *Scheduler, b *batchRun, opts domain.Options) *queueManager {
	b.path = domain.Remote
	return &queueManager{batchRun: b, s: s, opts: opts}
}

func (q *queueManager) transition(to qmState) {
	for _, s := range validTransitions[q.state] {
		if s == to {
			q.tags.Entry().Debugf("Queue manager %s -> %s", q.state, to)
			q.state = to
			return
		}
	}
	panic(fmt.Sprintf("queue manager: invalid transition %s -> %s", q.state, to))
}

// run picks the first configuration and executes waves until every job is
// terminal.
func (q *queueManager) run(ctx context.Context) {
	start := time.Now()
	jobs := pending(q.jobs)
	if len(jobs) == 0 {
		return
	}

	curve := perf.Curve{}
	if q.opts.Rescheduling != domain.None && q.opts.ModelPolicy.NeedsBenchmark() {
		curve = q.s.benchmarkCurve(ctx, jobs[0], q.opts.MaxThreads)
	}
	q.model = q.s.newModel(q.opts.ModelPolicy, curve)

	pm, pa := q.opts.MaxThreads, q.opts.MaxParallelism
	if q.opts.Rescheduling == domain.None {
		topo := q.s.registry.Topology()
		q.estimate = perf.Estimate{Pm: pm, Pa: pa, Speedup: q.model.Total(pm, pa, len(jobs), topo)}
	} else {
		est, err := q.bestConfiguration(len(jobs))
		if err != nil {
			q.failPending(err)
			q.err = err
			return
		}
		pm, pa = est.Pm, est.Pa
	}
	q.timing.Setup += time.Since(start)
	q.execute(ctx, pm, pa)
}

func (q *queueManager) execute(ctx context.Context, pm, pa int) {
	for {
		start := time.Now()
		err := q.setup(ctx, pending(q.jobs), pm, pa)
		if err != nil {
			q.timing.Setup += time.Since(start)
			if ctx.Err() != nil {
				q.cancel()
				return
			}
			q.failPending(err)
			q.err = err
			q.teardown()
			q.transition(Idle)
			return
		}

		outcome, suspects := waveDone, []string{}
		var cause error
		if err := q.runWave(ctx); err != nil {
			outcome, cause = waveBroken, err
			for _, sl := range q.wave.slots {
				if sl.dead {
					suspects = append(suspects, sl.addr())
				}
			}
		}
		q.timing.Setup += time.Since(start)

		if ctx.Err() != nil {
			q.cancel()
			return
		}
		if cause == nil {
			runStart := time.Now()
			outcome, suspects, cause = q.monitorWave(ctx)
			q.timing.Run += time.Since(runStart)
		}

		switch outcome {
		case waveDone:
			q.drain()
			return
		case waveCancelled:
			q.cancel()
			return
		}
		est, ok := q.reschedule(suspects, cause)
		if !ok {
			return
		}
		pm, pa = est.Pm, est.Pa
	}
}

// setup opens up to pa sessions of pm threads, never reserving more slots
// than the registry reports free, and deals jobs round-robin over them in
// input order.
func (q *queueManager) setup(ctx context.Context, jobs []*jobRecord, pm, pa int) error {
	q.transition(Provisioning)
	id, _ := uuid.NewV4()
	w := &wave{id: id.String(), pm: pm, pa: pa}
	q.wave = w
	q.waves++
	q.tags.WaveID = w.id
	q.s.stat.Counter(stats.SchedWavesCounter).Inc(1)

	want := pa
	if len(jobs) < want {
		want = len(jobs)
	}
	reg := q.s.registry
	hosts := reg.MatchingHosts(ctx, q.s.config.MinHostSpeed, pm)
	budget := reg.TotalFreeSlots()
	tried := []string{}
	for len(w.slots) < want && budget >= pm && ctx.Err() == nil {
		if len(hosts) == 0 {
			h, ok := reg.BestHost(ctx, pm, tried...)
			if !ok {
				break
			}
			hosts = []cluster.Host{h}
		}
		h := hosts[0]
		hosts = hosts[1:]
		tried = append(tried, h.Addr)
		for free := h.FreeSlots; free >= pm && budget >= pm && len(w.slots) < want; free -= pm {
			sess := q.s.newSession()
			if err := sess.Connect(ctx, h, pm); err != nil {
				q.tags.WithJob("", h.Addr).Entry().Infof("Could not open session: %v", err)
				break
			}
			budget -= pm
			w.slots = append(w.slots, &slot{session: sess})
			q.s.stat.Counter(stats.SchedSessionsOpenedCounter).Inc(1)
		}
	}
	q.s.stat.Gauge(stats.SchedActiveSessionsGauge).Update(int64(len(w.slots)))
	if len(w.slots) == 0 {
		return errors.Errorf(errors.SchedulingInfeasible,
			"no worker session with %d threads could be opened", pm)
	}

	for i, j := range jobs {
		sl := w.slots[i%len(w.slots)]
		sl.queue = append(sl.queue, j)
	}
	q.tags.Entry().WithFields(log.Fields{"pm": pm, "pa": pa, "sessions": len(w.slots)}).
		Infof("Wave provisioned: %s", render.Render(w.plan()))
	return nil
}

// runWave starts the head of every queue. A job that fails to load or start
// fails, its slot is marked dead and the wave does not enter Running.
func (q *queueManager) runWave(ctx context.Context) error {
	var errs error
	for _, f := range q.launch(ctx, q.wave.slots) {
		if ctx.Err() != nil {
			// Left current so cancel aborts it.
			f.slot.dead = true
		} else {
			q.failCurrent(f.slot, f.err)
		}
		errs = multierr.Append(errs, f.err)
	}
	if errs != nil {
		return errors.NewError(errs, errors.JobTransportFailure)
	}
	q.transition(Running)
	return nil
}

type launchFailure struct {
	slot *slot
	err  error
}

// launch pops the head of each idle slot's queue and loads and starts it,
// all slots concurrently. The job stays current on a failed slot.
func (q *queueManager) launch(ctx context.Context, slots []*slot) []launchFailure {
	q.gen++
	failures := []launchFailure{}
	runner := async.NewRunner()
	for _, sl := range slots {
		if sl.dead || sl.current != nil || len(sl.queue) == 0 {
			continue
		}
		sl, j := sl, sl.queue[0]
		sl.queue = sl.queue[1:]
		sl.current = j
		j.advance(domain.Assigned)
		j.host = sl.addr()
		j.advance(domain.Loading)
		j.attempts++
		j.gen = q.gen
		runner.RunAsync(func() error {
			if err := sl.session.LoadJob(ctx, j.payload); err != nil {
				return err
			}
			return sl.session.Start(ctx)
		}, func(err error) {
			if err != nil {
				q.tags.WithJob(j.job.ID(), j.host).Entry().Infof("Job failed to launch: %v", err)
				failures = append(failures, launchFailure{slot: sl, err: err})
				return
			}
			j.advance(domain.Running)
			j.fraction = 0
			j.job.OnStarted()
			q.tags.WithJob(j.job.ID(), j.host).Entry().Info("Job started")
		})
	}
	runner.Drain(context.Background())
	return failures
}

// monitorWave ticks until the wave finishes, is cancelled, becomes skewed
// or loses every session while jobs are still queued.
func (q *queueManager) monitorWave(ctx context.Context) (waveOutcome, []string, error) {
	interval := newTickInterval(q.s.config.TickInterval, q.s.config.MaxTickInterval)
	changed := true
	ticks := 0
	for {
		inflight := q.wave.inFlight()
		if len(inflight) == 0 {
			if q.wave.queued() == 0 {
				return waveDone, nil, nil
			}
			return waveBroken, nil, errors.Errorf(errors.JobTransportFailure,
				"no live worker sessions left for %d queued jobs", q.wave.queued())
		}

		timer := time.NewTimer(interval.Next(changed))
		select {
		case <-ctx.Done():
			timer.Stop()
			return waveCancelled, nil, nil
		case <-timer.C:
		}

		sessions := make([]client.Session, len(inflight))
		for i, sl := range inflight {
			sessions[i] = sl.session
		}
		events := q.s.monitor.Tick(ctx, sessions)
		if ctx.Err() != nil {
			return waveCancelled, nil, nil
		}
		changed = q.handleEvents(ctx, inflight, events)
		ticks++

		if q.opts.Rescheduling != domain.None && ticks%q.s.config.SkewCheckEvery == 0 {
			if laggards := q.detectSkew(); len(laggards) > 0 {
				q.s.stat.Counter(stats.SchedSkewDetectedCounter).Inc(1)
				q.tags.Entry().WithField("laggards", laggards).Info("Progress skew detected")
				return waveSkewed, laggards, errors.Errorf(errors.ProgressSkew,
					"progress skew on %v", laggards)
			}
		}
	}
}

// handleEvents applies one tick's events and returns whether anything
// changed. Completed jobs are collected and their sessions refilled from
// their queues.
func (q *queueManager) handleEvents(ctx context.Context, inflight []*slot, events []SessionEvent) bool {
	changed := false
	completed := []*slot{}
	for i, ev := range events {
		sl := inflight[i]
		j := sl.current
		switch ev.Kind {
		case EventRunning:
			if ev.Fraction != j.fraction {
				j.fraction = ev.Fraction
				j.job.OnProgress(ev.Fraction)
				changed = true
			}
		case EventCompleted:
			completed = append(completed, sl)
			changed = true
		case EventFailed:
			q.failSlot(sl, ev.Err)
			changed = true
		}
	}
	q.collect(ctx, completed)
	q.refill(ctx)
	return changed
}

// collect fetches results from slots whose job was seen finished.
func (q *queueManager) collect(ctx context.Context, slots []*slot) {
	runner := async.NewRunner()
	for _, sl := range slots {
		sl, j := sl, sl.current
		var res domain.Result
		runner.RunAsync(func() error {
			var err error
			res, err = sl.session.CollectResult(ctx)
			return err
		}, func(err error) {
			if err != nil {
				q.failSlot(sl, err)
				return
			}
			sl.current = nil
			q.s.finish(j, domain.Completed, nil, res)
			q.tags.WithJob(j.job.ID(), j.host).Entry().Info("Job completed")
		})
	}
	runner.Drain(context.Background())
}

// refill starts the next queued job on every idle live slot.
func (q *queueManager) refill(ctx context.Context) {
	for {
		idle := []*slot{}
		for _, sl := range q.wave.live() {
			if sl.current == nil && len(sl.queue) > 0 {
				idle = append(idle, sl)
			}
		}
		if len(idle) == 0 {
			return
		}
		failures := q.launch(ctx, idle)
		if len(failures) == 0 {
			return
		}
		for _, f := range failures {
			if ctx.Err() != nil {
				f.slot.dead = true
				continue
			}
			q.failSlot(f.slot, f.err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// failCurrent marks the slot dead and fails its current job, attaching
// whatever the worker logged for it.
func (q *queueManager) failCurrent(sl *slot, err error) {
	if errors.KindOf(err) == errors.Unknown {
		err = errors.NewError(err, errors.JobTransportFailure)
	}
	sl.dead = true
	j := sl.current
	if j == nil {
		return
	}
	sl.current = nil
	j.messages = q.workerMessages(sl)
	q.s.finish(j, domain.Failed, err, domain.Result{})
	q.tags.WithJob(j.job.ID(), j.host).Entry().WithField("messages", j.messages).Infof("Job failed: %v", err)
}

// workerMessages fetches the worker log of a failed slot. Best effort.
func (q *queueManager) workerMessages(sl *slot) []string {
	ctx, cancel := context.WithTimeout(context.Background(), q.s.config.PollTimeout)
	defer cancel()
	msgs, err := sl.session.Messages(ctx)
	if err != nil {
		q.tags.WithJob("", sl.addr()).Entry().Debugf("No worker messages: %v", err)
		return nil
	}
	return msgs
}

// failSlot fails the slot's current job and hands its queue round-robin to
// the remaining live slots. With no live slot left the queue stays put.
func (q *queueManager) failSlot(sl *slot, err error) {
	q.failCurrent(sl, err)
	live := q.wave.live()
	if len(live) == 0 {
		return
	}
	for i, j := range sl.queue {
		target := live[i%len(live)]
		target.queue = append(target.queue, j)
	}
	sl.queue = nil
}

// detectSkew returns the hosts of running jobs whose progress trails, by
// more than the threshold, a job started no earlier than them.
func (q *queueManager) detectSkew() []string {
	running := []*jobRecord{}
	for _, sl := range q.wave.inFlight() {
		if j := sl.current; j.state == domain.Running && j.fraction >= 0 {
			running = append(running, j)
		}
	}
	if len(running) < 2 {
		return nil
	}
	seen := map[string]bool{}
	laggards := []string{}
	for _, a := range running {
		lead := a.fraction
		for _, b := range running {
			if b.gen >= a.gen && b.fraction > lead {
				lead = b.fraction
			}
		}
		if lead-a.fraction > q.s.config.SkewThreshold && !seen[a.host] {
			seen[a.host] = true
			laggards = append(laggards, a.host)
		}
	}
	sort.Strings(laggards)
	return laggards
}

func (q *queueManager) bestConfiguration(totalJobs int) (perf.Estimate, error) {
	topo := q.s.registry.Topology()
	est, err := q.model.BestConfiguration(q.opts.MaxThreads, q.opts.MaxParallelism, totalJobs, topo)
	if err != nil {
		return est, err
	}
	q.estimate = est
	q.s.stat.GaugeFloat(stats.SchedPredictedSpeedupGauge).Update(est.Speedup)
	q.tags.Entry().WithFields(log.Fields{"topology": topo, "estimate": est}).Info("Chose configuration")
	return est, nil
}

// reschedule tears the current wave down after skew or breakage, blacklists
// the suspect hosts and decides, per policy, whether another wave runs.
func (q *queueManager) reschedule(suspects []string, cause error) (perf.Estimate, bool) {
	if q.opts.Rescheduling == domain.None {
		q.transition(Draining)
		q.teardown()
		q.failPending(cause)
		q.err = cause
		q.transition(Idle)
		return perf.Estimate{}, false
	}

	q.transition(Rescheduling)
	q.teardown()
	for _, j := range pending(q.jobs) {
		if j.state != domain.Queued {
			j.advance(domain.Queued)
		}
	}
	for _, addr := range suspects {
		q.s.registry.Blacklist(addr)
		q.wave.blacklistDelta = append(q.wave.blacklistDelta, addr)
		q.addBlacklisted(addr)
	}

	remaining := pending(q.jobs)
	if q.opts.Rescheduling == domain.ExternalReschedule {
		if _, err := q.bestConfiguration(len(remaining)); err != nil {
			q.tags.Entry().Infof("No configuration to suggest: %v", err)
		}
		q.needsRescheduling = true
		for _, j := range remaining {
			q.s.finish(j, domain.Aborted, nil, domain.Result{})
		}
		q.err = cause
		q.transition(Idle)
		return perf.Estimate{}, false
	}

	if q.waves >= q.s.config.MaxWaves {
		err := errors.Errorf(errors.SchedulingInfeasible, "giving up after %d waves: %v", q.waves, cause)
		q.failPending(err)
		q.err = err
		q.transition(Idle)
		return perf.Estimate{}, false
	}
	est, err := q.bestConfiguration(len(remaining))
	if err != nil {
		q.failPending(err)
		q.err = err
		q.transition(Idle)
		return perf.Estimate{}, false
	}
	q.tags.Entry().WithField("estimate", est).Infof("Rescheduling %d jobs", len(remaining))
	return est, true
}

// teardown aborts every in-flight job and disconnects every session of the
// wave, concurrently, waiting at most the abort timeout. Job states are left
// to the caller.
func (q *queueManager) teardown() {
	if q.wave == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.s.config.AbortTimeout)
	defer cancel()
	var errs error
	runner := async.NewRunner()
	for _, sl := range q.wave.slots {
		sl, running := sl, sl.current != nil && !sl.dead
		runner.RunAsync(func() error {
			var err error
			if running {
				err = sl.session.Abort(ctx)
			}
			return multierr.Append(err, sl.session.Disconnect(ctx))
		}, func(err error) {
			errs = multierr.Append(errs, err)
		})
		sl.current = nil
		sl.queue = nil
	}
	runner.Drain(ctx)
	if errs != nil {
		q.tags.Entry().Infof("Errors tearing down wave: %v", errs)
	}
	q.s.stat.Gauge(stats.SchedActiveSessionsGauge).Update(0)
}

// drain closes a wave whose jobs are all terminal.
func (q *queueManager) drain() {
	q.transition(Draining)
	q.teardown()
	q.transition(Idle)
}

// cancel resolves in-flight jobs with one last poll, Completed if the
// worker already finished and Aborted otherwise, and aborts every job
// still queued without sending it.
func (q *queueManager) cancel() {
	if q.state != Idle {
		q.transition(Draining)
	}
	if q.wave != nil {
		ctx, cancel := context.WithTimeout(context.Background(), q.s.config.AbortTimeout)
		inflight := q.wave.inFlight()
		sessions := make([]client.Session, len(inflight))
		for i, sl := range inflight {
			sessions[i] = sl.session
		}
		completed := []*slot{}
		for i, ev := range q.s.monitor.Tick(ctx, sessions) {
			if ev.Kind == EventCompleted {
				completed = append(completed, inflight[i])
			}
		}
		q.collect(ctx, completed)
		cancel()
		q.teardown()
	}
	for _, j := range pending(q.jobs) {
		q.s.finish(j, domain.Aborted, errors.Errorf(errors.UserAborted, "batch cancelled"), domain.Result{})
	}
	q.err = errors.Errorf(errors.UserAborted, "batch cancelled")
	if q.state != Idle {
		q.transition(Idle)
	}
}

func (q *queueManager) failPending(err error) {
	for _, j := range pending(q.jobs) {
		q.s.finish(j, domain.Failed, err, domain.Result{})
	}
}
