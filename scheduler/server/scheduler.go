package server

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/luci/go-render/render"
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/log/hooks"
	"github.com/twitter/remotesim/common/log/tags"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/worker/client"
)

const (
	// Shortest wait between two monitor ticks.
	DefaultTickInterval = 100 * time.Millisecond

	// Ticks slow down to this while no job makes progress.
	DefaultMaxTickInterval = 2 * time.Second

	// Bound on one monitor tick.
	DefaultPollTimeout = 5 * time.Second

	// How long a teardown waits for aborts and disconnects.
	DefaultAbortTimeout = 5 * time.Second

	// A running job trailing a peer by more than this fraction is a straggler.
	DefaultSkewThreshold = 0.5

	// Skew is checked every this many ticks.
	DefaultSkewCheckEvery = 1

	// Waves per batch, including the first, before remaining jobs fail.
	DefaultMaxWaves = 5
)

// Used to get proper logging from tests...
func init() {
	if loglevel := os.Getenv("REMOTESIM_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	} else {
		// setting Error level to keep test output short
		log.SetLevel(log.ErrorLevel)
	}
}

type Config struct {
	TickInterval    time.Duration
	MaxTickInterval time.Duration
	PollTimeout     time.Duration
	AbortTimeout    time.Duration
	SkewThreshold   float64
	SkewCheckEvery  int
	MaxWaves        int
	// Hosts slower than this are not considered for a wave.
	MinHostSpeed float64
	// Concurrent local simulations when running locally threaded.
	LocalWorkers   int
	CurveCacheSize int
}

func (c Config) String() string {
	return fmt.Sprintf("SchedulerConfig: TickInterval: %s, MaxTickInterval: %s, PollTimeout: %s, AbortTimeout: %s, "+
		"SkewThreshold: %.2f, SkewCheckEvery: %d, MaxWaves: %d, MinHostSpeed: %.3f, LocalWorkers: %d",
		c.TickInterval, c.MaxTickInterval, c.PollTimeout, c.AbortTimeout,
		c.SkewThreshold, c.SkewCheckEvery, c.MaxWaves, c.MinHostSpeed, c.LocalWorkers)
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.MaxTickInterval < c.TickInterval {
		c.MaxTickInterval = DefaultMaxTickInterval
		if c.MaxTickInterval < c.TickInterval {
			c.MaxTickInterval = c.TickInterval
		}
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.AbortTimeout <= 0 {
		c.AbortTimeout = DefaultAbortTimeout
	}
	if c.SkewThreshold <= 0 {
		c.SkewThreshold = DefaultSkewThreshold
	}
	if c.SkewCheckEvery <= 0 {
		c.SkewCheckEvery = DefaultSkewCheckEvery
	}
	if c.MaxWaves <= 0 {
		c.MaxWaves = DefaultMaxWaves
	}
	if c.LocalWorkers <= 0 {
		c.LocalWorkers = runtime.NumCPU()
	}
	return c
}

// Scheduler runs batches of jobs. It holds no per-batch state and may run
// several batches at once; they share the registry and the curve cache.
type Scheduler struct {
	registry   registry.Registry
	newSession client.SessionFactory
	local      domain.LocalEngine
	config     Config
	monitor    *Monitor
	curves     *perf.CurveCache
	stat       stats.StatsReceiver

	newModel func(perf.Policy, perf.Curve) perf.Model
}

// NewScheduler creates a Scheduler. reg and sessions may be nil for a
// local-only scheduler, local may be nil for a remote-only one.
func NewScheduler(
	reg registry.Registry,
	sessions client.SessionFactory,
	local domain.LocalEngine,
	config Config,
	stat stats.StatsReceiver) *Scheduler {
	config = config.withDefaults()
	stat = stat.Scope("scheduler")
	log.Info(config)
	return &Scheduler{
		registry:   reg,
		newSession: sessions,
		local:      local,
		config:     config,
		monitor:    NewMonitor(config.PollTimeout, stat),
		curves:     perf.NewCurveCache(config.CurveCacheSize),
		stat:       stat,
		newModel:   perf.NewModel,
	}
}

// RunBatch runs every job to a terminal state and reports on them. It runs
// remotely when asked to and hosts are available, and otherwise on the
// local engine, blocking or threaded as the options say. It never fails
// outright: batch level errors are reported in BatchResult.Err.
func (s *Scheduler) RunBatch(ctx context.Context, jobs []domain.Job, opts domain.Options) domain.BatchResult {
	defer s.stat.Latency(stats.SchedBatchLatency_ms).Time().Stop()
	s.stat.Counter(stats.SchedBatchesCounter).Inc(1)

	id, _ := uuid.NewV4()
	b := &batchRun{tags: tags.LogTags{BatchID: id.String()}, jobs: newJobRecords(jobs)}
	opts = normalizeOptions(opts, len(jobs))
	b.tags.Entry().WithField("jobs", len(jobs)).Infof("Running batch: %s", render.Render(opts))

	if len(pending(b.jobs)) > 0 {
		remote, err := s.remoteAvailable(ctx, b, opts)
		if remote {
			newQueueManager(s, b, opts).run(ctx)
		} else {
			s.runLocal(ctx, b, opts.LocalBlocking, err)
		}
	}

	res := b.result()
	b.tags.Entry().Infof("Batch done: %s", res)
	return res
}

func normalizeOptions(opts domain.Options, numJobs int) domain.Options {
	if opts.MaxThreads < 1 {
		opts.MaxThreads = 1
	}
	if opts.MaxParallelism < 1 {
		opts.MaxParallelism = numJobs
		if opts.MaxParallelism < 1 {
			opts.MaxParallelism = 1
		}
	}
	return opts
}

// remoteAvailable refreshes the registry. A reachable directory listing at
// least one host means remote execution.
func (s *Scheduler) remoteAvailable(ctx context.Context, b *batchRun, opts domain.Options) (bool, error) {
	if !opts.UseRemote {
		return false, nil
	}
	if s.registry == nil || s.newSession == nil {
		return false, errors.Errorf(errors.RegistryUnreachable, "no worker registry configured")
	}
	hosts, err := s.registry.Refresh(ctx)
	if err != nil {
		b.tags.Entry().Infof("Remote execution unavailable: %v", err)
		return false, err
	}
	if len(hosts) == 0 {
		return false, errors.Errorf(errors.RegistryUnreachable, "host directory lists no hosts")
	}
	return true, nil
}

// finish records a terminal state and counts it.
func (s *Scheduler) finish(j *jobRecord, state domain.JobState, err error, result domain.Result) {
	if !j.finish(state, err, result) {
		return
	}
	switch state {
	case domain.Completed:
		s.stat.Counter(stats.SchedJobsCompletedCounter).Inc(1)
	case domain.Failed:
		s.stat.Counter(stats.SchedJobsFailedCounter).Inc(1)
	case domain.Aborted:
		s.stat.Counter(stats.SchedJobsAbortedCounter).Inc(1)
	}
}

// batchRun is the bookkeeping of one RunBatch call, whichever path runs it.
type batchRun struct {
	tags              tags.LogTags
	jobs              []*jobRecord
	path              domain.ExecutionPath
	err               error
	timing            domain.Timing
	waves             int
	estimate          perf.Estimate
	blacklisted       []string
	needsRescheduling bool
}

func (b *batchRun) addBlacklisted(addr string) {
	for _, a := range b.blacklisted {
		if a == addr {
			return
		}
	}
	b.blacklisted = append(b.blacklisted, addr)
}

func (b *batchRun) result() domain.BatchResult {
	res := domain.BatchResult{
		Jobs:              make([]domain.JobResult, len(b.jobs)),
		Err:               b.err,
		Path:              b.path,
		Timing:            b.timing,
		Waves:             b.waves,
		Estimate:          b.estimate,
		Blacklisted:       b.blacklisted,
		NeedsRescheduling: b.needsRescheduling,
	}
	res.Success = b.err == nil
	for i, j := range b.jobs {
		res.Jobs[i] = j.toResult()
		if j.state != domain.Completed {
			res.Success = false
		}
	}
	return res
}
