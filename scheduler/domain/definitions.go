// Package domain provides the definitions shared between callers of the
// scheduler and its implementation: jobs, their states and results, batch
// options and the batch report.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/twitter/remotesim/scheduler/perf"
)

// SimulationTimes carries the time window of a simulation job.
type SimulationTimes struct {
	Start         float64
	Stop          float64
	LogStart      float64
	NumLogSamples int
}

// Listener receives lifecycle callbacks for a job. Callbacks are invoked
// from the scheduling goroutine, or from a local engine goroutine when the
// batch runs locally threaded.
type Listener interface {
	OnStarted()
	OnProgress(fraction float64)
	OnCompleted(result Result)
	OnFailed(err error)
	OnAborted()
}

// Job is one simulation to run. Serialize must be deterministic: the
// payload is sent to workers and also fingerprints benchmark curves.
type Job interface {
	ID() string
	Serialize() ([]byte, error)
	Times() SimulationTimes
	Listener
}

type JobState int

const (
	Queued JobState = iota
	Assigned
	Loading
	Running
	Completed
	Failed
	Aborted
)

func (s JobState) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Assigned:
		return "Assigned"
	case Loading:
		return "Loading"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

func (s JobState) IsTerminal() bool {
	return s == Completed || s == Failed || s == Aborted
}

// Variable is one logged output signal of a finished simulation.
type Variable struct {
	Name     string
	Alias    string
	Quantity string
	Unit     string
	Data     []float64
}

type Result struct {
	Variables []Variable
}

// ReschedulePolicy decides what happens when a wave becomes skewed.
type ReschedulePolicy int

const (
	// Run once with the requested configuration, no skew detection.
	None ReschedulePolicy = iota
	// Tear down the skewed wave and resubmit under a recomputed configuration.
	InternalLoadBalance
	// Tear down the skewed wave and hand the decision back to the caller.
	ExternalReschedule
)

func (p ReschedulePolicy) String() string {
	switch p {
	case None:
		return "None"
	case InternalLoadBalance:
		return "InternalLoadBalance"
	case ExternalReschedule:
		return "ExternalReschedule"
	default:
		return fmt.Sprintf("ReschedulePolicy(%d)", int(p))
	}
}

type Options struct {
	UseRemote      bool
	MaxThreads     int
	MaxParallelism int
	Rescheduling   ReschedulePolicy
	ModelPolicy    perf.Policy
	// When remote execution is unavailable, block on the local engine
	// instead of running it on background goroutines.
	LocalBlocking bool
}

type ExecutionPath int

const (
	Remote ExecutionPath = iota
	LocalBlocking
	LocalThreaded
)

func (p ExecutionPath) String() string {
	switch p {
	case Remote:
		return "Remote"
	case LocalBlocking:
		return "LocalBlocking"
	case LocalThreaded:
		return "LocalThreaded"
	default:
		return fmt.Sprintf("ExecutionPath(%d)", int(p))
	}
}

type JobResult struct {
	JobID  string
	State  JobState
	Err    error
	Result Result
	// Host that produced the terminal state, empty for local runs.
	Host string
	// Number of times the job was started.
	Attempts int
	// What the worker logged for a job that failed remotely.
	Messages []string
}

type Timing struct {
	Setup    time.Duration
	Run      time.Duration
	Finalize time.Duration
}

// BatchResult reports every job's terminal state. Err carries a batch
// level failure (RegistryUnreachable, SchedulingInfeasible, UserAborted)
// while per-job failures stay in Jobs.
type BatchResult struct {
	Jobs     []JobResult
	Success  bool
	Err      error
	Path     ExecutionPath
	Timing   Timing
	Waves    int
	Estimate perf.Estimate
	// Hosts blacklisted while running this batch.
	Blacklisted []string
	// Set by ExternalReschedule when skew aborted the batch. Estimate then
	// holds the suggested configuration.
	NeedsRescheduling bool
}

func (b BatchResult) Count(state JobState) int {
	n := 0
	for _, j := range b.Jobs {
		if j.State == state {
			n++
		}
	}
	return n
}

func (b BatchResult) String() string {
	return fmt.Sprintf("path:%s success:%t completed:%d failed:%d aborted:%d waves:%d estimate:%s timing:%+v err:%v",
		b.Path, b.Success, b.Count(Completed), b.Count(Failed), b.Count(Aborted),
		b.Waves, b.Estimate, b.Timing, b.Err)
}

// LocalEngine runs jobs in-process when no remote workers are available.
type LocalEngine interface {
	Initialize(ctx context.Context, jobs []Job) error
	Simulate(ctx context.Context, job Job) (Result, error)
	Finalize(ctx context.Context, jobs []Job)
}
