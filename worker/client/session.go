// Package client implements worker sessions: a connection to one worker
// host holding a slot reservation, over which one job at a time is loaded,
// started, polled, aborted and collected.
package client

//go:generate mockgen -source=session.go -package=client -destination=session_mock.go

import (
	"context"
	"time"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/scheduler/domain"
)

type ConnState int

const (
	Disconnected ConnState = iota
	HostConnected
	WorkerConnected
)

func (s ConnState) String() string {
	switch s {
	case HostConnected:
		return "HostConnected"
	case WorkerConnected:
		return "WorkerConnected"
	default:
		return "Disconnected"
	}
}

type RunState int

const (
	RunIdle RunState = iota
	RunInProgress
	RunFinished
)

func (s RunState) String() string {
	switch s {
	case RunInProgress:
		return "InProgress"
	case RunFinished:
		return "Finished"
	default:
		return "Idle"
	}
}

type Progress struct {
	Fraction float64
	State    RunState
}

// Session is a connection to a worker on one host. A Session is not safe
// for concurrent use except for State, Host and Threads.
type Session interface {
	// Reserves threads slots on host and opens the worker channel.
	Connect(ctx context.Context, host cluster.Host, threads int) error

	// Sends a serialized job to the worker.
	LoadJob(ctx context.Context, payload []byte) error

	// Starts the loaded job. Fails if nothing is loaded.
	Start(ctx context.Context) error

	PollProgress(ctx context.Context) (Progress, error)

	// Requests cancellation of the running job. Idempotent, and a no-op
	// when no job is running.
	Abort(ctx context.Context) error

	// Fetches the output of a job whose completion was observed by
	// PollProgress. The session is then ready for the next LoadJob.
	CollectResult(ctx context.Context) (domain.Result, error)

	// Releases the reservation. Idempotent.
	Disconnect(ctx context.Context) error

	// Fetches what the worker logged for its current job. Works after a
	// transport failure as long as the reservation was not released.
	Messages(ctx context.Context) ([]string, error)

	// Runs payload to completion with the given thread count on the
	// connected host and returns the wall time.
	Benchmark(ctx context.Context, payload []byte, threads int) (time.Duration, error)

	Host() cluster.Host
	Threads() int
	State() ConnState
}

// SessionFactory creates disconnected sessions.
type SessionFactory func() Session
