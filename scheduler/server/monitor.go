package server

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/twitter/remotesim/async"
	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/worker/client"
)

type EventKind int

const (
	EventRunning EventKind = iota
	EventCompleted
	EventFailed
	// The poll did not return before the tick was cancelled.
	EventUnknown
)

func (k EventKind) String() string {
	switch k {
	case EventRunning:
		return "Running"
	case EventCompleted:
		return "Completed"
	case EventFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SessionEvent is the outcome of polling one session during a tick.
type SessionEvent struct {
	Session  client.Session
	Kind     EventKind
	Fraction float64
	Err      error
}

// Monitor polls sessions concurrently. Each tick is bounded by the poll
// timeout, so one slow host cannot hold up the observation of the others.
type Monitor struct {
	pollTimeout time.Duration
	stat        stats.StatsReceiver
}

func NewMonitor(pollTimeout time.Duration, stat stats.StatsReceiver) *Monitor {
	return &Monitor{pollTimeout: pollTimeout, stat: stat}
}

// Tick polls every session once and returns one event per session, in the
// order given. A poll still outstanding at the deadline is reported as a
// failure, or as EventUnknown if ctx itself was cancelled.
func (m *Monitor) Tick(ctx context.Context, sessions []client.Session) []SessionEvent {
	defer m.stat.Latency(stats.SchedTickLatency_ms).Time().Stop()

	events := make([]SessionEvent, len(sessions))
	answered := make([]bool, len(sessions))
	pctx, cancel := context.WithTimeout(ctx, m.pollTimeout)
	defer cancel()

	runner := async.NewRunner()
	for i, s := range sessions {
		i, s := i, s
		var p client.Progress
		runner.RunAsync(func() error {
			var err error
			p, err = s.PollProgress(pctx)
			return err
		}, func(err error) {
			answered[i] = true
			events[i] = classify(s, p, err)
		})
	}
	runner.Drain(pctx)

	for i, s := range sessions {
		if answered[i] {
			continue
		}
		if ctx.Err() != nil {
			events[i] = SessionEvent{Session: s, Kind: EventUnknown, Fraction: -1}
			continue
		}
		err := errors.Errorf(errors.JobTransportFailure,
			"poll of %s did not return within %v", s.Host().Addr, m.pollTimeout)
		events[i] = SessionEvent{Session: s, Kind: EventFailed, Fraction: -1, Err: err}
	}
	return events
}

func classify(s client.Session, p client.Progress, err error) SessionEvent {
	ev := SessionEvent{Session: s, Fraction: p.Fraction}
	switch {
	case err != nil:
		ev.Kind, ev.Err = EventFailed, err
	case p.State == client.RunFinished:
		ev.Kind, ev.Fraction = EventCompleted, 1
	case p.State == client.RunInProgress:
		ev.Kind = EventRunning
	default:
		ev.Kind = EventFailed
		ev.Err = errors.NewError(fmt.Errorf("worker on %s reports no running job", s.Host().Addr),
			errors.JobTransportFailure)
	}
	return ev
}

// tickInterval grows the wait between ticks while nothing changes, and
// snaps back to the minimum on any progress.
type tickInterval struct {
	b *backoff.ExponentialBackOff
}

func newTickInterval(min, max time.Duration) *tickInterval {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min
	b.MaxInterval = max
	b.Multiplier = 1.5
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &tickInterval{b: b}
}

func (t *tickInterval) Next(changed bool) time.Duration {
	if changed {
		t.b.Reset()
	}
	return t.b.NextBackOff()
}
