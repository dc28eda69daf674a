package cli

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/scheduler/domain"
)

// sleepEngine is a stand-in local engine: every job takes a fixed wall
// time and yields a single time variable.
type sleepEngine struct {
	duration time.Duration
}

func newSleepEngine(d time.Duration) *sleepEngine {
	return &sleepEngine{duration: d}
}

func (e *sleepEngine) Initialize(ctx context.Context, jobs []domain.Job) error {
	log.Infof("Local engine initialized for %d jobs", len(jobs))
	return nil
}

func (e *sleepEngine) Simulate(ctx context.Context, job domain.Job) (domain.Result, error) {
	t := time.NewTimer(e.duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	case <-t.C:
	}
	times := job.Times()
	return domain.Result{Variables: []domain.Variable{{
		Name: "Time",
		Unit: "s",
		Data: []float64{times.Start, times.Stop},
	}}}, nil
}

func (e *sleepEngine) Finalize(ctx context.Context, jobs []domain.Job) {
	log.Infof("Local engine finalized %d jobs", len(jobs))
}
