package server

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/worker/client"
)

type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	initErr error
	// Jobs whose simulation fails.
	failing map[string]bool
	// When set, simulations block until ctx is done and report started.
	block   bool
	started chan string
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Initialize(ctx context.Context, jobs []domain.Job) error {
	e.record(fmt.Sprintf("initialize:%d", len(jobs)))
	return e.initErr
}

func (e *fakeEngine) Simulate(ctx context.Context, job domain.Job) (domain.Result, error) {
	e.record("simulate:" + job.ID())
	if e.block {
		e.started <- job.ID()
		<-ctx.Done()
		return domain.Result{}, ctx.Err()
	}
	if e.failing[job.ID()] {
		return domain.Result{}, fmt.Errorf("solver diverged")
	}
	return domain.Result{Variables: []domain.Variable{{Name: job.ID()}}}, nil
}

func (e *fakeEngine) Finalize(ctx context.Context, jobs []domain.Job) {
	e.record("finalize")
}

func newLocalScheduler(reg registry.Registry, sessions client.SessionFactory, engine domain.LocalEngine, workers int) *Scheduler {
	cfg := testConfig()
	cfg.LocalWorkers = workers
	return NewScheduler(reg, sessions, engine, cfg, stats.NilStatsReceiver())
}

func TestRunBatchLocalBlocking(t *testing.T) {
	engine := &fakeEngine{}
	s := newLocalScheduler(nil, nil, engine, 4)
	jobs, simple := simpleJobs(3)

	res := s.RunBatch(context.Background(), jobs, domain.Options{LocalBlocking: true})

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.LocalBlocking, res.Path)
	assert.Equal(t, []string{"initialize:3", "simulate:job0", "simulate:job1", "simulate:job2", "finalize"}, engine.Calls())
	for i, j := range simple {
		assert.Equal(t, domain.Completed, j.State())
		assert.Equal(t, fmt.Sprintf("job%d", i), j.Result().Variables[0].Name)
		assert.Equal(t, 1, res.Jobs[i].Attempts)
		assert.Empty(t, res.Jobs[i].Host)
	}
}

func TestRunBatchFallsBackWhenRegistryUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	reg := registry.NewMockRegistry(ctrl)
	reg.EXPECT().Refresh(gomock.Any()).Return(nil, errors.Errorf(errors.RegistryUnreachable, "connection refused"))

	engine := &fakeEngine{failing: map[string]bool{"job1": true}}
	s := newLocalScheduler(reg, func() client.Session { return nil }, engine, 2)
	jobs, _ := simpleJobs(3)

	res := s.RunBatch(context.Background(), jobs, domain.Options{UseRemote: true})

	assert.NoError(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.LocalThreaded, res.Path)
	assert.Equal(t, domain.Completed, res.Jobs[0].State)
	assert.Equal(t, domain.Failed, res.Jobs[1].State)
	assert.EqualError(t, res.Jobs[1].Err, "solver diverged")
	assert.Equal(t, domain.Completed, res.Jobs[2].State)
	calls := engine.Calls()
	assert.Equal(t, "initialize:3", calls[0])
	assert.Equal(t, "finalize", calls[len(calls)-1])
	assert.Len(t, calls, 5)
}

func TestRunBatchWithoutRemoteOrLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	reg := registry.NewMockRegistry(ctrl)
	reg.EXPECT().Refresh(gomock.Any()).Return(nil, errors.Errorf(errors.RegistryUnreachable, "connection refused"))

	s := newLocalScheduler(reg, func() client.Session { return nil }, nil, 2)
	jobs, simple := simpleJobs(2)

	res := s.RunBatch(context.Background(), jobs, domain.Options{UseRemote: true})

	assert.Equal(t, errors.RegistryUnreachable, errors.KindOf(res.Err))
	for i, j := range res.Jobs {
		assert.Equal(t, domain.Failed, j.State)
		assert.Equal(t, errors.RegistryUnreachable, errors.KindOf(j.Err))
		assert.Equal(t, domain.Failed, simple[i].State())
	}
}

func TestRunBatchLocalInitializeFails(t *testing.T) {
	engine := &fakeEngine{initErr: fmt.Errorf("no license")}
	s := newLocalScheduler(nil, nil, engine, 2)
	jobs, _ := simpleJobs(2)

	res := s.RunBatch(context.Background(), jobs, domain.Options{})

	assert.EqualError(t, res.Err, "no license")
	assert.Equal(t, 2, res.Count(domain.Failed))
	assert.Equal(t, []string{"initialize:2"}, engine.Calls())
}

func TestRunBatchLocalThreadedCancel(t *testing.T) {
	engine := &fakeEngine{block: true, started: make(chan string, 5)}
	s := newLocalScheduler(nil, nil, engine, 2)
	jobs, simple := simpleJobs(5)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-engine.started
		<-engine.started
		cancel()
	}()
	res := s.RunBatch(ctx, jobs, domain.Options{})

	assert.Equal(t, errors.UserAborted, errors.KindOf(res.Err))
	assert.Equal(t, domain.LocalThreaded, res.Path)
	assert.Equal(t, 5, res.Count(domain.Aborted))
	neverStarted := 0
	for _, j := range simple {
		if j.Starts() == 0 {
			neverStarted++
		}
	}
	assert.Equal(t, 3, neverStarted)
	calls := engine.Calls()
	assert.Equal(t, "finalize", calls[len(calls)-1])
}
