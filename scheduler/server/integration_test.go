package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/endpoints"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/worker/client"
	simserver "github.com/twitter/remotesim/workerapi/server"
)

// startSimScheduler wires a scheduler to simulated hosts over http.
func startSimScheduler(t *testing.T, behaviors ...simserver.HostBehavior) (*Scheduler, *simserver.SimCluster) {
	stat := stats.NilStatsReceiver()
	c := simserver.StartSimCluster(stat, behaviors...)
	t.Cleanup(c.Close)

	clientCfg := client.Config{RequestTimeout: time.Second}
	fetcher := cluster.NewHttpFetcher(c.DirAddr(), endpoints.MakePesterClient(1, time.Second))
	reg := registry.NewRegistry(fetcher, client.NewProber(clientCfg), registry.Config{RequestTimeout: time.Second}, stat)
	cfg := testConfig()
	cfg.MaxTickInterval = 20 * time.Millisecond
	return NewScheduler(reg, client.NewSessionFactory(clientCfg), nil, cfg, stat), c
}

func TestSimClusterBasicPolicy(t *testing.T) {
	s, c := startSimScheduler(t,
		simserver.HostBehavior{Slots: 2, EvalTime: 1, JobDuration: 100 * time.Millisecond},
		simserver.HostBehavior{Slots: 2, EvalTime: 1, JobDuration: 100 * time.Millisecond},
	)
	jobs, simple := simpleJobs(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := s.RunBatch(ctx, jobs, remoteOptions(domain.InternalLoadBalance, perf.Basic, 2, 4))

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.Remote, res.Path)
	assert.Equal(t, perf.Estimate{Pm: 1, Pa: 4, Speedup: 4}, res.Estimate)
	for _, j := range simple {
		assert.Equal(t, domain.Completed, j.State())
		require.Len(t, j.Result().Variables, 2)
	}
	_, cached := s.curves.Get(perf.Fingerprint([]byte("job0")))
	assert.True(t, cached)
	for _, h := range c.Hosts {
		assert.Equal(t, 0, h.NumWorkers())
	}
}

func TestSimClusterStalledHostIsBlacklisted(t *testing.T) {
	s, c := startSimScheduler(t,
		simserver.HostBehavior{Slots: 1, EvalTime: 1, JobDuration: 300 * time.Millisecond},
		simserver.HostBehavior{Slots: 1, EvalTime: 2, JobDuration: 300 * time.Millisecond, Stall: true, StallAt: 0.1},
	)
	jobs, _ := simpleJobs(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := s.RunBatch(ctx, jobs, remoteOptions(domain.InternalLoadBalance, perf.Crfp0Reschedule, 1, 2))

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Waves)
	assert.Equal(t, []string{c.HostAddr(1)}, res.Blacklisted)
	for _, j := range res.Jobs {
		assert.Equal(t, domain.Completed, j.State)
		assert.Equal(t, c.HostAddr(0), j.Host)
	}
}

func TestSimClusterCrashedJobCarriesWorkerMessages(t *testing.T) {
	s, c := startSimScheduler(t,
		simserver.HostBehavior{Slots: 1, EvalTime: 1, JobDuration: 200 * time.Millisecond},
		simserver.HostBehavior{Slots: 1, EvalTime: 2, JobDuration: 200 * time.Millisecond, CrashAt: 0.2},
	)
	jobs, _ := simpleJobs(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res := s.RunBatch(ctx, jobs, remoteOptions(domain.None, perf.Basic, 1, 2))

	assert.NoError(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.Completed, res.Jobs[0].State)
	assert.Empty(t, res.Jobs[0].Messages)

	failed := res.Jobs[1]
	assert.Equal(t, domain.Failed, failed.State)
	assert.Equal(t, c.HostAddr(1), failed.Host)
	require.NotEmpty(t, failed.Messages)
	assert.Contains(t, failed.Messages[len(failed.Messages)-1], "crashed at 20%")
	for _, h := range c.Hosts {
		assert.Equal(t, 0, h.NumWorkers())
	}
}
