package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/config"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	simserver "github.com/twitter/remotesim/workerapi/server"
)

func writeConfig(t *testing.T, dirAddr string) string {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	text := fmt.Sprintf(`
Registry:
  Type: http
  AddressServer: %s
  RequestTimeout: 1s
Scheduler:
  Type: loadbalanced
  TickInterval: 5ms
  MaxTickInterval: 20ms
  UseRemote: true
  MaxThreads: 1
  MaxParallelism: 4
  Rescheduling: internal
  ModelPolicy: crfp0
`, dirAddr)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func execute(t *testing.T, args ...string) error {
	cl, err := NewSimpleCLIClient()
	require.NoError(t, err)
	cl.(*SimCLIClient).RootCmd.SetArgs(args)
	return cl.Exec()
}

func TestRunAgainstSimCluster(t *testing.T) {
	c := simserver.StartSimCluster(stats.NilStatsReceiver(),
		simserver.HostBehavior{Slots: 2, EvalTime: 1, JobDuration: 50 * time.Millisecond},
		simserver.HostBehavior{Slots: 2, EvalTime: 1, JobDuration: 50 * time.Millisecond},
	)
	defer c.Close()

	err := execute(t, "--config", writeConfig(t, c.DirAddr()), "--log_level", "error", "run", "--jobs", "6")
	require.NoError(t, err)
	for _, h := range c.Hosts {
		assert.Equal(t, 0, h.NumWorkers())
	}
}

func TestRunLocally(t *testing.T) {
	err := execute(t, "--config", "test", "--log_level", "error",
		"run", "--jobs", "3", "--local", "--blocking", "--local_job_duration", "1ms")
	require.NoError(t, err)
}

func TestRunRejectsUnknownPolicy(t *testing.T) {
	err := execute(t, "--config", "test", "--log_level", "error", "run", "--local", "--model_policy", "fastest")
	assert.Error(t, err)
}

func TestRunOptionsOverrideConfig(t *testing.T) {
	c := &runBatchCmd{maxThreads: 3, rescheduling: "external", modelPolicy: "pso", local: true}
	cfg := config.SchedulerJSONConfig{UseRemote: true, MaxThreads: 1, MaxParallelism: 8, Rescheduling: "none"}

	opts, err := c.options(&cfg)
	require.NoError(t, err)
	assert.Equal(t, domain.Options{
		UseRemote:      false,
		MaxThreads:     3,
		MaxParallelism: 8,
		Rescheduling:   domain.ExternalReschedule,
		ModelPolicy:    perf.PsoReschedule,
	}, opts)
}

func TestClusterBehaviors(t *testing.T) {
	c := &clusterCmd{numHosts: 3, slots: 2, jobDuration: time.Second, stallHost: 1, stallAt: 0.4, crashHost: 2, crashAt: 0.6}
	b := c.behaviors()
	require.Len(t, b, 3)
	assert.Equal(t, 1.0, b[0].EvalTime)
	assert.Equal(t, 1500*time.Millisecond, b[2].JobDuration)
	assert.False(t, b[0].Stall)
	assert.True(t, b[1].Stall)
	assert.Equal(t, 0.4, b[1].StallAt)
	assert.Zero(t, b[1].CrashAt)
	assert.Equal(t, 0.6, b[2].CrashAt)
}
