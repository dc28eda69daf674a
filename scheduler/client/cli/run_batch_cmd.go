package cli

/**
implements the command line entry for running a synthetic batch
*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/client"
	"github.com/twitter/remotesim/common/endpoints"
	"github.com/twitter/remotesim/config"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/scheduler/server"
	workerclient "github.com/twitter/remotesim/worker/client"
)

type runBatchCmd struct {
	numJobs        int
	maxThreads     int
	maxParallelism int
	rescheduling   string
	modelPolicy    string
	local          bool
	blocking       bool
	localDuration  time.Duration
	httpAddr       string
}

func (c *runBatchCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of synthetic jobs",
	}
	r.Flags().IntVar(&c.numJobs, "jobs", 8, "Number of jobs in the batch")
	r.Flags().IntVar(&c.maxThreads, "max_threads", 0, "Max threads per job, 0 uses the config")
	r.Flags().IntVar(&c.maxParallelism, "max_parallelism", 0, "Max concurrent jobs, 0 uses the config")
	r.Flags().StringVar(&c.rescheduling, "rescheduling", "", "Rescheduling policy (none|internal|external), empty uses the config")
	r.Flags().StringVar(&c.modelPolicy, "model_policy", "", "Performance model policy (basic|homogeneous|crfp0|crfp1|pso), empty uses the config")
	r.Flags().BoolVar(&c.local, "local", false, "Skip remote hosts and run on the local engine")
	r.Flags().BoolVar(&c.blocking, "blocking", false, "Run the local engine on the calling goroutine")
	r.Flags().DurationVar(&c.localDuration, "local_job_duration", 500*time.Millisecond, "Wall time of a job on the local engine")
	r.Flags().StringVar(&c.httpAddr, "http_addr", "", "Serve /metrics and /health here while the batch runs")
	return r
}

// options applies the flags over the config's batch defaults.
func (c *runBatchCmd) options(cfg *config.SchedulerJSONConfig) (domain.Options, error) {
	opts, err := cfg.CreateOptions()
	if err != nil {
		return opts, err
	}
	if c.maxThreads > 0 {
		opts.MaxThreads = c.maxThreads
	}
	if c.maxParallelism > 0 {
		opts.MaxParallelism = c.maxParallelism
	}
	if c.rescheduling != "" {
		if opts.Rescheduling, err = config.ParseReschedulePolicy(c.rescheduling); err != nil {
			return opts, err
		}
	}
	if c.modelPolicy != "" {
		if opts.ModelPolicy, err = perf.ParsePolicy(c.modelPolicy); err != nil {
			return opts, err
		}
	}
	if c.local {
		opts.UseRemote = false
	}
	if c.blocking {
		opts.LocalBlocking = true
	}
	return opts, nil
}

// newScheduler wires a scheduler to the directory and hosts named by the
// config.
func newScheduler(ctx context.Context, cl *client.SimpleClient, engine domain.LocalEngine) (*server.Scheduler, error) {
	regCfg, err := cl.Config.Registry.CreateRegistryConfig()
	if err != nil {
		return nil, err
	}
	refresh, err := cl.Config.Registry.CreateRefreshInterval()
	if err != nil {
		return nil, err
	}
	clientCfg, err := cl.Config.Worker.CreateClientConfig()
	if err != nil {
		return nil, err
	}
	schedCfg, err := cl.Config.Scheduler.CreateSchedulerConfig()
	if err != nil {
		return nil, err
	}

	httpClient := endpoints.MakePesterClient(clientCfg.HttpTries, regCfg.RequestTimeout)
	fetcher := cluster.NewHttpFetcher(cl.Config.Registry.AddressServer, httpClient)
	reg := registry.NewRegistry(fetcher, workerclient.NewProber(clientCfg), regCfg, cl.Stat)
	if err := reg.Connect(ctx); err != nil {
		log.Infof("Worker registry not reachable yet: %v", err)
	}
	reg.Watch(ctx, refresh)

	return server.NewScheduler(reg, workerclient.NewSessionFactory(clientCfg), engine, schedCfg, cl.Stat), nil
}

func (c *runBatchCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	opts, err := c.options(&cl.Config.Scheduler)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.httpAddr != "" {
		admin := endpoints.NewAdminServer(c.httpAddr, cl.Stat)
		go func() {
			if err := admin.Serve(); err != nil {
				log.Errorf("Admin server stopped: %v", err)
			}
		}()
	}

	sched, err := newScheduler(ctx, cl, newSleepEngine(c.localDuration))
	if err != nil {
		return err
	}
	res := sched.RunBatch(ctx, syntheticJobs(c.numJobs), opts)

	fmt.Println(res)
	for _, j := range res.Jobs {
		fmt.Printf("%s\t%s\thost:%s\tattempts:%d\terr:%v\n", j.JobID, j.State, j.Host, j.Attempts, j.Err)
		for _, m := range j.Messages {
			fmt.Printf("\t%s\n", m)
		}
	}
	if !res.Success {
		return fmt.Errorf("batch did not complete: %d of %d jobs completed",
			res.Count(domain.Completed), len(res.Jobs))
	}
	return nil
}

func syntheticJobs(n int) []domain.Job {
	jobs := make([]domain.Job, n)
	for i := range jobs {
		id := fmt.Sprintf("sim%03d", i)
		jobs[i] = domain.NewSimpleJob(id, []byte(fmt.Sprintf(`{"model":"synthetic","run":%d}`, i)))
	}
	return jobs
}
