package cli

/**
implements the command line entry for serving a simulated cluster
*/

import (
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/remotesim/common/client"
	"github.com/twitter/remotesim/workerapi"
	simserver "github.com/twitter/remotesim/workerapi/server"
)

type clusterCmd struct {
	dirAddr     string
	numHosts    int
	hostPort    int
	slots       int
	jobDuration time.Duration
	stallHost   int
	stallAt     float64
	crashHost   int
	crashAt     float64
	maxConns    int
}

func (c *clusterCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "cluster",
		Short: "Serve a host directory and simulated worker hosts",
	}
	r.Flags().StringVar(&c.dirAddr, "dir_addr", "", "Directory bind address, defaults to the config's Registry.AddressServer")
	r.Flags().IntVar(&c.numHosts, "hosts", 3, "Number of simulated hosts")
	r.Flags().IntVar(&c.hostPort, "host_port", 9100, "Port of the first host, the others follow")
	r.Flags().IntVar(&c.slots, "slots", 4, "Slots per host")
	r.Flags().DurationVar(&c.jobDuration, "job_duration", 2*time.Second, "Single threaded wall time of a job")
	r.Flags().IntVar(&c.stallHost, "stall_host", -1, "Index of a host whose jobs stall, -1 for none")
	r.Flags().Float64Var(&c.stallAt, "stall_at", 0.3, "Progress at which the stalled host stops")
	r.Flags().IntVar(&c.crashHost, "crash_host", -1, "Index of a host whose jobs crash, -1 for none")
	r.Flags().Float64Var(&c.crashAt, "crash_at", 0.5, "Progress at which the crashing host's jobs fail")
	r.Flags().IntVar(&c.maxConns, "max_conns", 64, "Max concurrent connections per server")
	return r
}

// behaviors describes the hosts, each a little slower than the previous.
func (c *clusterCmd) behaviors() []simserver.HostBehavior {
	out := []simserver.HostBehavior{}
	for i := 0; i < c.numHosts; i++ {
		b := simserver.HostBehavior{
			Slots:       c.slots,
			EvalTime:    1 + 0.25*float64(i),
			JobDuration: time.Duration(float64(c.jobDuration) * (1 + 0.25*float64(i))),
		}
		if i == c.stallHost {
			b.Stall, b.StallAt = true, c.stallAt
		}
		if i == c.crashHost {
			b.CrashAt = c.crashAt
		}
		out = append(out, b)
	}
	return out
}

func (c *clusterCmd) Run(cl *client.SimpleClient, cmd *cobra.Command, args []string) error {
	if c.numHosts < 1 {
		return fmt.Errorf("at least one host is required")
	}
	dirAddr := c.dirAddr
	if dirAddr == "" {
		dirAddr = cl.Config.Registry.AddressServer
	}
	host, _, err := net.SplitHostPort(dirAddr)
	if err != nil {
		return fmt.Errorf("invalid directory address %s: %v", dirAddr, err)
	}

	errCh := make(chan error, c.numHosts+1)
	entries := []workerapi.HostEntry{}
	for i, b := range c.behaviors() {
		addr := net.JoinHostPort(host, strconv.Itoa(c.hostPort+i))
		h := simserver.NewHost(b, cl.Stat.Scope("host", strconv.Itoa(i)))
		go func() {
			errCh <- simserver.Serve(addr, c.maxConns, h.Handler())
		}()
		entries = append(entries, workerapi.HostEntry{Addr: addr, Slots: b.Slots, EvalTime: b.EvalTime})
		log.Infof("Simulated host %s: %+v", addr, b)
	}
	go func() {
		errCh <- simserver.Serve(dirAddr, c.maxConns, simserver.NewDirectory(entries...))
	}()
	return <-errCh
}
