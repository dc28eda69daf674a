package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/worker/client"
	"github.com/twitter/remotesim/workerapi"
)

// fakeHost scripts the progress reported for every job loaded on it: the
// n-th poll after a load returns script[n], the last value repeating. A
// value of 1 or more means finished.
type fakeHost struct {
	addr        string
	slots       int
	speed       float64
	script      []float64
	failPolls   bool
	failConnect bool
	failLoad    bool
	// Returned by Messages while the reservation is held.
	messages []string
}

// fakeCluster is a host directory, prober and session factory over
// scripted hosts. It logs session operations in order.
type fakeCluster struct {
	mu       sync.Mutex
	hosts    map[string]*fakeHost
	reserved map[string]int
	log      []string
}

func newFakeCluster(hosts ...*fakeHost) *fakeCluster {
	c := &fakeCluster{hosts: map[string]*fakeHost{}, reserved: map[string]int{}}
	for _, h := range hosts {
		c.hosts[h.addr] = h
	}
	return c
}

func (c *fakeCluster) Fetch(ctx context.Context) ([]cluster.Host, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []cluster.Host{}
	for _, h := range c.hosts {
		out = append(out, cluster.Host{Addr: h.addr, TotalSlots: h.slots, FreeSlots: h.slots, Speed: h.speed, Responding: true})
	}
	sort.Sort(cluster.HostSorter(out))
	return out, nil
}

func (c *fakeCluster) HostStatus(ctx context.Context, addr string) (workerapi.HostStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hosts[addr]
	if !ok {
		return workerapi.HostStatus{}, fmt.Errorf("no host %s", addr)
	}
	return workerapi.HostStatus{TotalSlots: h.slots, FreeSlots: h.slots - c.reserved[addr]}, nil
}

func (c *fakeCluster) record(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordLocked(format, args...)
}

func (c *fakeCluster) recordLocked(format string, args ...interface{}) {
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *fakeCluster) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

// indexesOf returns the positions of the events starting with prefix.
func indexesOf(events []string, prefix string) []int {
	out := []int{}
	for i, e := range events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, i)
		}
	}
	return out
}

func (c *fakeCluster) newSession() client.Session {
	return &fakeSession{c: c}
}

type fakeSession struct {
	c        *fakeCluster
	host     cluster.Host
	threads  int
	state    client.ConnState
	held     bool
	payload  string
	polls    int
	started  bool
	finished bool
}

func (s *fakeSession) Connect(ctx context.Context, host cluster.Host, threads int) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	h := s.c.hosts[host.Addr]
	if h == nil || h.failConnect || h.slots-s.c.reserved[host.Addr] < threads {
		return fmt.Errorf("connect to %s refused", host.Addr)
	}
	s.c.reserved[host.Addr] += threads
	s.host, s.threads, s.state, s.held = host, threads, client.WorkerConnected, true
	s.c.recordLocked("connect:%s", host.Addr)
	return nil
}

func (s *fakeSession) LoadJob(ctx context.Context, payload []byte) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.state != client.WorkerConnected || s.c.hosts[s.host.Addr].failLoad {
		s.state = client.Disconnected
		return fmt.Errorf("load on %s failed", s.host.Addr)
	}
	s.payload, s.polls, s.started, s.finished = string(payload), 0, false, false
	return nil
}

func (s *fakeSession) Start(ctx context.Context) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.payload == "" {
		return fmt.Errorf("nothing loaded")
	}
	s.started = true
	s.c.recordLocked("start:%s:%s", s.host.Addr, s.payload)
	return nil
}

func (s *fakeSession) PollProgress(ctx context.Context) (client.Progress, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	h := s.c.hosts[s.host.Addr]
	if s.state != client.WorkerConnected || h.failPolls {
		s.state = client.Disconnected
		return client.Progress{}, fmt.Errorf("poll on %s failed", s.host.Addr)
	}
	if !s.started {
		return client.Progress{Fraction: -1, State: client.RunIdle}, nil
	}
	i := s.polls
	if i >= len(h.script) {
		i = len(h.script) - 1
	}
	s.polls++
	if h.script[i] >= 1 {
		s.finished = true
		return client.Progress{Fraction: 1, State: client.RunFinished}, nil
	}
	return client.Progress{Fraction: h.script[i], State: client.RunInProgress}, nil
}

func (s *fakeSession) Abort(ctx context.Context) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.started && !s.finished {
		s.c.recordLocked("abort:%s:%s", s.host.Addr, s.payload)
		s.started = false
	}
	return nil
}

func (s *fakeSession) CollectResult(ctx context.Context) (domain.Result, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.finished {
		return domain.Result{}, fmt.Errorf("not finished")
	}
	s.c.recordLocked("collect:%s:%s", s.host.Addr, s.payload)
	res := domain.Result{Variables: []domain.Variable{{Name: s.payload, Data: []float64{1}}}}
	s.payload, s.started, s.finished = "", false, false
	return res, nil
}

func (s *fakeSession) Disconnect(ctx context.Context) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.held {
		s.c.reserved[s.host.Addr] -= s.threads
		s.held = false
		s.c.recordLocked("disconnect:%s", s.host.Addr)
	}
	s.state = client.Disconnected
	return nil
}

func (s *fakeSession) Messages(ctx context.Context) ([]string, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if !s.held {
		return nil, fmt.Errorf("no worker on %s", s.host.Addr)
	}
	return append([]string(nil), s.c.hosts[s.host.Addr].messages...), nil
}

func (s *fakeSession) Benchmark(ctx context.Context, payload []byte, threads int) (time.Duration, error) {
	return time.Duration(float64(time.Second) / float64(threads)), nil
}

func (s *fakeSession) Host() cluster.Host {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.host
}

func (s *fakeSession) Threads() int {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.threads
}

func (s *fakeSession) State() client.ConnState {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.state
}

func testConfig() Config {
	return Config{
		TickInterval:    time.Millisecond,
		MaxTickInterval: 5 * time.Millisecond,
		PollTimeout:     time.Second,
		AbortTimeout:    time.Second,
	}
}

func newTestScheduler(c *fakeCluster, cfg Config) *Scheduler {
	reg := registry.NewRegistry(c, c, registry.Config{RequestTimeout: time.Second}, stats.NilStatsReceiver())
	return NewScheduler(reg, c.newSession, nil, cfg, stats.NilStatsReceiver())
}

// recordModelCalls makes every model evaluation show up in the cluster log.
func recordModelCalls(s *Scheduler, c *fakeCluster) {
	s.newModel = func(p perf.Policy, curve perf.Curve) perf.Model {
		m := perf.NewModel(p, curve)
		threads := m.Threads
		m.Threads = func(pm int) float64 {
			c.record("model")
			return threads(pm)
		}
		return m
	}
}

func simpleJobs(n int) ([]domain.Job, []*domain.SimpleJob) {
	jobs := []domain.Job{}
	simple := []*domain.SimpleJob{}
	for i := 0; i < n; i++ {
		j := domain.NewSimpleJob(fmt.Sprintf("job%d", i), []byte(fmt.Sprintf("job%d", i)))
		jobs = append(jobs, j)
		simple = append(simple, j)
	}
	return jobs, simple
}
