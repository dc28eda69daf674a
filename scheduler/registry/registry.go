// Package registry keeps the catalog of worker hosts and answers capacity
// and speed queries for the scheduler. The catalog and the blacklist are the
// only state shared between scheduling waves; callers only ever receive
// copies of Host values.
package registry

//go:generate mockgen -source=registry.go -package=registry -destination=registry_mock.go

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/perf"
)

type Registry interface {
	// Contacts the directory and loads the catalog.
	Connect(ctx context.Context) error
	IsConnected() bool

	// Replaces the catalog with the directory listing. On failure the
	// catalog is emptied, the registry is marked not connected and the
	// error is a RegistryUnreachable.
	Refresh(ctx context.Context) ([]cluster.Host, error)

	// Fastest host advertising requiredSlots free slots, validated live.
	// Falls back to the first live host with enough free slots.
	BestHost(ctx context.Context, requiredSlots int, exclude ...string) (cluster.Host, bool)

	// Every live host at or above minSpeed with requiredSlots free slots,
	// fastest first.
	MatchingHosts(ctx context.Context, minSpeed float64, requiredSlots int, exclude ...string) []cluster.Host

	// Excludes addr from selection until Reset. Survives Refresh.
	Blacklist(addr string)
	IsBlacklisted(addr string) bool
	Blacklisted() []string

	// Clears the catalog and the blacklist.
	Reset()

	// Hosts returns the catalog without blacklisted hosts, fastest first.
	Hosts() []cluster.Host

	// The number of hosts sharing the largest slot count, and that count.
	Topology() perf.Topology

	// Sum of the last known free slots of selectable hosts.
	TotalFreeSlots() int

	// Refreshes the catalog every interval until ctx is done.
	Watch(ctx context.Context, interval time.Duration)
}

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultProbeBurst     = 8
)

type Config struct {
	// Bound on directory fetches and host probes.
	RequestTimeout time.Duration
	// Host probes per second, 0 for no limit.
	ProbeRate  float64
	ProbeBurst int
}

type registry struct {
	fetcher cluster.Fetcher
	prober  cluster.Prober
	cfg     Config
	limiter *rate.Limiter
	stat    stats.StatsReceiver

	connected atomic.Bool

	mu        sync.RWMutex
	state     *cluster.State
	blacklist map[string]bool
	// Hosts that failed validation, removed on the next mutation.
	unresponsive map[string]bool
}

func NewRegistry(fetcher cluster.Fetcher, prober cluster.Prober, cfg Config, stat stats.StatsReceiver) Registry {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ProbeBurst <= 0 {
		cfg.ProbeBurst = DefaultProbeBurst
	}
	limit := rate.Inf
	if cfg.ProbeRate > 0 {
		limit = rate.Limit(cfg.ProbeRate)
	}
	return &registry{
		fetcher:      fetcher,
		prober:       prober,
		cfg:          cfg,
		limiter:      rate.NewLimiter(limit, cfg.ProbeBurst),
		stat:         stat.Scope("registry"),
		state:        cluster.NewState(nil),
		blacklist:    make(map[string]bool),
		unresponsive: make(map[string]bool),
	}
}

func (r *registry) Connect(ctx context.Context) error {
	_, err := r.Refresh(ctx)
	return err
}

func (r *registry) IsConnected() bool {
	return r.connected.Load()
}

func (r *registry) Refresh(ctx context.Context) ([]cluster.Host, error) {
	defer r.stat.Latency(stats.RegistryRefreshLatency_ms).Time().Stop()
	fctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	hosts, err := r.fetcher.Fetch(fctx)
	cancel()
	if err != nil {
		r.mu.Lock()
		r.state.SetAndDiff(nil)
		r.unresponsive = make(map[string]bool)
		r.updateGauges()
		r.mu.Unlock()
		r.connected.Store(false)
		r.stat.Counter(stats.RegistryUnreachableCounter).Inc(1)
		log.Infof("Host directory unreachable: %v", err)
		return []cluster.Host{}, errors.NewError(err, errors.RegistryUnreachable)
	}
	r.apply(hosts)
	r.connected.Store(true)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Sorted(), nil
}

func (r *registry) apply(hosts []cluster.Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.SetAndDiff(hosts)
	r.unresponsive = make(map[string]bool)
	r.updateGauges()
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Registry catalog:\n%s", spew.Sdump(r.state.Sorted()))
	}
}

// Takes the write lock, removes hosts queued as unresponsive, then runs f.
func (r *registry) mutate(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr := range r.unresponsive {
		if r.state.Remove(addr) {
			log.Infof("Purged unresponsive host %s", addr)
			r.stat.Counter(stats.RegistryPurgedHostsCounter).Inc(1)
		}
	}
	r.unresponsive = make(map[string]bool)
	if f != nil {
		f()
	}
	r.updateGauges()
}

// Must hold the write lock.
func (r *registry) updateGauges() {
	r.stat.Gauge(stats.RegistryKnownHostsGauge).Update(int64(r.state.Len()))
	r.stat.Gauge(stats.RegistryBlacklistedHostsGauge).Update(int64(len(r.blacklist)))
	r.stat.Gauge(stats.RegistryFreeSlotsGauge).Update(int64(r.totalFreeSlots()))
}

// Selectable hosts in speed order, excluding blacklisted, queued for purge
// and explicitly excluded addresses.
func (r *registry) candidates(exclude []string) []cluster.Host {
	skip := make(map[string]bool, len(exclude))
	for _, addr := range exclude {
		skip[addr] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []cluster.Host{}
	for _, h := range r.state.Sorted() {
		if skip[h.Addr] || r.blacklist[h.Addr] || r.unresponsive[h.Addr] {
			continue
		}
		out = append(out, h)
	}
	return out
}

// validate probes h and records its live status. Returns false if the host
// did not answer, after queueing it for purge.
func (r *registry) validate(ctx context.Context, h cluster.Host) (cluster.Host, bool) {
	if err := r.limiter.Wait(ctx); err != nil {
		return h, false
	}
	pctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	watch := r.stat.Latency(stats.RegistryProbeLatency_ms).Time()
	status, err := r.prober.HostStatus(pctx, h.Addr)
	watch.Stop()
	cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if ctx.Err() == nil {
			log.Infof("Host %s did not answer status probe, queued for purge: %v", h.Addr, err)
			r.unresponsive[h.Addr] = true
		}
		h.Responding = false
		return h, false
	}
	h.FreeSlots = status.FreeSlots
	if status.TotalSlots > 0 {
		h.TotalSlots = status.TotalSlots
	}
	h.Responding = true
	if _, ok := r.state.Get(h.Addr); ok {
		r.state.Put(h)
	}
	return h, true
}

func (r *registry) BestHost(ctx context.Context, requiredSlots int, exclude ...string) (cluster.Host, bool) {
	defer r.mutate(nil)
	candidates := r.candidates(exclude)
	tried := make(map[string]bool)
	for _, h := range candidates {
		if h.TotalSlots < requiredSlots || h.FreeSlots < requiredSlots {
			continue
		}
		tried[h.Addr] = true
		if live, ok := r.validate(ctx, h); ok && live.FreeSlots >= requiredSlots {
			return live, true
		}
	}
	for _, h := range candidates {
		if tried[h.Addr] {
			continue
		}
		if live, ok := r.validate(ctx, h); ok && live.FreeSlots >= requiredSlots {
			log.Debugf("BestHost fell back to %s", live)
			return live, true
		}
	}
	return cluster.Host{}, false
}

func (r *registry) MatchingHosts(ctx context.Context, minSpeed float64, requiredSlots int, exclude ...string) []cluster.Host {
	defer r.mutate(nil)
	out := []cluster.Host{}
	for _, h := range r.candidates(exclude) {
		if h.Speed < minSpeed || h.TotalSlots < requiredSlots {
			continue
		}
		if live, ok := r.validate(ctx, h); ok && live.FreeSlots >= requiredSlots {
			out = append(out, live)
		}
	}
	return out
}

func (r *registry) Blacklist(addr string) {
	r.mutate(func() {
		if !r.blacklist[addr] {
			log.Infof("Blacklisting host %s", addr)
		}
		r.blacklist[addr] = true
	})
}

func (r *registry) IsBlacklisted(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blacklist[addr]
}

func (r *registry) Blacklisted() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.blacklist))
	for addr := range r.blacklist {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (r *registry) Reset() {
	r.mutate(func() {
		r.state.SetAndDiff(nil)
		r.blacklist = make(map[string]bool)
	})
	r.connected.Store(false)
}

func (r *registry) Hosts() []cluster.Host {
	return r.candidates(nil)
}

func (r *registry) Topology() perf.Topology {
	topo := perf.Topology{}
	for _, h := range r.candidates(nil) {
		switch {
		case h.TotalSlots > topo.CoresPerHost:
			topo = perf.Topology{NumHosts: 1, CoresPerHost: h.TotalSlots}
		case h.TotalSlots == topo.CoresPerHost && h.TotalSlots > 0:
			topo.NumHosts++
		}
	}
	return topo
}

func (r *registry) TotalFreeSlots() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalFreeSlots()
}

// Must hold a lock.
func (r *registry) totalFreeSlots() int {
	total := 0
	for _, h := range r.state.Sorted() {
		if !r.blacklist[h.Addr] && !r.unresponsive[h.Addr] {
			total += h.FreeSlots
		}
	}
	return total
}

func (r *registry) Watch(ctx context.Context, interval time.Duration) {
	cron := cluster.NewFetchCron(r.fetcher, interval, r.cfg.RequestTimeout, func(hosts []cluster.Host) {
		r.apply(hosts)
		r.connected.Store(true)
	})
	go func() {
		<-ctx.Done()
		cron.Close()
	}()
}
