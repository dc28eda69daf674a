package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/workerapi"
)

func host(addr string, slots int, speed float64) cluster.Host {
	return cluster.Host{Addr: addr, TotalSlots: slots, FreeSlots: slots, Speed: speed, Responding: true}
}

func status(total, free int) workerapi.HostStatus {
	return workerapi.HostStatus{TotalSlots: total, FreeSlots: free}
}

func addrs(hosts []cluster.Host) []string {
	out := []string{}
	for _, h := range hosts {
		out = append(out, h.Addr)
	}
	return out
}

func setup(t *testing.T, hosts ...cluster.Host) (Registry, *cluster.MockFetcher, *cluster.MockProber, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	fetcher := cluster.NewMockFetcher(ctrl)
	prober := cluster.NewMockProber(ctrl)
	r := NewRegistry(fetcher, prober, Config{}, stats.NilStatsReceiver())
	fetcher.EXPECT().Fetch(gomock.Any()).Return(hosts, nil)
	require.NoError(t, r.Connect(context.Background()))
	return r, fetcher, prober, ctrl
}

func TestRefresh(t *testing.T) {
	r, fetcher, _, ctrl := setup(t, host("slow:1", 4, 1), host("fast:1", 4, 2))
	defer ctrl.Finish()
	assert.True(t, r.IsConnected())
	assert.Equal(t, []string{"fast:1", "slow:1"}, addrs(r.Hosts()))
	assert.Equal(t, 8, r.TotalFreeSlots())

	fetcher.EXPECT().Fetch(gomock.Any()).Return(nil, fmt.Errorf("connection refused"))
	hosts, err := r.Refresh(context.Background())
	assert.Empty(t, hosts)
	assert.True(t, errors.Is(err, errors.RegistryUnreachable))
	assert.False(t, r.IsConnected())
	assert.Empty(t, r.Hosts())

	fetcher.EXPECT().Fetch(gomock.Any()).Return([]cluster.Host{host("other:1", 2, 1)}, nil)
	hosts, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"other:1"}, addrs(hosts))
	assert.True(t, r.IsConnected())
}

func TestBestHostPrefersFastest(t *testing.T) {
	r, _, prober, ctrl := setup(t, host("a:1", 4, 1), host("b:1", 4, 3), host("c:1", 4, 2))
	defer ctrl.Finish()
	prober.EXPECT().HostStatus(gomock.Any(), "b:1").Return(status(4, 3), nil)

	h, ok := r.BestHost(context.Background(), 2)
	require.True(t, ok)
	assert.Equal(t, "b:1", h.Addr)
	assert.Equal(t, 3, h.FreeSlots, "live status replaces the listing")
	assert.Equal(t, 11, r.TotalFreeSlots(), "catalog records live free slots")
}

func TestBestHostPurgesUnresponsive(t *testing.T) {
	r, _, prober, ctrl := setup(t, host("a:1", 4, 1), host("b:1", 4, 3))
	defer ctrl.Finish()
	gomock.InOrder(
		prober.EXPECT().HostStatus(gomock.Any(), "b:1").Return(workerapi.HostStatus{}, fmt.Errorf("timeout")),
		prober.EXPECT().HostStatus(gomock.Any(), "a:1").Return(status(4, 4), nil),
	)

	h, ok := r.BestHost(context.Background(), 4)
	require.True(t, ok)
	assert.Equal(t, "a:1", h.Addr)
	assert.Equal(t, []string{"a:1"}, addrs(r.Hosts()))
	assert.False(t, r.IsBlacklisted("b:1"), "unresponsive hosts are not blacklisted")
}

func TestBestHostFallsBackToLiveSlots(t *testing.T) {
	stale := host("a:1", 4, 5)
	stale.FreeSlots = 0
	r, _, prober, ctrl := setup(t, stale, host("b:1", 2, 1))
	defer ctrl.Finish()
	prober.EXPECT().HostStatus(gomock.Any(), "a:1").Return(status(4, 4), nil)

	h, ok := r.BestHost(context.Background(), 4)
	require.True(t, ok)
	assert.Equal(t, "a:1", h.Addr)
}

func TestBestHostNone(t *testing.T) {
	r, _, prober, ctrl := setup(t, host("a:1", 2, 1))
	defer ctrl.Finish()
	prober.EXPECT().HostStatus(gomock.Any(), "a:1").Return(status(2, 1), nil).Times(2)

	_, ok := r.BestHost(context.Background(), 2)
	assert.False(t, ok)
	_, ok = r.BestHost(context.Background(), 1, "a:1")
	assert.False(t, ok, "excluded")
	h, ok := r.BestHost(context.Background(), 1)
	assert.True(t, ok)
	assert.Equal(t, "a:1", h.Addr)
}

func TestBlacklist(t *testing.T) {
	r, fetcher, prober, ctrl := setup(t, host("a:1", 4, 2), host("b:1", 4, 1))
	defer ctrl.Finish()
	prober.EXPECT().HostStatus(gomock.Any(), "b:1").Return(status(4, 4), nil).AnyTimes()
	prober.EXPECT().HostStatus(gomock.Any(), "a:1").Return(status(4, 4), nil).AnyTimes()

	r.Blacklist("a:1")
	h, ok := r.BestHost(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "b:1", h.Addr)

	fetcher.EXPECT().Fetch(gomock.Any()).Return([]cluster.Host{host("a:1", 4, 2), host("b:1", 4, 1)}, nil)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, r.IsBlacklisted("a:1"), "refresh keeps the blacklist")
	assert.Equal(t, []string{"b:1"}, addrs(r.MatchingHosts(context.Background(), 0, 1)))
	assert.Equal(t, []string{"a:1"}, r.Blacklisted())
	assert.Equal(t, 4, r.TotalFreeSlots())

	r.Reset()
	assert.Empty(t, r.Blacklisted())
	assert.Empty(t, r.Hosts())
	assert.False(t, r.IsConnected())
}

func TestMatchingHosts(t *testing.T) {
	r, _, prober, ctrl := setup(t, host("a:1", 8, 3), host("b:1", 8, 2), host("c:1", 8, 0.5), host("d:1", 2, 3))
	defer ctrl.Finish()
	prober.EXPECT().HostStatus(gomock.Any(), "a:1").Return(status(8, 8), nil)
	prober.EXPECT().HostStatus(gomock.Any(), "b:1").Return(status(8, 1), nil)

	hosts := r.MatchingHosts(context.Background(), 1, 4)
	assert.Equal(t, []string{"a:1"}, addrs(hosts))
}

func TestTopology(t *testing.T) {
	r, _, _, ctrl := setup(t, host("a:1", 8, 1), host("b:1", 4, 1), host("c:1", 8, 1))
	defer ctrl.Finish()
	assert.Equal(t, perf.Topology{NumHosts: 2, CoresPerHost: 8}, r.Topology())
	r.Blacklist("a:1")
	assert.Equal(t, perf.Topology{NumHosts: 1, CoresPerHost: 8}, r.Topology())
}

func TestConcurrentRefreshAndSelect(t *testing.T) {
	hosts := []cluster.Host{host("a:1", 4, 2), host("b:1", 4, 1)}
	r, fetcher, prober, ctrl := setup(t, hosts...)
	defer ctrl.Finish()
	fetcher.EXPECT().Fetch(gomock.Any()).Return(hosts, nil).AnyTimes()
	prober.EXPECT().HostStatus(gomock.Any(), gomock.Any()).Return(status(4, 4), nil).AnyTimes()

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			h, ok := r.BestHost(context.Background(), 4)
			assert.True(t, ok)
			assert.Equal(t, "a:1", h.Addr)
		}()
	}
	wg.Wait()
}
