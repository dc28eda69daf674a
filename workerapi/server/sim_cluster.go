package server

import (
	"net/http/httptest"

	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/workerapi"
)

// SimCluster runs a directory and simulated hosts on local test servers.
type SimCluster struct {
	Directory   *Directory
	DirServer   *httptest.Server
	Hosts       []*Host
	HostServers []*httptest.Server
}

func StartSimCluster(stat stats.StatsReceiver, behaviors ...HostBehavior) *SimCluster {
	c := &SimCluster{Directory: NewDirectory()}
	entries := []workerapi.HostEntry{}
	for _, b := range behaviors {
		h := NewHost(b, stat)
		ts := httptest.NewServer(h.Handler())
		c.Hosts = append(c.Hosts, h)
		c.HostServers = append(c.HostServers, ts)
		entries = append(entries, workerapi.HostEntry{Addr: ts.URL, Slots: b.Slots, EvalTime: b.EvalTime})
	}
	c.Directory.Set(entries...)
	c.DirServer = httptest.NewServer(c.Directory)
	return c
}

func (c *SimCluster) DirAddr() string {
	return c.DirServer.URL
}

func (c *SimCluster) HostAddr(i int) string {
	return c.HostServers[i].URL
}

func (c *SimCluster) Close() {
	c.DirServer.Close()
	for _, s := range c.HostServers {
		s.Close()
	}
}
