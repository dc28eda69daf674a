package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/workerapi"
)

func TestHttpFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, workerapi.HostsPath, r.URL.Path)
		json.NewEncoder(w).Encode(workerapi.HostList{Hosts: []workerapi.HostEntry{
			{Addr: "10.0.0.1:4000", Slots: 8, EvalTime: 0.5},
			{Addr: "10.0.0.2:4000", RelayAddr: "relay:4100", Slots: 4, EvalTime: 2},
		}})
	}))
	defer srv.Close()

	f := NewHttpFetcher(srv.URL, http.DefaultClient)
	got, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Host{Addr: "10.0.0.1:4000", TotalSlots: 8, FreeSlots: 8, Speed: 2, Responding: true}, got[0])
	assert.Equal(t, "relay:4100", got[1].Addr)
	assert.Equal(t, 0.5, got[1].Speed)
}

func TestHttpFetcherError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHttpFetcher(srv.URL, http.DefaultClient).Fetch(context.Background())
	assert.Error(t, err)
}

type fakeFetcher struct {
	mu    sync.Mutex
	hosts []Host
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hosts, f.err
}

func TestFetchCron(t *testing.T) {
	f := &fakeFetcher{hosts: hosts("a:1")}
	ch := make(chan []Host, 10)
	c := NewFetchCron(f, time.Millisecond, time.Second, func(h []Host) {
		select {
		case ch <- h:
		default:
		}
	})
	defer c.Close()

	select {
	case got := <-ch:
		assert.Equal(t, hosts("a:1"), got)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch cron never delivered")
	}
}
