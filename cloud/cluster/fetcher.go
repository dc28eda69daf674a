package cluster

//go:generate mockgen -source=fetcher.go -package=cluster -destination=fetcher_mock.go

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/common/endpoints"
	"github.com/twitter/remotesim/workerapi"
)

// Fetcher returns the full listing of hosts known to the directory.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Host, error)
}

// Prober queries a single host for its live slot status.
type Prober interface {
	HostStatus(ctx context.Context, addr string) (workerapi.HostStatus, error)
}

type httpFetcher struct {
	dirAddr string
	client  endpoints.HTTPClient
}

// NewHttpFetcher returns a Fetcher reading the directory at dirAddr
// (host:port or a full http URL).
func NewHttpFetcher(dirAddr string, client endpoints.HTTPClient) Fetcher {
	return &httpFetcher{dirAddr: dirAddr, client: client}
}

func BaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	return "http://" + addr
}

func (f *httpFetcher) Fetch(ctx context.Context) ([]Host, error) {
	uri := BaseURL(f.dirAddr) + workerapi.HostsPath
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", uri)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", uri, resp.Status)
	}
	var list workerapi.HostList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", uri)
	}
	hosts := make([]Host, 0, len(list.Hosts))
	for _, e := range list.Hosts {
		hosts = append(hosts, HostFromEntry(e))
	}
	log.Debugf("Fetched %d hosts from %s", len(hosts), uri)
	return hosts, nil
}

// HostFromEntry converts a directory record. The directory reports a
// benchmark time, so speed is its inverse. Free slots are unknown until the
// host is probed and start out equal to the total.
func HostFromEntry(e workerapi.HostEntry) Host {
	addr := e.Addr
	if e.RelayAddr != "" {
		addr = e.RelayAddr
	}
	speed := 0.0
	if e.EvalTime > 0 {
		speed = 1 / e.EvalTime
	}
	return Host{
		Addr:       addr,
		TotalSlots: e.Slots,
		FreeSlots:  e.Slots,
		Speed:      speed,
		Responding: true,
	}
}
