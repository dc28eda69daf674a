package client

import (
	"context"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/workerapi"
)

type prober struct {
	cfg Config
}

// NewProber returns a cluster.Prober asking hosts for their slot status.
func NewProber(cfg Config) cluster.Prober {
	return &prober{cfg: cfg.withDefaults()}
}

func (p *prober) HostStatus(ctx context.Context, addr string) (workerapi.HostStatus, error) {
	var status workerapi.HostStatus
	err := doJSON(ctx, p.cfg, cluster.BaseURL(addr)+workerapi.StatusPath, "GET", nil, &status)
	return status, err
}
