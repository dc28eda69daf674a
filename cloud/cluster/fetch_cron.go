package cluster

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// FetchCron calls Fetch on every tick and hands successful listings to
// onFetch. Failed fetches are logged and retried on the next tick.
type FetchCron struct {
	ticker  *time.Ticker
	f       Fetcher
	onFetch func([]Host)
	timeout time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewFetchCron(f Fetcher, period, timeout time.Duration, onFetch func([]Host)) *FetchCron {
	ctx, cancel := context.WithCancel(context.Background())
	c := &FetchCron{
		ticker:  time.NewTicker(period),
		f:       f,
		onFetch: onFetch,
		timeout: timeout,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.loop(ctx)
	return c
}

func (c *FetchCron) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.ticker.Stop()
			return
		case <-c.ticker.C:
			fctx, cancel := context.WithTimeout(ctx, c.timeout)
			hosts, err := c.f.Fetch(fctx)
			cancel()
			if err != nil {
				log.Infof("Periodic host fetch failed, will retry: %v", err)
				continue
			}
			c.onFetch(hosts)
		}
	}
}

// Close stops the cron and waits for an in-progress fetch to finish.
func (c *FetchCron) Close() {
	c.cancel()
	<-c.done
}
