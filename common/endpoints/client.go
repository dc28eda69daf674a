package endpoints

import (
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

const DefaultHttpTries = 3

// HTTPClient is the subset of pester.Client used by callers, so tests can
// substitute a plain http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MakePesterClient returns a retrying client with exponential backoff.
// Each attempt is bounded by timeout. tries <= 1 means a single attempt.
func MakePesterClient(tries int, timeout time.Duration) *pester.Client {
	if tries < 1 {
		tries = 1
	}
	client := pester.NewExtendedClient(&http.Client{Timeout: timeout})
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = tries
	client.KeepLog = false
	client.LogHook = func(e pester.ErrEntry) {
		log.Debugf("Retrying after failed attempt: %+v", e)
	}
	return client
}
