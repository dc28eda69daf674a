package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/endpoints"
	rerrors "github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/workerapi"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultConnectRetries = 2
	DefaultHttpTries      = 1
)

type Config struct {
	// Bound on every request made by a session or prober.
	RequestTimeout time.Duration
	// Attempts per request, handled by the http client.
	HttpTries int
	// Extra Connect attempts, with exponential backoff between them.
	ConnectRetries uint64
	// Sent with slot reservations, "name:password".
	UserID string
	// Overrides the http client, for tests.
	Client endpoints.HTTPClient
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HttpTries <= 0 {
		c.HttpTries = DefaultHttpTries
	}
	if c.Client == nil {
		c.Client = endpoints.MakePesterClient(c.HttpTries, c.RequestTimeout)
	}
	return c
}

// NewSessionFactory returns a factory of HTTP sessions sharing one client.
func NewSessionFactory(cfg Config) SessionFactory {
	cfg = cfg.withDefaults()
	return func() Session {
		return &httpSession{cfg: cfg}
	}
}

type httpSession struct {
	cfg Config

	mu       sync.Mutex
	state    ConnState
	host     cluster.Host
	threads  int
	workerID string
	loaded   bool
	started  bool
	finished bool
}

func (s *httpSession) Host() cluster.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *httpSession) Threads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads
}

func (s *httpSession) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *httpSession) Connect(ctx context.Context, host cluster.Host, threads int) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return fmt.Errorf("session already connected to %s", s.host.Addr)
	}
	s.host = host
	s.threads = threads
	s.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	retry := backoff.WithMaxRetries(b, s.cfg.ConnectRetries)

	for {
		err := s.connectOnce(ctx, host, threads)
		if err == nil {
			log.WithFields(log.Fields{"host": host.Addr, "threads": threads, "worker": s.workerID}).
				Info("Session connected")
			return nil
		}
		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			s.setState(Disconnected)
			return rerrors.NewError(errors.Wrapf(err, "connecting to %s", host.Addr), rerrors.HostUnresponsive)
		}
		log.Debugf("Connect to %s failed, retrying in %v: %v", host.Addr, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			s.setState(Disconnected)
			return rerrors.NewError(errors.Wrapf(ctx.Err(), "connecting to %s", host.Addr), rerrors.HostUnresponsive)
		}
	}
}

func (s *httpSession) connectOnce(ctx context.Context, host cluster.Host, threads int) error {
	var status workerapi.HostStatus
	if err := s.do(ctx, "GET", workerapi.StatusPath, nil, &status); err != nil {
		return err
	}
	s.setState(HostConnected)
	if status.FreeSlots < threads {
		return fmt.Errorf("host %s has %d free slots, need %d", host.Addr, status.FreeSlots, threads)
	}

	body, _ := json.Marshal(workerapi.SlotRequest{Threads: threads, User: s.cfg.UserID})
	var grant workerapi.SlotGrant
	if err := s.do(ctx, "POST", workerapi.SlotsPath, body, &grant); err != nil {
		return err
	}
	s.mu.Lock()
	s.workerID = grant.WorkerID
	s.state = WorkerConnected
	s.mu.Unlock()
	return nil
}

func (s *httpSession) LoadJob(ctx context.Context, payload []byte) error {
	if err := s.requireWorker("load"); err != nil {
		return err
	}
	if err := s.do(ctx, "POST", s.workerPath(workerapi.OpLoad), payload, nil); err != nil {
		return s.transportFailure(err, "load")
	}
	s.mu.Lock()
	s.loaded, s.started, s.finished = true, false, false
	s.mu.Unlock()
	return nil
}

func (s *httpSession) Start(ctx context.Context) error {
	if err := s.requireWorker("start"); err != nil {
		return err
	}
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		return rerrors.Errorf(rerrors.JobTransportFailure, "start on %s: no job loaded", s.Host().Addr)
	}
	if err := s.do(ctx, "POST", s.workerPath(workerapi.OpStart), nil, nil); err != nil {
		return s.transportFailure(err, "start")
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *httpSession) PollProgress(ctx context.Context) (Progress, error) {
	if err := s.requireWorker("poll"); err != nil {
		return Progress{}, err
	}
	var p workerapi.Progress
	if err := s.do(ctx, "GET", s.workerPath(workerapi.OpProgress), nil, &p); err != nil {
		return Progress{}, s.transportFailure(err, "poll")
	}
	switch p.State {
	case workerapi.StateInProgress:
		return Progress{Fraction: p.Fraction, State: RunInProgress}, nil
	case workerapi.StateFinished:
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		return Progress{Fraction: 1, State: RunFinished}, nil
	default:
		return Progress{Fraction: -1, State: RunIdle}, nil
	}
}

func (s *httpSession) Abort(ctx context.Context) error {
	s.mu.Lock()
	running := s.state == WorkerConnected && s.started && !s.finished
	s.mu.Unlock()
	if !running {
		return nil
	}
	if err := s.do(ctx, "POST", s.workerPath(workerapi.OpAbort), nil, nil); err != nil {
		return rerrors.NewError(errors.Wrapf(err, "abort on %s", s.Host().Addr), rerrors.JobTransportFailure)
	}
	s.mu.Lock()
	s.started, s.loaded = false, false
	s.mu.Unlock()
	return nil
}

func (s *httpSession) CollectResult(ctx context.Context) (domain.Result, error) {
	if err := s.requireWorker("collect"); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()
	if !finished {
		return domain.Result{}, rerrors.Errorf(rerrors.JobTransportFailure,
			"collect on %s: completion not observed", s.Host().Addr)
	}
	var res workerapi.Results
	if err := s.do(ctx, "GET", s.workerPath(workerapi.OpResults), nil, &res); err != nil {
		return domain.Result{}, s.transportFailure(err, "collect")
	}
	s.mu.Lock()
	s.loaded, s.started, s.finished = false, false, false
	s.mu.Unlock()

	out := domain.Result{Variables: make([]domain.Variable, 0, len(res.Variables))}
	for _, v := range res.Variables {
		out.Variables = append(out.Variables, domain.Variable{
			Name: v.Name, Alias: v.Alias, Quantity: v.Quantity, Unit: v.Unit, Data: v.Data,
		})
	}
	return out, nil
}

func (s *httpSession) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	workerID := s.workerID
	s.state = Disconnected
	s.workerID = ""
	s.loaded, s.started, s.finished = false, false, false
	s.mu.Unlock()
	if workerID == "" {
		return nil
	}
	err := s.do(ctx, "POST", workerapi.WorkerPath(workerID, workerapi.OpRelease), nil, nil)
	if err != nil {
		return errors.Wrapf(err, "releasing worker %s on %s", workerID, s.Host().Addr)
	}
	log.WithFields(log.Fields{"host": s.Host().Addr, "worker": workerID}).Info("Session disconnected")
	return nil
}

func (s *httpSession) Messages(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	workerID := s.workerID
	s.mu.Unlock()
	if workerID == "" {
		return nil, fmt.Errorf("messages: no worker reserved on %s", s.Host().Addr)
	}
	var res workerapi.Messages
	if err := s.do(ctx, "GET", workerapi.WorkerPath(workerID, workerapi.OpMessages), nil, &res); err != nil {
		return nil, errors.Wrapf(err, "messages from worker %s on %s", workerID, s.Host().Addr)
	}
	return res.Messages, nil
}

func (s *httpSession) Benchmark(ctx context.Context, payload []byte, threads int) (time.Duration, error) {
	if s.State() == Disconnected {
		return 0, fmt.Errorf("benchmark: session not connected")
	}
	var res workerapi.BenchmarkResult
	path := workerapi.BenchmarkPath + "?threads=" + strconv.Itoa(threads)
	if err := s.do(ctx, "POST", path, payload, &res); err != nil {
		return 0, errors.Wrapf(err, "benchmark with %d threads on %s", threads, s.Host().Addr)
	}
	return time.Duration(res.Seconds * float64(time.Second)), nil
}

func (s *httpSession) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *httpSession) requireWorker(op string) error {
	if st := s.State(); st != WorkerConnected {
		return rerrors.Errorf(rerrors.JobTransportFailure, "%s on %s: session is %s", op, s.Host().Addr, st)
	}
	return nil
}

// transportFailure drops the session to Disconnected. The worker id is kept
// so a later Disconnect still tries to release the reservation.
func (s *httpSession) transportFailure(err error, op string) error {
	s.mu.Lock()
	s.state = Disconnected
	s.loaded, s.started, s.finished = false, false, false
	addr := s.host.Addr
	s.mu.Unlock()
	log.WithFields(log.Fields{"host": addr, "op": op}).Infof("Session transport failure: %v", err)
	return rerrors.NewError(errors.Wrapf(err, "%s on %s", op, addr), rerrors.JobTransportFailure)
}

func (s *httpSession) workerPath(op string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workerapi.WorkerPath(s.workerID, op)
}

func (s *httpSession) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	return doJSON(ctx, s.cfg, cluster.BaseURL(s.Host().Addr)+path, method, body, out)
}

func doJSON(ctx context.Context, cfg Config, uri, method string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, uri, rd)
	if err != nil {
		return err
	}
	resp, err := cfg.Client.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e workerapi.ErrorResponse
		data, _ := ioutil.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", method, uri, resp.Status, e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, uri, resp.Status)
	}
	if out == nil {
		io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
