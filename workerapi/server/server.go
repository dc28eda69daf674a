// Package server simulates a host directory and worker hosts speaking the
// workerapi protocol. Simulated jobs progress with wall time, and hosts can
// be told to stall, crash, fail polls or stop answering. Workers keep a log
// of the current job, served on the messages operation.
package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/luci/go-render/render"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/workerapi"
)

// HostBehavior controls a simulated host.
type HostBehavior struct {
	Slots int
	// Reference benchmark time reported to the directory, lower is faster.
	EvalTime float64
	// Wall time of one job on a single thread.
	JobDuration time.Duration
	// Progress stops at StallAt and the job never finishes.
	Stall   bool
	StallAt float64
	// When above 0, jobs stop at this fraction and the worker reports idle.
	CrashAt float64
	// Every worker request answers 500.
	FailPolls bool
	// Status and slot requests answer 503.
	Unresponsive bool
}

type simWorker struct {
	threads   int
	payload   []byte
	loaded    bool
	startedAt time.Time
	running   bool
	aborted   bool
	messages  []string
}

// Host is an http.Handler simulating one worker host.
type Host struct {
	mu       sync.Mutex
	behavior HostBehavior
	workers  map[string]*simWorker
	nextID   int
	now      func() time.Time
	stat     stats.StatsReceiver
}

func NewHost(b HostBehavior, stat stats.StatsReceiver) *Host {
	if b.JobDuration <= 0 {
		b.JobDuration = time.Second
	}
	return &Host{
		behavior: b,
		workers:  make(map[string]*simWorker),
		now:      time.Now,
		stat:     stat.Scope("simhost"),
	}
}

func (h *Host) SetBehavior(b HostBehavior) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b.JobDuration <= 0 {
		b.JobDuration = h.behavior.JobDuration
	}
	h.behavior = b
}

func (h *Host) Behavior() HostBehavior {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.behavior
}

// NumWorkers is the number of open reservations.
func (h *Host) NumWorkers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.workers)
}

func (h *Host) freeSlots() int {
	used := 0
	for _, w := range h.workers {
		used += w.threads
	}
	return h.behavior.Slots - used
}

// Simulated thread scaling.
func threadSpeedup(threads int) float64 {
	if threads < 1 {
		threads = 1
	}
	return math.Pow(float64(threads), 0.8)
}

func (h *Host) jobDuration(threads int) time.Duration {
	return time.Duration(float64(h.behavior.JobDuration) / threadSpeedup(threads))
}

func (h *Host) progress(w *simWorker) workerapi.Progress {
	if !w.running || w.aborted {
		return workerapi.Progress{State: workerapi.StateIdle, Fraction: -1}
	}
	frac := float64(h.now().Sub(w.startedAt)) / float64(h.jobDuration(w.threads))
	if h.behavior.Stall && frac > h.behavior.StallAt {
		frac = h.behavior.StallAt
	}
	if crash := h.behavior.CrashAt; crash > 0 && frac >= crash && frac < 1 {
		w.running = false
		w.messages = append(w.messages, fmt.Sprintf("Simulation crashed at %.0f%%: solver diverged", 100*crash))
		return workerapi.Progress{State: workerapi.StateIdle, Fraction: -1}
	}
	if frac >= 1 {
		return workerapi.Progress{State: workerapi.StateFinished, Fraction: 1}
	}
	return workerapi.Progress{State: workerapi.StateInProgress, Fraction: frac}
}

func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+workerapi.StatusPath, h.handleStatus)
	mux.HandleFunc("POST "+workerapi.SlotsPath, h.handleSlots)
	mux.HandleFunc("POST "+workerapi.BenchmarkPath, h.handleBenchmark)
	mux.HandleFunc(workerapi.WorkersPath+"{id}/{op}", h.handleWorker)
	return mux
}

func (h *Host) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stat.Counter("statusRequests").Inc(1)
	if h.behavior.Unresponsive {
		writeError(w, http.StatusServiceUnavailable, "host unresponsive")
		return
	}
	writeJSON(w, workerapi.HostStatus{TotalSlots: h.behavior.Slots, FreeSlots: h.freeSlots()})
}

func (h *Host) handleSlots(w http.ResponseWriter, r *http.Request) {
	var req workerapi.SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.behavior.Unresponsive {
		writeError(w, http.StatusServiceUnavailable, "host unresponsive")
		return
	}
	if req.Threads < 1 || req.Threads > h.freeSlots() {
		writeError(w, http.StatusConflict, fmt.Sprintf("requested %d slots, %d free", req.Threads, h.freeSlots()))
		return
	}
	h.nextID++
	id := strconv.Itoa(h.nextID)
	h.workers[id] = &simWorker{threads: req.Threads}
	h.stat.Counter("slotGrants").Inc(1)
	log.Debugf("Granted worker %s: %s", id, render.Render(req))
	writeJSON(w, workerapi.SlotGrant{WorkerID: id, Threads: req.Threads})
}

func (h *Host) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	threads, err := strconv.Atoi(r.URL.Query().Get("threads"))
	if err != nil || threads < 1 {
		writeError(w, http.StatusBadRequest, "threads must be a positive integer")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.behavior.Unresponsive {
		writeError(w, http.StatusServiceUnavailable, "host unresponsive")
		return
	}
	writeJSON(w, workerapi.BenchmarkResult{Seconds: h.jobDuration(threads).Seconds()})
}

func (h *Host) handleWorker(w http.ResponseWriter, r *http.Request) {
	id, op := r.PathValue("id"), r.PathValue("op")
	var body []byte
	if op == workerapi.OpLoad {
		var err error
		if body, err = ioutil.ReadAll(r.Body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.behavior.FailPolls {
		writeError(w, http.StatusInternalServerError, "worker crashed")
		return
	}
	wk, ok := h.workers[id]
	if !ok {
		writeError(w, http.StatusNotFound, "no such worker "+id)
		return
	}

	switch op {
	case workerapi.OpLoad:
		if wk.running && h.progress(wk).State == workerapi.StateInProgress {
			writeError(w, http.StatusConflict, "a job is running")
			return
		}
		*wk = simWorker{threads: wk.threads, payload: body, loaded: true}
		wk.messages = append(wk.messages, fmt.Sprintf("Loaded model of %d bytes", len(body)))
		writeJSON(w, struct{}{})
	case workerapi.OpStart:
		if !wk.loaded {
			writeError(w, http.StatusConflict, "nothing loaded")
			return
		}
		wk.running, wk.aborted, wk.startedAt = true, false, h.now()
		wk.messages = append(wk.messages, fmt.Sprintf("Simulation started with %d threads", wk.threads))
		h.stat.Counter("jobsStarted").Inc(1)
		writeJSON(w, struct{}{})
	case workerapi.OpProgress:
		writeJSON(w, h.progress(wk))
	case workerapi.OpAbort:
		wk.aborted = true
		wk.loaded = false
		wk.messages = append(wk.messages, "Simulation aborted")
		h.stat.Counter("jobsAborted").Inc(1)
		writeJSON(w, struct{}{})
	case workerapi.OpResults:
		if h.progress(wk).State != workerapi.StateFinished {
			writeError(w, http.StatusConflict, "job not finished")
			return
		}
		writeJSON(w, simulatedResults(wk))
		*wk = simWorker{threads: wk.threads}
	case workerapi.OpMessages:
		writeJSON(w, workerapi.Messages{Messages: append([]string{}, wk.messages...)})
	case workerapi.OpRelease:
		delete(h.workers, id)
		writeJSON(w, struct{}{})
	default:
		writeError(w, http.StatusNotFound, "unknown operation "+op)
	}
}

func simulatedResults(wk *simWorker) workerapi.Results {
	samples := make([]float64, 8)
	for i := range samples {
		samples[i] = float64(i) * float64(len(wk.payload))
	}
	return workerapi.Results{Variables: []workerapi.Variable{
		{Name: "Time", Quantity: "Time", Unit: "s", Data: []float64{0, 1, 2, 3, 4, 5, 6, 7}},
		{Name: "Output", Alias: "out", Data: samples},
	}}
}

// Directory is an http.Handler serving a host listing.
type Directory struct {
	mu          sync.Mutex
	entries     []workerapi.HostEntry
	unreachable bool
}

func NewDirectory(entries ...workerapi.HostEntry) *Directory {
	return &Directory{entries: entries}
}

func (d *Directory) Set(entries ...workerapi.HostEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = entries
}

func (d *Directory) SetUnreachable(unreachable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unreachable = unreachable
}

func (d *Directory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.URL.Path != workerapi.HostsPath {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if d.unreachable {
		writeError(w, http.StatusServiceUnavailable, "directory down")
		return
	}
	writeJSON(w, workerapi.HostList{Hosts: append([]workerapi.HostEntry(nil), d.entries...)})
}

// Serve listens on addr, accepting at most maxConns concurrent
// connections, and blocks until the listener fails.
func Serve(addr string, maxConns int, handler http.Handler) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if maxConns > 0 {
		l = netutil.LimitListener(l, maxConns)
	}
	log.Infof("Serving simulated workerapi on %s", l.Addr())
	return http.Serve(l, handler)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(workerapi.ErrorResponse{Error: msg})
}
