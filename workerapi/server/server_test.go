package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/workerapi"
)

func call(t *testing.T, h http.Handler, method, path string, body interface{}, out interface{}) int {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestHostJobLifecycle(t *testing.T) {
	host := NewHost(HostBehavior{Slots: 4, JobDuration: time.Second}, stats.NilStatsReceiver())
	now := time.Unix(1000, 0)
	host.now = func() time.Time { return now }
	h := host.Handler()

	var status workerapi.HostStatus
	require.Equal(t, http.StatusOK, call(t, h, "GET", workerapi.StatusPath, nil, &status))
	assert.Equal(t, workerapi.HostStatus{TotalSlots: 4, FreeSlots: 4}, status)

	var grant workerapi.SlotGrant
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.SlotsPath, workerapi.SlotRequest{Threads: 1}, &grant))
	assert.Equal(t, http.StatusConflict, call(t, h, "POST", workerapi.SlotsPath, workerapi.SlotRequest{Threads: 4}, nil))

	id := grant.WorkerID
	assert.Equal(t, http.StatusConflict, call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpStart), nil, nil))
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpLoad), []byte("model"), nil))
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpStart), nil, nil))

	now = now.Add(500 * time.Millisecond)
	var p workerapi.Progress
	require.Equal(t, http.StatusOK, call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpProgress), nil, &p))
	assert.Equal(t, workerapi.StateInProgress, p.State)
	assert.InDelta(t, 0.5, p.Fraction, 1e-9)
	assert.Equal(t, http.StatusConflict, call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpResults), nil, nil))

	now = now.Add(time.Second)
	require.Equal(t, http.StatusOK, call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpProgress), nil, &p))
	assert.Equal(t, workerapi.StateFinished, p.State)

	var res workerapi.Results
	require.Equal(t, http.StatusOK, call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpResults), nil, &res))
	assert.Len(t, res.Variables, 2)
	assert.Equal(t, 5.0, res.Variables[1].Data[1])

	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpRelease), nil, nil))
	assert.Equal(t, 0, host.NumWorkers())
}

func TestHostStallAndAbort(t *testing.T) {
	host := NewHost(HostBehavior{Slots: 2, JobDuration: time.Second, Stall: true, StallAt: 0.3}, stats.NilStatsReceiver())
	now := time.Unix(0, 0)
	host.now = func() time.Time { return now }
	h := host.Handler()

	var grant workerapi.SlotGrant
	call(t, h, "POST", workerapi.SlotsPath, workerapi.SlotRequest{Threads: 1}, &grant)
	call(t, h, "POST", workerapi.WorkerPath(grant.WorkerID, workerapi.OpLoad), []byte("m"), nil)
	call(t, h, "POST", workerapi.WorkerPath(grant.WorkerID, workerapi.OpStart), nil, nil)

	now = now.Add(time.Hour)
	var p workerapi.Progress
	call(t, h, "GET", workerapi.WorkerPath(grant.WorkerID, workerapi.OpProgress), nil, &p)
	assert.Equal(t, workerapi.Progress{State: workerapi.StateInProgress, Fraction: 0.3}, p)

	call(t, h, "POST", workerapi.WorkerPath(grant.WorkerID, workerapi.OpAbort), nil, nil)
	call(t, h, "GET", workerapi.WorkerPath(grant.WorkerID, workerapi.OpProgress), nil, &p)
	assert.Equal(t, workerapi.StateIdle, p.State)
}

func TestHostCrashIsLogged(t *testing.T) {
	host := NewHost(HostBehavior{Slots: 2, JobDuration: time.Second, CrashAt: 0.4}, stats.NilStatsReceiver())
	now := time.Unix(0, 0)
	host.now = func() time.Time { return now }
	h := host.Handler()

	var grant workerapi.SlotGrant
	call(t, h, "POST", workerapi.SlotsPath, workerapi.SlotRequest{Threads: 1}, &grant)
	id := grant.WorkerID
	call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpLoad), []byte("model"), nil)
	call(t, h, "POST", workerapi.WorkerPath(id, workerapi.OpStart), nil, nil)

	var p workerapi.Progress
	now = now.Add(200 * time.Millisecond)
	call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpProgress), nil, &p)
	assert.Equal(t, workerapi.StateInProgress, p.State)

	now = now.Add(time.Second)
	call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpProgress), nil, &p)
	assert.Equal(t, workerapi.StateIdle, p.State)
	call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpProgress), nil, &p)

	var msgs workerapi.Messages
	require.Equal(t, http.StatusOK, call(t, h, "GET", workerapi.WorkerPath(id, workerapi.OpMessages), nil, &msgs))
	assert.Equal(t, []string{
		"Loaded model of 5 bytes",
		"Simulation started with 1 threads",
		"Simulation crashed at 40%: solver diverged",
	}, msgs.Messages)
}

func TestHostFailureModes(t *testing.T) {
	host := NewHost(HostBehavior{Slots: 2, Unresponsive: true}, stats.NilStatsReceiver())
	h := host.Handler()
	assert.Equal(t, http.StatusServiceUnavailable, call(t, h, "GET", workerapi.StatusPath, nil, nil))

	host.SetBehavior(HostBehavior{Slots: 2, FailPolls: true})
	var grant workerapi.SlotGrant
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.SlotsPath, workerapi.SlotRequest{Threads: 2}, &grant))
	assert.Equal(t, http.StatusInternalServerError,
		call(t, h, "GET", workerapi.WorkerPath(grant.WorkerID, workerapi.OpProgress), nil, nil))
}

func TestBenchmarkScalesWithThreads(t *testing.T) {
	h := NewHost(HostBehavior{Slots: 8, JobDuration: 8 * time.Second}, stats.NilStatsReceiver()).Handler()
	var one, four workerapi.BenchmarkResult
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.BenchmarkPath+"?threads=1", []byte("m"), &one))
	require.Equal(t, http.StatusOK, call(t, h, "POST", workerapi.BenchmarkPath+"?threads=4", []byte("m"), &four))
	assert.Equal(t, 8.0, one.Seconds)
	assert.True(t, four.Seconds < one.Seconds)
	assert.Equal(t, http.StatusBadRequest, call(t, h, "POST", workerapi.BenchmarkPath+"?threads=x", nil, nil))
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(workerapi.HostEntry{Addr: "a:1", Slots: 4, EvalTime: 1})
	var list workerapi.HostList
	require.Equal(t, http.StatusOK, call(t, d, "GET", workerapi.HostsPath, nil, &list))
	assert.Len(t, list.Hosts, 1)

	d.SetUnreachable(true)
	assert.Equal(t, http.StatusServiceUnavailable, call(t, d, "GET", workerapi.HostsPath, nil, nil))
}
