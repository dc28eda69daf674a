// Package workerapi holds the JSON messages and routes spoken between the
// scheduler, the host directory and worker hosts.
//
// Directory:
//
//	GET  /hosts                       HostList
//
// Worker host:
//
//	GET  /status                      HostStatus
//	POST /slots                       SlotRequest -> SlotGrant
//	POST /benchmark?threads=N         model body -> BenchmarkResult
//	POST /workers/{id}/load           model body
//	POST /workers/{id}/start
//	GET  /workers/{id}/progress       Progress
//	POST /workers/{id}/abort
//	GET  /workers/{id}/results        Results
//	GET  /workers/{id}/messages       Messages
//	POST /workers/{id}/release
package workerapi

import (
	"fmt"
)

const (
	HostsPath     = "/hosts"
	StatusPath    = "/status"
	SlotsPath     = "/slots"
	BenchmarkPath = "/benchmark"
	WorkersPath   = "/workers/"
)

// Worker operations, appended to WorkersPath + id.
const (
	OpLoad     = "load"
	OpStart    = "start"
	OpProgress = "progress"
	OpAbort    = "abort"
	OpResults  = "results"
	OpMessages = "messages"
	OpRelease  = "release"
)

func WorkerPath(id, op string) string {
	return fmt.Sprintf("%s%s/%s", WorkersPath, id, op)
}

// HostEntry is one directory record. EvalTime is the host's time on the
// reference benchmark, lower is faster. RelayAddr, when set, is the address
// to use instead of Addr.
type HostEntry struct {
	Addr      string  `json:"addr"`
	RelayAddr string  `json:"relayAddr,omitempty"`
	Slots     int     `json:"slots"`
	EvalTime  float64 `json:"evalTime"`
}

type HostList struct {
	Hosts []HostEntry `json:"hosts"`
}

type HostStatus struct {
	TotalSlots int `json:"totalSlots"`
	FreeSlots  int `json:"freeSlots"`
}

type SlotRequest struct {
	Threads int    `json:"threads"`
	User    string `json:"user,omitempty"`
}

type SlotGrant struct {
	WorkerID string `json:"workerId"`
	Threads  int    `json:"threads"`
}

type RunState string

const (
	StateIdle       RunState = "idle"
	StateInProgress RunState = "inprogress"
	StateFinished   RunState = "finished"
)

type Progress struct {
	State    RunState `json:"state"`
	Fraction float64  `json:"progress"`
}

type Variable struct {
	Name     string    `json:"name"`
	Alias    string    `json:"alias,omitempty"`
	Quantity string    `json:"quantity,omitempty"`
	Unit     string    `json:"unit,omitempty"`
	Data     []float64 `json:"data"`
}

type Results struct {
	Variables []Variable `json:"variables"`
}

// Messages is the worker's log for its current job, oldest first.
type Messages struct {
	Messages []string `json:"messages"`
}

type BenchmarkResult struct {
	Seconds float64 `json:"seconds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
