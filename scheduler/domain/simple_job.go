package domain

import (
	"sync"
)

// SimpleJob is a Job over an opaque payload that records the callbacks it
// receives.
type SimpleJob struct {
	Id       string
	Payload  []byte
	SimTimes SimulationTimes

	mu       sync.Mutex
	state    JobState
	progress float64
	result   Result
	err      error
	starts   int
}

func NewSimpleJob(id string, payload []byte) *SimpleJob {
	return &SimpleJob{
		Id:       id,
		Payload:  payload,
		SimTimes: SimulationTimes{Start: 0, Stop: 10, NumLogSamples: 1024},
	}
}

func (j *SimpleJob) ID() string                 { return j.Id }
func (j *SimpleJob) Serialize() ([]byte, error) { return j.Payload, nil }
func (j *SimpleJob) Times() SimulationTimes     { return j.SimTimes }

func (j *SimpleJob) OnStarted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = Running
	j.progress = 0
	j.starts++
}

func (j *SimpleJob) OnProgress(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = fraction
}

func (j *SimpleJob) OnCompleted(result Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = Completed
	j.progress = 1
	j.result = result
}

func (j *SimpleJob) OnFailed(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = Failed
	j.err = err
}

func (j *SimpleJob) OnAborted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = Aborted
}

// State is the last state reported through callbacks.
func (j *SimpleJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *SimpleJob) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *SimpleJob) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *SimpleJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Starts counts OnStarted calls, which exceed one when the job was
// resubmitted by a reschedule.
func (j *SimpleJob) Starts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.starts
}
