package server

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/scheduler/domain"
)

// jobRecord tracks one job of a batch. Only the scheduling goroutine
// touches it.
type jobRecord struct {
	job      domain.Job
	payload  []byte
	state    domain.JobState
	err      error
	result   domain.Result
	host     string
	attempts int
	fraction float64
	// Launch generation, ordering start times within a batch.
	gen int
	// Worker log fetched when the job failed remotely.
	messages []string
}

// newJobRecords serializes every job up front. A job that cannot be
// serialized fails immediately and is never sent anywhere.
func newJobRecords(jobs []domain.Job) []*jobRecord {
	out := make([]*jobRecord, len(jobs))
	for i, j := range jobs {
		out[i] = &jobRecord{job: j, state: domain.Queued, fraction: -1}
		payload, err := j.Serialize()
		if err != nil {
			out[i].finish(domain.Failed, errors.Wrapf(err, "serializing job %s", j.ID()), domain.Result{})
			continue
		}
		out[i].payload = payload
	}
	return out
}

var validJobTransitions = map[domain.JobState][]domain.JobState{
	domain.Queued:   {domain.Assigned},
	domain.Assigned: {domain.Loading, domain.Queued},
	domain.Loading:  {domain.Running, domain.Queued},
	domain.Running:  {domain.Queued},
}

// advance moves the job along its non-terminal lifecycle. Going back to
// Queued resubmits it.
func (j *jobRecord) advance(to domain.JobState) error {
	for _, s := range validJobTransitions[j.state] {
		if s == to {
			j.state = to
			if to == domain.Queued {
				j.fraction = -1
				j.host = ""
			}
			return nil
		}
	}
	return fmt.Errorf("job %s: invalid transition %s -> %s", j.job.ID(), j.state, to)
}

// finish records the terminal state and fires the job's callback. A job
// finishes exactly once; later calls return false and change nothing.
func (j *jobRecord) finish(state domain.JobState, err error, result domain.Result) bool {
	if j.state.IsTerminal() {
		log.Errorf("job %s already %s, ignoring transition to %s", j.job.ID(), j.state, state)
		return false
	}
	j.state, j.err, j.result = state, err, result
	switch state {
	case domain.Completed:
		j.fraction = 1
		j.job.OnCompleted(result)
	case domain.Failed:
		j.job.OnFailed(err)
	case domain.Aborted:
		j.job.OnAborted()
	default:
		panic(fmt.Sprintf("finish with non-terminal state %s", state))
	}
	return true
}

func (j *jobRecord) toResult() domain.JobResult {
	return domain.JobResult{
		JobID:    j.job.ID(),
		State:    j.state,
		Err:      j.err,
		Result:   j.result,
		Host:     j.host,
		Attempts: j.attempts,
		Messages: j.messages,
	}
}

func pending(jobs []*jobRecord) []*jobRecord {
	out := []*jobRecord{}
	for _, j := range jobs {
		if !j.state.IsTerminal() {
			out = append(out, j)
		}
	}
	return out
}
