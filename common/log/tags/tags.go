// Package tags carries identifiers that are attached to every log line
// emitted on behalf of a batch.
package tags

import (
	log "github.com/sirupsen/logrus"
)

type LogTags struct {
	BatchID string
	WaveID  string
	JobID   string
	Host    string
}

// GetFields returns the non-empty tags as logrus fields.
func (t LogTags) GetFields() log.Fields {
	f := log.Fields{}
	if t.BatchID != "" {
		f["batchID"] = t.BatchID
	}
	if t.WaveID != "" {
		f["waveID"] = t.WaveID
	}
	if t.JobID != "" {
		f["jobID"] = t.JobID
	}
	if t.Host != "" {
		f["host"] = t.Host
	}
	return f
}

func (t LogTags) WithJob(jobID, host string) LogTags {
	t.JobID = jobID
	t.Host = host
	return t
}

func (t LogTags) Entry() *log.Entry {
	return log.WithFields(t.GetFields())
}
