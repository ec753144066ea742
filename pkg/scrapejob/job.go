// Package scrapejob is a client for the asynchronous scraping-job API:
// submit a run, poll its status to a terminal state, then fetch the
// result dataset once.
package scrapejob

import "fmt"

// Status is the lifecycle state of a remote run. Terminal states are
// absorbing.
type Status string

const (
	StatusToBeSubmitted Status = "TO_BE_SUBMITTED"
	StatusStarted       Status = "STARTED"
	StatusReady         Status = "READY"
	StatusRunning       Status = "RUNNING"
	StatusSucceeded     Status = "SUCCEEDED"
	StatusFailed        Status = "FAILED"
	StatusAborted       Status = "ABORTED"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// RunRequest is the job specification submitted to the executor.
type RunRequest struct {
	Country      string `json:"country"`
	Location     string `json:"location"`
	Operation    string `json:"operation"`
	PropertyType string `json:"propertyType"`
	Sort         string `json:"sort,omitempty"`
	MaxItems     int    `json:"maxItems,omitempty"`
}

// Job tracks one remote run: its id, the dataset the executor writes
// results into, and the last observed status.
type Job struct {
	RunID     string
	DatasetID string
	Status    Status
	Request   RunRequest
}

// StateError is returned when an operation is attempted in a state it
// is not valid in: fetching results before success, or observing a
// failed/aborted terminal status.
type StateError struct {
	RunID  string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("scrapejob: run %s in state %s", e.RunID, e.Status)
}
