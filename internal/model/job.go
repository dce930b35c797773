package model

import "fmt"

// JobHandle identifies an in-flight asynchronous generation job.
type JobHandle string

type JobState int

const (
	JobPending JobState = iota
	JobCompleted
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is one observation of a job. OutputLocation is the output
// prefix declared at submission, not the final file.
type JobStatus struct {
	State          JobState
	OutputLocation string
	FailureReason  string
}

type JobFailedError struct {
	Handle JobHandle
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.Handle, e.Reason)
}
