package generation

import "go-civitai-generate/internal/models"

// StatusKind enumerates the classifications of a single job status reading.
type StatusKind int

const (
	// StatusScheduled means the job is still queued or running; keep polling.
	StatusScheduled StatusKind = iota
	// StatusCompleted means the job produced a result URL.
	StatusCompleted
	// StatusFailed means the service dropped the job without producing a
	// result or an explicit error.
	StatusFailed
	// StatusInconsistent means the service marked the result available but
	// supplied no URL. This is a service defect, not a retryable condition.
	StatusInconsistent
)

func (k StatusKind) String() string {
	switch k {
	case StatusScheduled:
		return "scheduled"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling should happen after this reading.
func (k StatusKind) Terminal() bool {
	return k != StatusScheduled
}

// JobStatus is one authoritative reading of a job's state. A fresh value is
// derived on every poll; readings are never accumulated.
type JobStatus struct {
	Kind      StatusKind
	ResultURL string
}

// ClassifyJob maps a raw job record onto a JobStatus. All branches of the
// orchestration API's nullable-field status shape are handled here and
// nowhere else.
func ClassifyJob(rec models.JobRecord) JobStatus {
	switch {
	case rec.Result.Available && rec.Result.BlobURL != "":
		return JobStatus{Kind: StatusCompleted, ResultURL: rec.Result.BlobURL}
	case rec.Result.Available:
		return JobStatus{Kind: StatusInconsistent}
	case !rec.Scheduled:
		return JobStatus{Kind: StatusFailed}
	default:
		return JobStatus{Kind: StatusScheduled}
	}
}
