package generation

import (
	"errors"

	"go-civitai-generate/internal/downloader"
)

// Custom Error Types
var (
	ErrValidation         = errors.New("invalid generation request")
	ErrSubmission         = errors.New("job submission failed")
	ErrPolling            = errors.New("job status query failed")
	ErrInconsistentResult = errors.New("job reported available without a result URL")
	ErrJobFailed          = errors.New("job abandoned by the generation service")
	ErrTimeout            = errors.New("job did not finish before the polling deadline")
)

// FailureKind maps any error produced by a generation run to a stable kind
// marker for the tool host surface. Unrecognized errors map to "internal".
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrPolling):
		return "polling"
	case errors.Is(err, ErrInconsistentResult):
		return "inconsistent_result"
	case errors.Is(err, ErrJobFailed):
		return "job_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, downloader.ErrDownload):
		return "download"
	case errors.Is(err, downloader.ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
