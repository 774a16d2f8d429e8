package generation

import (
	"fmt"
	"time"

	"go-civitai-generate/internal/models"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// Service is the orchestration API surface the lifecycle depends on.
// SubmitTextToImage must return immediately with a job token rather than
// blocking until the job completes.
type Service interface {
	SubmitTextToImage(input models.TextToImageInput) (string, error)
	JobStatus(token string) (models.JobStatusResponse, error)
}

// Materializer turns a remote result URL into the final result, either by
// passing it through or by persisting the content locally.
type Materializer interface {
	Materialize(remoteURL string) (models.MaterializedResult, error)
}

// Settings is the immutable configuration of a Controller. The controller
// never reads process state; everything it needs arrives here.
type Settings struct {
	Model        string
	PollInterval time.Duration
	PollDeadline time.Duration
}

// Outcome describes a finished generation run.
type Outcome struct {
	Request models.GenerationRequest
	Result  models.MaterializedResult
	Token   string
	Polls   int
	Elapsed time.Duration
}

// Controller drives one generation job from submission through polling to
// materialization. Each invocation of Generate is an independent sequential
// unit of work; a Controller holds no per-job state and is safe for
// concurrent use.
type Controller struct {
	service      Service
	materializer Materializer
	settings     Settings
	clock        clock.Clock

	// OnPoll, when set, is called after each status query with the number of
	// queries issued so far and the elapsed time since submission.
	OnPoll func(polls int, elapsed time.Duration)
}

// NewController creates a Controller bound to the real wall clock when clk is
// nil.
func NewController(service Service, materializer Materializer, settings Settings, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.New()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.PollDeadline <= 0 {
		settings.PollDeadline = 2 * time.Minute
	}
	return &Controller{
		service:      service,
		materializer: materializer,
		settings:     settings,
		clock:        clk,
	}
}

// Generate validates the input, submits the job, polls it to a terminal state
// and materializes the result. All failures carry one of the package error
// kinds; no partial results are returned.
func (c *Controller) Generate(in RequestInput) (Outcome, error) {
	req, err := BuildRequest(in)
	if err != nil {
		return Outcome{}, err
	}

	log.WithField("model", c.settings.Model).Debugf("Submitting text-to-image job (sampler=%s, steps=%d, %dx%d)",
		req.Sampler, req.Steps, req.Width, req.Height)

	token, err := c.service.SubmitTextToImage(OrchestrationInput(req, c.settings.Model))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	log.WithField("token", token).Info("Job submitted, polling for completion")

	start := c.clock.Now()
	resultURL, polls, err := c.poll(token, start)
	if err != nil {
		return Outcome{}, err
	}

	result, err := c.materializer.Materialize(resultURL)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Request: req,
		Result:  result,
		Token:   token,
		Polls:   polls,
		Elapsed: c.clock.Now().Sub(start),
	}, nil
}

// poll queries job status until a terminal classification or the deadline.
// The deadline is checked before each query, so a terminal answer arriving at
// or after the nominal deadline instant is still honored, but no query is
// issued past it. A transport or contract error during a query ends the loop
// immediately with ErrPolling; it is not treated as transient.
func (c *Controller) poll(token string, start time.Time) (string, int, error) {
	polls := 0
	for {
		if c.clock.Now().Sub(start) >= c.settings.PollDeadline {
			return "", polls, fmt.Errorf("%w: job %s still pending after %s (%d queries)",
				ErrTimeout, token, c.settings.PollDeadline, polls)
		}

		resp, err := c.service.JobStatus(token)
		if err != nil {
			return "", polls, fmt.Errorf("%w: %v", ErrPolling, err)
		}
		polls++
		if c.OnPoll != nil {
			c.OnPoll(polls, c.clock.Now().Sub(start))
		}

		if len(resp.Jobs) == 0 {
			return "", polls, fmt.Errorf("%w: status response for %s contained no job records", ErrPolling, token)
		}

		status := ClassifyJob(resp.Jobs[0])
		log.WithField("token", token).Debugf("Poll %d: job status %s", polls, status.Kind)

		switch status.Kind {
		case StatusCompleted:
			return status.ResultURL, polls, nil
		case StatusInconsistent:
			return "", polls, fmt.Errorf("%w: job %s", ErrInconsistentResult, token)
		case StatusFailed:
			return "", polls, fmt.Errorf("%w: job %s", ErrJobFailed, token)
		}

		c.clock.Sleep(c.settings.PollInterval)
	}
}
