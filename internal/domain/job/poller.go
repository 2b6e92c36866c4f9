package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
)

// ErrPollTimeout is returned when MaxAttempts or Timeout run out before the
// job reached a terminal status.
var ErrPollTimeout = errors.New("analysis job did not finish in time")

// JobFailedError is returned when the service reports the job as failed
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "analysis job failed"
}

// PollOptions bounds a poll loop. Zero MaxAttempts or Timeout means
// unbounded; zero RetryAttempts disables retries of failed fetches.
type PollOptions struct {
	Interval      time.Duration
	MaxAttempts   int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	Logger *logging.Logger
}

// DefaultPollOptions polls every two seconds without a deadline and
// retries transient fetch failures three times.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval:      DefaultPollInterval,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
	}
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// PollUntilTerminal fetches the status of jobID every opts.Interval until it
// is completed or failed. onProgress sees every snapshot, including repeats.
//
// A failed job yields *JobFailedError. Exhausted bounds yield ErrPollTimeout,
// and cancellation of ctx yields its cause. The last observed snapshot is
// returned alongside any error.
func PollUntilTerminal(
	ctx context.Context,
	fetcher StatusFetcher,
	jobID string,
	onProgress ProgressFunc,
	opts PollOptions,
) (analysisapi.Job, error) {
	if jobID == "" {
		return analysisapi.Job{}, analysisapi.ErrJobIDRequired
	}

	opts = opts.withDefaults()
	log := opts.Logger.With("job_id", jobID)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.Timeout, ErrPollTimeout)
		defer cancel()
	}

	var last analysisapi.Job
	for attempt := 1; ; attempt++ {
		job, err := fetchStatus(ctx, fetcher, jobID, opts, log)
		if err != nil {
			if ctx.Err() != nil {
				return last, stopCause(ctx, jobID, opts)
			}
			log.Error("status fetch failed", "attempt", attempt, "error", err)
			return last, err
		}
		last = job

		log.Debug("job observed", "attempt", attempt, "status", job.Status, "progress", job.Progress)
		if onProgress != nil {
			onProgress(job)
		}

		switch job.Status {
		case analysisapi.StatusCompleted:
			return job, nil
		case analysisapi.StatusFailed:
			return job, &JobFailedError{JobID: jobID, Reason: job.Error}
		}

		if !job.Status.Known() {
			log.Warn("unknown job status, still polling", "status", job.Status)
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return job, fmt.Errorf("%w: job %s still %s after %d polls", ErrPollTimeout, jobID, job.Status, attempt)
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return job, stopCause(ctx, jobID, opts)
		case <-timer.C:
		}
	}
}

// fetchStatus retries transient failures with exponential backoff
func fetchStatus(
	ctx context.Context,
	fetcher StatusFetcher,
	jobID string,
	opts PollOptions,
	log *logging.Logger,
) (analysisapi.Job, error) {
	operation := func() (analysisapi.Job, error) {
		job, err := fetcher.GetStatus(ctx, jobID)
		if err != nil && !analysisapi.IsRetryable(err) {
			return job, backoff.Permanent(err)
		}
		return job, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = opts.RetryDelay
	expo.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(opts.RetryAttempts)), ctx)

	notify := func(err error, wait time.Duration) {
		log.Warn("status fetch failed, retrying", "error", err, "wait", wait)
	}

	return backoff.RetryNotifyWithData(operation, b, notify)
}

func stopCause(ctx context.Context, jobID string, opts PollOptions) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrPollTimeout) {
		return fmt.Errorf("%w: job %s exceeded %s", ErrPollTimeout, jobID, opts.Timeout)
	}
	return cause
}
