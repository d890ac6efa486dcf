package graphapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radiusdt/adinsights/internal/models"
)

var (
	// ErrJobFailed is returned when an async job ends in a failed or error state.
	ErrJobFailed = errors.New("async report job failed")
	// ErrJobTimeout is returned when an async job does not finish in time.
	ErrJobTimeout = errors.New("async report job timed out")
)

// JobState is the lifecycle state of an async report job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobError     JobState = "error"
)

// Terminal reports whether polling should stop.
func (s JobState) Terminal() bool {
	return s != JobRunning
}

// JobStatus is one poll of an async job.
type JobStatus struct {
	ID      string   `json:"id"`
	State   JobState `json:"state"`
	Status  string   `json:"async_status"` // raw status text
	Percent int      `json:"async_percent_completion"`
}

// parseJobState maps the API's status text onto a JobState.
func parseJobState(status string) JobState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "job completed":
		return JobCompleted
	case "job failed":
		return JobFailed
	case "job skipped":
		return JobError
	default:
		return JobRunning
	}
}

// StartAsyncJob submits an async insights job and returns its id.
func (c *Client) StartAsyncJob(ctx context.Context, entityPath string, params url.Values) (string, error) {
	var resp struct {
		ReportRunID string `json:"report_run_id"`
	}
	if err := c.do(ctx, "start_job", http.MethodPost, c.endpoint(entityPath, nil), params, &resp); err != nil {
		return "", fmt.Errorf("start async job on %s: %w", entityPath, err)
	}
	if resp.ReportRunID == "" {
		return "", fmt.Errorf("start async job on %s: response carried no report_run_id", entityPath)
	}
	return resp.ReportRunID, nil
}

// PollJobStatus reads the current status of an async job.
func (c *Client) PollJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	params := url.Values{"fields": {"id,async_status,async_percent_completion"}}
	var st JobStatus
	if err := c.do(ctx, "poll_job", http.MethodGet, c.endpoint(jobID, params), nil, &st); err != nil {
		return JobStatus{}, fmt.Errorf("poll async job %s: %w", jobID, err)
	}
	if st.ID == "" {
		st.ID = jobID
	}
	st.State = parseJobState(st.Status)
	return st, nil
}

// FetchJobResult reads all result rows of a completed async job.
func (c *Client) FetchJobResult(ctx context.Context, jobID string) ([]models.ReportRow, error) {
	return c.FetchReport(ctx, jobID+"/insights", nil)
}

// JobPoller is the part of the client WaitForJob needs.
type JobPoller interface {
	PollJobStatus(ctx context.Context, jobID string) (JobStatus, error)
}

// WaitForJob polls at a fixed interval until the job completes, fails, or the
// timeout elapses. Failed and error states wrap ErrJobFailed; running out of
// time returns ErrJobTimeout.
func WaitForJob(ctx context.Context, p JobPoller, jobID string, interval, timeout time.Duration) (JobStatus, error) {
	deadline := time.Now().Add(timeout)

	for {
		st, err := p.PollJobStatus(ctx, jobID)
		if err != nil {
			return st, err
		}

		switch st.State {
		case JobCompleted:
			return st, nil
		case JobFailed, JobError:
			return st, fmt.Errorf("%w: job %s status %q", ErrJobFailed, jobID, st.Status)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return st, fmt.Errorf("%w: job %s still %q after %s", ErrJobTimeout, jobID, st.Status, timeout)
		}

		timer := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, ctx.Err()
		case <-timer.C:
		}
	}
}
