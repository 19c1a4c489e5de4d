package zhmc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job statuses reported by Query Job Status.
const (
	JobStatusRunning       = "running"
	JobStatusCancelPending = "cancel-pending"
	JobStatusCanceled      = "canceled"
	JobStatusComplete      = "complete"
)

// JobStatus is the decoded response of Query Job Status.
type JobStatus struct {
	Status     string
	StatusCode int
	ReasonCode int
	Results    map[string]any

	// Raw is the unmodified response object.
	Raw map[string]any
}

// Job is an asynchronous HMC operation identified by its job URI.
type Job struct {
	session Session
	uri     string

	// method and opURI identify the operation that started the job, for
	// error reporting.
	method string
	opURI  string

	log *zap.Logger
}

// NewJob returns a handle for the job at uri, started by method on opURI.
func NewJob(session Session, uri, method, opURI string) *Job {
	return &Job{session: session, uri: uri, method: method, opURI: opURI, log: zap.NewNop()}
}

// URI returns the job URI.
func (j *Job) URI() string { return j.uri }

// QueryStatus retrieves the current job status.
func (j *Job) QueryStatus(ctx context.Context) (JobStatus, error) {
	raw, err := j.session.Get(ctx, j.uri)
	if err != nil {
		return JobStatus{}, err
	}
	st := JobStatus{Raw: raw}
	st.Status, _ = raw["status"].(string)
	if st.Status == "" {
		return st, &ParseError{Message: fmt.Sprintf("job %s has no status", j.uri)}
	}
	st.StatusCode, _ = asInt(raw["job-status-code"])
	st.ReasonCode, _ = asInt(raw["job-reason-code"])
	st.Results, _ = raw["job-results"].(map[string]any)
	return st, nil
}

// Delete removes a completed job from the HMC.
func (j *Job) Delete(ctx context.Context) error {
	return j.session.Delete(ctx, j.uri)
}

// WaitForCompletion polls the job until it is complete, deletes it, and
// returns its status object. A job that completed with a status code >= 400
// is reported as an HTTPError. A timeout <= 0 waits until ctx is done.
func (j *Job) WaitForCompletion(ctx context.Context, pollInterval, timeout time.Duration) (map[string]any, error) {
	if pollInterval <= 0 {
		pollInterval = defaultJobPollInterval
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		st, err := j.QueryStatus(ctx)
		if err != nil {
			return nil, err
		}
		if st.Status == JobStatusComplete || st.Status == JobStatusCanceled {
			if err := j.Delete(ctx); err != nil {
				j.log.Debug("delete completed job failed", zap.String("job", j.uri), zap.Error(err))
			}
			if st.StatusCode >= 400 {
				return nil, j.failure(st)
			}
			return st.Raw, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &OperationTimeoutError{
				Message: fmt.Sprintf("job %s for %s %s not complete after %s (status %s)", j.uri, j.method, j.opURI, timeout, st.Status),
			}
		}

		t := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (j *Job) failure(st JobStatus) *HTTPError {
	herr := &HTTPError{
		HTTPStatus:    st.StatusCode,
		Reason:        st.ReasonCode,
		RequestMethod: j.method,
		RequestURI:    j.opURI,
	}
	if msg, ok := st.Results["message"].(string); ok {
		herr.Message = msg
	} else {
		herr.Message = fmt.Sprintf("job %s ended with status code %d", j.uri, st.StatusCode)
	}
	return herr
}
