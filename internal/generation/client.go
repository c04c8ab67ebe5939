// Package generation drives a generation job from submission to its
// terminal state: it submits the request, polls the job service on a fixed
// interval and downloads the article once the job completes.
//
// Transient poll failures are retried forever on the next tick with no
// backoff. The job keeps running server side whether or not anyone is
// polling, so giving up early only loses the result.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"scribeflow/internal/domain"
	"scribeflow/internal/infra"
	"scribeflow/internal/jobsvc"
	"scribeflow/internal/session"
)

// DefaultInterval is the delay between two status checks.
const DefaultInterval = 3 * time.Second

const balanceTimeout = 10 * time.Second

// Service is the subset of the job service the poll loop needs.
type Service interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (string, error)
	Status(ctx context.Context, jobID string) (domain.Job, error)
	Artifact(ctx context.Context, downloadURL string) (string, error)
}

// BalanceRefresher reloads the account after a submission consumed a credit.
type BalanceRefresher interface {
	Account(ctx context.Context) (domain.Account, error)
}

// Options tunes the poll loop. Zero values select the defaults.
type Options struct {
	// Interval between status checks. Defaults to DefaultInterval.
	Interval time.Duration
	// MaxWait bounds a loop; zero polls until a terminal state.
	MaxWait time.Duration
	Clock   clockwork.Clock
	Logger  *infra.Logger
	// Session ends every loop started under it when it logs out or is
	// replaced by another login.
	Session *session.Session
	// Balance is refreshed once after every successful submission.
	Balance   BalanceRefresher
	OnBalance func(domain.Account)
}

// Client starts and resumes generation jobs.
type Client struct {
	svc  Service
	opts Options
}

// New builds a client over svc.
func New(svc Service, opts Options) *Client {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxWait < 0 {
		opts.MaxWait = 0
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	return &Client{svc: svc, opts: opts}
}

// Submit validates req, sends it and starts polling the new job right away.
// ctx bounds both the submission and the life of the returned handle.
// Every failure before a job id is obtained is a *SubmissionError; in that
// case no polling is started.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (*Handle, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, &SubmissionError{Detail: validationMessage(err), Err: err}
	}

	jobID, err := c.svc.Submit(ctx, req)
	if err != nil {
		c.opts.Logger.Warn().Err(err).Str("tone", string(req.Tone)).Msg("generation: submit failed")
		return nil, &SubmissionError{Detail: serviceDetail(err), Err: err}
	}
	c.opts.Logger.Info().Str("job_id", jobID).Str("tone", string(req.Tone)).Msg("generation: job submitted")

	c.refreshBalance(ctx)

	h := c.newHandle(ctx, jobID, domain.Job{ID: jobID, Status: domain.JobStatusQueued})
	go h.run(h.currentEpoch(), 0)
	return h, nil
}

// Resume attaches to an existing job. One status check happens before
// Resume returns; later checks follow the interval. A job the service does
// not know is an error, any other failed check is retried like a poll.
func (c *Client) Resume(ctx context.Context, jobID string) (*Handle, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("generation: job id is required")
	}

	job, err := c.svc.Status(ctx, jobID)
	if err != nil && (errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) || ctx.Err() != nil) {
		return nil, fmt.Errorf("generation: resume %s: %w", jobID, err)
	}

	h := c.newHandle(ctx, jobID, domain.Job{ID: jobID})
	epoch := h.currentEpoch()

	if err != nil {
		h.recordTransient(epoch, err)
		go h.run(epoch, h.interval)
		return h, nil
	}
	c.opts.Logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("generation: job resumed")

	switch h.observe(epoch, job) {
	case stepContinue:
		go h.run(epoch, h.interval)
	case stepCompleted:
		go h.complete(epoch)
	}
	return h, nil
}

func (c *Client) newHandle(ctx context.Context, jobID string, initial domain.Job) *Handle {
	h := &Handle{
		jobID:    jobID,
		svc:      c.svc,
		clock:    c.opts.Clock,
		interval: c.opts.Interval,
		maxWait:  c.opts.MaxWait,
		logger:   c.opts.Logger,
		job:      initial,
		changed:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	if initial.Status != "" {
		h.snapshots = append(h.snapshots, initial)
	}
	h.ctx, h.cancel = context.WithCancelCause(ctx)
	h.stopWatch = append(h.stopWatch, context.AfterFunc(h.ctx, func() {
		h.abort(context.Cause(h.ctx))
	}))
	if c.opts.Session != nil {
		sessCtx := c.opts.Session.Context()
		h.stopWatch = append(h.stopWatch, context.AfterFunc(sessCtx, func() {
			h.cancel(context.Cause(sessCtx))
		}))
	}
	return h
}

// refreshBalance runs detached from the caller: a slow account endpoint
// must not delay the poll loop.
func (c *Client) refreshBalance(ctx context.Context) {
	if c.opts.Balance == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), balanceTimeout)
	go func() {
		defer cancel()
		acct, err := c.opts.Balance.Account(ctx)
		if err != nil {
			c.opts.Logger.Warn().Err(err).Msg("generation: balance refresh failed")
			return
		}
		if c.opts.OnBalance != nil {
			c.opts.OnBalance(acct)
		}
	}()
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyTopic):
		return "Please enter a topic."
	case errors.Is(err, domain.ErrInvalidTone):
		return "Please pick a supported tone."
	default:
		return ""
	}
}

func serviceDetail(err error) string {
	var apiErr *jobsvc.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}
