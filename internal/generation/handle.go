package generation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"scribeflow/internal/domain"
	"scribeflow/internal/infra"
)

type step int

const (
	stepStop step = iota
	stepContinue
	stepCompleted
)

// Handle follows one job. It is safe for concurrent use.
//
// Every loop iteration runs under an epoch. Cancel bumps the epoch while
// holding mu, and every state change re-checks it under mu, so a timer or a
// response that arrives after Cancel has no effect.
type Handle struct {
	jobID    string
	svc      Service
	clock    clockwork.Clock
	interval time.Duration
	maxWait  time.Duration
	logger   *infra.Logger

	ctx       context.Context
	cancel    context.CancelCauseFunc
	stopWatch []func() bool

	mu        sync.Mutex
	epoch     uint64
	finished  bool
	timer     clockwork.Timer
	job       domain.Job
	snapshots []domain.Job
	changed   chan struct{}
	done      chan struct{}
	err       error
	artifact  string
	hasBody   bool
	transient int
}

// JobID returns the id of the followed job.
func (h *Handle) JobID() string {
	return h.jobID
}

// Current returns the latest accepted snapshot.
func (h *Handle) Current() domain.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job
}

// TransientFailures counts status checks that failed and were retried.
func (h *Handle) TransientFailures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transient
}

// Done is closed once the handle stops: terminal state reached (and, for
// completed jobs, the artifact fetched), cancelled, or timed out.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Snapshots yields every distinct status snapshot in the order observed,
// starting from the first one, and blocks for new ones until the handle
// stops. Each call replays from the beginning.
func (h *Handle) Snapshots() iter.Seq[domain.Job] {
	return func(yield func(domain.Job) bool) {
		for i := 0; ; i++ {
			h.mu.Lock()
			for i >= len(h.snapshots) && !h.finished {
				changed := h.changed
				h.mu.Unlock()
				<-changed
				h.mu.Lock()
			}
			if i >= len(h.snapshots) {
				h.mu.Unlock()
				return
			}
			snap := h.snapshots[i]
			h.mu.Unlock()
			if !yield(snap) {
				return
			}
		}
	}
}

// Wait blocks until the handle stops or ctx ends. The error is nil only for
// a completed job whose artifact was downloaded; otherwise it is a
// *JobFailedError, *ArtifactFetchError, ErrCancelled or ErrPollTimeout.
func (h *Handle) Wait(ctx context.Context) (domain.Job, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return h.Current(), ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job, h.err
}

// Artifact returns the downloaded markdown of a completed job.
func (h *Handle) Artifact() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasBody {
		return h.artifact, nil
	}
	if h.finished && h.err != nil {
		return "", h.err
	}
	return "", domain.ErrNotCompleted
}

// Cancel stops polling. No request is started and no state changes once
// Cancel returns. Cancelling a stopped handle does nothing.
func (h *Handle) Cancel() {
	h.abort(ErrCancelled)
}

func (h *Handle) abort(cause error) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.epoch++
	err := ErrCancelled
	if cause != nil && !errors.Is(cause, ErrCancelled) && !errors.Is(cause, errStopped) {
		err = fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	h.finishLocked(err)
	h.mu.Unlock()
	h.logger.Debug().Str("job_id", h.jobID).AnErr("cause", cause).Msg("generation: polling cancelled")
}

var errStopped = errors.New("generation: handle stopped")

// finishLocked must be called with mu held.
func (h *Handle) finishLocked(err error) {
	h.finished = true
	h.err = err
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.broadcastLocked()
	close(h.done)
	for _, stop := range h.stopWatch {
		stop()
	}
	h.stopWatch = nil
	h.cancel(errStopped)
}

func (h *Handle) broadcastLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}

func (h *Handle) currentEpoch() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch
}

func (h *Handle) live(epoch uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveLocked(epoch)
}

func (h *Handle) liveLocked(epoch uint64) bool {
	return h.epoch == epoch && !h.finished
}

// arm schedules the next tick. The timer is owned by the handle so Cancel
// can stop it.
func (h *Handle) arm(epoch uint64, delay time.Duration) (clockwork.Timer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.liveLocked(epoch) {
		return nil, false
	}
	h.timer = h.clock.NewTimer(delay)
	return h.timer, true
}

func (h *Handle) disarm(epoch uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.liveLocked(epoch) && h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Handle) run(epoch uint64, delay time.Duration) {
	var deadline <-chan time.Time
	if h.maxWait > 0 {
		dl := h.clock.NewTimer(h.maxWait)
		defer dl.Stop()
		deadline = dl.Chan()
	}

	for {
		if delay > 0 {
			timer, ok := h.arm(epoch, delay)
			if !ok {
				return
			}
			select {
			case <-h.ctx.Done():
				h.disarm(epoch)
				h.abort(context.Cause(h.ctx))
				return
			case <-deadline:
				h.disarm(epoch)
				h.timeout(epoch)
				return
			case <-timer.Chan():
			}
			// Both may have fired in the same instant.
			select {
			case <-deadline:
				h.timeout(epoch)
				return
			default:
			}
		}
		delay = h.interval

		if !h.live(epoch) {
			return
		}
		job, err := h.svc.Status(h.ctx, h.jobID)
		if err != nil {
			if !h.recordTransient(epoch, err) {
				return
			}
			continue
		}
		switch h.observe(epoch, job) {
		case stepStop:
			return
		case stepCompleted:
			h.complete(epoch)
			return
		}
	}
}

// recordTransient counts a failed check. It reports false when the loop
// should stop instead.
func (h *Handle) recordTransient(epoch uint64, err error) bool {
	h.mu.Lock()
	if !h.liveLocked(epoch) || h.ctx.Err() != nil {
		h.mu.Unlock()
		return false
	}
	h.transient++
	attempt := h.transient
	h.mu.Unlock()

	perr := &TransientPollError{JobID: h.jobID, Attempt: attempt, Err: err}
	h.logger.Warn().Err(perr).Str("job_id", h.jobID).Msg("generation: status check failed, retrying")
	return true
}

// observe applies a fetched snapshot. Failed jobs finish here; completed
// jobs are reported so the caller can fetch the artifact outside the lock.
func (h *Handle) observe(epoch uint64, job domain.Job) step {
	if job.ID == "" {
		job.ID = h.jobID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.liveLocked(epoch) {
		return stepStop
	}

	prev := h.job
	if prev.Status == job.Status && sameSnapshot(prev, job) {
		return stepContinue
	}
	if !prev.Status.CanTransition(job.Status) {
		h.logger.Warn().
			Str("job_id", h.jobID).
			Str("from", string(prev.Status)).
			Str("to", string(job.Status)).
			Msg("generation: ignoring out of order status")
		return stepContinue
	}

	h.job = job
	h.snapshots = append(h.snapshots, job)
	h.broadcastLocked()
	h.logger.Debug().Str("job_id", h.jobID).Str("status", string(job.Status)).Msg("generation: status changed")

	switch job.Status {
	case domain.JobStatusFailed:
		h.finishLocked(&JobFailedError{JobID: h.jobID, Reason: job.Error})
		return stepStop
	case domain.JobStatusCompleted:
		return stepCompleted
	default:
		return stepContinue
	}
}

// complete downloads the article exactly once and finishes the handle.
func (h *Handle) complete(epoch uint64) {
	h.mu.Lock()
	if !h.liveLocked(epoch) {
		h.mu.Unlock()
		return
	}
	var downloadURL string
	if h.job.Result != nil {
		downloadURL = h.job.Result.DownloadURL
	}
	h.mu.Unlock()

	var (
		body string
		err  error
	)
	if downloadURL == "" {
		err = errors.New("completed job has no download url")
	} else {
		body, err = h.svc.Artifact(h.ctx, downloadURL)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.liveLocked(epoch) {
		return
	}
	if err != nil {
		fetchErr := &ArtifactFetchError{JobID: h.jobID, URL: downloadURL, Err: err}
		h.logger.Error().Err(fetchErr).Str("job_id", h.jobID).Msg("generation: artifact download failed")
		h.finishLocked(fetchErr)
		return
	}
	h.artifact = body
	h.hasBody = true
	h.logger.Info().Str("job_id", h.jobID).Int("bytes", len(body)).Msg("generation: job completed")
	h.finishLocked(nil)
}

func (h *Handle) timeout(epoch uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.liveLocked(epoch) {
		return
	}
	h.epoch++
	h.logger.Warn().Str("job_id", h.jobID).Dur("max_wait", h.maxWait).Msg("generation: gave up waiting")
	h.finishLocked(ErrPollTimeout)
}

func sameSnapshot(a, b domain.Job) bool {
	return a.Error == b.Error && reflect.DeepEqual(a.Result, b.Result)
}
