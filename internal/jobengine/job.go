package jobengine

import (
	"context"
	"time"

	"scribeflow/internal/domain"
)

type job struct {
	id        string
	owner     int64
	topic     string
	tone      domain.Tone
	asOf      string
	status    domain.JobStatus
	createdAt time.Time
	changedAt time.Time

	title           string
	slug            string
	markdownKey     string
	downloadURL     string
	images          []string
	plan            *domain.Plan
	metaDescription string
	keywords        string
	errMsg          string
	devtoURL        string
}

// Snapshot is the service-side view of a job as exposed by the status and
// history endpoints.
type Snapshot struct {
	JobID           string
	Status          domain.JobStatus
	Topic           string
	Tone            domain.Tone
	Title           string
	DownloadURL     string
	Images          []string
	Plan            *domain.Plan
	Evidence        []domain.Evidence
	Error           string
	MetaDescription string
	Keywords        string
	CreatedAt       time.Time
}

func (j *job) snapshot() Snapshot {
	title := j.title
	if title == "" {
		title = j.topic
	}
	images := make([]string, len(j.images))
	copy(images, j.images)
	return Snapshot{
		JobID:           j.id,
		Status:          j.status,
		Topic:           j.topic,
		Tone:            j.tone,
		Title:           title,
		DownloadURL:     j.downloadURL,
		Images:          images,
		Plan:            j.plan,
		Evidence:        []domain.Evidence{},
		Error:           j.errMsg,
		MetaDescription: j.metaDescription,
		Keywords:        j.keywords,
		CreatedAt:       j.createdAt,
	}
}

// advanceLocked moves j forward by the stages that elapsed since its last
// change. With a zero stage duration every call advances one stage.
func (e *Engine) advanceLocked(ctx context.Context, j *job) {
	if j.status.Terminal() {
		return
	}
	if e.stage == 0 {
		e.stepLocked(ctx, j, e.clock.Now())
		return
	}
	now := e.clock.Now()
	for !j.status.Terminal() && now.Sub(j.changedAt) >= e.stage {
		e.stepLocked(ctx, j, j.changedAt.Add(e.stage))
	}
}

func (e *Engine) stepLocked(ctx context.Context, j *job, at time.Time) {
	switch j.status {
	case domain.JobStatusQueued:
		j.status = domain.JobStatusProcessing
	case domain.JobStatusProcessing:
		if hasFailMarker(j.topic) {
			j.status = domain.JobStatusFailed
			j.errMsg = SimulatedFailure
			break
		}
		if err := e.renderLocked(ctx, j); err != nil {
			e.logger.Error().Err(err).Str("job_id", j.id).Msg("jobengine: render failed")
			j.status = domain.JobStatusFailed
			j.errMsg = err.Error()
			break
		}
		j.status = domain.JobStatusCompleted
	}
	j.changedAt = at
	e.logger.Debug().Str("job_id", j.id).Str("status", string(j.status)).Msg("jobengine: job advanced")
}
