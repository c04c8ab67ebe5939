package domain

import "strings"

// JobStatus enumerates job lifecycle states reported by the job service.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultFailureReason is reported when the service marks a job failed
// without saying why.
const DefaultFailureReason = "The generation failed to complete."

// ParseJobStatus normalizes a wire status value.
func ParseJobStatus(raw string) (JobStatus, error) {
	status := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrUnknownStatus
	}
	return status, nil
}

// Valid reports whether s is one of the four known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job observed in s may next be observed in
// to. Repeating the current non-terminal state is allowed since polls
// frequently see no change. The zero value means "not observed yet" and may
// move anywhere.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if !to.Valid() {
		return false
	}
	switch s {
	case "":
		return true
	case JobStatusQueued:
		return true
	case JobStatusProcessing:
		return to != JobStatusQueued
	default:
		return false
	}
}

// Job is the client-side view of one generation job.
// Result is set only when Status is completed and Error only when it is
// failed.
type Job struct {
	ID     string
	Status JobStatus
	Result *Result
	Error  string
}

// Terminal reports whether the job reached completed or failed.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}

// Title returns the generated title when available.
func (j Job) Title() string {
	if j.Result == nil {
		return ""
	}
	return j.Result.Title
}

// Result is the payload of a completed job.
type Result struct {
	Title       string
	DownloadURL string
	Images      []string
	Plan        *Plan
	Evidence    []Evidence
	SEO         SEO
}

// Plan is the ordered outline the pipeline wrote the article from.
type Plan struct {
	BlogTitle   string     `json:"blog_title"`
	Audience    string     `json:"audience"`
	Tone        string     `json:"tone"`
	BlogKind    string     `json:"blog_kind"`
	Constraints []string   `json:"constraints"`
	Tasks       []PlanTask `json:"tasks"`
}

// PlanTask is one section of the plan.
type PlanTask struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Goal             string   `json:"goal"`
	Bullets          []string `json:"bullets"`
	TargetWords      int      `json:"target_words"`
	Tags             []string `json:"tags"`
	RequiresResearch bool     `json:"requires_research"`
	RequiresCitation bool     `json:"requires_citation"`
	RequiresCode     bool     `json:"requires_code"`
}

// Evidence is a research citation backing the article.
type Evidence struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Source      string `json:"source,omitempty"`
}

// SEO holds search metadata produced alongside the article.
type SEO struct {
	MetaDescription string
	Keywords        []string
}

// SplitKeywords turns the comma separated keyword string used on the wire
// into a trimmed list.
func SplitKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
