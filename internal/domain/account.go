package domain

import "time"

// Account is the authenticated user as reported by the job service.
type Account struct {
	ID                  int64
	Email               string
	FullName            string
	CreditsLeft         int
	IsPremium           bool
	IsAdmin             bool
	OnboardingCompleted bool
	DevtoConnected      bool
}

// CanGenerate reports whether the account has quota for another job.
func (a Account) CanGenerate() bool {
	return a.CreditsLeft > 0
}

// HistoryRecord is the local bookkeeping entry for a job this client started
// or resumed.
type HistoryRecord struct {
	JobID       string
	Topic       string
	Tone        Tone
	Status      JobStatus
	Title       string
	DownloadURL string
	Error       string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Apply copies the observable fields of a job snapshot onto the record.
func (r *HistoryRecord) Apply(job Job, now time.Time) {
	if job.Status != "" {
		r.Status = job.Status
	}
	if job.Result != nil {
		r.Title = job.Result.Title
		r.DownloadURL = job.Result.DownloadURL
	}
	r.Error = job.Error
	r.UpdatedAt = now
}

// PublicBlog is the read-only shared view of a completed article.
type PublicBlog struct {
	Title           string
	Content         string
	MetaDescription string
	Author          string
}

// PublishReceipt is returned after pushing an article to a third party.
type PublishReceipt struct {
	Status  string
	Message string
	URL     string
}
