package domain

import "context"

// HistoryRepository persists local job history. Save merges into an
// existing record: blank topic, tone, title and download URL keep their
// stored values and SubmittedAt is kept from the first save.
type HistoryRepository interface {
	Save(ctx context.Context, record HistoryRecord) error
	Get(ctx context.Context, jobID string) (*HistoryRecord, error)
	List(ctx context.Context, limit int) ([]HistoryRecord, error)
	Delete(ctx context.Context, jobID string) error
}
