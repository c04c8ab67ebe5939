package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scribeflow/internal/domain"
	"scribeflow/internal/infra"
	"scribeflow/internal/sqlinline"
)

// HistoryRepositoryPG implements domain.HistoryRepository on PostgreSQL.
type HistoryRepositoryPG struct {
	db infra.SQLExecutor
}

// NewHistoryRepository creates a history repository over a marker-checked
// SQL executor.
func NewHistoryRepository(db infra.SQLExecutor) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{db: db}
}

// EnsureSchema creates the history table when missing.
func (r *HistoryRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureHistorySchema); err != nil {
		return fmt.Errorf("repo: ensure history schema: %w", err)
	}
	return nil
}

// Save upserts record.
func (r *HistoryRepositoryPG) Save(ctx context.Context, record domain.HistoryRecord) error {
	if strings.TrimSpace(record.JobID) == "" {
		return fmt.Errorf("repo: invalid job id %q", record.JobID)
	}
	updated := record.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	submitted := record.SubmittedAt
	if submitted.IsZero() {
		submitted = updated
	}
	_, err := r.db.Exec(ctx, sqlinline.QUpsertHistory,
		record.JobID,
		record.Topic,
		string(record.Tone),
		string(record.Status),
		record.Title,
		record.DownloadURL,
		record.Error,
		submitted,
		updated,
	)
	if err != nil {
		return fmt.Errorf("repo: save history: %w", err)
	}
	return nil
}

// Get fetches one record or domain.ErrNotFound.
func (r *HistoryRepositoryPG) Get(ctx context.Context, jobID string) (*domain.HistoryRecord, error) {
	row := r.db.QueryRow(ctx, sqlinline.QSelectHistory, jobID)
	rec, err := scanHistory(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get history: %w", err)
	}
	return &rec, nil
}

// List returns the newest records first. A limit of zero or less means 100.
func (r *HistoryRepositoryPG) List(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, sqlinline.QListHistory, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan history: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list history: %w", err)
	}
	return out, nil
}

// Delete removes the record for jobID.
func (r *HistoryRepositoryPG) Delete(ctx context.Context, jobID string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QDeleteHistory, jobID); err != nil {
		return fmt.Errorf("repo: delete history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (domain.HistoryRecord, error) {
	var (
		rec    domain.HistoryRecord
		tone   string
		status string
	)
	if err := row.Scan(
		&rec.JobID,
		&rec.Topic,
		&tone,
		&status,
		&rec.Title,
		&rec.DownloadURL,
		&rec.Error,
		&rec.SubmittedAt,
		&rec.UpdatedAt,
	); err != nil {
		return domain.HistoryRecord{}, err
	}
	rec.Tone = domain.Tone(tone)
	rec.Status = domain.JobStatus(status)
	return rec, nil
}

var _ domain.HistoryRepository = (*HistoryRepositoryPG)(nil)
