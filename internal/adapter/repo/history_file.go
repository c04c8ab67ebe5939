package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"scribeflow/internal/domain"
	"scribeflow/internal/storage"
)

const historyPrefix = "history"

// HistoryRepositoryFile implements domain.HistoryRepository with one JSON
// document per job in a FileStore.
type HistoryRepositoryFile struct {
	files *storage.FileStore
	mu    sync.Mutex
}

// NewHistoryFileRepository stores history under the "history" prefix of files.
func NewHistoryFileRepository(files *storage.FileStore) *HistoryRepositoryFile {
	return &HistoryRepositoryFile{files: files}
}

type historyDocument struct {
	JobID       string    `json:"job_id"`
	Topic       string    `json:"topic"`
	Tone        string    `json:"tone"`
	Status      string    `json:"status"`
	Title       string    `json:"title,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Save merges record into the stored document.
func (r *HistoryRepositoryFile) Save(ctx context.Context, record domain.HistoryRecord) error {
	key, err := historyKey(record.JobID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil {
		record = mergeHistory(*existing, record)
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = record.UpdatedAt
	}

	data, err := json.MarshalIndent(toDocument(record), "", "  ")
	if err != nil {
		return fmt.Errorf("repo: encode history: %w", err)
	}
	if _, err := r.files.Write(ctx, key, data); err != nil {
		return fmt.Errorf("repo: save history: %w", err)
	}
	return nil
}

// Get returns the record for jobID or domain.ErrNotFound.
func (r *HistoryRepositoryFile) Get(ctx context.Context, jobID string) (*domain.HistoryRecord, error) {
	key, err := historyKey(jobID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, key)
}

// List returns up to limit records, most recently submitted first. A limit
// of zero or less returns everything.
func (r *HistoryRepositoryFile) List(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.files.List(ctx, historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("repo: list history: %w", err)
	}
	records := make([]domain.HistoryRecord, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		rec, err := r.load(ctx, key)
		if err != nil {
			// A corrupt document should not hide the rest of the history.
			continue
		}
		records = append(records, *rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SubmittedAt.Equal(records[j].SubmittedAt) {
			return records[i].JobID < records[j].JobID
		}
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the record for jobID. Missing records are not an error.
func (r *HistoryRepositoryFile) Delete(ctx context.Context, jobID string) error {
	key, err := historyKey(jobID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files.Delete(ctx, key)
}

func (r *HistoryRepositoryFile) load(ctx context.Context, key string) (*domain.HistoryRecord, error) {
	data, err := r.files.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: read history: %w", err)
	}
	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("repo: decode history %s: %w", key, err)
	}
	rec := doc.toRecord()
	return &rec, nil
}

func historyKey(jobID string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("repo: invalid job id %q", jobID)
	}
	return historyPrefix + "/" + jobID + ".json", nil
}

// mergeHistory applies the Save merge rules shared with the SQL upsert.
func mergeHistory(old, upd domain.HistoryRecord) domain.HistoryRecord {
	out := upd
	if out.Topic == "" {
		out.Topic = old.Topic
	}
	if out.Tone == "" {
		out.Tone = old.Tone
	}
	if out.Title == "" {
		out.Title = old.Title
	}
	if out.DownloadURL == "" {
		out.DownloadURL = old.DownloadURL
	}
	if !old.SubmittedAt.IsZero() {
		out.SubmittedAt = old.SubmittedAt
	}
	return out
}

func toDocument(r domain.HistoryRecord) historyDocument {
	return historyDocument{
		JobID:       r.JobID,
		Topic:       r.Topic,
		Tone:        string(r.Tone),
		Status:      string(r.Status),
		Title:       r.Title,
		DownloadURL: r.DownloadURL,
		Error:       r.Error,
		SubmittedAt: r.SubmittedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (d historyDocument) toRecord() domain.HistoryRecord {
	return domain.HistoryRecord{
		JobID:       d.JobID,
		Topic:       d.Topic,
		Tone:        domain.Tone(d.Tone),
		Status:      domain.JobStatus(d.Status),
		Title:       d.Title,
		DownloadURL: d.DownloadURL,
		Error:       d.Error,
		SubmittedAt: d.SubmittedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

var _ domain.HistoryRepository = (*HistoryRepositoryFile)(nil)
