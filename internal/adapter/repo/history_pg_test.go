package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribeflow/internal/domain"
	"scribeflow/internal/sqlinline"
)

func historyScanner(id string, submitted time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = "Edge computing"
		*dest[2].(*string) = "Technical"
		*dest[3].(*string) = "completed"
		*dest[4].(*string) = "Edge"
		*dest[5].(*string) = "/static/blogs/edge.md"
		*dest[6].(*string) = ""
		*dest[7].(*time.Time) = submitted
		*dest[8].(*time.Time) = submitted.Add(time.Minute)
		return nil
	}
}

func TestHistoryPGSave(t *testing.T) {
	db := &fakeExecutor{}
	repo := NewHistoryRepository(db)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	err := repo.Save(context.Background(), domain.HistoryRecord{
		JobID:     "abc123",
		Topic:     "Edge computing",
		Tone:      domain.ToneTechnical,
		Status:    domain.JobStatusQueued,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(db.execs) != 1 || db.execs[0].query != sqlinline.QUpsertHistory {
		t.Fatalf("execs = %+v", db.execs)
	}
	args := db.execs[0].args
	if args[0] != "abc123" || args[2] != "Technical" || args[3] != "queued" {
		t.Fatalf("args = %v", args)
	}
	if submitted := args[7].(time.Time); !submitted.Equal(now) {
		t.Fatalf("submitted_at = %v, want %v", submitted, now)
	}

	if err := repo.Save(context.Background(), domain.HistoryRecord{}); err == nil {
		t.Fatalf("expected error for blank job id")
	}
}

func TestHistoryPGGet(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	db := &fakeExecutor{row: simpleRow{scan: historyScanner("abc123", submitted)}}
	repo := NewHistoryRepository(db)

	rec, err := repo.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != domain.JobStatusCompleted || rec.Tone != domain.ToneTechnical || !rec.SubmittedAt.Equal(submitted) {
		t.Fatalf("record = %+v", rec)
	}

	missing := NewHistoryRepository(&fakeExecutor{})
	if _, err := missing.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryPGList(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := &sliceRows{rows: []func(dest ...any) error{
		historyScanner("b", base.Add(time.Hour)),
		historyScanner("a", base),
	}}
	db := &fakeExecutor{rows: rows}
	repo := NewHistoryRepository(db)

	recs, err := repo.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].JobID != "b" || recs[1].JobID != "a" {
		t.Fatalf("records = %+v", recs)
	}
	if db.lastArg[0] != 100 {
		t.Fatalf("limit = %v, want 100", db.lastArg[0])
	}
	if !rows.closed {
		t.Fatalf("rows not closed")
	}
}

func TestHistoryPGEnsureSchemaAndDelete(t *testing.T) {
	db := &fakeExecutor{}
	repo := NewHistoryRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := repo.Delete(context.Background(), "abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(db.execs) != 2 || db.execs[0].query != sqlinline.QEnsureHistorySchema || db.execs[1].query != sqlinline.QDeleteHistory {
		t.Fatalf("execs = %+v", db.execs)
	}

	failing := NewHistoryRepository(&fakeExecutor{execErr: errors.New("down")})
	if err := failing.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
