package progress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/platform/db"
	"github.com/ehr/healthprogress/migrations"
	"github.com/ehr/healthprogress/pkg/pagination"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrStorageConflict},
		{"serialization failure", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), ErrStorageConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrStorageConflict},
		{"check violation", &pgconn.PgError{Code: "23514"}, ErrStorageFault},
		{"deadline", context.DeadlineExceeded, ErrStorageFault},
		{"other", errors.New("connection reset"), ErrStorageFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify("op", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWhere(t *testing.T) {
	clause, args := where("kidney", Filter{})
	if clause != "condition_type = $1" || len(args) != 1 {
		t.Errorf("unexpected clause %q %v", clause, args)
	}

	day := condition.NewDate(2025, time.November, 5)
	clause, args = where("kidney", Filter{PatientID: 3, Date: &day})
	if clause != "condition_type = $1 AND patient_id = $2 AND submission_date = $3" {
		t.Errorf("unexpected clause %q", clause)
	}
	if len(args) != 3 || args[1] != int64(3) || args[2] != day.Time {
		t.Errorf("unexpected args %v", args)
	}
}

// pgStore connects to TEST_DATABASE_URL and migrates a throwaway schema.
func pgStore(t *testing.T) (Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("progress_test_%d", time.Now().UnixNano())

	admin, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 2})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	pool, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 8, Schema: schema})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStorePG(pool, 5*time.Second), pool
}

func pgEntry(conditionType string, patientID int64, day int, urgency condition.Urgency) *Entry {
	e := entry(conditionType, patientID, day, urgency, condition.StatusMonitor)
	e.CommonData = map[string]interface{}{"pain_level": float64(4), "notes": "ok"}
	e.ConditionData = map[string]interface{}{"urine_output": "normal"}
	return e
}

func TestStorePG_ReplaceAndRead(t *testing.T) {
	store, _ := pgStore(t)
	ctx := context.Background()

	first, replaced, err := store.ReplaceAtomic(ctx, pgEntry("kidney", 1, 5, condition.UrgencyHigh))
	if err != nil || replaced {
		t.Fatalf("first insert: replaced=%v err=%v", replaced, err)
	}
	if first.ID == 0 || first.SubmittedAt.IsZero() {
		t.Errorf("expected server-assigned fields, got %+v", first)
	}

	second, replaced, err := store.ReplaceAtomic(ctx, pgEntry("kidney", 1, 5, condition.UrgencyLow))
	if err != nil || !replaced {
		t.Fatalf("replacement: replaced=%v err=%v", replaced, err)
	}
	if second.ID == first.ID {
		t.Error("replacement must insert a new row")
	}

	got, err := store.FindByKey(ctx, "kidney", 1, condition.NewDate(2025, time.November, 5))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != second.ID || got.UrgencyStatus != condition.UrgencyLow {
		t.Errorf("expected the replacement, got %+v", got)
	}
	if got.CommonData["notes"] != "ok" || got.ConditionData["urine_output"] != "normal" {
		t.Errorf("JSONB payload did not round trip: %+v", got)
	}
	if !got.SubmissionDate.Equal(condition.NewDate(2025, time.November, 5).Time) {
		t.Errorf("unexpected submission date %s", got.SubmissionDate)
	}

	if _, err := store.GetByID(ctx, "kidney", first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected the first row gone, got %v", err)
	}
	if _, err := store.GetByID(ctx, "cancer", second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across conditions, got %v", err)
	}
	if id, ok, err := store.Exists(ctx, "kidney", 1, condition.NewDate(2025, time.November, 5)); err != nil || !ok || id != second.ID {
		t.Errorf("exists: id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestStorePG_ListAndTallies(t *testing.T) {
	store, _ := pgStore(t)
	ctx := context.Background()
	for day := 1; day <= 3; day++ {
		if _, _, err := store.ReplaceAtomic(ctx, pgEntry("diabetes", 1, day, condition.UrgencyLow)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, _, err := store.ReplaceAtomic(ctx, pgEntry("diabetes", 2, 1, condition.UrgencyHigh)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	items, total, err := store.ListByCondition(ctx, "diabetes", Filter{PatientID: 1}, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if len(items) == 2 && items[0].SubmittedAt.Before(items[1].SubmittedAt) {
		t.Error("expected newest first")
	}

	tallies, err := store.Tallies(ctx, "diabetes")
	if err != nil {
		t.Fatalf("tallies: %v", err)
	}
	counts := map[condition.Urgency]int{}
	for _, tl := range tallies {
		counts[tl.Urgency] += tl.Count
	}
	if counts[condition.UrgencyLow] != 3 || counts[condition.UrgencyHigh] != 1 {
		t.Errorf("unexpected tallies %+v", tallies)
	}

	deleted, err := store.Delete(ctx, "diabetes", items[0].ID)
	if err != nil || deleted.ID != items[0].ID {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Delete(ctx, "diabetes", items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePG_ConcurrentSameKey(t *testing.T) {
	store, _ := pgStore(t)
	f := newFixture()
	svc := NewService(f.registry, store, nil, f.svc.logger)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Entry, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Submit(ctx, "kidney", map[string]interface{}{
				"patient_id":      float64(9),
				"submission_date": "2025-11-05",
				"swelling_level":  float64(i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, ErrStorageConflict) {
			t.Errorf("submit %d: unexpected error %v", i, err)
		}
	}
	items, err := store.ListByPatient(ctx, "kidney", 9)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected exactly one surviving row, got %d", len(items))
	}
}
