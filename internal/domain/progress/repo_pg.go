package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewStorePG returns a Store backed by the progress_entries table. Every
// call is bounded by timeout in addition to the caller's context.
func NewStorePG(pool *pgxpool.Pool, timeout time.Duration) Store {
	return &storePG{pool: pool, timeout: timeout}
}

func (r *storePG) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

const entryCols = `id, patient_id, patient_name, condition_type, submission_date,
	submitted_at, urgency_status, urgency_score, status, common_data, condition_data`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		day     time.Time
		urgency string
		status  string
	)
	err := row.Scan(&e.ID, &e.PatientID, &e.PatientName, &e.ConditionType, &day,
		&e.SubmittedAt, &urgency, &e.UrgencyScore, &status, &e.CommonData, &e.ConditionData)
	if err != nil {
		return nil, err
	}
	e.SubmissionDate = condition.DateOf(day)
	e.UrgencyStatus = condition.Urgency(urgency)
	e.Status = condition.Status(status)
	if e.CommonData == nil {
		e.CommonData = map[string]interface{}{}
	}
	if e.ConditionData == nil {
		e.ConditionData = map[string]interface{}{}
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	items := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *storePG) FindByKey(ctx context.Context, conditionType string, patientID int64, date condition.Date) (*Entry, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryCols+` FROM progress_entries
		WHERE condition_type = $1 AND patient_id = $2 AND submission_date = $3`,
		conditionType, patientID, date.Time))
	if err != nil {
		return nil, classify("find entry", err)
	}
	return e, nil
}

func (r *storePG) ReplaceAtomic(ctx context.Context, e *Entry) (*Entry, bool, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, false, classify("begin replace", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM progress_entries
		WHERE condition_type = $1 AND patient_id = $2 AND submission_date = $3`,
		e.ConditionType, e.PatientID, e.SubmissionDate.Time)
	if err != nil {
		return nil, false, classify("delete prior entry", err)
	}
	replaced := tag.RowsAffected() > 0

	saved, err := scanEntry(tx.QueryRow(ctx, `
		INSERT INTO progress_entries (patient_id, patient_name, condition_type, submission_date,
			urgency_status, urgency_score, status, common_data, condition_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+entryCols,
		e.PatientID, e.PatientName, e.ConditionType, e.SubmissionDate.Time,
		string(e.UrgencyStatus), e.UrgencyScore, string(e.Status), e.CommonData, e.ConditionData))
	if err != nil {
		return nil, false, classify("insert entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, classify("commit replace", err)
	}
	saved.UrgencyTrail = e.UrgencyTrail
	return saved, replaced, nil
}

// where builds the filter clause for one condition. Arguments start at $1.
func where(conditionType string, f Filter) (string, []interface{}) {
	clauses := []string{"condition_type = $1"}
	args := []interface{}{conditionType}
	if f.PatientID > 0 {
		args = append(args, f.PatientID)
		clauses = append(clauses, "patient_id = $"+strconv.Itoa(len(args)))
	}
	if f.Date != nil {
		args = append(args, f.Date.Time)
		clauses = append(clauses, "submission_date = $"+strconv.Itoa(len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *storePG) ListByCondition(ctx context.Context, conditionType string, f Filter, p pagination.Params) ([]*Entry, int, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()

	clause, args := where(conditionType, f)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM progress_entries WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, classify("count entries", err)
	}

	query := `SELECT ` + entryCols + ` FROM progress_entries WHERE ` + clause +
		` ORDER BY submitted_at DESC, id DESC`
	if p.Paged() {
		args = append(args, p.Limit, p.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	} else if p.Offset > 0 {
		args = append(args, p.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list entries", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, classify("scan entries", err)
	}
	return items, total, nil
}

func (r *storePG) ListByPatient(ctx context.Context, conditionType string, patientID int64) ([]*Entry, error) {
	items, _, err := r.ListByCondition(ctx, conditionType, Filter{PatientID: patientID}, pagination.Params{})
	return items, err
}

func (r *storePG) Exists(ctx context.Context, conditionType string, patientID int64, date condition.Date) (int64, bool, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM progress_entries
		WHERE condition_type = $1 AND patient_id = $2 AND submission_date = $3`,
		conditionType, patientID, date.Time).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("check entry", err)
	}
	return id, true, nil
}

func (r *storePG) GetByID(ctx context.Context, conditionType string, id int64) (*Entry, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryCols+` FROM progress_entries
		WHERE condition_type = $1 AND id = $2`, conditionType, id))
	if err != nil {
		return nil, classify("get entry", err)
	}
	return e, nil
}

func (r *storePG) Delete(ctx context.Context, conditionType string, id int64) (*Entry, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()
	e, err := scanEntry(r.pool.QueryRow(ctx, `DELETE FROM progress_entries
		WHERE condition_type = $1 AND id = $2 RETURNING `+entryCols, conditionType, id))
	if err != nil {
		return nil, classify("delete entry", err)
	}
	return e, nil
}

func (r *storePG) Tallies(ctx context.Context, conditionType string) ([]Tally, error) {
	ctx, cancel := r.budget(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT status, urgency_status, COUNT(*) FROM progress_entries
		WHERE condition_type = $1 GROUP BY status, urgency_status`, conditionType)
	if err != nil {
		return nil, classify("tally entries", err)
	}
	defer rows.Close()

	var out []Tally
	for rows.Next() {
		var status, urgency string
		var t Tally
		if err := rows.Scan(&status, &urgency, &t.Count); err != nil {
			return nil, classify("scan tally", err)
		}
		t.Status = condition.Status(status)
		t.Urgency = condition.Urgency(urgency)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("scan tally", err)
	}
	return out, nil
}

// PostgreSQL error codes that mean a concurrent writer won the race.
var conflictCodes = map[string]bool{
	"23505": true, // unique_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// classify maps a driver error onto the package's error taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictCodes[pgErr.Code] {
		return fmt.Errorf("%s: %w: %s", op, ErrStorageConflict, pgErr.Code)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageFault, err)
}
