package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/platform/events"
	"github.com/ehr/healthprogress/pkg/pagination"
)

// memStore is a map-backed Store. Each insert advances the clock by one
// second so listing order is deterministic.
type memStore struct {
	mu       sync.Mutex
	rows     map[int64]*Entry
	nextID   int64
	now      time.Time
	replaces int

	// replaceErrs are returned by successive ReplaceAtomic calls before
	// any write happens.
	replaceErrs []error
	listErr     error
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[int64]*Entry),
		now:  time.Date(2025, 11, 5, 8, 0, 0, 0, time.UTC),
	}
}

func clone(e *Entry) *Entry {
	cp := *e
	return &cp
}

func sameKey(e *Entry, conditionType string, patientID int64, date condition.Date) bool {
	return e.ConditionType == conditionType && e.PatientID == patientID && e.SubmissionDate.Equal(date.Time)
}

func (m *memStore) FindByKey(_ context.Context, conditionType string, patientID int64, date condition.Date) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if sameKey(e, conditionType, patientID, date) {
			return clone(e), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ReplaceAtomic(_ context.Context, e *Entry) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	if len(m.replaceErrs) > 0 {
		err := m.replaceErrs[0]
		m.replaceErrs = m.replaceErrs[1:]
		if err != nil {
			return nil, false, err
		}
	}

	replaced := false
	for id, old := range m.rows {
		if sameKey(old, e.ConditionType, e.PatientID, e.SubmissionDate) {
			delete(m.rows, id)
			replaced = true
		}
	}
	m.nextID++
	m.now = m.now.Add(time.Second)
	saved := clone(e)
	saved.ID = m.nextID
	saved.SubmittedAt = m.now
	saved.UrgencyTrail = nil
	m.rows[saved.ID] = saved

	out := clone(saved)
	out.UrgencyTrail = e.UrgencyTrail
	return out, replaced, nil
}

// put stores e directly, bypassing normalization.
func (m *memStore) put(e *Entry) *Entry {
	saved, _, _ := m.ReplaceAtomic(context.Background(), e)
	return saved
}

func (m *memStore) ListByCondition(_ context.Context, conditionType string, f Filter, p pagination.Params) ([]*Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	items := []*Entry{}
	for _, e := range m.rows {
		if e.ConditionType != conditionType {
			continue
		}
		if f.PatientID > 0 && e.PatientID != f.PatientID {
			continue
		}
		if f.Date != nil && !e.SubmissionDate.Equal(f.Date.Time) {
			continue
		}
		items = append(items, clone(e))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.After(items[j].SubmittedAt)
		}
		return items[i].ID > items[j].ID
	})
	start, end := p.Window(len(items))
	return items[start:end], len(items), nil
}

func (m *memStore) ListByPatient(ctx context.Context, conditionType string, patientID int64) ([]*Entry, error) {
	items, _, err := m.ListByCondition(ctx, conditionType, Filter{PatientID: patientID}, pagination.Params{})
	return items, err
}

func (m *memStore) Exists(ctx context.Context, conditionType string, patientID int64, date condition.Date) (int64, bool, error) {
	e, err := m.FindByKey(ctx, conditionType, patientID, date)
	if err != nil {
		return 0, false, nil
	}
	return e.ID, true, nil
}

func (m *memStore) GetByID(_ context.Context, conditionType string, id int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.ConditionType != conditionType {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *memStore) Delete(_ context.Context, conditionType string, id int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.ConditionType != conditionType {
		return nil, ErrNotFound
	}
	delete(m.rows, id)
	return e, nil
}

func (m *memStore) Tallies(_ context.Context, conditionType string) ([]Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buckets := make(map[[2]string]int)
	for _, e := range m.rows {
		if e.ConditionType == conditionType {
			buckets[[2]string{string(e.Status), string(e.UrgencyStatus)}]++
		}
	}
	out := make([]Tally, 0, len(buckets))
	for k, n := range buckets {
		out = append(out, Tally{Status: condition.Status(k[0]), Urgency: condition.Urgency(k[1]), Count: n})
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fixture struct {
	registry *condition.Registry
	store    *memStore
	events   *events.Recorder
	svc      *Service
	agg      *Aggregator
}

func newFixture() *fixture {
	reg := condition.MustRegistry(condition.Catalog()...)
	store := newMemStore()
	rec := &events.Recorder{}
	return &fixture{
		registry: reg,
		store:    store,
		events:   rec,
		svc:      NewService(reg, store, rec, zerolog.Nop()),
		agg:      NewAggregator(reg, store),
	}
}

// entry builds a stored row for aggregation tests.
func entry(conditionType string, patientID int64, day int, urgency condition.Urgency, status condition.Status) *Entry {
	return &Entry{
		PatientID:      patientID,
		PatientName:    "P",
		ConditionType:  conditionType,
		SubmissionDate: condition.NewDate(2025, time.November, day),
		UrgencyStatus:  urgency,
		Status:         status,
		CommonData:     map[string]interface{}{},
		ConditionData:  map[string]interface{}{},
	}
}
