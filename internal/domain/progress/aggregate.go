package progress

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/pkg/pagination"
)

const (
	DefaultRecent = 10
	MaxRecent     = 100
	overviewDepth = 5
)

// Aggregator builds read models that span every registered condition. Reads
// fan out concurrently, one query per condition.
type Aggregator struct {
	registry *condition.Registry
	store    Store
}

func NewAggregator(registry *condition.Registry, store Store) *Aggregator {
	return &Aggregator{registry: registry, store: store}
}

// FeedQuery filters the merged feed. An empty ConditionType spans every
// condition.
type FeedQuery struct {
	ConditionType string
	Filter
	Page pagination.Params
}

func (a *Aggregator) specs(conditionType string) ([]*condition.ConditionSpec, error) {
	if conditionType == "" {
		return a.registry.Specs(), nil
	}
	spec, ok := a.registry.Lookup(conditionType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCondition, conditionType)
	}
	return []*condition.ConditionSpec{spec}, nil
}

// fanOut runs read once per spec and collects the per-spec results in spec
// order. The first error cancels the remaining reads.
func fanOut[T any](ctx context.Context, specs []*condition.ConditionSpec, read func(ctx context.Context, spec *condition.ConditionSpec) (T, error)) ([]T, error) {
	out := make([]T, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			v, err := read(ctx, spec)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// merge tags every row with the condition it was read from and merges
// the per-condition slices.
func merge(specs []*condition.ConditionSpec, parts [][]*Entry) []*Entry {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	all := make([]*Entry, 0, n)
	for i, p := range parts {
		tag(p, specs[i].Type)
		all = append(all, p...)
	}
	sortFeed(all)
	return all
}

// sortFeed orders newest first. Ties on submitted_at fall back to condition
// type ascending, then id descending.
func sortFeed(items []*Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		if a.ConditionType != b.ConditionType {
			return a.ConditionType < b.ConditionType
		}
		return a.ID > b.ID
	})
}

// ListAll merges matching entries across conditions. Total and ByCondition
// always describe every match; Page only selects the returned window.
func (a *Aggregator) ListAll(ctx context.Context, q FeedQuery) (*Feed, error) {
	specs, err := a.specs(q.ConditionType)
	if err != nil {
		return nil, err
	}
	parts, err := fanOut(ctx, specs, func(ctx context.Context, spec *condition.ConditionSpec) ([]*Entry, error) {
		items, _, err := a.store.ListByCondition(ctx, spec.Type, q.Filter, pagination.Params{})
		return items, err
	})
	if err != nil {
		return nil, err
	}

	all := merge(specs, parts)
	feed := &Feed{Total: len(all), ByCondition: make(map[string]int)}
	for _, e := range all {
		feed.ByCondition[e.ConditionType]++
	}
	start, end := q.Page.Window(len(all))
	feed.Entries = all[start:end]
	return feed, nil
}

// Recent returns the limit most recent entries across every condition.
func (a *Aggregator) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultRecent
	}
	if limit > MaxRecent {
		limit = MaxRecent
	}
	specs := a.registry.Specs()
	parts, err := fanOut(ctx, specs, func(ctx context.Context, spec *condition.ConditionSpec) ([]*Entry, error) {
		items, _, err := a.store.ListByCondition(ctx, spec.Type, Filter{}, pagination.Params{Limit: limit})
		return items, err
	})
	if err != nil {
		return nil, err
	}
	all := merge(specs, parts)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Stats counts every stored entry by condition, reported status and urgency.
func (a *Aggregator) Stats(ctx context.Context) (*Stats, error) {
	specs := a.registry.Specs()
	parts, err := fanOut(ctx, specs, func(ctx context.Context, spec *condition.ConditionSpec) ([]Tally, error) {
		return a.store.Tallies(ctx, spec.Type)
	})
	if err != nil {
		return nil, err
	}

	st := &Stats{
		ByCondition: make(map[string]int, len(specs)),
		ByUrgency: map[string]int{
			string(condition.UrgencyLow):    0,
			string(condition.UrgencyMedium): 0,
			string(condition.UrgencyHigh):   0,
		},
	}
	for i, tallies := range parts {
		typ := specs[i].Type
		st.ByCondition[typ] = 0
		for _, t := range tallies {
			st.TotalEntries += t.Count
			st.ByCondition[typ] += t.Count
			st.ByUrgency[string(t.Urgency)] += t.Count
			switch t.Status {
			case condition.StatusUrgent:
				st.UrgentEntries += t.Count
			case condition.StatusMonitor:
				st.MonitorEntries += t.Count
			}
		}
	}
	return st, nil
}

// PatientConditions summarises which conditions a patient reports on.
func (a *Aggregator) PatientConditions(ctx context.Context, patientID int64) (*PatientOverview, error) {
	specs := a.registry.Specs()
	parts, err := fanOut(ctx, specs, func(ctx context.Context, spec *condition.ConditionSpec) ([]*Entry, error) {
		return a.store.ListByPatient(ctx, spec.Type, patientID)
	})
	if err != nil {
		return nil, err
	}

	ov := &PatientOverview{PatientID: patientID, Conditions: []ConditionSummary{}}
	for i, items := range parts {
		if len(items) == 0 {
			continue
		}
		sum := ConditionSummary{ConditionType: specs[i].Type, Count: len(items)}
		for _, e := range items {
			if e.SubmissionDate.After(sum.LastSubmission.Time) {
				sum.LastSubmission = e.SubmissionDate
			}
		}
		ov.Conditions = append(ov.Conditions, sum)
	}

	all := merge(specs, parts)
	if len(all) > overviewDepth {
		all = all[:overviewDepth]
	}
	ov.Recent = all
	return ov, nil
}
