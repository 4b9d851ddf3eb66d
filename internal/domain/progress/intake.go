package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/internal/platform/events"
	"github.com/ehr/healthprogress/pkg/pagination"
)

// Service is the intake side of the pipeline. It owns every mutation of
// stored entries.
type Service struct {
	registry *condition.Registry
	store    Store
	events   events.Publisher
	logger   zerolog.Logger
	access   AccessFunc
}

// AccessFunc reports whether the caller in ctx may write entries for
// patientID.
type AccessFunc func(ctx context.Context, patientID int64) bool

func NewService(registry *condition.Registry, store Store, pub events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		store:    store,
		events:   pub,
		logger:   logger.With().Str("component", "intake").Logger(),
	}
}

// WithAccess installs a per-patient write check. Without one every caller
// may submit for any patient.
func (s *Service) WithAccess(fn AccessFunc) *Service {
	s.access = fn
	return s
}

func (s *Service) spec(conditionType string) (*condition.ConditionSpec, error) {
	spec, ok := s.registry.Lookup(conditionType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCondition, conditionType)
	}
	return spec, nil
}

// Submit normalizes, scores and stores one entry. A same-day resubmission
// fully replaces the earlier entry.
func (s *Service) Submit(ctx context.Context, conditionType string, raw map[string]interface{}) (*Entry, error) {
	spec, err := s.spec(conditionType)
	if err != nil {
		return nil, err
	}
	draft, err := condition.Normalize(spec, raw)
	if err != nil {
		return nil, err
	}
	if s.access != nil && !s.access(ctx, draft.PatientID) {
		return nil, ErrForbidden
	}
	assessment := condition.Assess(spec, draft)
	entry := newEntry(draft, assessment)

	prior, err := s.store.FindByKey(ctx, spec.Type, draft.PatientID, draft.SubmissionDate)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	saved, replaced, err := s.store.ReplaceAtomic(ctx, entry)
	if errors.Is(err, ErrStorageConflict) {
		s.logger.Warn().Err(err).
			Str("condition_type", spec.Type).
			Int64("patient_id", entry.PatientID).
			Str("submission_date", entry.SubmissionDate.String()).
			Msg("replace conflict, retrying once")
		saved, replaced, err = s.store.ReplaceAtomic(ctx, entry)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("condition_type", spec.Type).
		Int64("entry_id", saved.ID).
		Int64("patient_id", saved.PatientID).
		Str("submission_date", saved.SubmissionDate.String()).
		Str("urgency_status", string(saved.UrgencyStatus)).
		Bool("replaced", replaced).
		Msg("entry accepted")
	s.logger.Debug().
		Int64("entry_id", saved.ID).
		Int("urgency_score", assessment.Score).
		Interface("urgency_trail", assessment.Trail).
		Msg("urgency assessed")

	ev := events.Event{
		Type:           events.TypeSubmitted,
		ConditionType:  saved.ConditionType,
		EntryID:        saved.ID,
		PatientID:      saved.PatientID,
		SubmissionDate: saved.SubmissionDate.String(),
		UrgencyStatus:  string(saved.UrgencyStatus),
		Status:         string(saved.Status),
		Replaced:       replaced,
	}
	if saved.UrgencyStatus == condition.UrgencyHigh {
		ev.Type = events.TypeUrgent
	}
	if replaced && prior != nil {
		ev.PreviousUrgency = string(prior.UrgencyStatus)
	}
	s.publish(ctx, ev)

	return saved, nil
}

// publish is best effort; the entry is already committed.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Int64("entry_id", ev.EntryID).
			Str("type", ev.Type).
			Msg("publish entry event")
	}
}

// List returns a condition's entries, newest first.
func (s *Service) List(ctx context.Context, conditionType string, f Filter, p pagination.Params) (*Listing, error) {
	spec, err := s.spec(conditionType)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListByCondition(ctx, spec.Type, f, p)
	if err != nil {
		return nil, err
	}
	tag(items, spec.Type)
	return &Listing{Entries: items, Total: total, ConditionType: spec.Type}, nil
}

// Exists answers whether the patient already submitted for the day.
func (s *Service) Exists(ctx context.Context, conditionType string, patientID int64, date condition.Date) (*Existence, error) {
	spec, err := s.spec(conditionType)
	if err != nil {
		return nil, err
	}
	id, ok, err := s.store.Exists(ctx, spec.Type, patientID, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Existence{Exists: false}, nil
	}
	return &Existence{Exists: true, EntryID: &id}, nil
}

// History returns one patient's entries for a condition.
func (s *Service) History(ctx context.Context, conditionType string, patientID int64) (*PatientHistory, error) {
	spec, err := s.spec(conditionType)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListByPatient(ctx, spec.Type, patientID)
	if err != nil {
		return nil, err
	}
	tag(items, spec.Type)
	return &PatientHistory{Entries: items, Total: len(items), PatientID: patientID}, nil
}

func (s *Service) Get(ctx context.Context, conditionType string, id int64) (*Entry, error) {
	spec, err := s.spec(conditionType)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetByID(ctx, spec.Type, id)
	if err != nil {
		return nil, err
	}
	e.ConditionType = spec.Type
	return e, nil
}

// Delete removes one entry. It is an administrative operation.
func (s *Service) Delete(ctx context.Context, conditionType string, id int64) error {
	spec, err := s.spec(conditionType)
	if err != nil {
		return err
	}
	e, err := s.store.Delete(ctx, spec.Type, id)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("condition_type", spec.Type).
		Int64("entry_id", id).
		Int64("patient_id", e.PatientID).
		Msg("entry deleted")
	s.publish(ctx, events.Event{
		Type:           events.TypeDeleted,
		ConditionType:  spec.Type,
		EntryID:        id,
		PatientID:      e.PatientID,
		SubmissionDate: e.SubmissionDate.String(),
	})
	return nil
}

// tag stamps rows with the condition they were read from.
func tag(items []*Entry, conditionType string) {
	for _, e := range items {
		e.ConditionType = conditionType
	}
}
