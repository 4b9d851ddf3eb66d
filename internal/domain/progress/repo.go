package progress

import (
	"context"

	"github.com/ehr/healthprogress/internal/domain/condition"
	"github.com/ehr/healthprogress/pkg/pagination"
)

// Store persists entries. Every method returns ErrNotFound,
// ErrStorageConflict or ErrStorageFault (possibly wrapped) on failure.
type Store interface {
	FindByKey(ctx context.Context, conditionType string, patientID int64, date condition.Date) (*Entry, error)
	// ReplaceAtomic deletes any entry with e's identity key and inserts e in
	// one transaction. It reports whether a prior entry was removed.
	ReplaceAtomic(ctx context.Context, e *Entry) (*Entry, bool, error)
	// ListByCondition returns matches ordered by submitted_at desc, id desc,
	// and the total number of matches regardless of paging.
	ListByCondition(ctx context.Context, conditionType string, f Filter, p pagination.Params) ([]*Entry, int, error)
	ListByPatient(ctx context.Context, conditionType string, patientID int64) ([]*Entry, error)
	Exists(ctx context.Context, conditionType string, patientID int64, date condition.Date) (int64, bool, error)
	GetByID(ctx context.Context, conditionType string, id int64) (*Entry, error)
	Delete(ctx context.Context, conditionType string, id int64) (*Entry, error)
	Tallies(ctx context.Context, conditionType string) ([]Tally, error)
}
