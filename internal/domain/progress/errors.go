package progress

import (
	"errors"

	"github.com/ehr/healthprogress/internal/domain/condition"
)

var (
	ErrUnknownCondition = errors.New("unknown condition type")
	ErrNotFound         = errors.New("entry not found")
	ErrStorageConflict  = errors.New("concurrent write on the same entry, please retry")
	ErrStorageFault     = errors.New("storage failure")
	ErrForbidden        = errors.New("access to this patient is not permitted")
)

type (
	ValidationError = condition.ValidationError
	FieldError      = condition.FieldError
)
