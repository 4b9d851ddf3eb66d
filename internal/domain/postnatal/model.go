package postnatal

import (
	"errors"
	"strings"
	"time"

	"github.com/ehr/healthprogress/internal/domain/condition"
)

var (
	ErrNotFound     = errors.New("postnatal profile not found")
	ErrStorageFault = errors.New("storage failure")
	ErrForbidden    = errors.New("access to this patient is not permitted")
)

// Profile is the one-per-patient delivery record that postnatal entries
// refer back to.
type Profile struct {
	PatientID         int64           `json:"patient_id"`
	PatientName       string          `json:"patient_name"`
	DeliveryDate      condition.Date  `json:"delivery_date"`
	DeliveryType      string          `json:"delivery_type"`
	InfantName        string          `json:"infant_name"`
	InfantBirthWeight *float64        `json:"infant_birth_weight,omitempty"`
	InfantBirthDate   *condition.Date `json:"infant_birth_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProfileRequest is the upsert body. Weight is in kilograms.
type ProfileRequest struct {
	PatientID         int64    `json:"patient_id" validate:"required,gt=0"`
	PatientName       string   `json:"patient_name" validate:"required,max=200"`
	DeliveryDate      string   `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	DeliveryType      string   `json:"delivery_type" validate:"required,oneof=vaginal cesarean assisted"`
	InfantName        string   `json:"infant_name" validate:"max=200"`
	InfantBirthWeight *float64 `json:"infant_birth_weight" validate:"omitempty,gt=0,lt=10"`
	InfantBirthDate   *string  `json:"infant_birth_date" validate:"omitempty,datetime=2006-01-02"`
}

// Clean trims free text and folds delivery_type to lower case before
// validation.
func (r *ProfileRequest) Clean() {
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.InfantName = strings.TrimSpace(r.InfantName)
	r.DeliveryType = strings.ToLower(strings.TrimSpace(r.DeliveryType))
	if r.InfantBirthDate != nil && strings.TrimSpace(*r.InfantBirthDate) == "" {
		r.InfantBirthDate = nil
	}
}

// Profile converts a validated request.
func (r *ProfileRequest) Profile() (*Profile, error) {
	delivered, err := condition.ParseDate(r.DeliveryDate)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		PatientID:         r.PatientID,
		PatientName:       r.PatientName,
		DeliveryDate:      delivered,
		DeliveryType:      r.DeliveryType,
		InfantName:        r.InfantName,
		InfantBirthWeight: r.InfantBirthWeight,
	}
	if r.InfantBirthDate != nil {
		born, err := condition.ParseDate(*r.InfantBirthDate)
		if err != nil {
			return nil, err
		}
		p.InfantBirthDate = &born
	}
	return p, nil
}
