package postnatal

import "context"

type Repository interface {
	// Upsert creates or fully replaces the patient's profile.
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	Get(ctx context.Context, patientID int64) (*Profile, error)
}
