package postnatal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/healthprogress/internal/domain/condition"
)

type repoPG struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewRepoPG(pool *pgxpool.Pool, timeout time.Duration) Repository {
	return &repoPG{pool: pool, timeout: timeout}
}

const profileCols = `patient_id, patient_name, delivery_date, delivery_type, infant_name,
	infant_birth_weight, infant_birth_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p         Profile
		delivered time.Time
		born      *time.Time
	)
	err := row.Scan(&p.PatientID, &p.PatientName, &delivered, &p.DeliveryType, &p.InfantName,
		&p.InfantBirthWeight, &born, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DeliveryDate = condition.DateOf(delivered)
	if born != nil {
		d := condition.DateOf(*born)
		p.InfantBirthDate = &d
	}
	return &p, nil
}

func (r *repoPG) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *repoPG) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var born *time.Time
	if p.InfantBirthDate != nil {
		born = &p.InfantBirthDate.Time
	}
	saved, err := scanProfile(r.pool.QueryRow(ctx, `
		INSERT INTO postnatal_profiles (patient_id, patient_name, delivery_date, delivery_type,
			infant_name, infant_birth_weight, infant_birth_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (patient_id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			delivery_date = EXCLUDED.delivery_date,
			delivery_type = EXCLUDED.delivery_type,
			infant_name = EXCLUDED.infant_name,
			infant_birth_weight = EXCLUDED.infant_birth_weight,
			infant_birth_date = EXCLUDED.infant_birth_date,
			updated_at = NOW()
		RETURNING `+profileCols,
		p.PatientID, p.PatientName, p.DeliveryDate.Time, p.DeliveryType,
		p.InfantName, p.InfantBirthWeight, born))
	if err != nil {
		return nil, fmt.Errorf("upsert postnatal profile: %w: %v", ErrStorageFault, err)
	}
	return saved, nil
}

func (r *repoPG) Get(ctx context.Context, patientID int64) (*Profile, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileCols+` FROM postnatal_profiles WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get postnatal profile: %w: %v", ErrStorageFault, err)
	}
	return p, nil
}
