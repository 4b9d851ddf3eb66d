package postnatal

import (
	"context"

	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "postnatal").Logger()}
}

func (s *Service) SaveProfile(ctx context.Context, p *Profile) (*Profile, error) {
	saved, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("patient_id", saved.PatientID).
		Str("delivery_type", saved.DeliveryType).
		Bool("created", saved.CreatedAt.Equal(saved.UpdatedAt)).
		Msg("postnatal profile saved")
	return saved, nil
}

func (s *Service) GetProfile(ctx context.Context, patientID int64) (*Profile, error) {
	return s.repo.Get(ctx, patientID)
}
