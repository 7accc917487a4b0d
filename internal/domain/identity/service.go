package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
)

// Service is the user and dentist directory. It also serves as the
// scheduling.DentistDirectory.
type Service struct {
	users     UserRepository
	dentists  DentistRepository
	validator *scheduling.Validator
	logger    zerolog.Logger
}

func NewService(users UserRepository, dentists DentistRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		dentists:  dentists,
		validator: scheduling.NewValidator(),
		logger:    logger,
	}
}

func notFound(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *Service) GetDentist(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	d, err := s.dentists.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "dentist not found")
	}
	return d, nil
}

func (s *Service) GetDentistByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error) {
	d, err := s.dentists.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "dentist not found")
	}
	return d, nil
}

// GetBusinessHours reports configured=false when the dentist never saved
// any hours.
func (s *Service) GetBusinessHours(ctx context.Context, dentistID uuid.UUID) (scheduling.WeeklyBusinessHours, bool, error) {
	d, err := s.GetDentist(ctx, dentistID)
	if err != nil {
		return nil, false, err
	}
	return d.BusinessHours, len(d.BusinessHours) > 0, nil
}

// UpdateBusinessHours replaces the weekly hours. Only the owning user or an
// admin may change them.
func (s *Service) UpdateBusinessHours(ctx context.Context, actorID uuid.UUID, actorRoles []string, dentistID uuid.UUID, hours scheduling.WeeklyBusinessHours) (*Dentist, error) {
	d, err := s.GetDentist(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	if d.UserID != actorID && !auth.HasRole(actorRoles, auth.RoleAdmin) {
		return nil, apperr.Forbidden("only the clinic owner or an admin may edit business hours")
	}
	if err := s.validator.ValidateHours(hours); err != nil {
		return nil, err
	}
	if err := s.dentists.UpdateBusinessHours(ctx, dentistID, hours); err != nil {
		return nil, notFound(err, "dentist not found")
	}
	d.BusinessHours = hours

	s.logger.Info().
		Str("dentist_id", dentistID.String()).
		Str("actor_id", actorID.String()).
		Int("days", len(hours)).
		Msg("business hours updated")
	return d, nil
}

func (s *Service) TouchLastActivity(ctx context.Context, dentistID uuid.UUID) error {
	return s.dentists.TouchLastActivity(ctx, dentistID)
}

func (s *Service) IsDentistOwner(ctx context.Context, userID, dentistID uuid.UUID) (bool, error) {
	d, err := s.GetDentist(ctx, dentistID)
	if err != nil {
		return false, err
	}
	return d.UserID == userID, nil
}
