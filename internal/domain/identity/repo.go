package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type DentistRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error)
	UpdateBusinessHours(ctx context.Context, id uuid.UUID, hours scheduling.WeeklyBusinessHours) error
	TouchLastActivity(ctx context.Context, id uuid.UUID) error
}
