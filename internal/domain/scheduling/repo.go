package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrSlotTaken means a non-cancelled appointment already holds the slot.
	ErrSlotTaken = errors.New("slot already booked")
	ErrNotFound  = errors.New("appointment not found")
)

type AppointmentRepository interface {
	// Create returns ErrSlotTaken when the slot is held by another
	// non-cancelled appointment.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ExistsActive(ctx context.Context, dentistID uuid.UUID, date, timeOfDay string) (bool, error)
	// BookedTimes lists the times of non-cancelled appointments on date.
	BookedTimes(ctx context.Context, dentistID uuid.UUID, date string) ([]string, error)
	ListByDentist(ctx context.Context, dentistID uuid.UUID, date string, limit, offset int) ([]*Appointment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
