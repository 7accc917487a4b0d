package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
	"github.com/dentalhub/dentalhub/internal/platform/db"
	"github.com/dentalhub/dentalhub/internal/platform/events"
)

// Options configures the availability engine.
type Options struct {
	Granularity   time.Duration
	QuickLeadTime time.Duration
	FullLeadTime  time.Duration
	// Location decides what "today" is for lead-time filtering.
	Location  *time.Location
	Now       func() time.Time
	Publisher events.Publisher
	Logger    zerolog.Logger
}

type Service struct {
	appointments AppointmentRepository
	directory    DentistDirectory
	tx           db.Transactor
	validator    *Validator
	opts         Options
}

func NewService(appts AppointmentRepository, dir DentistDirectory, tx db.Transactor, opts Options) *Service {
	if opts.Granularity <= 0 {
		opts.Granularity = DefaultGranularity
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	return &Service{
		appointments: appts,
		directory:    dir,
		tx:           tx,
		validator:    NewValidator(),
		opts:         opts,
	}
}

func (s *Service) leadTime(mode Mode) time.Duration {
	if mode == ModeQuick {
		return s.opts.QuickLeadTime
	}
	return s.opts.FullLeadTime
}

// Availability computes the slots of one dentist on date. Dentists without
// configured hours get DefaultBusinessHours and IsDefaultHours is set.
func (s *Service) Availability(ctx context.Context, dentistID uuid.UUID, date string, mode Mode) (*AvailabilityResult, error) {
	day, err := time.ParseInLocation(DateLayout, date, s.opts.Location)
	if err != nil {
		return nil, apperr.Validation("date", "date must be in yyyy-MM-dd format")
	}

	hours, configured, err := s.directory.GetBusinessHours(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	if !configured {
		hours = DefaultBusinessHours()
	}

	booked, err := s.appointments.BookedTimes(ctx, dentistID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	now := s.opts.Now().In(s.opts.Location)
	slots := GenerateSlots(hours, day, now, SlotOptions{
		Granularity: s.opts.Granularity,
		LeadTime:    s.leadTime(mode),
	}, booked)

	return &AvailabilityResult{
		DentistID:      dentistID,
		Date:           date,
		Slots:          slots,
		IsDefaultHours: !configured,
	}, nil
}

// offers reports whether timeOfDay is on the slot grid of date, ignoring
// bookings. Past days offer nothing, and today honours the lead time of
// mode.
func (s *Service) offers(hours WeeklyBusinessHours, date, timeOfDay string, mode Mode) bool {
	day, err := time.ParseInLocation(DateLayout, date, s.opts.Location)
	if err != nil {
		return false
	}
	now := s.opts.Now().In(s.opts.Location)
	y, m, d := now.Date()
	if day.Before(time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)) {
		return false
	}
	slots := GenerateSlots(hours, day, now, SlotOptions{
		Granularity: s.opts.Granularity,
		LeadTime:    s.leadTime(mode),
	}, nil)
	for _, slot := range slots {
		if slot.Time == timeOfDay {
			return true
		}
	}
	return false
}

// BookSlot creates a pending appointment. The conflict check and the insert
// share one transaction, and the partial unique index on
// (dentist_id, date, time) rejects whatever slips past the check.
func (s *Service) BookSlot(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := s.validator.ValidateBooking(&req); err != nil {
		return nil, err
	}

	timeOfDay, _ := NormalizeTime(req.Time)
	appt := &Appointment{
		DentistID:    uuid.MustParse(req.DentistID),
		UserID:       uuid.MustParse(req.UserID),
		Date:         req.Date,
		Time:         timeOfDay,
		PatientName:  req.Name,
		PatientPhone: NormalizePhone(req.Phone),
		PatientEmail: req.Email,
		Message:      optional(req.Message),
		OtherInfo:    optional(req.OtherInfo),
		Status:       StatusPending,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		hours, configured, err := s.directory.GetBusinessHours(ctx, appt.DentistID)
		if err != nil {
			return err
		}
		if !configured {
			hours = DefaultBusinessHours()
		}
		if !s.offers(hours, appt.Date, appt.Time, req.Mode) {
			return apperr.Validation("time", "the selected time is not an offered slot")
		}
		taken, err := s.appointments.ExistsActive(ctx, appt.DentistID, appt.Date, appt.Time)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return err
		}
		return s.directory.TouchLastActivity(ctx, appt.DentistID)
	})
	if errors.Is(err, ErrSlotTaken) {
		s.opts.Logger.Warn().
			Str("dentist_id", appt.DentistID.String()).
			Str("date", appt.Date).
			Str("time", appt.Time).
			Msg("booking conflict")
		return nil, apperr.SlotAlreadyBooked(appt.Date, appt.Time)
	}
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("dentist_id", appt.DentistID.String()).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment booked")
	return appt, nil
}

func (s *Service) authorizeDentist(ctx context.Context, actor Actor, dentistID uuid.UUID) error {
	if auth.HasRole(actor.Roles, auth.RoleAdmin) {
		return nil
	}
	owner, err := s.directory.IsDentistOwner(ctx, actor.UserID, dentistID)
	if err != nil {
		return err
	}
	if !owner {
		return apperr.Forbidden("not allowed to manage this dentist's appointments")
	}
	return nil
}

// ListAppointments returns the appointments of a dentist, optionally for a
// single date. Only the dentist's owner or an admin may list them.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, dentistID uuid.UUID, date string, limit, offset int) ([]*Appointment, int, error) {
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, 0, apperr.Validation("date", "date must be in yyyy-MM-dd format")
		}
	}
	if err := s.authorizeDentist(ctx, actor, dentistID); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByDentist(ctx, dentistID, date, limit, offset)
}

// UpdateAppointmentStatus moves an appointment along
// pending -> confirmed -> completed, or to cancelled from any open status.
// Cancelling frees the slot.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDentist(ctx, actor, appt.DentistID); err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, status) {
		return nil, apperr.Validation("status", fmt.Sprintf("cannot change status from %s to %s", appt.Status, status))
	}
	if err := s.appointments.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	appt.Status = status

	evt := events.New(events.TypeAppointmentUpdated, "appointment", appt.ID.String(),
		[]string{appt.UserID.String(), actor.UserID.String()},
		map[string]string{"status": status, "date": appt.Date, "time": appt.Time})
	if err := s.opts.Publisher.Publish(ctx, evt); err != nil {
		s.opts.Logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("publish appointment event")
	}
	return appt, nil
}
