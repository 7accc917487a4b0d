package scheduling

import (
	"errors"

	"github.com/google/uuid"
)

// FlowState is a step of the booking flow a client walks through.
type FlowState string

const (
	StateSelectSlot FlowState = "SELECT_SLOT"
	StateFillForm   FlowState = "FILL_FORM"
	StateSubmitted  FlowState = "SUBMITTED"
	StateCancelled  FlowState = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid booking flow transition")

// BookingFlow tracks SELECT_SLOT -> FILL_FORM -> SUBMITTED. Quick flows
// start in FILL_FORM with the slot already chosen.
type BookingFlow struct {
	state         FlowState
	slot          string
	quick         bool
	appointmentID uuid.UUID
}

func NewBookingFlow() *BookingFlow {
	return &BookingFlow{state: StateSelectSlot}
}

// NewQuickBookingFlow skips slot selection.
func NewQuickBookingFlow(slot string) (*BookingFlow, error) {
	t, err := NormalizeTime(slot)
	if err != nil {
		return nil, err
	}
	return &BookingFlow{state: StateFillForm, slot: t, quick: true}, nil
}

func (f *BookingFlow) State() FlowState         { return f.state }
func (f *BookingFlow) Slot() string             { return f.slot }
func (f *BookingFlow) Quick() bool              { return f.quick }
func (f *BookingFlow) AppointmentID() uuid.UUID { return f.appointmentID }

func (f *BookingFlow) terminal() bool {
	return f.state == StateSubmitted || f.state == StateCancelled
}

// SelectSlot picks a slot and moves to the form.
func (f *BookingFlow) SelectSlot(slot string) error {
	if f.state != StateSelectSlot {
		return ErrInvalidTransition
	}
	t, err := NormalizeTime(slot)
	if err != nil {
		return err
	}
	f.slot = t
	f.state = StateFillForm
	return nil
}

// Back returns from the form to slot selection and forgets the slot.
func (f *BookingFlow) Back() error {
	if f.state != StateFillForm {
		return ErrInvalidTransition
	}
	f.slot = ""
	f.state = StateSelectSlot
	return nil
}

// Submit records the created appointment.
func (f *BookingFlow) Submit(appointmentID uuid.UUID) error {
	if f.state != StateFillForm || f.slot == "" || appointmentID == uuid.Nil {
		return ErrInvalidTransition
	}
	f.appointmentID = appointmentID
	f.state = StateSubmitted
	return nil
}

// Cancel aborts the flow without booking.
func (f *BookingFlow) Cancel() error {
	if f.terminal() {
		return ErrInvalidTransition
	}
	f.slot = ""
	f.state = StateCancelled
	return nil
}

// SlotTaken handles a lost booking race: the form is abandoned and the
// client picks a slot again.
func (f *BookingFlow) SlotTaken() error {
	if f.state != StateFillForm {
		return ErrInvalidTransition
	}
	f.slot = ""
	f.state = StateSelectSlot
	return nil
}

// StartFlow opens the flow a booking submission implies. Quick bookings
// arrive with the slot preselected; full bookings pass through slot
// selection.
func StartFlow(req BookingRequest) (*BookingFlow, error) {
	if req.Mode == ModeQuick {
		return NewQuickBookingFlow(req.Time)
	}
	f := NewBookingFlow()
	if err := f.SelectSlot(req.Time); err != nil {
		return nil, err
	}
	return f, nil
}
