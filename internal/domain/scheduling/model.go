package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var statusTransitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
}

// CanTransition reports whether an appointment may move from one status to
// another. Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	return statusTransitions[from][to]
}

// Appointment is a booked slot. At most one non-cancelled appointment exists
// per dentist, date and time.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	DentistID    uuid.UUID `json:"dentistId"`
	UserID       uuid.UUID `json:"userId"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	PatientName  string    `json:"patientName"`
	PatientPhone string    `json:"patientPhone"`
	PatientEmail string    `json:"patientEmail"`
	Message      *string   `json:"message,omitempty"`
	OtherInfo    *string   `json:"otherInfo,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BookingRequest is the booking submission. Time may be in either notation.
type BookingRequest struct {
	DentistID string `json:"dentistId" validate:"required,uuid"`
	UserID    string `json:"userId" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,timeofday"`
	Name      string `json:"name" validate:"required,max=200"`
	Phone     string `json:"phone" validate:"required,phone"`
	Email     string `json:"email" validate:"required,email"`
	Message   string `json:"message" validate:"max=2000"`
	OtherInfo string `json:"otherInfo" validate:"max=2000"`
	// Mode picks the lead-time policy the slot is checked against. Quick
	// bookings skip slot selection in the client flow.
	Mode Mode `json:"mode" validate:"omitempty,oneof=quick full"`
}

// Mode selects the lead-time policy of an availability query.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// AvailabilityResult is the slot list for one dentist and day.
type AvailabilityResult struct {
	DentistID      uuid.UUID `json:"dentistId"`
	Date           string    `json:"date"`
	Slots          []Slot    `json:"slots"`
	IsDefaultHours bool      `json:"isDefaultHours"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
