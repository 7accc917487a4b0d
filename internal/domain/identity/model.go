package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
)

// Account roles as stored on app_user.
const (
	RoleUser    = "USER"
	RoleDentist = "DENTIST"
	RoleAdmin   = "ADMIN"
)

// User is an account. Patients, dentists and admins all have one.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     *string   `json:"image,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dentist is a clinic profile owned by exactly one user account.
type Dentist struct {
	ID             uuid.UUID                      `json:"id"`
	UserID         uuid.UUID                      `json:"userId"`
	Name           string                         `json:"name"`
	ClinicName     string                         `json:"clinicName"`
	Image          *string                        `json:"image,omitempty"`
	BusinessHours  scheduling.WeeklyBusinessHours `json:"businessHours,omitempty"`
	LastActivityAt *time.Time                     `json:"lastActivityAt,omitempty"`
	CreatedAt      time.Time                      `json:"createdAt"`
	UpdatedAt      time.Time                      `json:"updatedAt"`
}

// DisplayName prefers the clinic name.
func (d *Dentist) DisplayName() string {
	if d.ClinicName != "" {
		return d.ClinicName
	}
	return d.Name
}
