package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
	"github.com/dentalhub/dentalhub/pkg/pagination"
)

// AvailabilityVersion is the current availability envelope version.
const AvailabilityVersion = 2

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dentists/:id/availability", h.GetAvailability)
	api.POST("/appointments", h.BookAppointment, auth.RequireUser())

	dentist := api.Group("", auth.RequireRole(auth.RoleDentist))
	dentist.GET("/dentists/:id/appointments", h.ListAppointments)
	dentist.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
}

type availabilityResponse struct {
	Success        bool   `json:"success"`
	Version        int    `json:"version"`
	Date           string `json:"date"`
	Slots          []Slot `json:"slots"`
	IsDefaultHours bool   `json:"isDefaultHours"`
}

func isLegacy(version string) bool {
	return version == "legacy" || version == "1"
}

// GetAvailability serves the versioned envelope, or the bare slot array
// when version=legacy is requested.
func (h *Handler) GetAvailability(c echo.Context) error {
	dentistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid dentist id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return apperr.Validation("date", "date is required")
	}
	mode := Mode(c.QueryParam("mode"))
	if mode == "" {
		mode = ModeFull
	}
	if mode != ModeQuick && mode != ModeFull {
		return apperr.Validation("mode", "mode must be quick or full")
	}

	res, err := h.svc.Availability(c.Request().Context(), dentistID, date, mode)
	if err != nil {
		return err
	}
	if isLegacy(c.QueryParam("version")) {
		return c.JSON(http.StatusOK, res.Slots)
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		Success:        true,
		Version:        AvailabilityVersion,
		Date:           res.Date,
		Slots:          res.Slots,
		IsDefaultHours: res.IsDefaultHours,
	})
}

type bookingResponse struct {
	Success       bool      `json:"success"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	State         FlowState `json:"state"`
}

// BookAppointment books for the authenticated user. A userId in the body
// is ignored.
func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid request body")
	}
	req.UserID = auth.UserIDFromContext(c.Request().Context())

	flow, err := StartFlow(req)
	if err != nil {
		return apperr.Validation("time", "time must be hh:mm AM|PM or HH:mm")
	}

	appt, err := h.svc.BookSlot(c.Request().Context(), req)
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindSlotAlreadyBooked {
		// The client goes back to slot selection with fresh availability.
		_ = flow.SlotTaken()
		appErr.Details["nextState"] = string(flow.State())
		return appErr
	}
	if err != nil {
		return err
	}
	if err := flow.Submit(appt.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bookingResponse{
		Success:       true,
		AppointmentID: appt.ID,
		State:         flow.State(),
	})
}

func actorFromContext(c echo.Context) (Actor, error) {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, apperr.Unauthorized("authentication required")
	}
	return Actor{UserID: uid, Roles: auth.RolesFromContext(ctx)}, nil
}

func (h *Handler) ListAppointments(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	dentistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid dentist id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actor, dentistID, c.QueryParam("date"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid appointment id")
	}
	var body statusRequest
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("", "invalid request body")
	}
	appt, err := h.svc.UpdateAppointmentStatus(c.Request().Context(), actor, id, body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}
