package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.GetCurrentUser, auth.RequireUser())
	api.GET("/dentists/:id", h.GetDentist)
	api.GET("/dentists/:id/business-hours", h.GetBusinessHours)

	owner := api.Group("", auth.RequireRole(auth.RoleDentist))
	owner.PUT("/dentists/:id/business-hours", h.UpdateBusinessHours)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("id", "invalid id")
	}
	return id, nil
}

type currentUserResponse struct {
	User    *User    `json:"user"`
	Dentist *Dentist `json:"dentist,omitempty"`
}

// GetCurrentUser returns the caller's account and, for dentists, their
// clinic profile.
func (h *Handler) GetCurrentUser(c echo.Context) error {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.Unauthorized("authentication required")
	}
	u, err := h.svc.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	resp := currentUserResponse{User: u}
	if d, err := h.svc.GetDentistByUserID(ctx, uid); err == nil {
		resp.Dentist = d
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDentist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDentist(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type businessHoursBody struct {
	BusinessHours scheduling.WeeklyBusinessHours `json:"businessHours"`
	Configured    bool                           `json:"configured"`
}

// GetBusinessHours returns the stored hours, or the defaults with
// configured=false.
func (h *Handler) GetBusinessHours(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	hours, configured, err := h.svc.GetBusinessHours(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !configured {
		hours = scheduling.DefaultBusinessHours()
	}
	return c.JSON(http.StatusOK, businessHoursBody{BusinessHours: hours, Configured: configured})
}

func (h *Handler) UpdateBusinessHours(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	actor, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.Unauthorized("authentication required")
	}
	var body businessHoursBody
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("businessHours", "invalid request body")
	}
	if body.BusinessHours == nil {
		return apperr.Validation("businessHours", "businessHours is required")
	}
	d, err := h.svc.UpdateBusinessHours(ctx, actor, auth.RolesFromContext(ctx), id, body.BusinessHours)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, businessHoursBody{BusinessHours: d.BusinessHours, Configured: true})
}
