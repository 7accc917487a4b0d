package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockDirectory, *echo.Echo) {
	svc, _, dir, _ := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return NewHandler(svc), dir, e
}

func withUser(req *http.Request, userID uuid.UUID, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), userID.String(), roles))
}

func TestHandler_GetAvailability_Envelope(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-03-05", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(dentistID.String())

	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Version != AvailabilityVersion || !body.IsDefaultHours || len(body.Slots) != 16 {
		t.Errorf("unexpected envelope: %+v", body)
	}
}

func TestHandler_GetAvailability_Legacy(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-03-05&version=legacy", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(dentistID.String())

	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var slots []Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("expected a bare array, got %s", rec.Body.String())
	}
	if len(slots) != 16 || slots[0].Time != "09:00" {
		t.Errorf("unexpected legacy slots: %v", slots)
	}
}

func TestHandler_GetAvailability_BadInput(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)

	for _, tc := range []struct{ id, query string }{
		{"not-a-uuid", "date=2024-03-05"},
		{dentistID.String(), ""},
		{dentistID.String(), "date=2024-03-05&mode=instant"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tc.id)
		if err := h.GetAvailability(c); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("id=%s query=%s: expected validation error, got %v", tc.id, tc.query, err)
		}
	}
}

func TestHandler_BookAppointment(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)
	patient := uuid.New()

	body := `{"dentistId":"` + dentistID.String() + `","userId":"` + uuid.NewString() + `","date":"2024-03-05","time":"10:00 AM","name":"Pat","phone":"+14155552671","email":"pat@example.com"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), patient, auth.RoleUser)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp bookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.AppointmentID == uuid.Nil || resp.State != StateSubmitted {
		t.Fatalf("unexpected response: %+v", resp)
	}

	appt, err := h.svc.appointments.GetByID(req.Context(), resp.AppointmentID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if appt.UserID != patient {
		t.Errorf("expected booking for the authenticated user, got %s", appt.UserID)
	}
}

func TestHandler_BookAppointment_ConflictResponse(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)
	body := `{"dentistId":"` + dentistID.String() + `","date":"2024-03-05","time":"10:00","name":"Pat","phone":"+14155552671","email":"pat@example.com"}`

	for i, wantStatus := range []int{http.StatusCreated, http.StatusConflict} {
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), uuid.New(), auth.RoleUser)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := h.BookAppointment(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		if rec.Code != wantStatus {
			t.Fatalf("attempt %d: expected %d, got %d", i, wantStatus, rec.Code)
		}
		if wantStatus == http.StatusConflict {
			var resp apperr.Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success || resp.Code != apperr.KindSlotAlreadyBooked || resp.Details["time"] != "10:00" ||
				resp.Details["nextState"] != string(StateSelectSlot) {
				t.Errorf("unexpected conflict body: %s", rec.Body.String())
			}
		}
	}
}

func TestHandler_BookAppointment_QuickModeAndBadTime(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)

	post := func(body string) (*httptest.ResponseRecorder, error) {
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), uuid.New(), auth.RoleUser)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		return rec, h.BookAppointment(e.NewContext(req, rec))
	}
	base := `"dentistId":"` + dentistID.String() + `","date":"2024-03-05","name":"Pat","phone":"+14155552671","email":"pat@example.com"`

	rec, err := post(`{` + base + `,"time":"11:30 AM","mode":"quick"}`)
	if err != nil {
		t.Fatalf("quick booking: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"state":"SUBMITTED"`) {
		t.Errorf("unexpected quick booking response: %s", rec.Body.String())
	}

	_, err = post(`{` + base + `,"time":"+9:00"}`)
	if !apperr.Is(err, apperr.KindValidation) || err.(*apperr.Error).Field != "time" {
		t.Errorf("expected time validation error, got %v", err)
	}

	_, err = post(`{` + base + `,"time":"09:00","mode":"instant"}`)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected mode validation error, got %v", err)
	}
}

func TestHandler_BookAppointment_Unauthenticated(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)
	body := `{"dentistId":"` + dentistID.String() + `","date":"2024-03-05","time":"10:00","name":"Pat","phone":"+14155552671","email":"pat@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	// RequireUser guards the route; calling the handler directly surfaces
	// the missing user id as a validation failure.
	if err := h.BookAppointment(c); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandler_UpdateAppointmentStatus(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, owner := dir.add(nil)
	appt, err := h.svc.BookSlot(httptest.NewRequest(http.MethodGet, "/", nil).Context(), bookingFor(dentistID, "2024-03-05", "15:00"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	req := withUser(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"confirmed"}`)), owner, auth.RoleDentist)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.UpdateAppointmentStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", got.Status)
	}
}

func TestHandler_ListAppointments(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, owner := dir.add(nil)
	_, _ = h.svc.BookSlot(httptest.NewRequest(http.MethodGet, "/", nil).Context(), bookingFor(dentistID, "2024-03-05", "15:00"))

	req := withUser(httptest.NewRequest(http.MethodGet, "/?date=2024-03-05", nil), owner, auth.RoleDentist)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(dentistID.String())

	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Appointment `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].Time != "15:00" {
		t.Errorf("unexpected list: %s", rec.Body.String())
	}
}

func TestHandler_RoutesRequireDentistRole(t *testing.T) {
	h, dir, e := newTestHandler()
	dentistID, _ := dir.add(nil)
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(withUser(c.Request(), uuid.New(), auth.RoleUser))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dentists/"+dentistID.String()+"/appointments", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a patient, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dentists/"+dentistID.String()+"/availability?date=2024-03-05", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected availability to be open to patients, got %d", rec.Code)
	}
}
