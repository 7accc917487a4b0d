package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
)

// -- Mock User Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// -- Mock Dentist Repository --

type mockDentistRepo struct {
	dentists map[uuid.UUID]*Dentist
}

func newMockDentistRepo() *mockDentistRepo {
	return &mockDentistRepo{dentists: make(map[uuid.UUID]*Dentist)}
}

func (m *mockDentistRepo) GetByID(_ context.Context, id uuid.UUID) (*Dentist, error) {
	d, ok := m.dentists[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDentistRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Dentist, error) {
	for _, d := range m.dentists {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDentistRepo) UpdateBusinessHours(_ context.Context, id uuid.UUID, hours scheduling.WeeklyBusinessHours) error {
	d, ok := m.dentists[id]
	if !ok {
		return ErrNotFound
	}
	d.BusinessHours = hours
	return nil
}

func (m *mockDentistRepo) TouchLastActivity(_ context.Context, id uuid.UUID) error {
	if d, ok := m.dentists[id]; ok {
		now := time.Now()
		d.LastActivityAt = &now
	}
	return nil
}

type testDirectory struct {
	svc      *Service
	users    *mockUserRepo
	dentists *mockDentistRepo
}

func newTestService() *testDirectory {
	users := newMockUserRepo()
	dentists := newMockDentistRepo()
	return &testDirectory{
		svc:      NewService(users, dentists, zerolog.Nop()),
		users:    users,
		dentists: dentists,
	}
}

func (td *testDirectory) addUser(name, role string) *User {
	u := &User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role}
	td.users.users[u.ID] = u
	return u
}

func (td *testDirectory) addDentist(owner *User, hours scheduling.WeeklyBusinessHours) *Dentist {
	d := &Dentist{ID: uuid.New(), UserID: owner.ID, Name: owner.Name, ClinicName: owner.Name + " Dental", BusinessHours: hours}
	td.dentists.dentists[d.ID] = d
	return d
}

var _ scheduling.DentistDirectory = (*Service)(nil)

func TestService_GetUserAndDentist(t *testing.T) {
	td := newTestService()
	ctx := context.Background()
	owner := td.addUser("drsmile", RoleDentist)
	d := td.addDentist(owner, nil)

	if u, err := td.svc.GetUser(ctx, owner.ID); err != nil || u.Name != "drsmile" {
		t.Fatalf("GetUser: %v %v", u, err)
	}
	if got, err := td.svc.GetDentist(ctx, d.ID); err != nil || got.UserID != owner.ID {
		t.Fatalf("GetDentist: %v %v", got, err)
	}
	if got, err := td.svc.GetDentistByUserID(ctx, owner.ID); err != nil || got.ID != d.ID {
		t.Fatalf("GetDentistByUserID: %v %v", got, err)
	}

	if _, err := td.svc.GetUser(ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not_found user, got %v", err)
	}
	if _, err := td.svc.GetDentist(ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not_found dentist, got %v", err)
	}
}

func TestService_GetBusinessHours(t *testing.T) {
	td := newTestService()
	ctx := context.Background()
	owner := td.addUser("a", RoleDentist)
	unset := td.addDentist(owner, nil)
	set := td.addDentist(td.addUser("b", RoleDentist), scheduling.WeeklyBusinessHours{
		"Monday": {Intervals: []scheduling.Interval{{From: "08:00", To: "12:00"}}},
	})

	if _, configured, err := td.svc.GetBusinessHours(ctx, unset.ID); err != nil || configured {
		t.Errorf("expected unconfigured hours, got configured=%v err=%v", configured, err)
	}
	hours, configured, err := td.svc.GetBusinessHours(ctx, set.ID)
	if err != nil || !configured || len(hours["Monday"].Intervals) != 1 {
		t.Errorf("expected configured Monday hours, got %v %v %v", hours, configured, err)
	}
}

func TestService_UpdateBusinessHours(t *testing.T) {
	td := newTestService()
	ctx := context.Background()
	owner := td.addUser("owner", RoleDentist)
	d := td.addDentist(owner, nil)
	hours := scheduling.WeeklyBusinessHours{
		"Monday":   {DisplayName: "Monday", Intervals: []scheduling.Interval{{From: "09:00 AM", To: "01:00 PM"}, {From: "12:00", To: "17:00"}}},
		"Saturday": {DisplayName: "Saturday", Closed: true},
	}

	updated, err := td.svc.UpdateBusinessHours(ctx, owner.ID, []string{auth.RoleDentist}, d.ID, hours)
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if len(updated.BusinessHours) != 2 {
		t.Errorf("expected 2 days, got %d", len(updated.BusinessHours))
	}
	if _, configured, _ := td.svc.GetBusinessHours(ctx, d.ID); !configured {
		t.Error("expected hours to be configured after update")
	}

	other := td.addUser("other", RoleDentist)
	if _, err := td.svc.UpdateBusinessHours(ctx, other.ID, []string{auth.RoleDentist}, d.ID, hours); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden for another dentist, got %v", err)
	}
	if _, err := td.svc.UpdateBusinessHours(ctx, uuid.New(), []string{auth.RoleAdmin}, d.ID, hours); err != nil {
		t.Errorf("expected admin update to succeed, got %v", err)
	}

	bad := scheduling.WeeklyBusinessHours{"Someday": {}}
	if _, err := td.svc.UpdateBusinessHours(ctx, owner.ID, nil, d.ID, bad); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := td.svc.UpdateBusinessHours(ctx, owner.ID, nil, uuid.New(), hours); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestService_DentistDirectory(t *testing.T) {
	td := newTestService()
	ctx := context.Background()
	owner := td.addUser("owner", RoleDentist)
	d := td.addDentist(owner, nil)

	if ok, err := td.svc.IsDentistOwner(ctx, owner.ID, d.ID); err != nil || !ok {
		t.Errorf("expected owner, got %v %v", ok, err)
	}
	if ok, _ := td.svc.IsDentistOwner(ctx, uuid.New(), d.ID); ok {
		t.Error("expected non-owner")
	}
	if err := td.svc.TouchLastActivity(ctx, d.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if td.dentists.dentists[d.ID].LastActivityAt == nil {
		t.Error("expected last activity to be set")
	}
}

func TestDentist_DisplayName(t *testing.T) {
	d := &Dentist{Name: "Dr. Who"}
	if d.DisplayName() != "Dr. Who" {
		t.Errorf("expected name fallback, got %s", d.DisplayName())
	}
	d.ClinicName = "Tardis Dental"
	if d.DisplayName() != "Tardis Dental" {
		t.Errorf("expected clinic name, got %s", d.DisplayName())
	}
}
