package appointment

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// -- Mocks --

// mockRepo keeps appointments in a map and mirrors the real store's
// contract: Book and Reschedule run the conflict check against the same
// day's rows before committing.
type mockRepo struct {
	appts  map[int64]*Appointment
	nextID int64
	loc    *time.Location
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[int64]*Appointment), loc: time.UTC}
}

func (m *mockRepo) sortedDay(providerID int64, dayStart, dayEnd time.Time) []*Appointment {
	var day []*Appointment
	for _, a := range m.appts {
		if providerID != 0 && a.ProviderID != providerID {
			continue
		}
		if a.StartAt.Before(dayStart) || !a.StartAt.Before(dayEnd) {
			continue
		}
		day = append(day, a)
	}
	sort.Slice(day, func(i, j int) bool {
		if day[i].StartAt.Equal(day[j].StartAt) {
			return day[i].ID < day[j].ID
		}
		return day[i].StartAt.Before(day[j].StartAt)
	})
	return day
}

func (m *mockRepo) checkAndStore(a *Appointment, excludeID int64) error {
	dayStart, dayEnd := DayBounds(a.StartAt, m.loc)
	if hit := FindConflict(a.ProviderID, a.StartAt, a.DurationMinutes, m.sortedDay(a.ProviderID, dayStart, dayEnd), excludeID, m.loc); hit != nil {
		return &ConflictError{Existing: hit}
	}
	stored := *a
	m.appts[stored.ID] = &stored
	return nil
}

func (m *mockRepo) Book(_ context.Context, a *Appointment) error {
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	if err := m.checkAndStore(a, 0); err != nil {
		a.ID = 0
		m.nextID--
		return err
	}
	return nil
}

func (m *mockRepo) Reschedule(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	return m.checkAndStore(a, a.ID)
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	stored := *a
	m.appts[a.ID] = &stored
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	a, ok := m.appts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.appts {
		if f.ProviderID != 0 && a.ProviderID != f.ProviderID {
			continue
		}
		if f.CustomerID != 0 && a.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		items = append(items, a)
	}
	return items, len(items), nil
}

func (m *mockRepo) ListDay(_ context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*Appointment, error) {
	return m.sortedDay(providerID, dayStart, dayEnd), nil
}

func (m *mockRepo) ListDayDetailed(_ context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*CalendarEntry, error) {
	var entries []*CalendarEntry
	for _, a := range m.sortedDay(providerID, dayStart, dayEnd) {
		entries = append(entries, &CalendarEntry{Appointment: *a, CustomerName: "customer", ProviderName: "provider"})
	}
	return entries, nil
}

type stubHours struct {
	windows []Interval
}

func (s stubHours) WindowsOn(int64, time.Time) []Interval { return s.windows }

type stubDurations struct {
	byService map[int64]int
}

func (s stubDurations) DefaultDuration(_ context.Context, serviceID int64) (int, error) {
	return s.byService[serviceID], nil
}

type stubProviders struct {
	bookable map[int64]bool
}

func (s stubProviders) IsBookable(_ context.Context, providerID int64) (bool, error) {
	return s.bookable[providerID], nil
}

// -- Tests --

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo,
		stubHours{windows: []Interval{iv(8, 0, 12, 0)}},
		stubDurations{byService: map[int64]int{5: 45}},
		stubProviders{bookable: map[int64]bool{1: true, 2: true}},
		Config{Location: time.UTC})
	return svc, repo
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected assigned id")
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", a.Status)
	}
	if a.BookingChannel != ChannelOnline {
		t.Errorf("expected channel online, got %s", a.BookingChannel)
	}
	if a.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("expected default duration, got %d", a.DurationMinutes)
	}
	if !a.EndAt.Equal(at(9, 30)) {
		t.Errorf("expected end 09:30, got %v", a.EndAt)
	}
}

func TestCreate_DurationFromCatalogService(t *testing.T) {
	svc, _ := newTestService()
	sid := int64(5)
	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), ServiceID: &sid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DurationMinutes != 45 {
		t.Errorf("expected catalog duration 45, got %d", a.DurationMinutes)
	}
}

func TestCreate_ExplicitDurationBeatsCatalog(t *testing.T) {
	svc, _ := newTestService()
	sid := int64(5)
	d := 20
	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), ServiceID: &sid, DurationMinutes: &d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DurationMinutes != 20 {
		t.Errorf("expected explicit duration 20, got %d", a.DurationMinutes)
	}
}

func TestCreate_ConfiguredDefaultDuration(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo,
		stubHours{windows: []Interval{iv(8, 0, 12, 0)}},
		nil, nil,
		Config{Location: time.UTC, DefaultDurationMinutes: 20})

	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DurationMinutes != 20 {
		t.Errorf("expected configured default 20, got %d", a.DurationMinutes)
	}
	if !a.EndAt.Equal(at(9, 20)) {
		t.Errorf("expected end 09:20, got %v", a.EndAt)
	}
}

func TestCreate_UnknownServiceFallsBack(t *testing.T) {
	svc, _ := newTestService()
	sid := int64(99)
	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), ServiceID: &sid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("expected fallback duration, got %d", a.DurationMinutes)
	}
}

func TestCreate_NonPositiveDuration(t *testing.T) {
	svc, _ := newTestService()
	for _, d := range []int{0, -15} {
		d := d
		_, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), DurationMinutes: &d})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("duration %d: expected validation error, got %v", d, err)
		}
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	svc, _ := newTestService()
	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing customer", CreateInput{ProviderID: 1, StartAt: at(9, 0)}},
		{"missing provider", CreateInput{CustomerID: 1, StartAt: at(9, 0)}},
		{"negative provider", CreateInput{CustomerID: 1, ProviderID: -2, StartAt: at(9, 0)}},
		{"missing start", CreateInput{CustomerID: 1, ProviderID: 1}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_InvalidEnumValues(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), Status: "booked"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for status, got %v", err)
	}
	_, err = svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), BookingChannel: "fax"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for channel, got %v", err)
	}
}

func TestCreate_ProviderNotBookable(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 9, StartAt: at(9, 0)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreate_Conflict(t *testing.T) {
	svc, _ := newTestService()
	first, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 1, StartAt: at(8, 15)})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Existing.ID != first.ID {
		t.Errorf("conflict should reference #%d, got #%d", first.ID, ce.Existing.ID)
	}
	w := ce.Existing.Window()
	if !w.Start.Equal(at(8, 0)) || !w.End.Equal(at(8, 30)) {
		t.Errorf("conflict window should be 08:00-08:30, got %v-%v", w.Start, w.End)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("ConflictError should match ErrConflict")
	}
}

func TestCreate_BackToBackAllowed(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 1, StartAt: at(8, 30)}); err != nil {
		t.Errorf("back-to-back booking should succeed, got %v", err)
	}
}

func TestCreate_OtherProviderUnaffected(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 2, StartAt: at(8, 0)}); err != nil {
		t.Errorf("another provider's window is free, got %v", err)
	}
}

func TestCancelThenRebook(t *testing.T) {
	svc, _ := newTestService()
	a, err := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 1, StartAt: at(8, 0)}); err != nil {
		t.Errorf("cancelled booking must not block, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Get(context.Background(), Scope{}, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGet_ScopeHidesOtherProviders(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})

	if _, err := svc.Get(context.Background(), Scope{ProviderID: 2}, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("scoped caller must not see other providers, got %v", err)
	}
	if _, err := svc.Get(context.Background(), Scope{ProviderID: 1}, a.ID); err != nil {
		t.Errorf("owning scope should see the row, got %v", err)
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})

	notes := "running late"
	updated, err := svc.Update(context.Background(), Scope{}, a.ID, UpdateInput{Notes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Error("notes should be updated")
	}
	if !updated.StartAt.Equal(a.StartAt) || updated.DurationMinutes != a.DurationMinutes {
		t.Error("window fields must be untouched")
	}
}

func TestUpdate_RescheduleExcludesSelf(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})

	// Growing the appointment overlaps its own old window; that must not
	// count as a conflict.
	d := 60
	updated, err := svc.Update(context.Background(), Scope{}, a.ID, UpdateInput{DurationMinutes: &d})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DurationMinutes != 60 {
		t.Errorf("expected duration 60, got %d", updated.DurationMinutes)
	}
	if !updated.EndAt.Equal(at(10, 0)) {
		t.Errorf("expected end 10:00, got %v", updated.EndAt)
	}
}

func TestUpdate_ConflictLeavesRecordUntouched(t *testing.T) {
	svc, repo := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})
	b, _ := svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 1, StartAt: at(9, 0)})

	start := at(8, 15)
	notes := "moved"
	_, err := svc.Update(context.Background(), Scope{}, b.ID, UpdateInput{StartAt: &start, Notes: &notes})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored := repo.appts[b.ID]
	if !stored.StartAt.Equal(at(9, 0)) {
		t.Error("start must be unchanged after a rejected update")
	}
	if stored.Notes != nil {
		t.Error("no field may be applied after a rejected update")
	}
}

func TestUpdate_ProviderChangeRechecks(t *testing.T) {
	svc, _ := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 2, StartAt: at(9, 0)})
	b, _ := svc.Create(context.Background(), CreateInput{CustomerID: 2, ProviderID: 1, StartAt: at(9, 0)})

	p := int64(2)
	_, err := svc.Update(context.Background(), Scope{}, b.ID, UpdateInput{ProviderID: &p})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("moving onto a busy provider must conflict, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Update(context.Background(), Scope{}, 404, UpdateInput{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_ClearOptionalFields(t *testing.T) {
	svc, _ := newTestService()
	sid := int64(5)
	price := 25.0
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), ServiceID: &sid, Price: &price})

	updated, err := svc.Update(context.Background(), Scope{}, a.ID, UpdateInput{ClearService: true, ClearPrice: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ServiceID != nil || updated.Price != nil {
		t.Error("cleared fields should be nil")
	}
}

func TestChangeStatus_Permissive(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0), Status: StatusCompleted})

	// The default policy allows any move, even backwards.
	updated, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusScheduled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", updated.Status)
	}
}

func TestChangeStatus_StrictPolicy(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, stubHours{windows: []Interval{iv(8, 0, 12, 0)}}, nil, nil,
		Config{Location: time.UTC, Transitions: StrictTransitions})

	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})

	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusCompleted); !errors.Is(err, ErrValidation) {
		t.Errorf("scheduled -> completed must be rejected, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusConfirmed); err != nil {
		t.Fatalf("scheduled -> confirmed should pass, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusCompleted); err != nil {
		t.Fatalf("confirmed -> completed should pass, got %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusScheduled); !errors.Is(err, ErrValidation) {
		t.Errorf("completed is terminal under the strict policy, got %v", err)
	}
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, a.ID, "done"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestChangeStatus_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ChangeStatus(context.Background(), Scope{}, 404, StatusConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	if err := svc.Delete(context.Background(), Scope{}, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), Scope{}, a.ID); !errors.Is(err, ErrNotFound) {
		t.Error("record should be gone")
	}
}

func TestDelete_ScopeBlocksOtherProviders(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	if err := svc.Delete(context.Background(), Scope{ProviderID: 2}, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("scoped delete of a foreign row must fail, got %v", err)
	}
}

func TestList_ScopeForcesProvider(t *testing.T) {
	svc, _ := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 2, StartAt: at(9, 0)})

	items, total, err := svc.List(context.Background(), Scope{ProviderID: 1}, ListFilter{ProviderID: 2}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 item, got %d", total)
	}
	if items[0].ProviderID != 1 {
		t.Error("scope must override the requested provider filter")
	}
}

func TestCheckConflict(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})

	hit, err := svc.CheckConflict(context.Background(), 1, at(8, 15), 30, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit == nil || hit.ID != a.ID {
		t.Errorf("expected conflict with #%d, got %v", a.ID, hit)
	}

	hit, err = svc.CheckConflict(context.Background(), 1, at(8, 30), 30, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit != nil {
		t.Errorf("expected no conflict at the boundary, got #%d", hit.ID)
	}

	if _, err := svc.CheckConflict(context.Background(), 0, at(8, 0), 30, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAvailability_SkipsBookedWindow(t *testing.T) {
	svc, _ := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})

	day, err := svc.Availability(context.Background(), AvailabilityQuery{
		ProviderID: 1, Date: at(0, 0), DurationMinutes: 30, StepMinutes: 15, BufferMinutes: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.DurationMinutes != 30 {
		t.Errorf("expected duration 30, got %d", day.DurationMinutes)
	}
	if containsStart(day.Slots, at(8, 0)) || containsStart(day.Slots, at(8, 15)) {
		t.Error("slots overlapping the booking must be excluded")
	}
	if !containsStart(day.Slots, at(8, 30)) {
		t.Error("08:30 should be offered")
	}
}

func TestAvailability_AfterCancellation(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})
	svc.ChangeStatus(context.Background(), Scope{}, a.ID, StatusCancelled)

	day, err := svc.Availability(context.Background(), AvailabilityQuery{
		ProviderID: 1, Date: at(0, 0), DurationMinutes: 30, StepMinutes: 15, BufferMinutes: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsStart(day.Slots, at(8, 0)) {
		t.Error("08:00 should reopen after cancellation")
	}
}

func TestAvailability_DurationFromCatalog(t *testing.T) {
	svc, _ := newTestService()
	sid := int64(5)
	day, err := svc.Availability(context.Background(), AvailabilityQuery{
		ProviderID: 1, Date: at(0, 0), ServiceID: &sid, BufferMinutes: -1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.DurationMinutes != 45 {
		t.Errorf("expected catalog duration 45, got %d", day.DurationMinutes)
	}
}

func TestAvailability_DefaultsApplied(t *testing.T) {
	svc, _ := newTestService()
	day, err := svc.Availability(context.Background(), AvailabilityQuery{
		ProviderID: 1, Date: at(0, 0), BufferMinutes: -1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 08:00-12:00, 30 minute slots at the default 15 minute step.
	if len(day.Slots) == 0 {
		t.Fatal("expected slots")
	}
	if !day.Slots[0].Start.Equal(at(8, 0)) {
		t.Errorf("first slot should be 08:00, got %v", day.Slots[0].Start)
	}
}

func TestAvailability_BufferShrinksSlots(t *testing.T) {
	svc, _ := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(8, 0)})

	day, err := svc.Availability(context.Background(), AvailabilityQuery{
		ProviderID: 1, Date: at(0, 0), DurationMinutes: 30, StepMinutes: 15, BufferMinutes: 15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containsStart(day.Slots, at(8, 30)) {
		t.Error("08:30 sits inside the buffer and must be excluded")
	}
	if !containsStart(day.Slots, at(8, 45)) {
		t.Error("08:45 should be the first slot after the buffer")
	}
}

func TestAvailability_Validation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Availability(context.Background(), AvailabilityQuery{ProviderID: 0, Date: at(0, 0)}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for provider, got %v", err)
	}
	if _, err := svc.Availability(context.Background(), AvailabilityQuery{ProviderID: 1}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for date, got %v", err)
	}
	if _, err := svc.Availability(context.Background(), AvailabilityQuery{ProviderID: 1, Date: at(0, 0), StepMinutes: -5}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for step, got %v", err)
	}
}

func TestCalendar_ScopeForcesProvider(t *testing.T) {
	svc, _ := newTestService()
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 1, StartAt: at(9, 0)})
	svc.Create(context.Background(), CreateInput{CustomerID: 1, ProviderID: 2, StartAt: at(10, 0)})

	entries, err := svc.Calendar(context.Background(), Scope{ProviderID: 2}, at(0, 0), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ProviderID != 2 {
		t.Error("scope must narrow the calendar to its provider")
	}
}
