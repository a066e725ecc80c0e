package appointment

import (
	"context"
	"time"
)

// Repository is the persisted appointment store. Book and Reschedule are the
// write paths that may collide with concurrent bookings: implementations
// must run the conflict check and the commit as one atomically visible unit
// scoped to (provider, calendar day), and return a *ConflictError when the
// window is taken. GetByID returns ErrNotFound for unknown ids.
type Repository interface {
	Book(ctx context.Context, a *Appointment) error
	Reschedule(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	ListDay(ctx context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*Appointment, error)
	ListDayDetailed(ctx context.Context, providerID int64, dayStart, dayEnd time.Time) ([]*CalendarEntry, error)
}

// HoursSource resolves a provider's open windows on a given day. day is
// midnight in the scheduling location; implementations fall back to a
// system default window for providers without a template.
type HoursSource interface {
	WindowsOn(providerID int64, day time.Time) []Interval
}

// DurationSource looks up a catalog service's default duration in minutes.
// Zero with a nil error means the service is unknown or carries no default;
// the caller then falls back to the system default.
type DurationSource interface {
	DefaultDuration(ctx context.Context, serviceID int64) (int, error)
}

// ProviderDirectory answers whether a provider can take new bookings.
// False with a nil error means unknown or deactivated.
type ProviderDirectory interface {
	IsBookable(ctx context.Context, providerID int64) (bool, error)
}

// Config tunes the scheduling service. The zero value is usable: UTC day
// bucketing, 15 minute step, no buffer, 30 minute default duration and
// permissive transitions.
type Config struct {
	Location               *time.Location
	StepMinutes            int
	BufferMinutes          int
	DefaultDurationMinutes int
	Transitions            TransitionPolicy
}

// Service owns the appointment lifecycle: it validates input, resolves
// durations, delegates conflict-checked writes to the repository and
// computes availability.
type Service struct {
	repo       Repository
	hours      HoursSource
	durations  DurationSource
	providers  ProviderDirectory
	policy     TransitionPolicy
	loc        *time.Location
	step       int
	buffer     int
	defaultDur int
}

// NewService wires the lifecycle manager. durations and providers may be
// nil, disabling catalog duration defaulting and provider liveness checks.
func NewService(repo Repository, hours HoursSource, durations DurationSource, providers ProviderDirectory, cfg Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	step := cfg.StepMinutes
	if step <= 0 {
		step = 15
	}
	buffer := cfg.BufferMinutes
	if buffer < 0 {
		buffer = 0
	}
	defaultDur := cfg.DefaultDurationMinutes
	if defaultDur <= 0 {
		defaultDur = DefaultDurationMinutes
	}
	policy := cfg.Transitions
	if policy == nil {
		policy = PermissiveTransitions
	}
	return &Service{
		repo:       repo,
		hours:      hours,
		durations:  durations,
		providers:  providers,
		policy:     policy,
		loc:        loc,
		step:       step,
		buffer:     buffer,
		defaultDur: defaultDur,
	}
}

// Location returns the scheduling location used for day bucketing.
func (s *Service) Location() *time.Location { return s.loc }

// Create books a new appointment. Duration precedence: explicit value,
// then the catalog service's default, then the system default. The write
// fails with a *ConflictError when the window overlaps an active
// appointment for the provider on that day.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.CustomerID <= 0 {
		return nil, validationErr("customer_id is required")
	}
	if in.ProviderID <= 0 {
		return nil, validationErr("provider_id must be positive")
	}
	if in.StartAt.IsZero() {
		return nil, validationErr("start_at is required")
	}

	status := in.Status
	if status == "" {
		status = StatusScheduled
	}
	if !ValidStatuses[status] {
		return nil, validationErr("invalid status %q", status)
	}
	channel := in.BookingChannel
	if channel == "" {
		channel = ChannelOnline
	}
	if !ValidChannels[channel] {
		return nil, validationErr("invalid booking_channel %q", channel)
	}

	duration, err := s.resolveDuration(ctx, in.DurationMinutes, in.ServiceID)
	if err != nil {
		return nil, err
	}

	if err := s.checkProviderBookable(ctx, in.ProviderID); err != nil {
		return nil, err
	}

	a := &Appointment{
		CustomerID:      in.CustomerID,
		ServiceID:       in.ServiceID,
		ProviderID:      in.ProviderID,
		StartAt:         in.StartAt,
		DurationMinutes: duration,
		EndAt:           in.StartAt.Add(time.Duration(duration) * time.Minute),
		Status:          status,
		BookingChannel:  channel,
		Price:           in.Price,
		Notes:           in.Notes,
	}
	if err := s.repo.Book(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get loads one appointment. Rows outside the caller's scope answer as not
// found so that scoped callers cannot probe other providers' books.
func (s *Service) Get(ctx context.Context, scope Scope, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(a) {
		return nil, ErrNotFound
	}
	return a, nil
}

// Update applies a partial update. When the start, duration or provider
// changes, the conflict check reruns excluding the appointment's own id and
// the whole update commits atomically with it; rejected updates change
// nothing.
func (s *Service) Update(ctx context.Context, scope Scope, id int64, in UpdateInput) (*Appointment, error) {
	existing, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	next := *existing
	if in.CustomerID != nil {
		if *in.CustomerID <= 0 {
			return nil, validationErr("customer_id is required")
		}
		next.CustomerID = *in.CustomerID
	}
	if in.ClearService {
		next.ServiceID = nil
	} else if in.ServiceID != nil {
		next.ServiceID = in.ServiceID
	}
	if in.ProviderID != nil {
		if *in.ProviderID <= 0 {
			return nil, validationErr("provider_id must be positive")
		}
		next.ProviderID = *in.ProviderID
	}
	if in.StartAt != nil {
		if in.StartAt.IsZero() {
			return nil, validationErr("start_at is required")
		}
		next.StartAt = *in.StartAt
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return nil, validationErr("duration_minutes must be positive")
		}
		next.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		if !ValidStatuses[*in.Status] {
			return nil, validationErr("invalid status %q", *in.Status)
		}
		if *in.Status != existing.Status {
			if err := s.policy(existing.Status, *in.Status); err != nil {
				return nil, err
			}
		}
		next.Status = *in.Status
	}
	if in.BookingChannel != nil {
		if !ValidChannels[*in.BookingChannel] {
			return nil, validationErr("invalid booking_channel %q", *in.BookingChannel)
		}
		next.BookingChannel = *in.BookingChannel
	}
	if in.ClearPrice {
		next.Price = nil
	} else if in.Price != nil {
		next.Price = in.Price
	}
	if in.Notes != nil {
		next.Notes = in.Notes
	}
	next.EndAt = next.StartAt.Add(time.Duration(next.DurationMinutes) * time.Minute)

	windowChanged := !next.StartAt.Equal(existing.StartAt) ||
		next.DurationMinutes != existing.DurationMinutes ||
		next.ProviderID != existing.ProviderID

	if windowChanged {
		if next.ProviderID != existing.ProviderID {
			if err := s.checkProviderBookable(ctx, next.ProviderID); err != nil {
				return nil, err
			}
		}
		if err := s.repo.Reschedule(ctx, &next); err != nil {
			return nil, err
		}
		return &next, nil
	}
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ChangeStatus moves the appointment to newStatus, subject to the
// configured transition policy. Time and provider are untouched, so no
// conflict check runs; cancelling is how a slot is freed.
func (s *Service) ChangeStatus(ctx context.Context, scope Scope, id int64, newStatus string) (*Appointment, error) {
	if !ValidStatuses[newStatus] {
		return nil, validationErr("invalid status %q", newStatus)
	}
	a, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if a.Status != newStatus {
		if err := s.policy(a.Status, newStatus); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		return nil, err
	}
	a.Status = newStatus
	return a, nil
}

// Delete removes the appointment permanently. Cancellation is a status
// change; deletion is for taking a record off the books entirely.
func (s *Service) Delete(ctx context.Context, scope Scope, id int64) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns appointments matching the filter, newest first. A scoped
// caller only ever sees their own provider's rows regardless of the filter.
func (s *Service) List(ctx context.Context, scope Scope, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if scope.ProviderID != 0 {
		f.ProviderID = scope.ProviderID
	}
	return s.repo.List(ctx, f, limit, offset)
}

// CheckConflict probes whether a candidate window is bookable right now.
// The answer is a snapshot: booking can still fail if a competing request
// lands first.
func (s *Service) CheckConflict(ctx context.Context, providerID int64, start time.Time, durationMinutes int, excludeID int64) (*Appointment, error) {
	if providerID <= 0 {
		return nil, validationErr("provider_id must be positive")
	}
	if durationMinutes <= 0 {
		return nil, validationErr("duration_minutes must be positive")
	}
	if start.IsZero() {
		return nil, validationErr("start is required")
	}
	dayStart, dayEnd := DayBounds(start, s.loc)
	existing, err := s.repo.ListDay(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return FindConflict(providerID, start, durationMinutes, existing, excludeID, s.loc), nil
}

// AvailabilityQuery asks for bookable slots on one provider's day.
// DurationMinutes 0 resolves through the catalog service, then the system
// default. StepMinutes 0 and BufferMinutes below 0 take the configured
// defaults.
type AvailabilityQuery struct {
	ProviderID      int64
	Date            time.Time
	ServiceID       *int64
	DurationMinutes int
	StepMinutes     int
	BufferMinutes   int
}

// DayAvailability is the slot list for one provider and day.
type DayAvailability struct {
	ProviderID      int64  `json:"provider_id"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	Slots           []Slot `json:"slots"`
}

// Availability computes the start times at which a full-length booking fits
// on the provider's day: open windows minus busy time (active appointments
// plus buffer), swept with the requested step. Read-only; the result is a
// best-effort snapshot, not a reservation.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (*DayAvailability, error) {
	if q.ProviderID <= 0 {
		return nil, validationErr("provider_id must be positive")
	}
	if q.Date.IsZero() {
		return nil, validationErr("date is required")
	}
	if q.DurationMinutes < 0 {
		return nil, validationErr("duration_minutes must be positive")
	}

	var explicit *int
	if q.DurationMinutes > 0 {
		explicit = &q.DurationMinutes
	}
	duration, err := s.resolveDuration(ctx, explicit, q.ServiceID)
	if err != nil {
		return nil, err
	}

	step := q.StepMinutes
	if step == 0 {
		step = s.step
	}
	if step <= 0 {
		return nil, validationErr("step_minutes must be positive")
	}
	buffer := q.BufferMinutes
	if buffer < 0 {
		buffer = s.buffer
	}

	dayStart, dayEnd := DayBounds(q.Date, s.loc)
	appts, err := s.repo.ListDay(ctx, q.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	open := s.hours.WindowsOn(q.ProviderID, dayStart)
	busy := BuildBusy(appts, time.Duration(buffer)*time.Minute)
	slots := GenerateSlots(open, busy, time.Duration(duration)*time.Minute, time.Duration(step)*time.Minute)

	return &DayAvailability{
		ProviderID:      q.ProviderID,
		Date:            dayStart.Format("2006-01-02"),
		DurationMinutes: duration,
		Slots:           slots,
	}, nil
}

// Calendar returns the day's appointments with customer, provider and
// service names joined in. providerID 0 covers all providers unless the
// scope narrows it.
func (s *Service) Calendar(ctx context.Context, scope Scope, date time.Time, providerID int64) ([]*CalendarEntry, error) {
	if date.IsZero() {
		return nil, validationErr("date is required")
	}
	if scope.ProviderID != 0 {
		providerID = scope.ProviderID
	}
	dayStart, dayEnd := DayBounds(date, s.loc)
	return s.repo.ListDayDetailed(ctx, providerID, dayStart, dayEnd)
}

func (s *Service) resolveDuration(ctx context.Context, explicit *int, serviceID *int64) (int, error) {
	if explicit != nil {
		if *explicit <= 0 {
			return 0, validationErr("duration_minutes must be positive")
		}
		return *explicit, nil
	}
	if serviceID != nil && s.durations != nil {
		d, err := s.durations.DefaultDuration(ctx, *serviceID)
		if err != nil {
			return 0, err
		}
		if d > 0 {
			return d, nil
		}
	}
	return s.defaultDur, nil
}

func (s *Service) checkProviderBookable(ctx context.Context, providerID int64) error {
	if s.providers == nil {
		return nil
	}
	ok, err := s.providers.IsBookable(ctx, providerID)
	if err != nil {
		return err
	}
	if !ok {
		return validationErr("provider %d is not bookable", providerID)
	}
	return nil
}
