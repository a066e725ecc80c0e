package appointment

import (
	"time"
)

// Appointment statuses. Cancelled and no-show appointments stay on the books
// but are inert: they never block other bookings and never appear in the
// busy set used for availability.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// ValidStatuses is the set of acceptable appointment statuses.
var ValidStatuses = map[string]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// InertStatuses are statuses excluded from conflict checks and busy sets.
var InertStatuses = map[string]bool{
	StatusCancelled: true,
	StatusNoShow:    true,
}

// Booking channels record where a booking came from. Informational only.
const (
	ChannelOnline = "online"
	ChannelPhone  = "phone"
	ChannelWalkin = "walkin"
)

// ValidChannels is the set of acceptable booking channels.
var ValidChannels = map[string]bool{
	ChannelOnline: true,
	ChannelPhone:  true,
	ChannelWalkin: true,
}

// DefaultDurationMinutes is the built-in booking length, used when the
// config does not override it and neither the request nor the catalog
// supplies a duration.
const DefaultDurationMinutes = 30

// Appointment maps to the appointment table.
type Appointment struct {
	ID              int64     `db:"id" json:"id"`
	CustomerID      int64     `db:"customer_id" json:"customer_id"`
	ServiceID       *int64    `db:"service_id" json:"service_id,omitempty"`
	ProviderID      int64     `db:"provider_id" json:"provider_id"`
	StartAt         time.Time `db:"start_at" json:"start_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	EndAt           time.Time `db:"end_at" json:"end_at"`
	Status          string    `db:"status" json:"status"`
	BookingChannel  string    `db:"booking_channel" json:"booking_channel"`
	Price           *float64  `db:"price" json:"price,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the appointment participates in conflict checks.
func (a *Appointment) Active() bool {
	return !InertStatuses[a.Status]
}

// Window returns the appointment's half-open [start, end) interval.
func (a *Appointment) Window() Interval {
	return Interval{Start: a.StartAt, End: a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)}
}

// CreateInput carries a booking request. DurationMinutes nil means "resolve
// from the catalog service, then the system default".
type CreateInput struct {
	CustomerID      int64     `json:"customer_id"`
	ServiceID       *int64    `json:"service_id"`
	ProviderID      int64     `json:"provider_id"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes *int      `json:"duration_minutes"`
	Status          string    `json:"status"`
	BookingChannel  string    `json:"booking_channel"`
	Price           *float64  `json:"price"`
	Notes           *string   `json:"notes"`
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
// ClearService and ClearPrice reset the optional columns, since a JSON null
// and an absent field both arrive as nil.
type UpdateInput struct {
	CustomerID      *int64     `json:"customer_id"`
	ServiceID       *int64     `json:"service_id"`
	ClearService    bool       `json:"clear_service"`
	ProviderID      *int64     `json:"provider_id"`
	StartAt         *time.Time `json:"start_at"`
	DurationMinutes *int       `json:"duration_minutes"`
	Status          *string    `json:"status"`
	BookingChannel  *string    `json:"booking_channel"`
	Price           *float64   `json:"price"`
	ClearPrice      bool       `json:"clear_price"`
	Notes           *string    `json:"notes"`
}

// CalendarEntry is an appointment joined with the display names a day view
// needs, so the calendar endpoint does not fan out per-row lookups.
type CalendarEntry struct {
	Appointment
	CustomerName string  `db:"customer_name" json:"customer_name"`
	ProviderName string  `db:"provider_name" json:"provider_name"`
	ServiceName  *string `db:"service_name" json:"service_name,omitempty"`
}

// ListFilter narrows List queries. Zero values mean "no filter".
type ListFilter struct {
	ProviderID int64
	CustomerID int64
	Status     string
	From       time.Time
	To         time.Time
}

// Scope restricts id-scoped operations to one provider's appointments.
// The zero Scope is unrestricted. Resolving who may use which scope is the
// caller's concern; the service only honors the restriction.
type Scope struct {
	ProviderID int64
}

// Allows reports whether the scope permits acting on the appointment.
func (s Scope) Allows(a *Appointment) bool {
	return s.ProviderID == 0 || s.ProviderID == a.ProviderID
}

// DayBounds returns the half-open [midnight, next midnight) range containing
// t in the given location. All "same calendar day" decisions use one
// configured location so that day bucketing never depends on the server's
// ambient zone.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
