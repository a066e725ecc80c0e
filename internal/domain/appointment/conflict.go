package appointment

import "time"

// FindConflict returns the first existing appointment that would collide
// with booking durationMinutes starting at start for the given provider, or
// nil when the window is clear. Pure decision: the caller supplies the
// candidate set, typically the provider's appointments on start's calendar
// day.
//
// An existing appointment collides when it belongs to the same provider,
// starts on the same calendar day (in loc), is active, is not the excluded
// id, and its [start, end) window overlaps the candidate's. Exactly touching
// windows do not collide. excludeID 0 excludes nothing. Ordering of existing
// decides which conflict is reported; callers wanting determinism pass rows
// sorted by start time.
func FindConflict(providerID int64, start time.Time, durationMinutes int, existing []*Appointment, excludeID int64, loc *time.Location) *Appointment {
	candidate := Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
	dayStart, dayEnd := DayBounds(start, loc)

	for _, a := range existing {
		if a.ProviderID != providerID {
			continue
		}
		if excludeID != 0 && a.ID == excludeID {
			continue
		}
		if !a.Active() {
			continue
		}
		if a.StartAt.Before(dayStart) || !a.StartAt.Before(dayEnd) {
			continue
		}
		if candidate.Overlaps(a.Window()) {
			return a
		}
	}
	return nil
}
