package appointment

import "time"

// Slot is a candidate bookable window of exactly the requested duration.
// Slots are suggestions computed from a snapshot, not reservations: a
// booking request arriving later still goes through the conflict check.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BuildBusy derives the busy set for availability from active appointments:
// each one contributes [start, end + buffer). Inert appointments contribute
// nothing. The result is merged.
func BuildBusy(appts []*Appointment, buffer time.Duration) []Interval {
	var busy []Interval
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		w := a.Window()
		busy = append(busy, Interval{Start: w.Start, End: w.End.Add(buffer)})
	}
	return Merge(busy)
}

// GenerateSlots slides a window of length duration across the free time
// left after subtracting busy from the open windows, advancing by step
// between candidates. open is merged first, so overlapping or touching
// windows behave as their union. Returns nil when duration or step is not
// positive: a zero step would never terminate, so the guard is
// non-negotiable and callers wanting an error instead must validate before
// calling. A free interval shorter than duration yields no slots; no slot
// ever extends past the free interval's end.
func GenerateSlots(open []Interval, busy []Interval, duration, step time.Duration) []Slot {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var slots []Slot
	for _, f := range Subtract(Merge(open), busy) {
		for cursor := f.Start; !cursor.Add(duration).After(f.End); cursor = cursor.Add(step) {
			slots = append(slots, Slot{Start: cursor, End: cursor.Add(duration)})
		}
	}
	return slots
}
