package domain

// Interval is a half-open [Start, End) span of a single day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Adjacent intervals ([10:00,10:30) and [10:30,11:00)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Within(outer Interval) bool {
	return i.Start >= outer.Start && i.End <= outer.End
}

// EnumerateSlots returns the start of every whole slot of the given length
// that fits in [start, end). A trailing partial slot is dropped.
func EnumerateSlots(start, end TimeOfDay, slotMinutes int) []TimeOfDay {
	if slotMinutes <= 0 || end <= start {
		return nil
	}
	out := make([]TimeOfDay, 0, int(end-start)/slotMinutes)
	for s := start; s.AddMinutes(slotMinutes) <= end; s = s.AddMinutes(slotMinutes) {
		out = append(out, s)
	}
	return out
}

// HasConflict reports whether candidate overlaps any booking that still holds
// its slot. Retired and cancelled bookings are ignored.
func HasConflict(candidate Interval, bookings []Booking) bool {
	for _, b := range bookings {
		if !b.HoldsSlot() {
			continue
		}
		if candidate.Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}

// FreeSlots filters the slot grid of w down to starts that do not conflict
// with bookings.
func FreeSlots(w WeeklyAvailability, bookings []Booking) []TimeOfDay {
	grid := w.Slots()
	out := make([]TimeOfDay, 0, len(grid))
	for _, s := range grid {
		if HasConflict(Interval{Start: s, End: s.AddMinutes(w.SlotMinutes)}, bookings) {
			continue
		}
		out = append(out, s)
	}
	return out
}
