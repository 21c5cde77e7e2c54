package domain

import (
	"math/rand/v2"
	"testing"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error: %v", s, err)
	}
	return v
}

func TestEnumerateSlots(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		minutes   int
		wantCount int
		wantFirst string
		wantLast  string
	}{
		{name: "full day of half hours", start: "09:00", end: "17:00", minutes: 30, wantCount: 16, wantFirst: "09:00", wantLast: "16:30"},
		{name: "trailing partial slot dropped", start: "09:00", end: "17:05", minutes: 30, wantCount: 16, wantFirst: "09:00", wantLast: "16:30"},
		{name: "single slot", start: "10:00", end: "10:45", minutes: 45, wantCount: 1, wantFirst: "10:00", wantLast: "10:00"},
		{name: "window to midnight", start: "23:00", end: "24:00", minutes: 20, wantCount: 3, wantFirst: "23:00", wantLast: "23:40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := EnumerateSlots(mustTime(t, tt.start), mustTime(t, tt.end), tt.minutes)
			if len(slots) != tt.wantCount {
				t.Fatalf("len(slots) = %d, want %d", len(slots), tt.wantCount)
			}
			if got := slots[0].String(); got != tt.wantFirst {
				t.Fatalf("first = %s, want %s", got, tt.wantFirst)
			}
			if got := slots[len(slots)-1].String(); got != tt.wantLast {
				t.Fatalf("last = %s, want %s", got, tt.wantLast)
			}
			for i := 1; i < len(slots); i++ {
				if int(slots[i]-slots[i-1]) != tt.minutes {
					t.Fatalf("gap between %s and %s, want %d minutes", slots[i-1], slots[i], tt.minutes)
				}
			}
		})
	}
}

func TestEnumerateSlots_DegenerateInputs(t *testing.T) {
	if got := EnumerateSlots(600, 600, 30); len(got) != 0 {
		t.Fatalf("empty window yielded %v", got)
	}
	if got := EnumerateSlots(600, 660, 0); len(got) != 0 {
		t.Fatalf("zero duration yielded %v", got)
	}
	if got := EnumerateSlots(600, 620, 30); len(got) != 0 {
		t.Fatalf("window shorter than a slot yielded %v", got)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: mustTime(t, "10:00"), End: mustTime(t, "10:30")}

	if !a.Overlaps(Interval{Start: mustTime(t, "10:15"), End: mustTime(t, "10:45")}) {
		t.Fatalf("[10:00,10:30) and [10:15,10:45) must overlap")
	}
	if a.Overlaps(Interval{Start: mustTime(t, "10:30"), End: mustTime(t, "11:00")}) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	if a.Overlaps(Interval{Start: mustTime(t, "09:30"), End: mustTime(t, "10:00")}) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	if !a.Overlaps(Interval{Start: mustTime(t, "09:00"), End: mustTime(t, "12:00")}) {
		t.Fatalf("containing interval must overlap")
	}
}

// threeCaseOverlap is the start-contained / end-contained / fully-contained
// formulation; Overlaps must agree with it on every valid pair.
func threeCaseOverlap(existing, candidate Interval) bool {
	return (existing.Start <= candidate.Start && candidate.Start < existing.End) ||
		(existing.Start < candidate.End && candidate.End <= existing.End) ||
		(candidate.Start <= existing.Start && existing.End <= candidate.End)
}

func TestIntervalOverlaps_MatchesThreeCaseForm(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		a := randomInterval(r)
		b := randomInterval(r)
		if got, want := a.Overlaps(b), threeCaseOverlap(a, b); got != want {
			t.Fatalf("Overlaps(%v, %v) = %v, three-case form = %v", a, b, got, want)
		}
	}
}

func randomInterval(r *rand.Rand) Interval {
	start := TimeOfDay(r.IntN(int(MinutesPerDay) - 1))
	end := start + TimeOfDay(1+r.IntN(int(MinutesPerDay-start)))
	return Interval{Start: start, End: end}
}

func TestHasConflict_IgnoresRetiredAndCancelled(t *testing.T) {
	candidate := Interval{Start: mustTime(t, "10:00"), End: mustTime(t, "10:30")}
	overlapping := Booking{Start: mustTime(t, "10:00"), End: mustTime(t, "10:30")}

	tests := []struct {
		name   string
		active bool
		status BookingStatus
		want   bool
	}{
		{name: "pending", active: true, status: BookingStatusPending, want: true},
		{name: "confirmed", active: true, status: BookingStatusConfirmed, want: true},
		{name: "cancelled", active: true, status: BookingStatusCancelled, want: false},
		{name: "completed", active: true, status: BookingStatusCompleted, want: false},
		{name: "soft retired", active: false, status: BookingStatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := overlapping
			b.Active = tt.active
			b.Status = tt.status
			if got := HasConflict(candidate, []Booking{b}); got != tt.want {
				t.Fatalf("HasConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreeSlots(t *testing.T) {
	w := WeeklyAvailability{Start: mustTime(t, "09:00"), End: mustTime(t, "11:00"), SlotMinutes: 30, Available: true}
	bookings := []Booking{
		{Start: mustTime(t, "09:30"), End: mustTime(t, "10:00"), Active: true, Status: BookingStatusConfirmed},
		{Start: mustTime(t, "10:00"), End: mustTime(t, "10:30"), Active: false, Status: BookingStatusPending},
	}

	free := FreeSlots(w, bookings)
	want := []string{"09:00", "10:00", "10:30"}
	if len(free) != len(want) {
		t.Fatalf("free = %v, want %v", free, want)
	}
	for i := range want {
		if free[i].String() != want[i] {
			t.Fatalf("free[%d] = %s, want %s", i, free[i], want[i])
		}
	}
}
