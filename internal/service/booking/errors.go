package booking

import (
	"errors"

	"slotkeeper/backend/internal/store"
)

type Reason string

const (
	ReasonNoAvailability    Reason = "no_availability"
	ReasonOutsideWindow     Reason = "outside_window"
	ReasonWrongDuration     Reason = "wrong_duration"
	ReasonOffGrid           Reason = "off_grid"
	ReasonSlotConflict      Reason = "slot_conflict"
	ReasonNotFound          Reason = "not_found"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonStoreUnavailable  Reason = "store_unavailable"
)

// RejectionError is the outcome of an expected business condition. Only
// ReasonStoreUnavailable is worth retrying unchanged.
type RejectionError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func (e *RejectionError) Retryable() bool {
	return e.Reason == ReasonStoreUnavailable
}

func reject(reason Reason, detail string) error {
	return &RejectionError{Reason: reason, Detail: detail}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rErr *RejectionError
	if errors.As(err, &rErr) {
		return rErr.Reason, true
	}
	return "", false
}

// translate turns store sentinels into rejections. Anything else is returned
// unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := ReasonOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &RejectionError{Reason: ReasonNotFound, Detail: "booking not found", Err: err}
	case errors.Is(err, store.ErrConflict):
		return &RejectionError{Reason: ReasonSlotConflict, Detail: "slot is already booked", Err: err}
	case errors.Is(err, store.ErrUnavailable):
		return &RejectionError{Reason: ReasonStoreUnavailable, Detail: "store unavailable, retry later", Err: err}
	}
	return err
}
