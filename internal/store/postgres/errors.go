package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"slotkeeper/backend/internal/store"
)

const (
	bookingsPrimaryKey         = "bookings_pkey"
	bookingsActiveSlotIndex    = "bookings_active_slot_uniq"
	bookingsNoOverlapExclusion = "bookings_no_overlap"
)

// mapError translates driver errors into store sentinels. Errors it does not
// recognise are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		return err
	}

	switch {
	case pgErr.Code == "23505" && pgErr.ConstraintName == bookingsActiveSlotIndex:
		return store.ErrConflict
	case pgErr.Code == "23505" && pgErr.ConstraintName == bookingsPrimaryKey:
		// Idempotent creates derive the id, so a duplicate key is a lost race.
		return store.ErrConflict
	case pgErr.Code == "23P01" && pgErr.ConstraintName == bookingsNoOverlapExclusion:
		return store.ErrConflict
	case strings.HasPrefix(pgErr.Code, "08"),
		pgErr.Code == "40001", // serialization_failure
		pgErr.Code == "40P01", // deadlock_detected
		pgErr.Code == "55P03", // lock_not_available
		pgErr.Code == "57014", // query_canceled (statement_timeout)
		pgErr.Code == "57P01": // admin_shutdown
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return err
}
