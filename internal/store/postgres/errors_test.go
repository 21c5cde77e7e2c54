package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"slotkeeper/backend/internal/store"
)

func TestMapError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: store.ErrNotFound},
		{name: "active slot index", err: &pgconn.PgError{Code: "23505", ConstraintName: bookingsActiveSlotIndex}, want: store.ErrConflict},
		{name: "duplicate booking id", err: &pgconn.PgError{Code: "23505", ConstraintName: bookingsPrimaryKey}, want: store.ErrConflict},
		{name: "overlap exclusion", err: &pgconn.PgError{Code: "23P01", ConstraintName: bookingsNoOverlapExclusion}, want: store.ErrConflict},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: store.ErrUnavailable},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: store.ErrUnavailable},
		{name: "statement timeout", err: &pgconn.PgError{Code: "57014"}, want: store.ErrUnavailable},
		{name: "connection failure class", err: &pgconn.PgError{Code: "08006"}, want: store.ErrUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: store.ErrUnavailable},
		{name: "already mapped", err: store.ErrConflict, want: store.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("mapError = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapError = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unknown constraint passes through", func(t *testing.T) {
		err := &pgconn.PgError{Code: "23505", ConstraintName: "providers_pkey"}
		got := mapError(err)
		if errors.Is(got, store.ErrConflict) {
			t.Fatalf("unexpected conflict mapping for %v", err)
		}
	})

	t.Run("unrecognised error is unchanged", func(t *testing.T) {
		if got := mapError(plain); got != plain {
			t.Fatalf("mapError = %v, want %v", got, plain)
		}
	})

	t.Run("unavailable keeps cause", func(t *testing.T) {
		got := mapError(context.DeadlineExceeded)
		if !errors.Is(got, context.DeadlineExceeded) {
			t.Fatalf("mapError lost the cause: %v", got)
		}
	})
}

func TestProviderDayKey(t *testing.T) {
	p1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	if providerDayKey(p1, day) != providerDayKey(p1, day.Add(15*time.Hour)) {
		t.Fatalf("same calendar day must share a key")
	}
	if providerDayKey(p1, day) == providerDayKey(p2, day) {
		t.Fatalf("different providers must not share a key")
	}
	if providerDayKey(p1, day) == providerDayKey(p1, day.AddDate(0, 0, 1)) {
		t.Fatalf("different days must not share a key")
	}
}
