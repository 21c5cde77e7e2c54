package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type BookingRepo struct {
	db        *bun.DB
	txTimeout time.Duration
}

func NewBookingRepo(db *bun.DB, txTimeout time.Duration) *BookingRepo {
	return &BookingRepo{db: db, txTimeout: txTimeout}
}

type bookingTx struct {
	tx bun.Tx
}

var _ store.BookingRepository = (*BookingRepo)(nil)

func (r *BookingRepo) InProviderDayTransaction(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderDay(ctx, tx, providerID, date); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *BookingRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.runInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *BookingRepo) runInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if r.txTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
			defer cancel()
		}
	}
	return mapError(r.db.RunInTx(ctx, nil, fn))
}

// lockProviderDay takes a transaction-scoped advisory lock on one provider's
// calendar day. Other providers and other days hash to different keys.
func lockProviderDay(ctx context.Context, tx bun.Tx, providerID uuid.UUID, date time.Time) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerDayKey(providerID, date)).Exec(ctx)
	return err
}

func providerDayKey(providerID uuid.UUID, date time.Time) string {
	return "booking:" + providerID.String() + ":" + domain.FormatDate(domain.DateOf(date))
}

func (r *BookingRepo) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	return getProvider(ctx, r.db, providerID)
}

func (r *BookingRepo) GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error) {
	return getWeeklyAvailability(ctx, r.db, providerID, weekday)
}

func (r *BookingRepo) ListActiveBookings(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	return listActiveBookings(ctx, r.db, providerID, date)
}

func (r *BookingRepo) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (r *BookingRepo) ListProviderBookings(ctx context.Context, providerID uuid.UUID, date *time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("active")
	if date != nil {
		q = q.Where("date = ?::date", domain.FormatDate(*date))
	}
	if err := q.OrderExpr("date ASC, start_minute ASC").Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListSubjectBookings(ctx context.Context, subjectID string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("subject_id = ?", subjectID).
		Where("active").
		OrderExpr("date ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListBookingsOn(ctx context.Context, date time.Time, status domain.BookingStatus) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("date = ?::date", domain.FormatDate(date)).
		Where("status = ?", status).
		Where("active").
		OrderExpr("provider_id ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (t bookingTx) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	return getProvider(ctx, t.tx, providerID)
}

func (t bookingTx) GetWeeklyAvailability(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error) {
	return getWeeklyAvailability(ctx, t.tx, providerID, weekday)
}

func (t bookingTx) ListActiveBookings(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	return listActiveBookings(ctx, t.tx, providerID, date)
}

func (t bookingTx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := t.tx.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (t bookingTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.Date = domain.DateOf(b.Date)
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapError(err)
	}
	return m, nil
}

func (t bookingTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.Date = domain.DateOf(b.Date)
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("date", "start_minute", "end_minute", "window_start", "window_end", "slot_minutes", "status", "active", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func getProvider(ctx context.Context, db bun.IDB, providerID uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := db.NewSelect().
		Model(&p).
		Where("id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Provider{}, mapError(err)
	}
	return p, nil
}

func getWeeklyAvailability(ctx context.Context, db bun.IDB, providerID uuid.UUID, weekday time.Weekday) (domain.WeeklyAvailability, error) {
	var w domain.WeeklyAvailability
	err := db.NewSelect().
		Model(&w).
		Where("provider_id = ?", providerID).
		Where("weekday = ?", int(weekday)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.WeeklyAvailability{}, mapError(err)
	}
	return w, nil
}

func listActiveBookings(ctx context.Context, db bun.IDB, providerID uuid.UUID, date time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date = ?::date", domain.FormatDate(date)).
		Where("active").
		Where("status IN (?)", bun.In(domain.SlotHoldingStatuses)).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}
